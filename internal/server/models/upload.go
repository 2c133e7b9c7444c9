package models

// UploadState tracks an in-flight upload by correlation id. It is
// ephemeral: dropped once a terminal status has been observed.
type UploadState struct {
	CorrelationID             string
	DocumentID                string
	Status                    DocumentStatus
	ProgressPercent           int
	EncryptionProgressPercent int
	RetryCount                int
	LastError                 string
}
