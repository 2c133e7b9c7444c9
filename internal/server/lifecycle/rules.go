package lifecycle

import (
	"fmt"
	"mime"
	"strings"

	"github.com/dmitrijs2005/estatekeeper/internal/checksum"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

const (
	mb            = 1 << 20
	maxTitleLen   = 255
	maxRetention  = 100 * 365
	mimePDF       = "application/pdf"
	mimeJPEG      = "image/jpeg"
	mimePNG       = "image/png"
	mimeTIFF      = "image/tiff"
	mimeCSV       = "text/csv"
	mimeXLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePlainText = "text/plain"
)

// Rule constrains uploads of one document type.
type Rule struct {
	MaxFileSize  int64
	AllowedTypes []string
}

func (r Rule) allows(mimeType string) bool {
	for _, t := range r.AllowedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// Rules maps every document type to its upload constraints.
type Rules map[models.DocumentType]Rule

var DefaultRules = Rules{
	models.DocumentTypeMedical:   {MaxFileSize: 50 * mb, AllowedTypes: []string{mimePDF, mimeJPEG, mimePNG, mimeTIFF}},
	models.DocumentTypeFinancial: {MaxFileSize: 25 * mb, AllowedTypes: []string{mimePDF, mimeCSV, mimeXLSX}},
	models.DocumentTypeLegal:     {MaxFileSize: 25 * mb, AllowedTypes: []string{mimePDF, mimeDOCX}},
	models.DocumentTypePersonal:  {MaxFileSize: 25 * mb, AllowedTypes: []string{mimePDF, mimeJPEG, mimePNG, mimePlainText}},
	models.DocumentTypeInsurance: {MaxFileSize: 25 * mb, AllowedTypes: []string{mimePDF}},
	models.DocumentTypeTax:       {MaxFileSize: 25 * mb, AllowedTypes: []string{mimePDF, mimeCSV, mimeXLSX}},
}

// normalizeMIME lower-cases the media type and drops parameters.
func normalizeMIME(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return mt
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
}

// validate checks req against the rule for its type. globalMax, when
// positive, caps every rule.
func (r Rules) validate(req *CreateRequest, globalMax int64) error {
	if req.OwnerID == "" {
		return invalid("owner is required")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTitleLen {
		return invalid("title must be 1..%d characters", maxTitleLen)
	}
	if !req.Type.Valid() {
		return invalid("unknown document type %q", req.Type)
	}
	rule, ok := r[req.Type]
	if !ok {
		return invalid("no upload rule for %s", req.Type)
	}
	if strings.TrimSpace(req.FileName) == "" {
		return invalid("file name is required")
	}

	limit := rule.MaxFileSize
	if globalMax > 0 && globalMax < limit {
		limit = globalMax
	}
	if req.FileSize <= 0 || req.FileSize > limit {
		return invalid("file size %d outside 1..%d for %s", req.FileSize, limit, req.Type)
	}
	if int64(len(req.Content)) != req.FileSize {
		return invalid("declared size %d does not match content length %d", req.FileSize, len(req.Content))
	}

	mt := normalizeMIME(req.MimeType)
	if !rule.allows(mt) {
		return invalid("mime type %q not allowed for %s", req.MimeType, req.Type)
	}
	if req.ChecksumSHA256 != "" && !checksum.Valid(req.ChecksumSHA256) {
		return invalid("checksum must be %d hex characters", checksum.Size)
	}
	if req.RetentionPeriodDays < 1 || req.RetentionPeriodDays > maxRetention {
		return invalid("retention period must be 1..%d days", maxRetention)
	}

	req.Title = title
	req.MimeType = mt
	return nil
}
