// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Storage backends accepted in Config.StorageBackend.
const (
	StorageMemory = "memory"
	StorageS3     = "s3"
	StorageMinio  = "minio"
)

// Config holds runtime settings for the EstateKeeper server.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the public gRPC endpoint.
//   - MetricsAddr: bind address of the Prometheus /metrics endpoint; empty disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory repositories.
//   - SecretKey: HMAC secret for verifying JWTs (HS256). Do not use test defaults in prod.
//   - StorageBackend: one of memory, s3, minio.
//   - S3RootUser / S3RootPassword / S3Bucket / S3Region / S3BaseEndpoint: object storage settings,
//     shared by the s3 and minio backends.
//   - RedisAddr / NATSURL / ClamdAddr: optional collaborators; empty disables each one.
type Config struct {
	EndpointAddrGRPC string
	MetricsAddr      string
	LogLevel         string
	DatabaseDSN      string
	SecretKey        string

	StorageBackend string
	// StorageMasterKey is the hex master key of the memory backend. A random
	// key is used when empty.
	StorageMasterKey string
	S3RootUser       string
	S3RootPassword   string
	S3Bucket         string
	S3Region         string
	S3BaseEndpoint   string
	MinioUseSSL      bool

	RedisAddr        string
	DelegateCacheTTL time.Duration
	NATSURL          string
	ClamdAddr        string

	MaxFileSize            int64
	RetryAttempts          int
	RetryBaseDelay         time.Duration
	EncryptionPollInterval time.Duration
	EncryptionTimeout      time.Duration
	EncryptionAttempts     int
	OperationTimeout       time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.MetricsAddr = ":9090"
	c.LogLevel = "info"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.StorageBackend = StorageMemory
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "estate-documents"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.DelegateCacheTTL = 30 * time.Second
	c.MaxFileSize = 50 << 20
	c.RetryAttempts = 3
	c.RetryBaseDelay = 200 * time.Millisecond
	c.EncryptionPollInterval = 500 * time.Millisecond
	c.EncryptionTimeout = 30 * time.Second
	c.EncryptionAttempts = 2
	c.OperationTimeout = 5 * time.Minute
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
