package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/flagx"
	"github.com/dmitrijs2005/estatekeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. Fields left out of the file keep their current
// values in the runtime Config.
type JsonConfig struct {
	EndpointAddrGRPC       string          `json:"endpoint_addr_grpc"`
	MetricsAddr            string          `json:"metrics_addr"`
	LogLevel               string          `json:"log_level"`
	DatabaseDSN            string          `json:"database_dsn"`
	SecretKey              string          `json:"secret_key"`
	StorageBackend         string          `json:"storage_backend"`
	StorageMasterKey       string          `json:"storage_master_key"`
	S3RootUser             string          `json:"s3_root_user"`
	S3RootPassword         string          `json:"s3_root_password"`
	S3Bucket               string          `json:"s3_bucket"`
	S3Region               string          `json:"s3_region"`
	S3BaseEndpoint         string          `json:"s3_base_endpoint"`
	MinioUseSSL            *bool           `json:"minio_use_ssl"`
	RedisAddr              string          `json:"redis_addr"`
	DelegateCacheTTL       *timex.Duration `json:"delegate_cache_ttl"`
	NATSURL                string          `json:"nats_url"`
	ClamdAddr              string          `json:"clamd_addr"`
	MaxFileSize            int64           `json:"max_file_size"`
	RetryAttempts          int             `json:"retry_attempts"`
	RetryBaseDelay         *timex.Duration `json:"retry_base_delay"`
	EncryptionPollInterval *timex.Duration `json:"encryption_poll_interval"`
	EncryptionTimeout      *timex.Duration `json:"encryption_timeout"`
	EncryptionAttempts     int             `json:"encryption_attempts"`
	OperationTimeout       *timex.Duration `json:"operation_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path comes from the -c or -config command-line flags. If
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.StorageMasterKey, c.StorageMasterKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.NATSURL, c.NATSURL)
	setString(&config.ClamdAddr, c.ClamdAddr)

	if c.MinioUseSSL != nil {
		config.MinioUseSSL = *c.MinioUseSSL
	}
	if c.MaxFileSize > 0 {
		config.MaxFileSize = c.MaxFileSize
	}
	if c.RetryAttempts > 0 {
		config.RetryAttempts = c.RetryAttempts
	}
	if c.EncryptionAttempts > 0 {
		config.EncryptionAttempts = c.EncryptionAttempts
	}

	setDuration(&config.DelegateCacheTTL, c.DelegateCacheTTL)
	setDuration(&config.RetryBaseDelay, c.RetryBaseDelay)
	setDuration(&config.EncryptionPollInterval, c.EncryptionPollInterval)
	setDuration(&config.EncryptionTimeout, c.EncryptionTimeout)
	setDuration(&config.OperationTimeout, c.OperationTimeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
