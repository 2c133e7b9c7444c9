package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/estatekeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics bind address
//	-l string   log level
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-o string   storage backend (memory, s3, minio)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-r string   Redis address
//	-n string   NATS URL
//	-v string   clamd address (e.g., "tcp://127.0.0.1:3310")
//	-f int      max file size, bytes
//	-t duration encryption timeout
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-l", "-d", "-s", "-o", "-u", "-p", "-b", "-g", "-e", "-r", "-n", "-v", "-f", "-t",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.StorageBackend, "o", config.StorageBackend, "storage backend")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS URL")
	fs.StringVar(&config.ClamdAddr, "v", config.ClamdAddr, "clamd address")
	fs.Int64Var(&config.MaxFileSize, "f", config.MaxFileSize, "max file size in bytes")
	fs.DurationVar(&config.EncryptionTimeout, "t", config.EncryptionTimeout, "encryption timeout")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
