package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-s", "-t", "-k", "-l", "-u", "-p", "-b", "-g", "-e", "-w", "-i", "-n", "-q", "-L", "-F"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN, or "memory"
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-k string   blob storage backend: s3, local, memory
//	-l string   local blob storage root
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w int      trash retention, minutes
//	-i int      reaper interval, minutes
//	-n int      reaper batch size
//	-q int      default user quota, bytes
//	-L string   log level
//	-F string   log format: json, text, zap, console
//
// Duration flags are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "blob storage backend")
	fs.StringVar(&config.LocalStorageRoot, "l", config.LocalStorageRoot, "local blob storage root")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	trashRetention := fs.Int("w", int(config.TrashRetention.Minutes()), "trash retention (in minutes)")
	reaperInterval := fs.Int("i", int(config.ReaperInterval.Minutes()), "reaper interval (in minutes)")
	fs.IntVar(&config.ReaperBatchSize, "n", config.ReaperBatchSize, "reaper batch size")
	fs.Int64Var(&config.DefaultUserQuotaBytes, "q", config.DefaultUserQuotaBytes, "default user quota (in bytes)")

	fs.StringVar(&config.LogLevel, "L", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "F", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.TrashRetention = time.Duration(*trashRetention) * time.Minute
	config.ReaperInterval = time.Duration(*reaperInterval) * time.Minute
}
