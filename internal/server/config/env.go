package config

import (
	"os"
	"strconv"
	"time"
)

const envPrefix = "GOPHDRIVE_"

// parseEnv overlays GOPHDRIVE_* environment variables. Unset or unparsable
// values are ignored.
func parseEnv(config *Config) {
	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_VALIDITY")
	envString(&config.StorageBackend, "STORAGE_BACKEND")
	envString(&config.LocalStorageRoot, "LOCAL_STORAGE_ROOT")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envDuration(&config.TrashRetention, "TRASH_RETENTION")
	envDuration(&config.ReaperInterval, "REAPER_INTERVAL")
	envInt(&config.ReaperBatchSize, "REAPER_BATCH_SIZE")
	envInt64(&config.DefaultUserQuotaBytes, "DEFAULT_USER_QUOTA_BYTES")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.LogFormat, "LOG_FORMAT")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
