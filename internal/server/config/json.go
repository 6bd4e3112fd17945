package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
	"github.com/dmitrijs2005/gophdrive/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations are
// timex.Duration so both "24h" and integer nanoseconds are accepted.
// Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	StorageBackend              string         `json:"storage_backend"`
	LocalStorageRoot            string         `json:"local_storage_root"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	TrashRetention              timex.Duration `json:"trash_retention"`
	ReaperInterval              timex.Duration `json:"reaper_interval"`
	ReaperBatchSize             int            `json:"reaper_batch_size"`
	DefaultUserQuotaBytes       int64          `json:"default_user_quota_bytes"`
	LogLevel                    string         `json:"log_level"`
	LogFormat                   string         `json:"log_format"`
}

// parseJson loads the file named by -c/-config, if any, into config.
// An unreadable or malformed file panics: the process cannot start with a
// configuration the operator did not intend.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.LocalStorageRoot, c.LocalStorageRoot)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.TrashRetention.Duration > 0 {
		config.TrashRetention = c.TrashRetention.Duration
	}
	if c.ReaperInterval.Duration > 0 {
		config.ReaperInterval = c.ReaperInterval.Duration
	}
	if c.ReaperBatchSize > 0 {
		config.ReaperBatchSize = c.ReaperBatchSize
	}
	if c.DefaultUserQuotaBytes > 0 {
		config.DefaultUserQuotaBytes = c.DefaultUserQuotaBytes
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
