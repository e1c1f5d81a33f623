package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/snaptrack/internal/flagx"
	"github.com/dmitrijs2005/snaptrack/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "30m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	StorageBackend               string         `json:"storage_backend"`
	StoragePath                  string         `json:"storage_path"`
	S3AccessKey                  string         `json:"s3_access_key"`
	S3SecretKey                  string         `json:"s3_secret_key"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3UsePathStyle               bool           `json:"s3_use_path_style"`
	S3UseSSL                     bool           `json:"s3_use_ssl"`
	MaxUploadSize                int64          `json:"max_upload_size"`
	LogLevel                     string         `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		DatabaseDSN:                  c.DatabaseDSN,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		BcryptCost:                   c.BcryptCost,
		StorageBackend:               c.StorageBackend,
		StoragePath:                  c.StoragePath,
		S3AccessKey:                  c.S3AccessKey,
		S3SecretKey:                  c.S3SecretKey,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		S3UsePathStyle:               c.S3UsePathStyle,
		S3UseSSL:                     c.S3UseSSL,
		MaxUploadSize:                c.MaxUploadSize,
		LogLevel:                     c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = j.RefreshTokenValidityDuration.Duration
	c.BcryptCost = j.BcryptCost
	c.StorageBackend = j.StorageBackend
	c.StoragePath = j.StoragePath
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3UsePathStyle = j.S3UsePathStyle
	c.S3UseSSL = j.S3UseSSL
	c.MaxUploadSize = j.MaxUploadSize
	c.LogLevel = j.LogLevel
}

// parseJson overlays the file named by -c/-config onto config. Keys missing
// from the file keep their current values. Without the flag it is a no-op.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}
