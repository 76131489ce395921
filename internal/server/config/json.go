package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// JSONConfig is the DTO used for reading JSON configuration files. Zero
// values leave the corresponding Config field untouched.
type JSONConfig struct {
	Addr           string         `json:"addr"`
	Storage        string         `json:"storage"`
	DatabaseDSN    string         `json:"database_dsn"`
	SecretKey      string         `json:"secret_key"`
	TokenValidity  timex.Duration `json:"token_validity"`
	PageSize       int            `json:"page_size"`
	SeedFile       string         `json:"seed_file"`
	LogLevel       string         `json:"log_level"`
	S3User         string         `json:"s3_user"`
	S3Password     string         `json:"s3_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
}

// parseJSON loads the file named by -c/-config (or FIELDSYNC_CONFIG) into
// config. Without a file nothing is loaded.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	c := &JSONConfig{}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&config.Addr, c.Addr)
	set(&config.Storage, c.Storage)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	if c.TokenValidity.Duration > 0 {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.PageSize > 0 {
		config.PageSize = c.PageSize
	}
	set(&config.SeedFile, c.SeedFile)
	set(&config.LogLevel, c.LogLevel)
	set(&config.S3User, c.S3User)
	set(&config.S3Password, c.S3Password)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	return nil
}
