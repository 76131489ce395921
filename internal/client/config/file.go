package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for file unmarshalling. Zero values
// leave the corresponding Config field untouched.
type FileConfig struct {
	DatabasePath            string         `json:"database_path" yaml:"database_path"`
	DefaultTenant           string         `json:"default_tenant" yaml:"default_tenant"`
	Tenants                 []TenantConfig `json:"tenants" yaml:"tenants"`
	BatchThreshold          int            `json:"batch_threshold" yaml:"batch_threshold"`
	DirectBatchSize         int            `json:"direct_batch_size" yaml:"direct_batch_size"`
	RequestTimeout          timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	MaxRetries              int            `json:"max_retries" yaml:"max_retries"`
	RetryBaseDelay          timex.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay           timex.Duration `json:"retry_max_delay" yaml:"retry_max_delay"`
	ContentFetchParallelism int            `json:"content_fetch_parallelism" yaml:"content_fetch_parallelism"`
	LogLevel                string         `json:"log_level" yaml:"log_level"`
	LogFormat               string         `json:"log_format" yaml:"log_format"`
	LogFile                 string         `json:"log_file" yaml:"log_file"`
}

// parseFile overlays cfg with values from a JSON or YAML file.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.DefaultTenant, fc.DefaultTenant)
	if len(fc.Tenants) > 0 {
		cfg.Tenants = fc.Tenants
	}
	setInt(&cfg.BatchThreshold, fc.BatchThreshold)
	setInt(&cfg.DirectBatchSize, fc.DirectBatchSize)
	if fc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	setInt(&cfg.MaxRetries, fc.MaxRetries)
	if fc.RetryBaseDelay.Duration > 0 {
		cfg.RetryBaseDelay = fc.RetryBaseDelay.Duration
	}
	if fc.RetryMaxDelay.Duration > 0 {
		cfg.RetryMaxDelay = fc.RetryMaxDelay.Duration
	}
	setInt(&cfg.ContentFetchParallelism, fc.ContentFetchParallelism)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.LogFile, fc.LogFile)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
