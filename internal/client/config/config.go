package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Transport formats a tenant can be configured with.
const (
	FormatHTTP = "http"
	FormatFTP  = "ftp"
	FormatDir  = "dir"
)

// TenantConfig holds the connection parameters of one server account.
type TenantConfig struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	// Format selects the transport: http (default), ftp or dir.
	Format   string `json:"format" yaml:"format"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	UserID   string `json:"user_id" yaml:"user_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	// FTPAddr is host:port of the legacy exchange server.
	FTPAddr string `json:"ftp_addr" yaml:"ftp_addr"`
	// ExchangeDir is the root directory on the FTP server or local disk.
	ExchangeDir string `json:"exchange_dir" yaml:"exchange_dir"`
	// PushToken is the device push-notification token reported to the server.
	PushToken string `json:"push_token" yaml:"push_token"`
}

// Config holds runtime settings for the fieldsync client.
type Config struct {
	DatabasePath  string
	DefaultTenant string
	Tenants       []TenantConfig

	// BatchThreshold is the buffered record count above which the buffer is
	// flushed to the store. DirectBatchSize is the incoming batch size at which
	// a batch bypasses the buffer.
	BatchThreshold  int
	DirectBatchSize int

	RequestTimeout          time.Duration
	MaxRetries              int
	RetryBaseDelay          time.Duration
	RetryMaxDelay           time.Duration
	ContentFetchParallelism int

	LogLevel  string
	LogFormat string
	LogFile   string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "fieldsync.db"
	c.BatchThreshold = 500
	c.DirectBatchSize = 100
	c.RequestTimeout = 30 * time.Second
	c.MaxRetries = 3
	c.RetryBaseDelay = 200 * time.Millisecond
	c.RetryMaxDelay = 5 * time.Second
	c.ContentFetchParallelism = 4
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Load constructs a Config from defaults, the optional file and the
// environment. Flags are applied separately by the caller (see BindFlags).
func Load(file string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if file != "" {
		if err := parseFile(cfg, file); err != nil {
			return nil, err
		}
	}

	if err := parseEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Tenant returns the configuration of the tenant with the given id; an empty
// id selects DefaultTenant, or the only tenant when exactly one is configured.
func (c *Config) Tenant(id string) (TenantConfig, error) {
	if id == "" {
		id = c.DefaultTenant
	}
	if id == "" && len(c.Tenants) == 1 {
		return c.Tenants[0].withDefaults(), nil
	}
	for _, t := range c.Tenants {
		if t.ID == id {
			return t.withDefaults(), nil
		}
	}
	return TenantConfig{}, fmt.Errorf("tenant %q: %w", id, common.ErrNotFound)
}

// Validate checks the invariants the sync engine relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if c.BatchThreshold <= 0 || c.DirectBatchSize <= 0 {
		errs = append(errs, errors.New("batch sizes must be positive"))
	}
	seen := make(map[string]struct{}, len(c.Tenants))
	for _, t := range c.Tenants {
		if t.ID == "" {
			errs = append(errs, errors.New("tenant without id"))
			continue
		}
		if _, dup := seen[t.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate tenant %q", t.ID))
		}
		seen[t.ID] = struct{}{}

		switch t.withDefaults().Format {
		case FormatHTTP:
			if t.BaseURL == "" {
				errs = append(errs, fmt.Errorf("tenant %q: base_url is required", t.ID))
			}
		case FormatFTP:
			if t.FTPAddr == "" {
				errs = append(errs, fmt.Errorf("tenant %q: ftp_addr is required", t.ID))
			}
		case FormatDir:
			if t.ExchangeDir == "" {
				errs = append(errs, fmt.Errorf("tenant %q: exchange_dir is required", t.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("tenant %q: unknown format %q", t.ID, t.Format))
		}
	}
	return errors.Join(errs...)
}

func (t TenantConfig) withDefaults() TenantConfig {
	if t.Format == "" {
		t.Format = FormatHTTP
	}
	if t.UserID == "" {
		t.UserID = t.Username
	}
	return t
}
