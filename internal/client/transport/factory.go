package transport

import (
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// New builds the transport configured for a tenant.
func New(tc config.TenantConfig, cfg *config.Config, log logging.Logger) (Transport, error) {
	log = log.With("tenant", tc.ID)
	switch tc.Format {
	case config.FormatHTTP, "":
		return NewHTTP(HTTPConfig{
			BaseURL:  tc.BaseURL,
			UserID:   tc.UserID,
			Username: tc.Username,
			Password: tc.Password,
			Timeout:  cfg.RequestTimeout,
			Retry: RetryPolicy{
				MaxRetries: cfg.MaxRetries,
				BaseDelay:  cfg.RetryBaseDelay,
				MaxDelay:   cfg.RetryMaxDelay,
			},
			ContentParallelism: cfg.ContentFetchParallelism,
		}, log), nil
	case config.FormatFTP:
		return NewFile(config.FormatFTP, NewFTPExchange(FTPConfig{
			Addr:     tc.FTPAddr,
			Username: tc.Username,
			Password: tc.Password,
			Root:     tc.ExchangeDir,
			Timeout:  cfg.RequestTimeout,
		}), log), nil
	case config.FormatDir:
		return NewFile(config.FormatDir, NewDirExchange(tc.ExchangeDir), log), nil
	}
	return nil, fmt.Errorf("tenant %s: unknown transport format %q", tc.ID, tc.Format)
}
