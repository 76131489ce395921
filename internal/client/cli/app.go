package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// App holds what the commands share for one invocation.
type App struct {
	cfg    *config.Config
	log    logging.Logger
	store  *store.Store
	sync   services.SyncService
	tenant string

	closers []io.Closer
}

// NewApp opens the local store and wires the sync service. A nil transports
// factory selects services.DefaultTransports.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger, transports services.TransportFactory) (*App, error) {
	tc, err := cfg.Tenant(cfg.DefaultTenant)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}

	if transports == nil {
		transports = services.DefaultTransports(cfg, log)
	}
	return &App{
		cfg:     cfg,
		log:     log,
		store:   st,
		sync:    services.NewSyncService(st, transports, cfg, log),
		tenant:  tc.ID,
		closers: []io.Closer{st},
	}, nil
}

// Tenant returns the store handle of the selected tenant.
func (a *App) Tenant() *store.Tenant { return a.store.Tenant(a.tenant) }

func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// promptCredentials asks for the username and password of the selected
// tenant when the configuration leaves them empty and stdin is a terminal.
func promptCredentials(cfg *config.Config, w io.Writer) error {
	tc, err := cfg.Tenant(cfg.DefaultTenant)
	if err != nil {
		return err
	}
	if tc.Format == config.FormatDir || tc.Password != "" {
		return nil
	}
	if !isTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	for i := range cfg.Tenants {
		t := &cfg.Tenants[i]
		if t.ID != tc.ID {
			continue
		}
		if t.Username == "" {
			if t.Username, err = GetSimpleText(bufio.NewReader(os.Stdin), "Username", w); err != nil {
				return fmt.Errorf("read username: %w", err)
			}
		}
		if t.Password, err = GetPassword(w, fmt.Sprintf("Password for %s", t.Username)); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	return nil
}
