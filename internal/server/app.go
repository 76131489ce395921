// Package server initializes and runs the reference sync server.
// It opens storage, applies migrations, loads the optional seed file and
// serves the sync protocol over HTTP until the context is cancelled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/handlers"
	"github.com/dmitrijs2005/fieldsync/internal/server/printstore"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *http.Server
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	rm, err := app.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	// without a bucket receipts live in process memory
	var prints printstore.Store = printstore.NewMemoryStore()
	if c.S3Bucket != "" {
		prints, err = printstore.NewS3Store(ctx, printstore.S3Config{
			User:         c.S3User,
			Password:     c.S3Password,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("print store init error: %w", err)
		}
	}

	svc := services.NewService(app.db, rm, prints, c, logger)
	if c.SeedFile != "" {
		if err := app.loadSeed(ctx, svc); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.server = &http.Server{
		Addr:              c.Addr,
		Handler:           handlers.NewRouter(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app, nil
}

func (app *App) openStorage(ctx context.Context) (repomanager.RepositoryManager, error) {
	if app.config.Storage == config.StorageMemory {
		app.logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	return rm, nil
}

func (app *App) loadSeed(ctx context.Context, svc *services.Service) error {
	f, err := os.Open(app.config.SeedFile)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return svc.LoadSeed(ctx, f)
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.config.Addr, "storage", app.config.Storage)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (app *App) Close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
		app.db = nil
	}
}
