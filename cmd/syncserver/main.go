package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	// a .env file in the working directory is optional
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, Format: "json"})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "error", err)
		return 1
	}
	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server stopped", "error", err)
		return 1
	}
	return 0
}
