package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables understood by the client.
const (
	EnvDatabase = "FIELDSYNC_DB"
	EnvTenant   = "FIELDSYNC_TENANT"
	EnvLogLevel = "FIELDSYNC_LOG_LEVEL"
	EnvLogFile  = "FIELDSYNC_LOG_FILE"
)

// dotEnvFile is loaded when present. Variables already set in the process
// environment are not overwritten.
var dotEnvFile = ".env"

func parseEnv(cfg *Config) error {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotEnvFile, err)
	}

	setString(&cfg.DatabasePath, os.Getenv(EnvDatabase))
	setString(&cfg.DefaultTenant, os.Getenv(EnvTenant))
	setString(&cfg.LogLevel, os.Getenv(EnvLogLevel))
	setString(&cfg.LogFile, os.Getenv(EnvLogFile))
	return nil
}
