package config

import "github.com/spf13/pflag"

// Overrides carries command-line values; empty fields are not applied.
type Overrides struct {
	DatabasePath string
	Tenant       string
	LogLevel     string
	LogFile      string
}

// BindFlags registers the global client flags on fs.
func BindFlags(fs *pflag.FlagSet, o *Overrides) {
	fs.StringVarP(&o.DatabasePath, "db", "d", "", "path to the local database")
	fs.StringVarP(&o.Tenant, "tenant", "t", "", "tenant (connection) id")
	fs.StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&o.LogFile, "log-file", "", "rotating log file")
}

// Apply overlays cfg with the non-empty overrides.
func (o Overrides) Apply(cfg *Config) {
	setString(&cfg.DatabasePath, o.DatabasePath)
	setString(&cfg.DefaultTenant, o.Tenant)
	setString(&cfg.LogLevel, o.LogLevel)
	setString(&cfg.LogFile, o.LogFile)
}
