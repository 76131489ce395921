package cli

import (
	"fmt"
	"io"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Overrides  config.Overrides

	// Transports overrides the transport factory (tests).
	Transports services.TransportFactory

	app *App
}

// NewRootCommand creates the fieldsync command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fieldsync",
		Short:         "Offline sales data synchronization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.app == nil {
				return nil
			}
			return opts.app.Close()
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.ConfigFile, "config", "c", "", "config file (env "+flagx.ConfigFileEnv+")")
	config.BindFlags(fs, &opts.Overrides)

	cmd.AddCommand(
		newSyncCommand(opts),
		newSendCommand(opts),
		newConfirmCommand(opts),
		newPrintCommand(opts),
		newContentCommand(opts),
		newMigrateTenantCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

// needsApp reports whether cmd works on the store. Help and shell
// completion run without a configuration.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return cmd.Runnable()
}

func (o *RootOptions) open(cmd *cobra.Command) error {
	if !needsApp(cmd) {
		return nil
	}
	file := o.ConfigFile
	if file == "" {
		file = flagx.ConfigFile(nil)
	}
	cfg, err := config.Load(file)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.Overrides.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := promptCredentials(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	log, closer := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Stderr: cmd.ErrOrStderr(),
	})

	app, err := NewApp(cmd.Context(), cfg, log, o.Transports)
	if err != nil {
		_ = closer.Close()
		return err
	}
	app.closers = append([]io.Closer{closer}, app.closers...)
	o.app = app
	return nil
}
