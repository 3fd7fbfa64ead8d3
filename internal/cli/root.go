// Package cli implements the intake command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/intake/internal/config"
	"github.com/example/intake/internal/logging"
	"github.com/example/intake/internal/secrets"
	"github.com/example/intake/internal/version"
	"github.com/example/intake/internal/wire"
)

// rootOptions are shared by every subcommand.
type rootOptions struct {
	configPath string
	getenv     func(string) string
	secrets    secrets.Provider
}

// NewRootCmd returns the intake root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{getenv: os.Getenv, secrets: secrets.NewEnvProvider()})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "intake",
		Short:   "Client instruction intake service",
		Version: version.String(),
		Long: `intake reconciles client instruction submissions, takes card payments,
and drives ID verification, notification emails and lifecycle events
through a durable outbox.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", opts.getenv("INTAKE_CONFIG"), "path to YAML config file")

	cmd.AddCommand(serveCmd(opts))
	cmd.AddCommand(migrateCmd(opts))
	cmd.AddCommand(instructionCmd(opts))
	cmd.AddCommand(outboxCmd(opts))
	cmd.AddCommand(versionCmd())

	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath, o.getenv)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// build loads configuration and constructs the application. The returned
// cleanup closes the app and flushes the logger.
func (o *rootOptions) build(ctx context.Context) (*wire.App, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	a, err := wire.Build(ctx, cfg, logger, o.secrets)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close resources", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return a, cleanup, nil
}
