package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/internal/config"
	"github.com/fastygo/dashboard/pkg/logger"
)

// env is filled by the root command before any subcommand runs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Operate the dashboard backend",
		Long: `dashctl runs schema migrations and manages user roles
against the database configured for the dashboard server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			zapLogger, err := logger.New(logger.Config{
				Level:    cfg.Logger.Level,
				Encoding: cfg.Logger.Encoding,
			})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			e.cfg = cfg
			e.logger = zapLogger
			return nil
		},
	}

	rootCmd.AddCommand(
		migrateCmd(e),
		usersCmd(e),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
