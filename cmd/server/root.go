package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/reelforge-api/internal/config"
	"github.com/Shimizu-Technology/reelforge-api/internal/logging"
)

// app is the state shared by every subcommand, filled in before RunE.
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func (a *app) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.AppEnv)
	return nil
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "reelforge-api",
		Short:         "ReelForge video pipeline API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		// Go Pattern: With no subcommand the binary serves, so container
		// images can keep a bare ENTRYPOINT.
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newMigrateCommand(a))
	rootCmd.AddCommand(newPricingCommand(a))
	rootCmd.AddCommand(newTokenCommand(a))

	return rootCmd
}

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}
