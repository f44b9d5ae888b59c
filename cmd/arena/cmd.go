package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/obslog"
)

// flags override the environment when set explicitly.
type flags struct {
	port int
	bind string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "arena",
		Short:         "Real-time two-player chess over websockets.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	pf := root.PersistentFlags()
	pf.IntVarP(&f.port, "port", "p", 3000, "port to listen on (env: PORT)")
	pf.StringVarP(&f.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BIND_ADDR)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the game page and websocket endpoint (default).",
			Args:  cobra.NoArgs,
			RunE:  root.RunE,
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Print the live event feed from Redis.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd, f)
				if err != nil {
					return err
				}
				return runWatch(cmd.Context(), cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version.",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "arena v%s\n", releaseVersion)
			},
		},
	)
	return root
}

// loadConfig reads the environment, applies explicit flags, validates, and
// installs the global logger.
func loadConfig(cmd *cobra.Command, f *flags) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = f.port
	}
	if cmd.Flags().Changed("bind") {
		cfg.BindAddr = f.bind
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := obslog.Init(cfg.LogOptions()); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	obslog.L().Info("arena_config",
		zap.String("addr", cfg.Addr()),
		zap.Bool("feed", cfg.FeedEnabled()),
		zap.Bool("announce", cfg.AnnounceEnabled()),
	)
	return cfg, nil
}
