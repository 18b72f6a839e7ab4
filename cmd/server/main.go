package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/voicelink/internal/app"
	"github.com/vovakirdan/voicelink/internal/config"
	"github.com/vovakirdan/voicelink/internal/log"
	"github.com/vovakirdan/voicelink/internal/store/sqlite"
)

type rootFlags struct {
	configPath string
	addr       string
	logLevel   string
	dbPath     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:          "voicelink",
		Short:        "Room server for live translated voice conversations",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize app")
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting voicelink server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "sqlite database path")
	root.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address")

	root.AddCommand(newGrantAdminCmd(&flags))
	return root
}

// loadConfig resolves config from file and env, then applies command line overrides.
func loadConfig(flags rootFlags) (config.Config, error) {
	bootLogger := log.New("info", "console")
	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return cfg, err
	}
	bootLogger.Debug().Str("path", path).Msg("config loaded")

	cfg.UpdateFrom(config.Config{
		Addr:         flags.addr,
		LogLevel:     flags.logLevel,
		DatabasePath: flags.dbPath,
	})
	return cfg, nil
}

func newGrantAdminCmd(flags *rootFlags) *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "grant-admin <username>",
		Short: "Grant or revoke site admin rights for a registered user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}

			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.SetUserAdmin(cmd.Context(), args[0], !revoke); err != nil {
				return fmt.Errorf("update %s: %w", args[0], err)
			}

			action := "granted"
			if revoke {
				action = "revoked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin rights %s for %s\n", action, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")
	return cmd
}
