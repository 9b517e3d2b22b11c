package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/storage"
	"github.com/ibrahimkeyboad/gosettle/internal/app"
	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
	"github.com/ibrahimkeyboad/gosettle/internal/core/logging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/security"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "api",
		Short:         "GoSettle - bank accounts, coin wallets and phone wallets settled by saga",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment variables still win)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(keygenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "serve [bank|coin|phone|all]",
		Short:     "Run one service, or all three in one process",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bank", "coin", "phone", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := app.ParseMode(args[0])
			if err != nil {
				return err
			}

			// 1. Load Config
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// 2. Setup Logger
			logger := logging.New(cfg.Log)

			// 3. Stop on Ctrl+C or docker stop
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// 4. Wire and run
			server, err := app.New(ctx, cfg, mode, logger)
			if err != nil {
				logger.Error("❌ Startup failed", "error", err)
				return err
			}
			return server.Run(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log)
			if cfg.Database.URL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			if err := storage.Migrate(cmd.Context(), cfg.Database.URL); err != nil {
				return err
			}
			logger.Info("✅ Migrations applied")
			return nil
		},
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an admin API key and the hash for ADMIN_API_KEY_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			realKey, keyHash, err := security.GenerateAPIKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "api key:  %s\n", realKey)
			fmt.Fprintf(out, "key hash: %s\n", keyHash)
			fmt.Fprintln(out, "Save the key now! Only the hash goes in ADMIN_API_KEY_HASH.")
			return nil
		},
	}
}
