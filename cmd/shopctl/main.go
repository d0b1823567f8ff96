package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/linemk/storefront/internal/app"
	"github.com/linemk/storefront/internal/config"
	"github.com/linemk/storefront/internal/lib/logger"
)

var Version = "dev"

func main() {
	var configPath string
	var services *app.Services
	var application *app.App

	rootCmd := &cobra.Command{
		Use:     "shopctl",
		Short:   "Storefront administration: orders and catalog",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			if configPath == "" {
				return errors.New("config path is required (--config or CONFIG_PATH)")
			}
			cfg := config.MustLoadByPath(configPath)
			log := logger.SetupLogger(cfg.Env)

			var err error
			application, err = app.NewApp(log, cfg)
			if err != nil {
				return errors.Wrap(err, "failed to initialize app")
			}
			services, err = application.Services()
			if err != nil {
				return errors.Wrap(err, "failed to build services")
			}
			log.Debug("shopctl ready", slog.String("command", cmd.CommandPath()))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if application != nil {
				application.Close()
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	svc := func() *app.Services { return services }
	rootCmd.AddCommand(ordersCmd(svc))
	rootCmd.AddCommand(productsCmd(svc))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
