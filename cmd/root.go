// Package cmd defines and implements the CLI commands for the stacfetch
// executable.
package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/config"
	"github.com/eodatalab/stacfetch/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stacfetch",
		Short: "Fetch satellite imagery catalog entries and their rasters.",
		Long: `stacfetch ingests STAC catalog items for an area of interest, downloads
their raster assets (optionally clipping each to the AOI without a full
download), and writes a locally-consistent set of item definitions ready
for catalog assembly.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stacfetch.yaml)")
	cmd.PersistentFlags().Bool("dev-logging", false, "use human-readable development logging")
	cmd.PersistentFlags().String("metrics-addr", "", "address to expose Prometheus metrics on (disabled when empty)")
	bind := func(key, flag string) {
		if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
	bind("logging.development", "dev-logging")
	bind("metrics.addr", "metrics-addr")

	cmd.AddCommand(newFetchCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

// setup loads configuration and builds the logger shared by subcommands.
func setup() (config.Config, *zap.Logger, error) {
	v := viper.GetViper()
	if err := config.InitViper(v, cfgFile); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.DevLogging)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// serveMetrics exposes /metrics on addr in the background. The listener
// lives for the remainder of the process; errors are logged, not fatal.
func serveMetrics(addr string, logger *zap.Logger) {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}
