package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/config"
	"github.com/pichlex/debitor/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "debitor",
	Short: "Debitor is a conversational debt-collection agent",
	Long: `Debitor runs a debt-collection dialogue as a graph of nodes, with each
conversation checkpointed to one of several shards.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (defaults to ./debitor.yaml when present)")
}

// loadConfig reads the configuration and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewWithFormat(cfg.LogFormat, level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openService loads the configuration and starts the service.
func openService(cmd *cobra.Command, opts ...debitor.Option) (*debitor.Service, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	svc, err := newService(cfg, logger, opts...)
	return svc, logger, err
}

func newService(cfg *config.Config, logger *slog.Logger, opts ...debitor.Option) (*debitor.Service, error) {
	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		return nil, err
	}
	svc, err := debitor.New(svcCfg, append([]debitor.Option{debitor.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}
