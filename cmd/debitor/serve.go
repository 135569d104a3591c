package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pichlex/debitor"
	httpAdapter "github.com/pichlex/debitor/pkg/adapters/http"
	"github.com/pichlex/debitor/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the chat API over HTTP. Prometheus metrics are exposed at /metrics,
or on a separate listener when metrics_addr is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		metrics := observability.NewMetrics()
		svc, err := newService(cfg, logger,
			debitor.WithLifecycleHooks(metrics.Hooks()),
			debitor.WithLifecycleHooks(observability.LoggingHooks(logger)),
		)
		if err != nil {
			return err
		}
		defer svc.Close()

		addr := cfg.HTTPAddr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		opts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
		if cfg.MetricsAddr == "" {
			opts = append(opts, httpAdapter.WithMetrics(metrics.Handler()))
		}
		servers := []*http.Server{{
			Addr:              addr,
			Handler:           httpAdapter.NewServer(svc, opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}}
		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, logger, servers...)
	},
}

// serve runs every server until ctx is cancelled or one of them fails.
func serve(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("Listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "addr", srv.Addr, "err", err)
				return srv.Close()
			}
			return nil
		})
	}
	err := g.Wait()
	logger.Info("Server stopped")
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http_addr)")
}
