package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/mcp"
	"github.com/Aman-CERP/docsift/internal/watcher"
)

type serveOptions struct {
	root        string
	transport   string
	metricsAddr string
	watch       bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serve the indexed folder to MCP clients over stdio.

Tools: search_documents, query_stats, recent_queries. Every indexed
document is also exposed as a file:// resource.

Stdout carries JSON-RPC only; logs go to ~/.docsift/logs/docsift.log.
With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	addRootFlag(cmd, &opts.root)
	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport protocol (stdio)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild the index when files change")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	root, err := resolveRoot(opts.root)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupServeMode(level)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := openCorpus(ctx, root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(a)
	if err != nil {
		return err
	}
	if err := srv.RegisterResources(ctx); err != nil {
		slog.Warn("mcp_resources_unavailable", slog.String("error", err.Error()))
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = cfg.Server.MetricsAddr
	}
	if addr != "" {
		metrics := newMetricsServer(addr, a.Registry())
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics_server_failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
		slog.Info("metrics_server_started", slog.String("addr", addr))
	}

	if opts.watch {
		go func() {
			err := a.Watch(ctx, func(_ []watcher.FileEvent, _ *index.BuildReport, err error) {
				if err != nil {
					return
				}
				if err := srv.RegisterResources(ctx); err != nil {
					slog.Warn("mcp_resources_refresh_failed", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				slog.Error("watch_stopped", slog.String("error", err.Error()))
			}
		}()
	}

	err = srv.Serve(ctx, opts.transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newMetricsServer exposes the registry on /metrics.
func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
