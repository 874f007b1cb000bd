// Command famgraphd serves the family graph over HTTP.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"famgraph/internal/blob"
	"famgraph/internal/config"
	"famgraph/internal/core"
	"famgraph/internal/export"
	"famgraph/internal/httpapi"
	"famgraph/internal/logging"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stderr))
}

func cli(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("famgraphd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", ".env", "optional dotenv file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, *envFile); err != nil {
		_, _ = fmt.Fprintf(stderr, "famgraphd: %v\n", err)
		return 1
	}
	return 0
}

// app bundles the wired components so shutdown can release them in order.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   io.Closer
	tracing tracing
	server  *http.Server
}

func run(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(cfg.StoreConfig(), engine)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tr, err := setupTracing(ctx, cfg.Tracing, logger.Named("tracing"))
	if err != nil {
		_ = core.CloseStore(store)
		return nil, err
	}

	svc := core.NewService(store,
		core.WithRulesEngine(engine),
		core.WithLogger(logger.Named("core")),
		core.WithAuditRecorder(core.LogAuditRecorder{Logger: logger.Named("audit")}),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{
			core.NewPrometheusMetricsRecorder(registry),
			core.NewExpvarMetricsRecorder(""),
		}),
		core.WithTracer(tr.tracer),
		core.WithTxTimeout(cfg.TxTimeout),
	)

	blobs, err := blob.Open(ctx, cfg.BlobStoreConfig())
	if err != nil {
		_ = core.CloseStore(store)
		_ = tr.shutdown(ctx)
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	exporter := export.New(svc, blobs)

	router := httpapi.NewRouter(httpapi.Options{
		Service:     svc,
		Exporter:    exporter,
		Authorizer:  httpapi.TokenAuthorizer{Token: cfg.AdminToken},
		Logger:      logger.Named("http"),
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Vars:        expvar.Handler(),
		CORSOrigins: cfg.CORSOrigins,
	})
	if cfg.AdminToken == "" {
		logger.Warn("FAMGRAPH_ADMIN_TOKEN is empty; mutations are disabled")
	}
	logger.Info("famgraph ready", "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver, "members", len(svc.ListMembers()))

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   closerFunc(func() error { return core.CloseStore(store) }),
		tracing: tr,
		server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: cfg.ShutdownTimeout,
		},
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("close store", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.tracing.shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown tracing", "error", err)
	}
	_ = a.logger.Sync()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
