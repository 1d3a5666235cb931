// Command logshipperd loads pipeline configuration documents, watches
// them for changes, and ships log messages from their inputs to their
// sinks, grounded on cmd/server/main.go's flag-parse/signal/graceful
// shutdown shape (condensed: this daemon has no HTTP-served engine of
// its own, only a metrics endpoint).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ondergetekende/logshipper/action"
	"github.com/ondergetekende/logshipper/manager"
	"github.com/ondergetekende/logshipper/metrics"
	"github.com/ondergetekende/logshipper/worker"
)

var (
	configGlob  = flag.String("config", "/etc/logshipper/*.yml", "Glob matching pipeline configuration documents")
	metricsAddr = flag.String("metrics-addr", ":9090", "Listen address for the Prometheus metrics endpoint")
	logLevel    = flag.String("log-level", "info", "Minimum log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "logshipperd: invalid -log-level %q, using info\n", *logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configGlob, *metricsAddr); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run wires the worker pool, pipeline manager, and metrics endpoint and
// blocks until ctx is cancelled (by a delivered signal in main, or
// directly in tests). Factored out of main so shutdown can be driven
// by context cancellation instead of a real OS signal.
func run(ctx context.Context, logger *slog.Logger, configGlob, metricsAddr string) error {
	collector := metrics.New()

	pool := worker.New(worker.DefaultConfig(), logger)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := pool.Start(runCtx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	mgr := manager.New([]string{configGlob}, action.Default, pool, logger)
	mgr.SetMetrics(collector)

	if err := mgr.Start(runCtx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}

	httpServer := &http.Server{Addr: metricsAddr, Handler: collector.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	go pollPoolGauges(runCtx, pool, collector)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	if err := mgr.Stop(shutdownCtx); err != nil {
		logger.Error("manager shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// pollPoolGauges periodically publishes worker-pool occupancy to the
// metrics collector; the pool itself has no push-based hook for this.
func pollPoolGauges(ctx context.Context, pool *worker.Pool, collector *metrics.Collector) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collector.WorkerQueueDepth.Set(float64(pool.QueueDepth()))
			collector.WorkerActive.Set(float64(pool.ActiveWorkers()))
		}
	}
}
