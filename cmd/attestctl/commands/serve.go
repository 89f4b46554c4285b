package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ctrlflow/attestcore/cliconfig"
	"github.com/ctrlflow/attestcore/core"
	"github.com/ctrlflow/attestcore/core/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a long-lived core with a Prometheus /metrics endpoint",
	Long: `serve builds a Boundary and keeps it alive, exposing dispatcher
counters on MetricsAddr until interrupted. It opens no sessions itself
— it's meant to sit behind an in-process client (a test harness, or an
instrumented binary linked into the same process) that calls
commands.Boundary() to reach the same instance serve is exposing
counters for.`,
	RunE: runServe,
}

var (
	boundaryMu sync.RWMutex
	boundary   *core.Boundary
)

// Boundary returns the *core.Boundary the most recent `serve` invocation
// built, or nil if serve has never run in this process. An in-process
// client invokes this instead of constructing its own Boundary, so its
// Invoke calls land on the same counters serve's /metrics endpoint
// reports.
func Boundary() *core.Boundary {
	boundaryMu.RLock()
	defer boundaryMu.RUnlock()
	return boundary
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := cliconfig.Load(ConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.MetricsAddr == "" {
		return errors.New("metrics_addr must be set to run serve")
	}

	logger := slog.Default()
	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg)

	b := core.NewBoundary(core.Config{
		MaxSessions: cfg.MaxSessions,
		Metrics:     collector,
		Logger:      logger,
	})
	boundaryMu.Lock()
	boundary = b
	boundaryMu.Unlock()
	defer func() {
		boundaryMu.Lock()
		boundary = nil
		boundaryMu.Unlock()
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-sigCh:
		logger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
