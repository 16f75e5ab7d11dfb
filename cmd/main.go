package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fheprop/internal/adapters/http/api"
	app "github.com/okian/fheprop/internal/app"
	"github.com/okian/fheprop/internal/config"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

// Server and sampler timings.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults, then PROPRATE_CONFIG file, then PROPRATE_* env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "unknown log_level, using info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc := app.New(cfg, app.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go runMetricsUpdaters(ctx, svc)

	apiServer := newAPIServer(cfg, svc, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(ctx),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", logger.String("addr", cfg.Addr), logger.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := apiServer.Wait(shutdownCtx); err != nil {
		log.Warn(ctx, "background operations still running", logger.Error(err))
	}

	log.Info(ctx, "stopped")
	return nil
}

func newAPIServer(cfg *config.Config, svc *app.Service, log logger.Logger) *api.Server {
	return api.NewServer(svc, svc.Coordinator(),
		api.WithStatsProvider(svc),
		api.WithCORSOrigins(cfg.CORSAllowedOrigins),
		api.WithWriteLimit(cfg.WriteRatePerSecond, cfg.WriteBurst),
		api.WithLogger(log.Named("api")),
	)
}

// runMetricsUpdaters samples runtime and service gauges until ctx is done.
func runMetricsUpdaters(ctx context.Context, svc *app.Service) {
	runtimeTick := time.NewTicker(systemMetricsInterval)
	defer runtimeTick.Stop()
	serviceTick := time.NewTicker(serviceMetricsInterval)
	defer serviceTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-runtimeTick.C:
			sampleRuntime()
		case <-serviceTick.C:
			updateServiceMetrics(svc)
		}
	}
}

// sampleRuntime records heap, goroutine and average GC pause gauges.
func sampleRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	metrics.UpdateSystemMemoryUsage(ms.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC == 0 {
		return
	}
	metrics.RecordSystemGCPauseTime(float64(ms.PauseTotalNs) / float64(ms.NumGC) / nanosecondsPerMillisecond)
}

// updateServiceMetrics refreshes gauges derived from service state.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queue_length"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if cached, ok := stats["projects_cached"].(int); ok {
		metrics.UpdateProjectsCached(cached)
	}
	if chainID, ok := stats["chain_id"].(uint64); ok {
		metrics.UpdateWalletChainID(chainID)
	}
}
