package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/api"
	"github.com/HenGPlayZ/lavalink-status/internal/clientip"
	"github.com/HenGPlayZ/lavalink-status/internal/config"
	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
	"github.com/HenGPlayZ/lavalink-status/internal/metrics"
	"github.com/HenGPlayZ/lavalink-status/internal/monitor"
	"github.com/HenGPlayZ/lavalink-status/internal/ratelimit"
	"github.com/HenGPlayZ/lavalink-status/internal/tlsutil"
	"github.com/HenGPlayZ/lavalink-status/internal/upstream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	// Configure structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if _, err := api.LoadOpenAPI(); err != nil {
		slog.Error("invalid embedded OpenAPI document", "error", err)
		os.Exit(1)
	}

	slog.Info("starting lavalink status server")

	collector := metrics.New()

	resolver, err := clientip.NewResolver(cfg.API.TrustedProxies)
	if err != nil {
		slog.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	client := upstream.New(cfg.Upstream.Timeout, collector)
	if cfg.Upstream.CA != "" {
		pool, err := tlsutil.LoadCAPool(cfg.Upstream.CA)
		if err != nil {
			slog.Error("failed to load upstream CA", "error", err)
			os.Exit(1)
		}
		client.SetTLSConfig(tlsutil.NewUpstreamTLSConfig(pool))
	}

	nodes := cfg.NodeList()
	store := monitor.NewStore(lavalink.V3, lavalink.V4)
	mon := monitor.New(nodes, client, store, cfg.MonitorSettings(), collector)

	// Create rate limiter (optional)
	var rateLimiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		rateLimiter, err = ratelimit.New(
			cfg.RateLimit.RequestsPerInterval,
			cfg.RateLimit.Interval,
			cfg.RateLimit.CleanupInterval,
			cfg.RateLimit.StaleAfter,
		)
		if err != nil {
			slog.Error("failed to create rate limiter", "error", err)
			os.Exit(1)
		}
		rateLimiter.SetResolver(resolver)
		rateLimiter.SetMetrics(collector)
		defer rateLimiter.Close()
	}

	// Set up TLS (optional)
	var certLoader *tlsutil.CertificateLoader
	if cfg.TLS.Cert != "" && cfg.TLS.Key != "" {
		certLoader, err = tlsutil.NewCertificateLoader(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			slog.Error("failed to load TLS certificate", "error", err)
			os.Exit(1)
		}
		defer certLoader.Close()
	}

	apiHandler := &api.APIHandler{
		Nodes:     nodes,
		Client:    client,
		Store:     store,
		Resolver:  resolver,
		StartedAt: time.Now(),
	}

	deps := api.ServerDeps{
		Handler:        apiHandler,
		RateLimiter:    rateLimiter,
		Resolver:       resolver,
		Metrics:        collector,
		AllowedOrigins: cfg.API.AllowedOrigins,
		ListenAddr:     cfg.API.ListenAddr,
		WriteTimeout:   cfg.API.WriteTimeout,
		ReadTimeout:    cfg.API.ReadTimeout,
	}
	if certLoader != nil {
		deps.TLSConfig = tlsutil.NewServerTLSConfig(certLoader)
	}
	apiServer := api.NewServer(deps)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", collector.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// Set up context that gets cancelled on shutdown signal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	var monitorDone sync.WaitGroup
	monitorDone.Add(1)
	go func() {
		defer monitorDone.Done()
		mon.Run(ctx)
	}()

	errCh := make(chan error, 2)

	go func() {
		errCh <- apiServer.Start()
	}()

	if metricsServer != nil {
		go func() {
			slog.Info("starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	slog.Info("lavalink status server running",
		"api_addr", cfg.API.ListenAddr,
		"v3_host", nodes[0].Host,
		"v4_host", nodes[1].Host,
		"metrics", cfg.Metrics.Enabled,
	)

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		slog.Error("server error, initiating shutdown", "error", err)
	}

	// Stops the monitor and cuts short any backoff sleep
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	go func() {
		<-shutdownCtx.Done()
		if shutdownCtx.Err() == context.DeadlineExceeded {
			slog.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	slog.Info("shutting down API server, draining in-flight requests")
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown error", "error", err)
	} else {
		slog.Info("API server stopped")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	monitorDone.Wait()
	slog.Info("lavalink status server stopped gracefully")
}
