package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		newLogger("info").Fatalw("error loading configuration", "err", err)
	}

	log := newLogger(cfg.LogLevel)
	defer log.Sync() //nolint:errcheck

	rt := buildTransport(cfg, log)

	octopusService := NewOctopusService(rt, cfg.APIKey, log)
	var dispatches DispatchSource
	if cfg.DispatchEnabled {
		dispatches = NewKrakenSession(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.APIKey, log)
	}

	service := NewEnergyService(cfg, octopusService, dispatches, log)
	handler := NewHandler(service, dispatches, cfg, log)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              normalizeAddr(cfg.Port),
		Handler:           handler.InitRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("starting server", "addr", srv.Addr, "dispatch_aware", cfg.DispatchEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("error starting server", "err", err)
		}
	}()

	waitForShutdown(srv, log)
}

// buildTransport returns the HTTP transport for the Octopus REST client,
// optionally wrapped in the on-disk response cache.
func buildTransport(cfg *Config, log *zap.SugaredLogger) http.RoundTripper {
	if cfg.CacheDir == "" {
		return http.DefaultTransport
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		log.Fatalw("failed to create cache dir", "dir", cfg.CacheDir, "err", err)
	}
	log.Infow("HTTP response caching enabled", "dir", cfg.CacheDir, "ttl", cfg.CacheTTL)
	return &CachingRoundTripper{
		UnderlyingTransport: http.DefaultTransport,
		CacheDir:            cfg.CacheDir,
		TTL:                 cfg.CacheTTL,
	}
}

// normalizeAddr accepts "5000" or ":5000".
func normalizeAddr(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// waitForShutdown blocks until SIGINT/SIGTERM, then drains in-flight requests.
func waitForShutdown(srv *http.Server, log *zap.SugaredLogger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
