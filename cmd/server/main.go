package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark-c-hall/posterpalette/internal/config"
	"github.com/mark-c-hall/posterpalette/internal/handler"
	"github.com/mark-c-hall/posterpalette/internal/telemetry"
	"github.com/mark-c-hall/posterpalette/internal/tmdb"
	"github.com/mark-c-hall/posterpalette/internal/vision"
	"github.com/mark-c-hall/posterpalette/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		log.Fatalf("failed to set up metrics: %v", err)
	}

	if cfg.Catalog.APIToken == "" {
		logger.Warn("TMDB_ACCESS_TOKEN is not set, catalog requests will fail")
	}
	if cfg.Vision.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, color extraction will fail")
	}

	deps := handler.Deps{
		Catalog:   tmdb.NewClient(cfg.Catalog, telemetry.Transport(nil, "catalog", metrics)),
		Extractor: vision.NewClient(cfg.Vision, telemetry.Transport(nil, "vision", metrics)),
		ImageClient: &http.Client{
			Timeout:   cfg.Images.Timeout,
			Transport: telemetry.Transport(nil, "images", metrics),
		},
		Static:  web.FS,
		Metrics: metrics,
	}

	h, err := handler.NewHandler(ctx, deps, *cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize handler: %v", err)
	}

	srv := http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr, "allowed_image_hosts", cfg.Images.AllowedHosts)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error("shutdown did not complete cleanly", "err", err)
	}
	if err := metrics.Shutdown(timeoutCtx); err != nil {
		logger.Error("error flushing metrics", "err", err)
	}
	if err := shutdownTracing(timeoutCtx); err != nil {
		logger.Error("error flushing traces", "err", err)
	}

	logger.Info("server stopped")
}
