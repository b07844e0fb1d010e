package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nikhilbhutani/readaloud/internal/api"
	"github.com/nikhilbhutani/readaloud/internal/api/handlers"
	"github.com/nikhilbhutani/readaloud/internal/api/middleware"
	"github.com/nikhilbhutani/readaloud/internal/app"
	"github.com/nikhilbhutani/readaloud/internal/config"
	"github.com/nikhilbhutani/readaloud/internal/ocr"
	"github.com/nikhilbhutani/readaloud/internal/queue"
	"github.com/nikhilbhutani/readaloud/internal/speech"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	backends := app.OpenBackends(ctx, cfg)
	defer backends.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := speech.NewMetrics(reg)

	speechSvc := app.NewSpeechService(cfg, backends, metrics)
	extractor := app.NewOCRExtractor(cfg.OCR)
	slog.Info("ocr backend selected", "extractor", extractor.Name())
	ocrSvc := ocr.NewService(extractor, ocr.Config{Timeout: cfg.OCR.Timeout, MaxImages: cfg.OCR.MaxImages})

	deps := api.Deps{
		Health:  handlers.NewHealthHandler(backends.DB, backends.Redis),
		OCR:     ocrSvc,
		Speech:  speechSvc,
		Limiter: middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst),
		Metrics: reg,
	}
	if backends.Redis != nil {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Queue = qc
	} else {
		slog.Warn("queue unavailable, running without cache warm-up")
	}

	stop := make(chan struct{})
	go deps.Limiter.Cleanup(stop)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(cfg.HTTP, deps).Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	close(stop)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
