package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/readaloud/internal/app"
	"github.com/nikhilbhutani/readaloud/internal/config"
	"github.com/nikhilbhutani/readaloud/internal/queue"
	"github.com/nikhilbhutani/readaloud/internal/queue/workers"
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

	backends := app.OpenBackends(context.Background(), cfg)
	defer backends.Close()

	speechSvc := app.NewSpeechService(cfg, backends, nil)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: workerLogger{},
		},
	)

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "task_types", []string{queue.TypeSpeechWarm})
	if err := srv.Run(workers.NewServeMux(speechSvc)); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
