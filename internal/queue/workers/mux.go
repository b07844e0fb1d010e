package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/readaloud/internal/queue"
)

// NewServeMux routes every task type this service enqueues to its worker.
func NewServeMux(warmer Warmer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(logTask)
	mux.Handle(queue.TypeSpeechWarm, NewSpeechWarmWorker(warmer))
	return mux
}

func logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		if err != nil {
			slog.Warn("task failed", "type", t.Type(), "duration_ms", time.Since(start).Milliseconds(), "error", err)
			return err
		}
		slog.Info("task done", "type", t.Type(), "duration_ms", time.Since(start).Milliseconds())
		return nil
	})
}
