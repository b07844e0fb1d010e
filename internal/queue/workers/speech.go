package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/readaloud/internal/queue"
	"github.com/nikhilbhutani/readaloud/internal/speech"
)

// Warmer renders speech into the cache.
type Warmer interface {
	GenerateOrGetCached(ctx context.Context, req speech.Request) (*speech.Result, error)
}

type SpeechWarmWorker struct {
	warmer Warmer
}

func NewSpeechWarmWorker(warmer Warmer) *SpeechWarmWorker {
	return &SpeechWarmWorker{warmer: warmer}
}

func (w *SpeechWarmWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SpeechWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	res, err := w.warmer.GenerateOrGetCached(ctx, speech.Request{
		Text:      payload.Text,
		Sentences: payload.Sentences,
		Voice:     speech.Voice(payload.Voice),
		Format:    speech.Format(payload.Format),
	})
	if err != nil {
		if speech.IsKind(err, speech.KindInvalidInput) || speech.IsKind(err, speech.KindNoValidSentences) {
			return fmt.Errorf("warm speech: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("warm speech: %w", err)
	}

	if len(res.SegmentURLs) == 0 {
		// Synthesized but not persisted; retrying would pay the provider again.
		slog.Warn("speech warmed without cache write", "cache_key", res.CacheKey)
		return nil
	}

	slog.Info("speech warmed",
		"cache_key", res.CacheKey,
		"from_cache", res.FromCache,
		"segments", len(res.SegmentURLs),
		"total_duration", res.TotalDuration,
	)
	return nil
}
