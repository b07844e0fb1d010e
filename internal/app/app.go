// Package app wires the services shared by the API server and the worker.
package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/readaloud/internal/audiocache"
	"github.com/nikhilbhutani/readaloud/internal/cache"
	"github.com/nikhilbhutani/readaloud/internal/config"
	"github.com/nikhilbhutani/readaloud/internal/database"
	"github.com/nikhilbhutani/readaloud/internal/multimodal/tts"
	"github.com/nikhilbhutani/readaloud/internal/ocr"
	"github.com/nikhilbhutani/readaloud/internal/speech"
	"github.com/nikhilbhutani/readaloud/internal/storage"
)

// Backends are the optional stores. A nil field means the backend was not
// reachable at startup and the process runs without it.
type Backends struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// OpenBackends connects to the database and Redis. Neither is required.
func OpenBackends(ctx context.Context, cfg *config.Config) *Backends {
	b := &Backends{}

	if cfg.Database.URL == "" {
		slog.Warn("database unavailable, running without DB", "error", "DATABASE_URL not set")
	} else if db, err := database.NewPool(ctx, cfg.Database); err != nil {
		slog.Warn("database unavailable, running without DB", "error", err)
	} else if err := database.RunMigrations(ctx, db, database.MigrationSource(cfg.Database.MigrationsPath)); err != nil {
		slog.Warn("migrations failed, running without DB", "error", err)
		db.Close()
	} else {
		b.DB = db
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache coordination", "error", err)
		rdb.Close()
	} else {
		b.Redis = rdb
	}

	return b
}

func (b *Backends) Close() {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Redis != nil {
		b.Redis.Close()
	}
}

// NewSpeechService builds the synthesis pipeline. The audio cache is enabled
// only when both the catalog database and object storage are available.
func NewSpeechService(cfg *config.Config, b *Backends, metrics *speech.Metrics) *speech.Service {
	provider := tts.NewOpenAITTS(tts.OpenAITTSConfig{
		APIKey:  cfg.TTS.OpenAIKey,
		BaseURL: cfg.TTS.OpenAIBaseURL,
		Model:   cfg.TTS.OpenAIModel,
	})
	prober := speech.NewFFProbe(cfg.Audio.FFProbePath)

	synth := speech.NewSegmentSynthesizer(provider, prober, speech.SynthesizerConfig{
		Timeout:  cfg.TTS.ProviderTimeout,
		Speed:    cfg.TTS.Speed,
		MaxInput: cfg.TTS.MaxInputChars,
		Metrics:  metrics,
	})
	reconciler := speech.NewReconciler(speech.NewFFmpegConcatenator(cfg.Audio.FFmpegPath), prober, metrics)

	var catalog audiocache.Catalog
	if b.DB != nil {
		catalog = audiocache.NewPgCatalog(b.DB)
	}
	var objects storage.Storage
	if cfg.Storage.Enabled() {
		objects = storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	} else {
		slog.Warn("object storage unavailable, running without audio cache", "error", "SUPABASE_URL or SUPABASE_SERVICE_KEY not set")
	}
	store := audiocache.NewStore(catalog, objects, cfg.Storage.Bucket)
	if !store.Enabled() {
		slog.Warn("audio cache disabled, every request will synthesize")
	}

	svcCfg := speech.ServiceConfig{
		Concurrency:  cfg.TTS.Concurrency,
		FlightWait:   cfg.TTS.FlightWait,
		CacheTimeout: cfg.TTS.CacheTimeout,
		Metrics:      metrics,
	}
	if b.Redis != nil && store.Enabled() {
		svcCfg.Marker = cache.NewFlightMarker(b.Redis, 2*cfg.TTS.FlightWait)
	}

	return speech.NewService(store, synth, reconciler, svcCfg)
}

// NewOCRExtractor returns the vision backend named by OCR_PROVIDER.
func NewOCRExtractor(cfg config.OCRConfig) ocr.Extractor {
	if cfg.Provider == config.OCRProviderGemini {
		return ocr.NewGeminiExtractor(ocr.GeminiConfig{
			APIKey:    cfg.GeminiKey,
			BaseURL:   cfg.GeminiBaseURL,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.MaxTokens,
		})
	}
	return ocr.NewAnthropicExtractor(ocr.AnthropicConfig{
		APIKey:    cfg.AnthropicKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
}
