package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nikhilbhutani/readaloud/internal/audiocache"
	"github.com/nikhilbhutani/readaloud/internal/models"
)

// CacheStore is the part of the audio cache the orchestrator needs.
type CacheStore interface {
	Lookup(ctx context.Context, key string) (*models.AudioCacheEntry, error)
	Insert(ctx context.Context, p audiocache.InsertParams) error
}

// FlightMarker coordinates synthesis of one key across processes.
type FlightMarker interface {
	// Acquire reports whether the caller should synthesize key itself.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// ServiceConfig tunes a Service. CacheTimeout bounds each cache lookup and
// write-through: a lookup that runs out counts as a miss, a write that runs
// out returns the audio inline.
type ServiceConfig struct {
	Concurrency  int           // concurrent provider calls per request; default 4
	FlightWait   time.Duration // how long to wait for another process; default 30s
	CacheTimeout time.Duration // default 10s
	Marker       FlightMarker  // optional
	Metrics      *Metrics
}

type Request struct {
	Text      string   `json:"text"`
	Sentences []string `json:"sentences"`
	Voice     Voice    `json:"voice"`
	Format    Format   `json:"format"`
}

// Prepare applies the voice and format defaults, validates the request and
// derives its cache key.
func (r Request) Prepare() (Request, string, error) {
	voice, format, err := Normalize(r.Voice, r.Format)
	if err != nil {
		return Request{}, "", err
	}
	if !hasSpeech(r.Sentences) {
		return Request{}, "", newError(KindNoValidSentences, nil, "no valid sentences to synthesize")
	}
	r.Voice, r.Format = voice, format
	return r, DeriveCacheKey(r.Text, r.Sentences, voice, format), nil
}

// Result carries durable URLs when the audio is cached, or the audio bytes
// inline when it could not be.
type Result struct {
	FromCache     bool                    `json:"from_cache"`
	CacheKey      string                  `json:"cache_key"`
	SegmentURLs   []string                `json:"segment_urls,omitempty"`
	AudioURL      string                  `json:"audio_url,omitempty"`
	Segments      [][]byte                `json:"segments,omitempty"`
	Audio         []byte                  `json:"audio,omitempty"`
	Durations     []float64               `json:"durations"`
	Timings       []models.SentenceTiming `json:"timings"`
	TotalDuration float64                 `json:"total_duration"`
	Sentences     []string                `json:"sentences"`
	Format        Format                  `json:"format"`
	Voice         Voice                   `json:"voice"`
}

// Service turns sentence lists into timed audio, rendering each distinct
// input at most once across all callers.
type Service struct {
	cache       CacheStore
	synth       *SegmentSynthesizer
	reconciler  *Reconciler
	marker      FlightMarker
	concurrency  int
	flightWait   time.Duration
	cacheTimeout time.Duration
	pollEvery    time.Duration
	metrics      *Metrics
	flights      singleflight.Group
}

func NewService(cache CacheStore, synth *SegmentSynthesizer, reconciler *Reconciler, cfg ServiceConfig) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.FlightWait <= 0 {
		cfg.FlightWait = 30 * time.Second
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = 10 * time.Second
	}
	return &Service{
		cache:        cache,
		synth:        synth,
		reconciler:   reconciler,
		marker:       cfg.Marker,
		concurrency:  cfg.Concurrency,
		flightWait:   cfg.FlightWait,
		cacheTimeout: cfg.CacheTimeout,
		pollEvery:    250 * time.Millisecond,
		metrics:      cfg.Metrics,
	}
}

// Speak renders text without caching. Text longer than one provider call
// accepts is split at sentence boundaries, rendered concurrently and joined.
func (s *Service) Speak(ctx context.Context, text string, voice Voice, format Format) ([]byte, Format, error) {
	voice, format, err := Normalize(voice, format)
	if err != nil {
		return nil, "", err
	}

	chunks := splitInput(text, s.synth.maxInput)
	if len(chunks) == 1 {
		audio, err := s.synth.Render(ctx, chunks[0], voice, format)
		if err != nil {
			return nil, "", err
		}
		return audio, format, nil
	}

	segments, err := s.synthesizeAll(ctx, chunks, voice, format)
	if err != nil {
		return nil, "", err
	}
	rec, err := s.reconciler.Reconcile(ctx, segments, format)
	if err != nil {
		return nil, "", err
	}
	return rec.Audio, format, nil
}

// GenerateOrGetCached returns the cached rendering of req or synthesizes,
// reconciles and caches it. FromCache is true only when this call made no
// provider request.
func (s *Service) GenerateOrGetCached(ctx context.Context, req Request) (*Result, error) {
	req, key, err := req.Prepare()
	if err != nil {
		return nil, err
	}

	if res := s.lookup(ctx, key); res != nil {
		s.metrics.lookup("hit")
		return res, nil
	}

	return s.shared(ctx, key, func(ctx context.Context) (*Result, error) {
		return s.generate(ctx, key, req.Sentences, req.Voice, req.Format)
	})
}

// shared runs fn once per key at a time within this process. Callers that
// join a running flight get its result; a joiner whose own context is still
// live retries once if the flight died with its leader's context.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (*Result, error)) (*Result, error) {
	for attempt := 0; ; attempt++ {
		led := false
		ch := s.flights.DoChan(key, func() (any, error) {
			led = true
			return fn(ctx)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			if !led {
				s.metrics.shared()
			}
			if r.Err != nil {
				if !led && attempt == 0 && ctx.Err() == nil && isContextError(r.Err) {
					continue
				}
				return nil, r.Err
			}
			res := *r.Val.(*Result)
			return &res, nil
		}
	}
}

func (s *Service) generate(ctx context.Context, key string, sentences []string, voice Voice, format Format) (*Result, error) {
	// A flight for key may have completed between our lookup and this one starting.
	if res := s.lookup(ctx, key); res != nil {
		s.metrics.lookup("hit")
		return res, nil
	}

	owner := s.acquire(ctx, key)
	if owner {
		defer s.release(ctx, key)
	} else if res := s.awaitPeer(ctx, key); res != nil {
		s.metrics.lookup("peer_hit")
		return res, nil
	}

	s.metrics.lookup("miss")
	return s.synthesize(ctx, key, sentences, voice, format)
}

func (s *Service) synthesize(ctx context.Context, key string, sentences []string, voice Voice, format Format) (*Result, error) {
	start := time.Now()

	segments, err := s.synthesizeAll(ctx, sentences, voice, format)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, newError(KindNoValidSentences, nil, "no valid sentences to synthesize")
	}

	rec, err := s.reconciler.Reconcile(ctx, segments, format)
	if err != nil {
		return nil, err
	}
	s.metrics.synthesized(time.Since(start).Seconds())

	blobs := make([][]byte, len(segments))
	durations := make([]float64, len(segments))
	for i, seg := range segments {
		blobs[i] = seg.Audio
		durations[i] = seg.Duration
	}

	inline := &Result{
		CacheKey:      key,
		Segments:      blobs,
		Audio:         rec.Audio,
		Durations:     durations,
		Timings:       rec.Timings,
		TotalDuration: rec.TotalDuration,
		Sentences:     sentences,
		Format:        format,
		Voice:         voice,
	}

	// The audio is paid for; keep writing it even if the caller has gone.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cacheTimeout)
	defer cancel()
	err = s.cache.Insert(writeCtx, audiocache.InsertParams{
		Key:           key,
		Segments:      blobs,
		Durations:     durations,
		Audio:         rec.Audio,
		Timings:       rec.Timings,
		Sentences:     sentences,
		Voice:         string(voice),
		Format:        string(format),
		ContentType:   format.ContentType(),
		TotalDuration: rec.TotalDuration,
	})
	if err != nil {
		if !errors.Is(err, audiocache.ErrCacheUnavailable) {
			slog.Warn("audio cache write-through failed, returning inline audio", "cache_key", key, "error", err)
		}
		return inline, nil
	}

	res := s.lookup(context.WithoutCancel(ctx), key)
	if res == nil {
		slog.Warn("audio cache entry not readable after write, returning inline audio", "cache_key", key)
		return inline, nil
	}
	res.FromCache = false
	return res, nil
}

// synthesizeAll renders the non-blank sentences concurrently and returns
// their segments in sentence order. The first failure cancels the rest.
func (s *Service) synthesizeAll(ctx context.Context, sentences []string, voice Voice, format Format) ([]*AudioSegment, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	results := make([]*AudioSegment, len(sentences))
	for i, sentence := range sentences {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			seg, err := s.synth.Synthesize(gctx, i, sentence, voice, format)
			if err != nil {
				return err
			}
			results[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	segments := make([]*AudioSegment, 0, len(results))
	for _, seg := range results {
		if seg != nil {
			segments = append(segments, seg)
		}
	}
	return segments, nil
}

// lookup treats every cache failure, including running out of time, as a miss.
func (s *Service) lookup(ctx context.Context, key string) *Result {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	entry, err := s.cache.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, audiocache.ErrCacheMiss) {
			slog.Warn("audio cache lookup failed, treating as miss", "cache_key", key, "error", err)
		}
		return nil
	}
	res := resultFromEntry(key, entry)
	res.FromCache = true
	return res
}

func (s *Service) acquire(ctx context.Context, key string) bool {
	if s.marker == nil {
		return true
	}
	ok, err := s.marker.Acquire(ctx, key)
	if err != nil {
		slog.Warn("flight marker unavailable, synthesizing locally", "cache_key", key, "error", err)
		return true
	}
	return ok
}

func (s *Service) release(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.marker.Release(ctx, key); err != nil {
		slog.Warn("failed to release flight marker", "cache_key", key, "error", err)
	}
}

// awaitPeer polls the cache while another process renders key. It returns nil
// when the wait runs out, leaving the caller to synthesize.
func (s *Service) awaitPeer(ctx context.Context, key string) *Result {
	deadline := time.NewTimer(s.flightWait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			slog.Info("gave up waiting for peer synthesis", "cache_key", key, "waited", s.flightWait)
			return nil
		case <-ticker.C:
			if res := s.lookup(ctx, key); res != nil {
				return res
			}
		}
	}
}

func resultFromEntry(key string, e *models.AudioCacheEntry) *Result {
	return &Result{
		CacheKey:      key,
		SegmentURLs:   e.SegmentURLs,
		AudioURL:      e.AudioURL,
		Durations:     e.Durations,
		Timings:       e.Timings,
		TotalDuration: e.TotalDuration,
		Sentences:     e.Sentences,
		Format:        Format(e.Format),
		Voice:         Voice(e.Voice),
	}
}

func hasSpeech(sentences []string) bool {
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
