package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/readaloud/internal/audiocache"
	"github.com/nikhilbhutani/readaloud/internal/models"
	"github.com/nikhilbhutani/readaloud/internal/multimodal/tts"
)

// fakeProvider renders a sentence as its own bytes.
type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	fail   map[string]error
	delay  map[string]time.Duration
	block  chan struct{}
	inputs []string
}

func (p *fakeProvider) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	p.mu.Lock()
	p.calls++
	p.inputs = append(p.inputs, req.Input)
	err := p.fail[req.Input]
	delay := p.delay[req.Input]
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &tts.SynthesisResult{Audio: []byte(req.Input), ContentType: "audio/mpeg"}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeProber looks durations up by audio content. Unknown audio fails.
type fakeProber struct {
	durations map[string]float64
}

func (p *fakeProber) Probe(_ context.Context, audio []byte, _ Format) (float64, error) {
	d, ok := p.durations[string(audio)]
	if !ok {
		return 0, newError(KindDurationProbeFailed, nil, fmt.Sprintf("unknown audio %q", audio))
	}
	return d, nil
}

// joinConcat joins segments with "|" in place of silence.
type joinConcat struct {
	err error
}

func (c *joinConcat) Concat(_ context.Context, segments [][]byte, _ time.Duration, _ Format) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return bytes.Join(segments, []byte("|")), nil
}

// memCache is an in-memory CacheStore.
type memCache struct {
	mu        sync.Mutex
	entries   map[string]*models.AudioCacheEntry
	lookups   int
	inserts   int
	insertErr error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*models.AudioCacheEntry)}
}

func (c *memCache) Lookup(_ context.Context, key string) (*models.AudioCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	e, ok := c.entries[key]
	if !ok {
		return nil, audiocache.ErrCacheMiss
	}
	e.AccessCount++
	out := *e
	return &out, nil
}

func (c *memCache) Insert(_ context.Context, p audiocache.InsertParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.insertErr != nil {
		return c.insertErr
	}
	c.inserts++
	c.entries[p.Key] = entryFor(p)
	return nil
}

func (c *memCache) Lookups() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups
}

func (c *memCache) put(p audiocache.InsertParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.Key] = entryFor(p)
}

func entryFor(p audiocache.InsertParams) *models.AudioCacheEntry {
	urls := make([]string, len(p.Segments))
	for i := range p.Segments {
		urls[i] = "mem://" + audiocache.SegmentPath(p.Key, i, p.Format)
	}
	return &models.AudioCacheEntry{
		ID:            uuid.New(),
		TextHash:      p.Key,
		SegmentURLs:   urls,
		AudioURL:      "mem://" + audiocache.FullPath(p.Key, p.Format),
		Durations:     p.Durations,
		Timings:       p.Timings,
		Sentences:     p.Sentences,
		Format:        p.Format,
		Voice:         p.Voice,
		TotalDuration: p.TotalDuration,
		AccessCount:   1,
	}
}

type fakeMarker struct {
	mu       sync.Mutex
	grant    bool
	err      error
	released []string
}

func (m *fakeMarker) Acquire(context.Context, string) (bool, error) {
	return m.grant, m.err
}

func (m *fakeMarker) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, key)
	return nil
}

var errProviderDown = errors.New("provider down")

// helloWorld is a prober that knows the two-sentence scenario: segments of
// 0.80s and 0.60s whose joined stream measures 1.55s.
func helloWorld() *fakeProber {
	return &fakeProber{durations: map[string]float64{
		"Hello.":        0.8,
		"World.":        0.6,
		"Hello.|World.": 1.55,
	}}
}

// stallingCache blocks the selected operations until their context ends,
// like a catalog or object store that stopped answering.
type stallingCache struct {
	*memCache
	stallInsert bool
	stallLookup bool
}

func (c *stallingCache) Lookup(ctx context.Context, key string) (*models.AudioCacheEntry, error) {
	if c.stallLookup {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.memCache.Lookup(ctx, key)
}

func (c *stallingCache) Insert(ctx context.Context, p audiocache.InsertParams) error {
	if c.stallInsert {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.memCache.Insert(ctx, p)
}
