package audiocache

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/readaloud/internal/models"
)

type memCatalog struct {
	mu        sync.Mutex
	rows      map[string]*models.AudioCacheEntry
	insertErr error
	findErr   error
	bumpErr   error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{rows: make(map[string]*models.AudioCacheEntry)}
}

func (c *memCatalog) Insert(_ context.Context, entry *models.AudioCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.insertErr != nil {
		return c.insertErr
	}
	row := *entry
	c.rows[entry.TextHash] = &row
	return nil
}

func (c *memCatalog) FindByKey(_ context.Context, key string) (*models.AudioCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return nil, c.findErr
	}
	row, ok := c.rows[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := *row
	return &out, nil
}

func (c *memCatalog) BumpAccess(_ context.Context, id uuid.UUID) (int, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bumpErr != nil {
		return 0, time.Time{}, c.bumpErr
	}
	for _, row := range c.rows {
		if row.ID == id {
			row.AccessCount++
			row.LastAccessedAt = time.Now().UTC()
			return row.AccessCount, row.LastAccessedAt, nil
		}
	}
	return 0, time.Time{}, errors.New("no such row")
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (o *memObjects) Upload(_ context.Context, bucket, path string, data io.Reader, _ string) error {
	if path == o.failOn {
		return errors.New("storage unavailable")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[bucket+"/"+path] = b
	return nil
}

func (o *memObjects) GetPublicURL(bucket, path string) string {
	return "https://cdn.test/" + bucket + "/" + path
}

func sampleParams(key string) InsertParams {
	return InsertParams{
		Key:       key,
		Segments:  [][]byte{[]byte("seg0"), []byte("seg1")},
		Durations: []float64{0.8, 0.6},
		Audio:     []byte("full-stream"),
		Timings: []models.SentenceTiming{
			{Index: 0, Text: "Hello.", StartTime: 0, EndTime: 0.8, Duration: 0.8},
			{Index: 1, Text: "World.", StartTime: 1.0, EndTime: 1.6, Duration: 0.6},
		},
		Sentences:     []string{"Hello.", "World."},
		Voice:         "nova",
		Format:        "mp3",
		ContentType:   "audio/mpeg",
		TotalDuration: 1.6,
	}
}

func TestStore_InsertThenLookup(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	objects := newMemObjects()
	store := NewStore(catalog, objects, "audio-files")

	require.NoError(t, store.Insert(ctx, sampleParams("k1")))

	assert.Equal(t, []byte("seg0"), objects.objects["audio-files/cache/k1_segment_0.mp3"])
	assert.Equal(t, []byte("seg1"), objects.objects["audio-files/cache/k1_segment_1.mp3"])
	assert.Equal(t, []byte("full-stream"), objects.objects["audio-files/cache/k1_full.mp3"])

	entry, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.test/audio-files/cache/k1_segment_0.mp3",
		"https://cdn.test/audio-files/cache/k1_segment_1.mp3",
	}, entry.SegmentURLs)
	assert.Equal(t, "https://cdn.test/audio-files/cache/k1_full.mp3", entry.AudioURL)
	assert.Equal(t, []float64{0.8, 0.6}, entry.Durations)
	assert.Equal(t, 1.6, entry.TotalDuration)
	assert.Equal(t, int64(len("seg0")+len("seg1")+len("full-stream")), entry.FileSizeBytes)
	assert.Equal(t, 2, entry.AccessCount)

	entry, err = store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 3, entry.AccessCount)
}

func TestStore_LookupMiss(t *testing.T) {
	store := NewStore(newMemCatalog(), newMemObjects(), "audio-files")
	_, err := store.Lookup(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStore_LookupBackendError(t *testing.T) {
	catalog := newMemCatalog()
	catalog.findErr = errors.New("connection refused")
	store := NewStore(catalog, newMemObjects(), "audio-files")

	_, err := store.Lookup(context.Background(), "k1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStore_LookupIgnoresBumpFailure(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	store := NewStore(catalog, newMemObjects(), "audio-files")
	require.NoError(t, store.Insert(ctx, sampleParams("k1")))

	catalog.bumpErr = errors.New("deadlock")
	entry, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.AccessCount)
}

func TestStore_UploadFailureSkipsRow(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	objects := newMemObjects()
	objects.failOn = SegmentPath("k1", 1, "mp3")
	store := NewStore(catalog, objects, "audio-files")

	err := store.Insert(ctx, sampleParams("k1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheWriteFailed)

	_, err = store.Lookup(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStore_CatalogFailure(t *testing.T) {
	catalog := newMemCatalog()
	catalog.insertErr = errors.New("disk full")
	store := NewStore(catalog, newMemObjects(), "audio-files")

	err := store.Insert(context.Background(), sampleParams("k1"))
	assert.ErrorIs(t, err, ErrCacheWriteFailed)
}

func TestStore_InsertIsIdempotentPerKey(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	store := NewStore(catalog, newMemObjects(), "audio-files")

	require.NoError(t, store.Insert(ctx, sampleParams("k1")))
	require.NoError(t, store.Insert(ctx, sampleParams("k1")))
	assert.Len(t, catalog.rows, 1)
}

func TestStore_Degraded(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		store *Store
	}{
		{"no catalog", NewStore(nil, newMemObjects(), "audio-files")},
		{"no objects", NewStore(newMemCatalog(), nil, "audio-files")},
		{"nothing", NewStore(nil, nil, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.store.Enabled())

			_, err := tt.store.Lookup(ctx, "k1")
			assert.ErrorIs(t, err, ErrCacheMiss)

			err = tt.store.Insert(ctx, sampleParams("k1"))
			assert.ErrorIs(t, err, ErrCacheUnavailable)
		})
	}
}

func TestObjectPaths(t *testing.T) {
	assert.Equal(t, "cache/abc_segment_3.opus", SegmentPath("abc", 3, "opus"))
	assert.Equal(t, "cache/abc_full.flac", FullPath("abc", "flac"))
}
