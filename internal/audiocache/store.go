// Package audiocache persists rendered speech under its content address and
// serves it back to every caller that asks for the same inputs.
package audiocache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/readaloud/internal/models"
	"github.com/nikhilbhutani/readaloud/internal/storage"
)

var (
	ErrCacheMiss        = errors.New("audio cache miss")
	ErrCacheUnavailable = errors.New("audio cache unavailable")
	ErrCacheWriteFailed = errors.New("audio cache write failed")
)

// Catalog stores one row per cache key.
type Catalog interface {
	Insert(ctx context.Context, entry *models.AudioCacheEntry) error
	// FindByKey returns ErrCacheMiss when no row exists.
	FindByKey(ctx context.Context, key string) (*models.AudioCacheEntry, error)
	// BumpAccess atomically increments the access count and returns the new
	// count and access time.
	BumpAccess(ctx context.Context, id uuid.UUID) (int, time.Time, error)
}

// InsertParams is everything one synthesis run hands to the cache.
type InsertParams struct {
	Key           string
	Segments      [][]byte
	Durations     []float64
	Audio         []byte // concatenated stream, optional
	Timings       []models.SentenceTiming
	Sentences     []string
	Voice         string
	Format        string
	ContentType   string
	TotalDuration float64
}

// Store is the content-addressed audio cache. With a nil catalog or object
// store it runs degraded: every lookup misses and every insert fails.
type Store struct {
	catalog Catalog
	objects storage.Storage
	bucket  string
	now     func() time.Time
}

func NewStore(catalog Catalog, objects storage.Storage, bucket string) *Store {
	return &Store{
		catalog: catalog,
		objects: objects,
		bucket:  bucket,
		now:     time.Now,
	}
}

func (s *Store) Enabled() bool {
	return s.catalog != nil && s.objects != nil
}

// Lookup returns the entry for key and records the access. Backend failures
// are returned wrapped; callers treat every error as a miss.
func (s *Store) Lookup(ctx context.Context, key string) (*models.AudioCacheEntry, error) {
	if !s.Enabled() {
		return nil, ErrCacheMiss
	}

	entry, err := s.catalog.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("find audio cache entry: %w", err)
	}

	count, at, err := s.catalog.BumpAccess(ctx, entry.ID)
	if err != nil {
		slog.Warn("failed to record audio cache access", "cache_key", key, "error", err)
	} else {
		entry.AccessCount = count
		entry.LastAccessedAt = at
	}

	return entry, nil
}

// Insert uploads every segment, then the concatenated stream, then writes the
// catalog row. The row is the visibility boundary: a failed upload aborts
// before it. Objects left behind by an aborted insert live at the same paths
// the next successful insert for the key overwrites, so they are not deleted.
func (s *Store) Insert(ctx context.Context, p InsertParams) error {
	if !s.Enabled() {
		return ErrCacheUnavailable
	}

	var totalSize int64
	segmentURLs := make([]string, len(p.Segments))
	for i, seg := range p.Segments {
		path := SegmentPath(p.Key, i, p.Format)
		if err := s.objects.Upload(ctx, s.bucket, path, bytes.NewReader(seg), p.ContentType); err != nil {
			return fmt.Errorf("%w: upload segment %d: %w", ErrCacheWriteFailed, i, err)
		}
		segmentURLs[i] = s.objects.GetPublicURL(s.bucket, path)
		totalSize += int64(len(seg))
	}

	var audioURL string
	if len(p.Audio) > 0 {
		path := FullPath(p.Key, p.Format)
		if err := s.objects.Upload(ctx, s.bucket, path, bytes.NewReader(p.Audio), p.ContentType); err != nil {
			return fmt.Errorf("%w: upload stream: %w", ErrCacheWriteFailed, err)
		}
		audioURL = s.objects.GetPublicURL(s.bucket, path)
		totalSize += int64(len(p.Audio))
	}

	now := s.now().UTC()
	entry := &models.AudioCacheEntry{
		ID:             uuid.New(),
		TextHash:       p.Key,
		SegmentURLs:    segmentURLs,
		AudioURL:       audioURL,
		Durations:      p.Durations,
		Timings:        p.Timings,
		Sentences:      p.Sentences,
		Format:         p.Format,
		Voice:          p.Voice,
		TotalDuration:  p.TotalDuration,
		FileSizeBytes:  totalSize,
		AccessCount:    1,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	if err := s.catalog.Insert(ctx, entry); err != nil {
		return fmt.Errorf("%w: insert catalog row: %w", ErrCacheWriteFailed, err)
	}

	slog.Info("audio cached",
		"cache_key", p.Key,
		"segments", len(segmentURLs),
		"bytes", totalSize,
	)
	return nil
}

// SegmentPath is the object path of segment i for key.
func SegmentPath(key string, index int, format string) string {
	return fmt.Sprintf("cache/%s_segment_%d.%s", key, index, format)
}

// FullPath is the object path of the concatenated stream for key.
func FullPath(key, format string) string {
	return fmt.Sprintf("cache/%s_full.%s", key, format)
}
