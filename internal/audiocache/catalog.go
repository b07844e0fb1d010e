package audiocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/readaloud/internal/models"
)

// PgCatalog keeps the audio_cache table in Postgres.
type PgCatalog struct {
	db *pgxpool.Pool
}

func NewPgCatalog(db *pgxpool.Pool) *PgCatalog {
	return &PgCatalog{db: db}
}

// Insert writes the row for entry.TextHash. A concurrent writer that got there
// first is overwritten with equivalent content; the row id and created_at of
// the first writer are kept.
func (c *PgCatalog) Insert(ctx context.Context, entry *models.AudioCacheEntry) error {
	segmentURLs, err := json.Marshal(entry.SegmentURLs)
	if err != nil {
		return fmt.Errorf("marshal segment urls: %w", err)
	}
	durations, err := json.Marshal(entry.Durations)
	if err != nil {
		return fmt.Errorf("marshal durations: %w", err)
	}
	timings, err := json.Marshal(entry.Timings)
	if err != nil {
		return fmt.Errorf("marshal timings: %w", err)
	}
	sentences, err := json.Marshal(entry.Sentences)
	if err != nil {
		return fmt.Errorf("marshal sentences: %w", err)
	}

	_, err = c.db.Exec(ctx,
		`INSERT INTO audio_cache (id, text_hash, segment_urls, audio_url, durations, timings, sentences,
		                          format, voice, total_duration, file_size_bytes, access_count,
		                          created_at, last_accessed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (text_hash) DO UPDATE SET
		     segment_urls = EXCLUDED.segment_urls,
		     audio_url = EXCLUDED.audio_url,
		     durations = EXCLUDED.durations,
		     timings = EXCLUDED.timings,
		     sentences = EXCLUDED.sentences,
		     total_duration = EXCLUDED.total_duration,
		     file_size_bytes = EXCLUDED.file_size_bytes,
		     last_accessed_at = EXCLUDED.last_accessed_at`,
		entry.ID, entry.TextHash, segmentURLs, entry.AudioURL, durations, timings, sentences,
		entry.Format, entry.Voice, entry.TotalDuration, entry.FileSizeBytes, entry.AccessCount,
		entry.CreatedAt, entry.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audio cache entry: %w", err)
	}
	return nil
}

func (c *PgCatalog) FindByKey(ctx context.Context, key string) (*models.AudioCacheEntry, error) {
	var e models.AudioCacheEntry
	var segmentURLs, durations, timings, sentences []byte

	err := c.db.QueryRow(ctx,
		`SELECT id, text_hash, segment_urls, audio_url, durations, timings, sentences,
		        format, voice, total_duration, file_size_bytes, access_count,
		        created_at, last_accessed_at
		 FROM audio_cache WHERE text_hash = $1`,
		key,
	).Scan(&e.ID, &e.TextHash, &segmentURLs, &e.AudioURL, &durations, &timings, &sentences,
		&e.Format, &e.Voice, &e.TotalDuration, &e.FileSizeBytes, &e.AccessCount,
		&e.CreatedAt, &e.LastAccessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get audio cache entry: %w", err)
	}

	if err := json.Unmarshal(segmentURLs, &e.SegmentURLs); err != nil {
		return nil, fmt.Errorf("decode segment urls: %w", err)
	}
	if err := json.Unmarshal(durations, &e.Durations); err != nil {
		return nil, fmt.Errorf("decode durations: %w", err)
	}
	if err := json.Unmarshal(timings, &e.Timings); err != nil {
		return nil, fmt.Errorf("decode timings: %w", err)
	}
	if err := json.Unmarshal(sentences, &e.Sentences); err != nil {
		return nil, fmt.Errorf("decode sentences: %w", err)
	}

	return &e, nil
}

func (c *PgCatalog) BumpAccess(ctx context.Context, id uuid.UUID) (int, time.Time, error) {
	var count int
	var at time.Time
	err := c.db.QueryRow(ctx,
		`UPDATE audio_cache
		 SET access_count = access_count + 1, last_accessed_at = now()
		 WHERE id = $1
		 RETURNING access_count, last_accessed_at`,
		id,
	).Scan(&count, &at)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("bump audio cache access: %w", err)
	}
	return count, at, nil
}
