package models

import (
	"time"

	"github.com/google/uuid"
)

// SentenceTiming locates one sentence inside the concatenated audio stream.
// Index is the sentence's position in the caller's list.
type SentenceTiming struct {
	Index     int     `json:"index"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// AudioCacheEntry is one row of the audio_cache catalog.
type AudioCacheEntry struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	TextHash       string           `json:"text_hash" db:"text_hash"`
	SegmentURLs    []string         `json:"segment_urls" db:"segment_urls"`
	AudioURL       string           `json:"audio_url,omitempty" db:"audio_url"`
	Durations      []float64        `json:"durations" db:"durations"`
	Timings        []SentenceTiming `json:"timings" db:"timings"`
	Sentences      []string         `json:"sentences" db:"sentences"`
	Format         string           `json:"format" db:"format"`
	Voice          string           `json:"voice" db:"voice"`
	TotalDuration  float64          `json:"total_duration" db:"total_duration"`
	FileSizeBytes  int64            `json:"file_size_bytes" db:"file_size_bytes"`
	AccessCount    int              `json:"access_count" db:"access_count"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at" db:"last_accessed_at"`
}
