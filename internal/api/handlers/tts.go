package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/readaloud/internal/queue"
	"github.com/nikhilbhutani/readaloud/internal/speech"
)

const (
	maxSpeakChars = 100000
	maxTTSBody    = 8 << 20
)

type SpeechService interface {
	Speak(ctx context.Context, text string, voice speech.Voice, format speech.Format) ([]byte, speech.Format, error)
	GenerateOrGetCached(ctx context.Context, req speech.Request) (*speech.Result, error)
}

type WarmQueue interface {
	EnqueueSpeechWarm(ctx context.Context, payload queue.SpeechWarmPayload) error
}

type TTSHandler struct {
	svc   SpeechService
	queue WarmQueue
}

// NewTTSHandler builds the speech endpoints. q may be nil when no queue is
// configured; warm requests then fail with 503.
func NewTTSHandler(svc SpeechService, q WarmQueue) *TTSHandler {
	return &TTSHandler{svc: svc, queue: q}
}

type speakRequest struct {
	Text   string        `json:"text"`
	Voice  speech.Voice  `json:"voice"`
	Format speech.Format `json:"format"`
}

// Speak converts text to a single audio stream and returns the raw bytes.
func (h *TTSHandler) Speak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if !decode(w, r, &req) {
		return
	}

	n := utf8.RuneCountInString(req.Text)
	if strings.TrimSpace(req.Text) == "" || n > maxSpeakChars {
		writeError(w, http.StatusBadRequest, "tts_failed",
			fmt.Sprintf("text must be between 1 and %d characters", maxSpeakChars))
		return
	}

	audio, format, err := h.svc.Speak(r.Context(), req.Text, req.Voice, req.Format)
	if err != nil {
		writeSpeechError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// Sentences renders every sentence, reusing the cached rendering when the
// same input was synthesized before.
func (h *TTSHandler) Sentences(w http.ResponseWriter, r *http.Request) {
	var req speech.Request
	if !decode(w, r, &req) {
		return
	}

	result, err := h.svc.GenerateOrGetCached(r.Context(), req)
	if err != nil {
		writeSpeechError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Warm queues a background render so later requests hit the cache.
func (h *TTSHandler) Warm(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "background queue is not configured")
		return
	}

	var req speech.Request
	if !decode(w, r, &req) {
		return
	}
	req, key, err := req.Prepare()
	if err != nil {
		writeSpeechError(w, err)
		return
	}

	err = h.queue.EnqueueSpeechWarm(r.Context(), queue.SpeechWarmPayload{
		Text:      req.Text,
		Sentences: req.Sentences,
		Voice:     string(req.Voice),
		Format:    string(req.Format),
		CacheKey:  key,
	})
	if err != nil {
		slog.Error("enqueue speech warm", "cache_key", key, "error", err)
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "failed to queue warm task")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "cache_key": key})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTTSBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

func writeSpeechError(w http.ResponseWriter, err error) {
	var ttsErr *speech.TTSGenerationError
	if !errors.As(err, &ttsErr) {
		slog.Error("tts request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "tts_failed", "speech synthesis failed")
		return
	}

	status := http.StatusInternalServerError
	switch ttsErr.Kind {
	case speech.KindInvalidInput, speech.KindNoValidSentences:
		status = http.StatusBadRequest
	case speech.KindProviderError:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		slog.Error("tts request failed", "kind", ttsErr.Kind, "error", err)
	}
	writeError(w, status, "tts_failed", ttsErr.Error())
}
