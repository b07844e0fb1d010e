package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/readaloud/internal/multimodal/tts"
)

// AudioSegment is the rendered audio for one sentence.
type AudioSegment struct {
	Index    int
	Audio    []byte
	Text     string
	Duration float64 // seconds; 0 when the probe failed
}

// SynthesizerConfig tunes a SegmentSynthesizer.
type SynthesizerConfig struct {
	Timeout  time.Duration // per provider call; default 30s
	Speed    float64       // default 1.0
	MaxInput int           // characters per provider call; default 4096
	Metrics  *Metrics
}

// SegmentSynthesizer renders one sentence per provider call and measures it.
type SegmentSynthesizer struct {
	provider tts.Provider
	prober   DurationProber
	timeout  time.Duration
	speed    float64
	maxInput int
	metrics  *Metrics
}

func NewSegmentSynthesizer(provider tts.Provider, prober DurationProber, cfg SynthesizerConfig) *SegmentSynthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.MaxInput <= 0 {
		cfg.MaxInput = 4096
	}
	return &SegmentSynthesizer{
		provider: provider,
		prober:   prober,
		timeout:  cfg.Timeout,
		speed:    cfg.Speed,
		maxInput: cfg.MaxInput,
		metrics:  cfg.Metrics,
	}
}

// Render validates the options and makes exactly one provider call for text.
func (s *SegmentSynthesizer) Render(ctx context.Context, text string, voice Voice, format Format) ([]byte, error) {
	voice, format, err := Normalize(voice, format)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindInvalidInput, nil, "text is empty")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.provider.Synthesize(callCtx, tts.SynthesisRequest{
		Input:  text,
		Voice:  string(voice),
		Format: string(format),
		Speed:  s.speed,
	})
	s.metrics.providerCall(err)
	if err != nil {
		return nil, newError(KindProviderError, err, s.provider.Name()+" synthesis failed")
	}
	return result.Audio, nil
}

// Synthesize renders sentence and attaches its measured duration. Blank
// sentences yield a nil segment and no provider call. A failed probe leaves
// Duration at zero and is logged, not returned.
func (s *SegmentSynthesizer) Synthesize(ctx context.Context, index int, sentence string, voice Voice, format Format) (*AudioSegment, error) {
	voice, format, err := Normalize(voice, format)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sentence) == "" {
		return nil, nil
	}

	audio, err := s.Render(ctx, sentence, voice, format)
	if err != nil {
		return nil, err
	}

	duration, err := s.prober.Probe(ctx, audio, format)
	if err != nil {
		s.metrics.probeFailed()
		slog.Warn("segment duration unknown", "index", index, "format", format, "error", err)
		duration = 0
	}

	return &AudioSegment{
		Index:    index,
		Audio:    audio,
		Text:     sentence,
		Duration: duration,
	}, nil
}
