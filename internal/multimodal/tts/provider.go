package tts

import "context"

// SynthesisRequest holds the parameters for one text-to-speech call.
type SynthesisRequest struct {
	Input  string  `json:"input"`
	Voice  string  `json:"voice,omitempty"`
	Format string  `json:"format,omitempty"`
	Speed  float64 `json:"speed,omitempty"`
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string
}

// Provider is the interface for text-to-speech backends. Each call renders a
// single utterance and is billed on its own.
type Provider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}
