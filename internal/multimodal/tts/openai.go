package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITTSConfig holds configuration for the OpenAI TTS backend.
type OpenAITTSConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "tts-1-hd"
}

// OpenAITTS synthesizes speech using OpenAI's TTS API.
type OpenAITTS struct {
	cfg    OpenAITTSConfig
	client *openai.Client
}

// NewOpenAITTS creates an OpenAITTS with sensible defaults applied.
func NewOpenAITTS(cfg OpenAITTSConfig) *OpenAITTS {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1HD)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &OpenAITTS{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (o *OpenAITTS) Name() string { return "openai-tts" }

// Synthesize converts text to audio in the requested response format.
func (o *OpenAITTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	format := req.Format
	if format == "" {
		format = string(openai.SpeechResponseFormatOpus)
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.cfg.Model),
		Input:          req.Input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(format),
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai tts returned empty audio")
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: contentType(format),
	}, nil
}

func contentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "audio/ogg"
	}
}
