package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "audio-files", cfg.Storage.Bucket)
	assert.Equal(t, OCRProviderAnthropic, cfg.OCR.Provider)
	assert.Equal(t, "tts-1-hd", cfg.TTS.OpenAIModel)
	assert.Equal(t, 30*time.Second, cfg.TTS.ProviderTimeout)
	assert.Equal(t, 4, cfg.TTS.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.TTS.CacheTimeout)
	assert.Equal(t, "ffprobe", cfg.Audio.FFProbePath)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.HTTP.CORSOrigins)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("TTS_PROVIDER_TIMEOUT", "5s")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.TTS.ProviderTimeout)
	assert.True(t, cfg.Storage.Enabled())
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	cfg.TTS.OpenAIKey = "sk-test"
	cfg.OCR.AnthropicKey = "sk-ant-test"
	assert.NoError(t, cfg.Validate())

	cfg.TTS.Concurrency = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateOCRProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OCR_PROVIDER", "gemini")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", cfg.OCR.GeminiModel)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.NotContains(t, err.Error(), "ANTHROPIC_API_KEY")

	cfg.OCR.GeminiKey = "gemini-key"
	assert.NoError(t, cfg.Validate())

	cfg.OCR.Provider = "tesseract"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCR_PROVIDER")
}
