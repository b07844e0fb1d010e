package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	OCR      OCRConfig
	TTS      TTSConfig
	Audio    AudioConfig
	HTTP     HTTPConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

type DatabaseConfig struct {
	URL            string `env:"DATABASE_URL"`
	MaxConns       int    `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns       int    `env:"DB_MIN_CONNS" envDefault:"5"`
	MigrationsPath string `env:"MIGRATIONS_PATH"` // empty: embedded schema
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type StorageConfig struct {
	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_SERVICE_KEY"`
	Bucket      string `env:"STORAGE_BUCKET" envDefault:"audio-files"`
}

// Enabled reports whether the object store has enough configuration to be used.
func (s StorageConfig) Enabled() bool {
	return s.SupabaseURL != "" && s.SupabaseKey != ""
}

const (
	OCRProviderAnthropic = "anthropic"
	OCRProviderGemini    = "gemini"
)

type OCRConfig struct {
	Provider      string        `env:"OCR_PROVIDER" envDefault:"anthropic"`
	AnthropicKey  string        `env:"ANTHROPIC_API_KEY"`
	Model         string        `env:"OCR_MODEL" envDefault:"claude-3-5-sonnet-20240620"`
	GeminiKey     string        `env:"GEMINI_API_KEY"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string        `env:"GEMINI_BASE_URL"`
	MaxTokens     int           `env:"OCR_MAX_TOKENS" envDefault:"4096"`
	Timeout       time.Duration `env:"OCR_TIMEOUT" envDefault:"30s"`
	MaxImages     int           `env:"OCR_MAX_IMAGES" envDefault:"10"`
}

type TTSConfig struct {
	OpenAIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"TTS_OPENAI_BASE_URL"`
	OpenAIModel     string        `env:"TTS_OPENAI_MODEL" envDefault:"tts-1-hd"`
	Speed           float64       `env:"TTS_SPEED" envDefault:"1.0"`
	MaxInputChars   int           `env:"TTS_MAX_INPUT_CHARS" envDefault:"4096"`
	ProviderTimeout time.Duration `env:"TTS_PROVIDER_TIMEOUT" envDefault:"30s"`
	Concurrency     int           `env:"TTS_CONCURRENCY" envDefault:"4"`
	FlightWait      time.Duration `env:"TTS_FLIGHT_WAIT" envDefault:"30s"`
	CacheTimeout    time.Duration `env:"TTS_CACHE_TIMEOUT" envDefault:"10s"`
}

type AudioConfig struct {
	FFProbePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
}

type HTTPConfig struct {
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"200"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
}

type WorkerConfig struct {
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"10"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.TTS.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	switch c.OCR.Provider {
	case OCRProviderAnthropic:
		if c.OCR.AnthropicKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case OCRProviderGemini:
		if c.OCR.GeminiKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("OCR_PROVIDER must be %q or %q, got %q", OCRProviderAnthropic, OCRProviderGemini, c.OCR.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.TTS.Concurrency < 1 {
		return fmt.Errorf("TTS_CONCURRENCY must be positive, got %d", c.TTS.Concurrency)
	}
	return nil
}
