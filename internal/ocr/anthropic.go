package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig holds configuration for the Claude vision extractor.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string // optional, for tests and proxies
	Model     string // default: "claude-3-5-sonnet-20240620"
	MaxTokens int    // default: 4096
}

// AnthropicExtractor reads printed text from images with a Claude vision model.
type AnthropicExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicExtractor(cfg AnthropicConfig) *AnthropicExtractor {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20240620"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicExtractor{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

func (e *AnthropicExtractor) Name() string { return "anthropic" }

func (e *AnthropicExtractor) ExtractText(ctx context.Context, img Image, opts Options) (*Page, error) {
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MediaType, img.Data),
				anthropic.NewTextBlock(buildPrompt(opts)),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic ocr: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Page{
		Text:       strings.TrimSpace(text.String()),
		Confidence: confidenceFor(resp.StopReason),
	}, nil
}

func buildPrompt(opts Options) string {
	var b strings.Builder
	b.WriteString("Please extract all the text from this image.")
	if opts.ExcludeAnnotations {
		b.WriteString(" Only extract the main printed text. Exclude any handwritten notes, annotations, or marginalia.")
	}
	if opts.Language != "" && opts.Language != "en" {
		fmt.Fprintf(&b, " The text is in %s.", opts.Language)
	}
	b.WriteString(" Return only the extracted text without any additional commentary or explanation.")
	return b.String()
}

// confidenceFor maps the stop reason to a confidence level. A response cut
// off by the token limit is usable but incomplete.
func confidenceFor(reason anthropic.StopReason) Confidence {
	switch reason {
	case anthropic.StopReasonEndTurn:
		return ConfidenceHigh
	case anthropic.StopReasonMaxTokens:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
