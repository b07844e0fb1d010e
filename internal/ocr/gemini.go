package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// GeminiConfig holds configuration for the Gemini vision extractor. Gemini is
// reached through its OpenAI-compatible chat endpoint.
type GeminiConfig struct {
	APIKey    string
	BaseURL   string // default: "https://generativelanguage.googleapis.com/v1beta/openai"
	Model     string // default: "gemini-2.5-flash"
	MaxTokens int    // default: 4096
}

// GeminiExtractor asks Gemini for the page text already split into sentences.
type GeminiExtractor struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewGeminiExtractor(cfg GeminiConfig) *GeminiExtractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &GeminiExtractor{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (e *GeminiExtractor) Name() string { return "gemini" }

func (e *GeminiExtractor) ExtractText(ctx context.Context, img Image, opts Options) (*Page, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: buildSentencePrompt(opts)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + img.MediaType + ";base64," + img.Data,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini ocr: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("gemini ocr: empty response")
	}

	choice := resp.Choices[0]
	page := parseSentenceReply(choice.Message.Content)
	if choice.FinishReason == openai.FinishReasonLength && page.Confidence == ConfidenceHigh {
		page.Confidence = ConfidenceMedium
	}
	return page, nil
}

func buildSentencePrompt(opts Options) string {
	var b strings.Builder
	b.WriteString("Extract the text from this image and split it into sentences.\n")
	b.WriteString(`Return a JSON object of the form {"sentences": ["First sentence.", "Second sentence."]}.` + "\n\nRules:\n")
	b.WriteString("1. EXCLUDE page numbers, headers, footers, captions, figure labels and tables of contents.\n")
	if opts.ExcludeAnnotations {
		b.WriteString("2. EXCLUDE handwritten notes, annotations, underlines and marginalia.\n")
		b.WriteString("3. Extract only the main printed body text.\n")
	} else {
		b.WriteString("2. Extract all text including handwritten notes.\n")
		b.WriteString("3. Keep the reading order of the page.\n")
	}
	b.WriteString("4. Each sentence ends with '.', '!' or '?'.\n")
	b.WriteString("5. Join sentences that are broken across lines.\n")
	b.WriteString("6. Do not split on abbreviations such as Mr., Dr. or e.g.\n")
	b.WriteString("7. Keep the original wording and punctuation.\n")
	if opts.Language != "" && opts.Language != "en" && opts.Language != "auto" {
		fmt.Fprintf(&b, "8. The text is in %s.\n", opts.Language)
	}
	b.WriteString("\nReturn ONLY valid JSON with no additional commentary.")
	return b.String()
}

// parseSentenceReply reads the JSON sentence list. A reply that is not the
// expected JSON is kept as plain text with medium confidence.
func parseSentenceReply(content string) *Page {
	body := strings.TrimSpace(content)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var reply struct {
		Sentences []string `json:"sentences"`
	}
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return &Page{Text: strings.TrimSpace(content), Confidence: ConfidenceMedium}
	}

	sentences := make([]string, 0, len(reply.Sentences))
	for _, s := range reply.Sentences {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	return &Page{
		Text:       strings.Join(sentences, " "),
		Sentences:  sentences,
		Confidence: ConfidenceHigh,
	}
}
