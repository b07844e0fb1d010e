// Package ocr extracts readable text from page images and PDFs.
package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidRequest = errors.New("invalid ocr request")
	ErrInvalidImage   = errors.New("invalid image")
	ErrOCRFailed      = errors.New("ocr failed")
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

type Options struct {
	ExcludeAnnotations bool   `json:"exclude_annotations"`
	Language           string `json:"language"`
}

// DefaultOptions excludes handwriting and expects English.
func DefaultOptions() Options {
	return Options{ExcludeAnnotations: true, Language: "en"}
}

// Image is one decoded input: its media type and base64 payload without any
// data URL prefix.
type Image struct {
	MediaType string
	Data      string
}

// Page is the text read from one image. Sentences is set when the extractor
// already split the text; otherwise the service splits Text itself.
type Page struct {
	Text       string
	Sentences  []string
	Confidence Confidence
}

// Extractor reads the text of a single image.
type Extractor interface {
	ExtractText(ctx context.Context, img Image, opts Options) (*Page, error)
	Name() string
}

var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	mediaTypePDF: true,
}

// ParseImage accepts raw base64 or a data URL. Raw base64 is assumed to be JPEG.
func ParseImage(raw string) (Image, error) {
	raw = strings.TrimSpace(raw)
	img := Image{MediaType: "image/jpeg", Data: raw}

	if strings.HasPrefix(raw, "data:") {
		header, data, ok := strings.Cut(raw, ",")
		if !ok {
			return Image{}, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		mediaType, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
		img = Image{MediaType: strings.ToLower(mediaType), Data: data}
	}

	if !supportedMediaTypes[img.MediaType] {
		return Image{}, fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, img.MediaType)
	}
	if img.Data == "" {
		return Image{}, fmt.Errorf("%w: empty image data", ErrInvalidImage)
	}
	if _, err := base64.StdEncoding.DecodeString(img.Data); err != nil {
		return Image{}, fmt.Errorf("%w: not valid base64", ErrInvalidImage)
	}
	return img, nil
}

type Request struct {
	Image         string   `json:"image,omitempty"`
	Images        []string `json:"images,omitempty"`
	PageSeparator string   `json:"page_separator,omitempty"`
	Options       Options  `json:"options"`
}

type Result struct {
	Text           string     `json:"text"`
	Sentences      []string   `json:"sentences"`
	Confidence     Confidence `json:"confidence"`
	Pages          int        `json:"pages"`
	ProcessingTime float64    `json:"processing_time"`
}

type Config struct {
	Timeout   time.Duration // per provider call; default 30s
	MaxImages int           // default 10
}

type Service struct {
	extractor Extractor
	timeout   time.Duration
	maxImages int
}

func NewService(extractor Extractor, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 10
	}
	return &Service{
		extractor: extractor,
		timeout:   cfg.Timeout,
		maxImages: cfg.MaxImages,
	}
}

// Extract reads every page of the request and joins the page texts with the
// page separator. A page that fails is replaced by an error marker; the call
// fails only when no page could be read.
func (s *Service) Extract(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	inputs, err := s.inputs(req)
	if err != nil {
		return nil, err
	}
	sep := req.PageSeparator
	if sep == "" {
		sep = "\n\n"
	}

	var pages []pageJob
	for _, raw := range inputs {
		img, err := ParseImage(raw)
		if err != nil {
			return nil, err
		}
		if img.MediaType != mediaTypePDF {
			pages = append(pages, pageJob{image: img})
			continue
		}

		data, _ := base64.StdEncoding.DecodeString(img.Data)
		texts, err := pdfPages(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		for _, text := range texts {
			conf := ConfidenceHigh
			if text == "" {
				conf = ConfidenceLow
			}
			pages = append(pages, pageJob{done: &Page{Text: text, Confidence: conf}})
		}
	}

	if err := s.run(ctx, pages, req.Options); err != nil {
		return nil, err
	}

	texts := make([]string, len(pages))
	var sentences []string
	confidence := ConfidenceHigh
	var firstErr error
	failed := 0
	for i, p := range pages {
		if p.err != nil {
			failed++
			if firstErr == nil {
				firstErr = p.err
			}
			texts[i] = fmt.Sprintf("[Error processing page %d]", i+1)
			confidence = ConfidenceLow
			continue
		}
		texts[i] = p.done.Text
		if p.done.Sentences != nil {
			sentences = append(sentences, p.done.Sentences...)
		} else {
			sentences = append(sentences, SplitSentences(p.done.Text)...)
		}
		if p.done.Confidence.rank() < confidence.rank() {
			confidence = p.done.Confidence
		}
	}
	if failed == len(pages) {
		return nil, fmt.Errorf("%w: %w", ErrOCRFailed, firstErr)
	}

	elapsed := time.Since(start).Seconds()
	slog.Info("ocr completed",
		"pages", len(pages),
		"failed_pages", failed,
		"confidence", confidence,
		"seconds", elapsed,
	)

	return &Result{
		Text:           strings.Join(texts, sep),
		Sentences:      sentences,
		Confidence:     confidence,
		Pages:          len(pages),
		ProcessingTime: elapsed,
	}, nil
}

type pageJob struct {
	image Image
	done  *Page
	err   error
}

func (s *Service) inputs(req Request) ([]string, error) {
	hasImage := strings.TrimSpace(req.Image) != ""
	switch {
	case hasImage && len(req.Images) > 0:
		return nil, fmt.Errorf("%w: set either image or images, not both", ErrInvalidRequest)
	case hasImage:
		return []string{req.Image}, nil
	case len(req.Images) == 0:
		return nil, fmt.Errorf("%w: image or images is required", ErrInvalidRequest)
	case len(req.Images) > s.maxImages:
		return nil, fmt.Errorf("%w: at most %d images per request, got %d", ErrInvalidRequest, s.maxImages, len(req.Images))
	}
	return req.Images, nil
}

// run reads the image pages concurrently. Per-page failures are recorded on
// the job; only cancellation of ctx aborts the whole run.
func (s *Service) run(ctx context.Context, pages []pageJob, opts Options) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	for i := range pages {
		if pages[i].done != nil {
			continue
		}
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()

			page, err := s.extractor.ExtractText(callCtx, pages[i].image, opts)
			if err != nil {
				slog.Warn("ocr page failed", "page", i+1, "extractor", s.extractor.Name(), "error", err)
				pages[i].err = err
				return nil
			}
			pages[i].done = page
			return nil
		})
	}
	g.Wait()

	return ctx.Err()
}
