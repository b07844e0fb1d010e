package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Storage interface {
	Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error
	GetPublicURL(bucket, path string) string
}

// SupabaseStorage talks to the Supabase Storage REST API with a service key.
type SupabaseStorage struct {
	baseURL      string
	serviceKey   string
	cacheControl string
	httpClient   *http.Client
}

func NewSupabaseStorage(supabaseURL, serviceKey string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:      strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		serviceKey:   serviceKey,
		cacheControl: "max-age=31536000",
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// Upload writes the object, replacing any existing object at path. Content
// under a given path never changes, so it is served with a one-year cache lifetime.
func (s *SupabaseStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error {
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, bucket, path)

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, data); err != nil {
		return fmt.Errorf("read upload data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", s.cacheControl)
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *SupabaseStorage) GetPublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, bucket, path)
}
