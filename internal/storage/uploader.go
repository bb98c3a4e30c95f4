package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// File is a raw attachment received from a caller, before upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileStorage converts raw file bytes into a durable public URL.
type FileStorage interface {
	Upload(ctx context.Context, file *File) (string, error)
}

// HTTPFileStorage uploads to a gateway that answers POST /upload with a
// JSON body containing the stored object's public URL.
type HTTPFileStorage struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFileStorage(baseURL string, timeout time.Duration) *HTTPFileStorage {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFileStorage{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPFileStorage) Upload(ctx context.Context, file *File) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}
	if len(file.Data) == 0 {
		return "", fmt.Errorf("file is empty")
	}

	uploadURL := fmt.Sprintf("%s/upload?filename=%s", s.baseURL, url.QueryEscape(file.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(file.Data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	if file.ContentType != "" {
		req.Header.Set("Content-Type", file.ContentType)
	} else {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload rejected: %s", resp.Status)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if body.URL == "" {
		return "", fmt.Errorf("upload response has no url")
	}

	return body.URL, nil
}
