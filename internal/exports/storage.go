package exports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const photoFetchTimeout = 20 * time.Second

// BucketArchiveStore writes finished archives to the exports bucket.
type BucketArchiveStore struct {
	client *storage.Client
	bucket string
}

// NewBucketArchiveStore constructs a store over the named bucket.
func NewBucketArchiveStore(client *storage.Client, bucket string) (*BucketArchiveStore, error) {
	if client == nil {
		return nil, errors.New("exports: storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("exports: bucket name is required")
	}
	return &BucketArchiveStore{client: client, bucket: bucket}, nil
}

// Store writes the archive object and returns its public URL.
func (s *BucketArchiveStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/zip"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("exports: write archive %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("exports: finalize archive %s: %w", name, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name), nil
}

// HTTPPhotoFetcher downloads record photos over HTTP.
type HTTPPhotoFetcher struct {
	http *http.Client
}

// NewHTTPPhotoFetcher constructs a fetcher; a nil client selects a default
// with a request timeout.
func NewHTTPPhotoFetcher(httpClient *http.Client) *HTTPPhotoFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: photoFetchTimeout}
	}
	return &HTTPPhotoFetcher{http: httpClient}
}

// Fetch downloads one photo, rejecting non-2xx responses.
func (f *HTTPPhotoFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("exports: build photo request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exports: fetch photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("exports: photo fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("exports: read photo: %w", err)
	}
	return data, nil
}
