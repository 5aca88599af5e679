// Package media hosts card imagery: background art and per-person photos
// arrive as base64 payloads and come back as fetchable URLs.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPayload is returned for uploads with no image data.
	ErrEmptyPayload = errors.New("media: empty payload")
	// ErrInvalidPayload is returned when the payload is not valid base64.
	ErrInvalidPayload = errors.New("media: payload is not base64")
)

// Uploader turns a base64 image payload into a hosted URL.
type Uploader interface {
	Upload(ctx context.Context, base64Payload string) (string, error)
}

// decodePayload strips an optional data-URI prefix and decodes the base64
// body.
func decodePayload(payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	contentType := "image/png"
	if strings.HasPrefix(trimmed, "data:") {
		head, body, ok := strings.Cut(trimmed, ",")
		if !ok {
			return nil, "", ErrInvalidPayload
		}
		if ct := strings.TrimSuffix(strings.TrimPrefix(head, "data:"), ";base64"); ct != "" {
			contentType = ct
		}
		trimmed = body
	}
	if trimmed == "" {
		return nil, "", ErrEmptyPayload
	}
	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(raw) == 0 {
		return nil, "", ErrEmptyPayload
	}
	return raw, contentType, nil
}
