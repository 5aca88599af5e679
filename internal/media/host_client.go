package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const hostClientTimeout = 30 * time.Second

// HostClient uploads images to a third-party hosting endpoint that accepts
// form-encoded base64 payloads and answers with a JSON document carrying the
// hosted URL.
type HostClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewHostClient constructs a client for the hosting endpoint. A nil
// httpClient selects a default with a request timeout.
func NewHostClient(endpoint, apiKey string, httpClient *http.Client) (*HostClient, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("media: host endpoint is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: hostClientTimeout}
	}
	return &HostClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     httpClient,
	}, nil
}

type hostResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload posts the payload and returns the hosted URL. Error bodies from the
// host are surfaced in the returned error.
func (c *HostClient) Upload(ctx context.Context, base64Payload string) (string, error) {
	if _, _, err := decodePayload(base64Payload); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("image", strings.TrimSpace(stripDataPrefix(base64Payload)))
	if c.apiKey != "" {
		form.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("media: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("media: read upload response: %w", err)
	}

	var decoded hostResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("media: host returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	if resp.StatusCode != http.StatusOK || decoded.Data.URL == "" {
		msg := decoded.Error.Message
		if msg == "" {
			msg = truncate(body, 200)
		}
		return "", fmt.Errorf("media: host rejected upload (status %d): %s", resp.StatusCode, msg)
	}
	return decoded.Data.URL, nil
}

func stripDataPrefix(payload string) string {
	if strings.HasPrefix(strings.TrimSpace(payload), "data:") {
		if _, body, ok := strings.Cut(payload, ","); ok {
			return body
		}
	}
	return payload
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
