// Package secrets resolves secret:// references through Google Secret
// Manager, with an in-process cache and a local fallback file for
// development.
package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultFallbackPath = ".secrets.local"
	cacheTTL            = 5 * time.Minute
)

// ErrNotFound is returned when a secret cannot be resolved anywhere.
var ErrNotFound = errors.New("secrets: secret not found")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references with caching and a fallback file.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	projectID  string
	logger     *zap.Logger

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]cacheEntry
	now   func() time.Time
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFallbackFile overrides the local fallback secrets file path.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) { f.fallbackPath = strings.TrimSpace(path) }
}

// WithClient injects a Secret Manager client, mainly for tests. The fetcher
// will not close an injected client.
func WithClient(client secretManagerClient) Option {
	return func(f *Fetcher) {
		f.client = client
		f.ownsClient = false
	}
}

// New constructs a Fetcher for the given project. When no client is injected
// one is dialed lazily on first use.
func New(projectID string, opts ...Option) *Fetcher {
	f := &Fetcher{
		projectID:    strings.TrimSpace(projectID),
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
		cache:        make(map[string]cacheEntry),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Close releases the underlying client when the fetcher owns it.
func (f *Fetcher) Close() error {
	if f.client != nil && f.ownsClient {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret resolves a secret:// reference: cache first, then Secret
// Manager, then the fallback file.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	entry, ok := f.cache[name]
	f.mu.RUnlock()
	if ok && f.now().Sub(entry.fetchedAt) < cacheTTL {
		return entry.value, nil
	}

	value, err := f.fetch(ctx, name)
	if err != nil {
		if fallback, fbErr := f.fallback(name); fbErr == nil {
			f.logger.Warn("secrets: using fallback value",
				zap.String("secret", name), zap.Error(err))
			return fallback, nil
		}
		return "", err
	}

	f.mu.Lock()
	f.cache[name] = cacheEntry{value: value, fetchedAt: f.now()}
	f.mu.Unlock()
	return value, nil
}

func (f *Fetcher) fetch(ctx context.Context, name string) (string, error) {
	client, err := f.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", f.projectID, name),
	})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: empty payload for %s: %w", name, ErrNotFound)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) ensureClient(ctx context.Context) (secretManagerClient, error) {
	if f.client != nil {
		return f.client, nil
	}
	if f.projectID == "" {
		return nil, errors.New("secrets: project id is required")
	}
	client, err := secretmanager.NewClient(ctx, []option.ClientOption{}...)
	if err != nil {
		return nil, fmt.Errorf("secrets: dial secret manager: %w", err)
	}
	f.client = client
	f.ownsClient = true
	return client, nil
}

// fallback consults the local secrets file, loaded once. Lines have the
// form name=value.
func (f *Fetcher) fallback(name string) (string, error) {
	f.fallbackOnce.Do(func() {
		f.fallbackVals, f.fallbackErr = loadFallbackFile(f.fallbackPath)
	})
	if f.fallbackErr != nil {
		return "", f.fallbackErr
	}
	value, ok := f.fallbackVals[name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func parseRef(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, "secret://") {
		return "", fmt.Errorf("secrets: not a secret reference: %q", ref)
	}
	name := strings.Trim(strings.TrimPrefix(trimmed, "secret://"), "/")
	if name == "" {
		return "", fmt.Errorf("secrets: empty secret reference: %q", ref)
	}
	// Nested paths map to Secret Manager's flat namespace.
	return strings.ReplaceAll(name, "/", "-"), nil
}

func loadFallbackFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: open fallback file: %w", err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("secrets: read fallback file: %w", err)
	}
	return values, nil
}
