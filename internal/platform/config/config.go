// Package config loads runtime configuration from the environment and an
// optional .env file, with secret:// references resolved through an
// injected resolver.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultRecordsCollection    = "records"
	defaultSnapshotsCollection  = "editor_snapshots"
	defaultEnrollmentCollection = "enrollment_numbers"
	defaultTemplatesCollection  = "card_templates"

	defaultExportWorkers   = 2
	defaultExportQueueSize = 16

	defaultSessionCookie = "idcard_admin_session"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Storage   StorageConfig
	Media     MediaConfig
	Exports   ExportsConfig
	Session   SessionConfig
	Auth      AuthConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters and collection names.
type FirestoreConfig struct {
	ProjectID            string
	EmulatorHost         string
	RecordsCollection    string
	SnapshotsCollection  string
	EnrollmentCollection string
	TemplatesCollection  string
}

// StorageConfig lists the bucket names used by the application.
type StorageConfig struct {
	MediaBucket   string
	ExportsBucket string
}

// MediaConfig selects the image uploader. When HostEndpoint is set the
// third-party host is used; otherwise uploads go to the media bucket.
type MediaConfig struct {
	HostEndpoint string
	HostAPIKey   string
}

// ExportsConfig tunes the background export service.
type ExportsConfig struct {
	Workers         int
	QueueSize       int
	CompletionTopic string
}

// SessionConfig carries the cookie codec keys.
type SessionConfig struct {
	CookieName string
	HashKey    string
	BlockKey   string
	Secure     bool
}

// AuthConfig controls request authentication.
type AuthConfig struct {
	// Disabled turns off ID-token verification for local development.
	Disabled bool
}

// SecretResolver resolves secret:// references to their values.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing
// or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that take precedence over the process
// environment. Useful in tests.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment entirely.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		if resolver != nil {
			o.secret = resolver
		}
	}
}

// Load assembles the configuration from (in precedence order) the supplied
// env map, the process environment, and the .env file.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "IDCARD_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "IDCARD_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "IDCARD_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "IDCARD_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "IDCARD_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "IDCARD_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:            stringWithDefault(lookup, "IDCARD_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:         stringWithDefault(lookup, "IDCARD_FIRESTORE_EMULATOR_HOST", ""),
			RecordsCollection:    stringWithDefault(lookup, "IDCARD_FIRESTORE_RECORDS_COLLECTION", defaultRecordsCollection),
			SnapshotsCollection:  stringWithDefault(lookup, "IDCARD_FIRESTORE_SNAPSHOTS_COLLECTION", defaultSnapshotsCollection),
			EnrollmentCollection: stringWithDefault(lookup, "IDCARD_FIRESTORE_ENROLLMENT_COLLECTION", defaultEnrollmentCollection),
			TemplatesCollection:  stringWithDefault(lookup, "IDCARD_FIRESTORE_TEMPLATES_COLLECTION", defaultTemplatesCollection),
		},
		Storage: StorageConfig{
			MediaBucket:   stringWithDefault(lookup, "IDCARD_STORAGE_MEDIA_BUCKET", ""),
			ExportsBucket: stringWithDefault(lookup, "IDCARD_STORAGE_EXPORTS_BUCKET", ""),
		},
		Media: MediaConfig{
			HostEndpoint: stringWithDefault(lookup, "IDCARD_MEDIA_HOST_ENDPOINT", ""),
			HostAPIKey:   stringWithDefault(lookup, "IDCARD_MEDIA_HOST_API_KEY", ""),
		},
		Exports: ExportsConfig{
			Workers:         intWithDefault(lookup, "IDCARD_EXPORTS_WORKERS", defaultExportWorkers),
			QueueSize:       intWithDefault(lookup, "IDCARD_EXPORTS_QUEUE_SIZE", defaultExportQueueSize),
			CompletionTopic: stringWithDefault(lookup, "IDCARD_EXPORTS_COMPLETION_TOPIC", ""),
		},
		Session: SessionConfig{
			CookieName: stringWithDefault(lookup, "IDCARD_SESSION_COOKIE_NAME", defaultSessionCookie),
			HashKey:    stringWithDefault(lookup, "IDCARD_SESSION_HASH_KEY", ""),
			BlockKey:   stringWithDefault(lookup, "IDCARD_SESSION_BLOCK_KEY", ""),
			Secure:     boolWithDefault(lookup, "IDCARD_SESSION_SECURE", true),
		},
		Auth: AuthConfig{
			Disabled: boolWithDefault(lookup, "IDCARD_AUTH_DISABLED", false),
		},
	}

	if err := resolveSecrets(ctx, &cfg, options.secret); err != nil {
		return Config{}, err
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveSecrets replaces secret:// references in secret-bearing fields.
func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) error {
	fields := []*string{
		&cfg.Session.HashKey,
		&cfg.Session.BlockKey,
		&cfg.Media.HostAPIKey,
	}
	for _, field := range fields {
		if !isSecretReference(*field) {
			continue
		}
		value, err := resolver.ResolveSecret(ctx, strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = value
	}
	return nil
}

func isSecretReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "secret://")
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.ReadTimeout <= 0 {
		missing = append(missing, "Server.ReadTimeout")
	}
	if cfg.Server.WriteTimeout <= 0 {
		missing = append(missing, "Server.WriteTimeout")
	}
	if cfg.Exports.Workers < 1 {
		missing = append(missing, "Exports.Workers")
	}
	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		missing = append(missing, "Session.CookieName")
	}
	if !cfg.Auth.Disabled && strings.TrimSpace(cfg.Session.HashKey) == "" {
		missing = append(missing, "Session.HashKey")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", absPath, err)
	}
	return values, nil
}

type lookupFunc func(string) (string, bool)

func stringWithDefault(lookup lookupFunc, key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func intWithDefault(lookup lookupFunc, key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup lookupFunc, key string, fallback bool) bool {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func durationWithDefault(lookup lookupFunc, key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
