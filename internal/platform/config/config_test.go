package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"IDCARD_AUTH_DISABLED": "true"}),
	)
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "records", cfg.Firestore.RecordsCollection)
	require.Equal(t, "editor_snapshots", cfg.Firestore.SnapshotsCollection)
	require.Equal(t, 2, cfg.Exports.Workers)
	require.Equal(t, "idcard_admin_session", cfg.Session.CookieName)
	require.True(t, cfg.Session.Secure)
}

func TestLoadEnvMapOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"IDCARD_SERVER_PORT":           "9090",
			"IDCARD_SERVER_READ_TIMEOUT":   "5s",
			"IDCARD_EXPORTS_WORKERS":       "4",
			"IDCARD_SESSION_HASH_KEY":      "hash-key-value",
			"IDCARD_STORAGE_MEDIA_BUCKET":  "media-bucket",
			"IDCARD_FIREBASE_PROJECT_ID":   "demo-project",
			"IDCARD_FIRESTORE_PROJECT_ID":  "demo-project",
			"IDCARD_MEDIA_HOST_ENDPOINT":   "https://img.host/upload",
			"IDCARD_SESSION_SECURE":        "false",
		}),
	)
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, 4, cfg.Exports.Workers)
	require.Equal(t, "demo-project", cfg.Firebase.ProjectID)
	require.Equal(t, "media-bucket", cfg.Storage.MediaBucket)
	require.False(t, cfg.Session.Secure)
}

func TestLoadDotEnvFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "# comment\nexport IDCARD_SERVER_PORT=7070\nIDCARD_SESSION_HASH_KEY=\"from-file\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
	)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "from-file", cfg.Session.HashKey)
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"IDCARD_SERVER_PORT": "   ",
		}),
	)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields(), "Server.Port")
	require.Contains(t, verr.Fields(), "Session.HashKey")
}

func TestLoadResolvesSecrets(t *testing.T) {
	t.Parallel()

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		require.Equal(t, "secret://sessions/hash-key", ref)
		return "resolved-hash", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"IDCARD_SESSION_HASH_KEY": "secret://sessions/hash-key",
		}),
		WithSecretResolver(resolver),
	)
	require.NoError(t, err)
	require.Equal(t, "resolved-hash", cfg.Session.HashKey)
}

func TestLoadSecretResolverMissing(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"IDCARD_SESSION_HASH_KEY": "secret://sessions/hash-key",
		}),
	)
	var serr *SecretError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "secret://sessions/hash-key", serr.Ref)
}
