package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"campusworks.org/idcard-admin/internal/admin/httpserver"
	"campusworks.org/idcard-admin/internal/admin/httpserver/middleware"
	"campusworks.org/idcard-admin/internal/admin/httpserver/ui"
	appsession "campusworks.org/idcard-admin/internal/admin/session"
	"campusworks.org/idcard-admin/internal/card/editor"
	"campusworks.org/idcard-admin/internal/card/snapshot"
	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/exports"
	"campusworks.org/idcard-admin/internal/media"
	"campusworks.org/idcard-admin/internal/platform/config"
	"campusworks.org/idcard-admin/internal/platform/observability"
	"campusworks.org/idcard-admin/internal/platform/secrets"
	"campusworks.org/idcard-admin/internal/records"
)

func main() {
	rootCtx := context.Background()

	logger, err := observability.NewLogger()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	secretProject := os.Getenv("IDCARD_SECRETS_PROJECT_ID")
	var loadOpts []config.Option
	if secretProject != "" {
		fetcher := secrets.New(secretProject, secrets.WithLogger(logger))
		defer func() {
			_ = fetcher.Close()
		}()
		loadOpts = append(loadOpts, config.WithSecretResolver(fetcher))
	}

	cfg, err := config.Load(rootCtx, loadOpts...)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	basePath := getEnv("IDCARD_BASE_PATH", "/admin")
	environment := getEnv("IDCARD_ENVIRONMENT", "Development")

	deps := buildDependencies(rootCtx, cfg, logger)
	defer deps.close()

	serverCfg := httpserver.Config{
		Address:          ":" + cfg.Server.Port,
		BasePath:         basePath,
		Environment:      environment,
		Authenticator:    deps.authenticator,
		Sessions:         deps.sessions,
		CSRFCookieSecure: cfg.Session.Secure,

		Editor:     deps.editor,
		Templates:  deps.templates,
		Records:    deps.records,
		Enrollment: deps.enrollment,
		Media:      deps.media,
		Exports:    deps.exports,

		Logger: logger,
	}

	srv := httpserver.New(serverCfg)
	srv.ReadTimeout = cfg.Server.ReadTimeout
	srv.WriteTimeout = cfg.Server.WriteTimeout
	srv.IdleTimeout = cfg.Server.IdleTimeout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("admin server listening",
		zap.String("address", serverCfg.Address),
		zap.String("basePath", basePath))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}

type dependencies struct {
	authenticator middleware.Authenticator
	sessions      middleware.SessionStore
	templates     template.Source
	records       records.Repository
	enrollment    ui.EnrollmentIssuer
	editor        *editor.Service
	media         media.Uploader
	exports       *exports.Service

	closers []func()
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDependencies wires the service graph. Backends degrade to in-memory
// implementations when the corresponding configuration is absent, which
// keeps local development runnable without GCP credentials.
func buildDependencies(ctx context.Context, cfg config.Config, logger *zap.Logger) *dependencies {
	deps := &dependencies{}

	deps.sessions = buildSessions(cfg, logger)

	fsClient := buildFirestore(ctx, cfg, logger)
	if fsClient != nil {
		deps.closers = append(deps.closers, func() { _ = fsClient.Close() })
		deps.templates = template.NewFirestoreSource(fsClient, cfg.Firestore.TemplatesCollection)
		deps.records = records.NewFirestoreRepository(fsClient, cfg.Firestore.RecordsCollection, logger)
		deps.enrollment = records.NewEnrollmentNumbers(fsClient, cfg.Firestore.EnrollmentCollection, logger)
		deps.editor = editor.NewService(deps.templates,
			snapshot.NewFirestoreStore(fsClient, cfg.Firestore.SnapshotsCollection, logger), logger)
	} else {
		deps.templates = template.NewStaticSource(nil)
		deps.records = records.NewMemoryRepository(nil)
		deps.editor = editor.NewService(deps.templates, snapshot.NewMemoryStore(logger), logger)
	}

	var storageClient *storage.Client
	if cfg.Storage.MediaBucket != "" || cfg.Storage.ExportsBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Warn("storage client init failed", zap.Error(err))
		} else {
			storageClient = client
			deps.closers = append(deps.closers, func() { _ = client.Close() })
		}
	}

	deps.media = buildMedia(cfg, storageClient, logger)
	deps.exports = buildExports(ctx, cfg, storageClient, deps.records, logger)
	if deps.exports != nil {
		deps.closers = append(deps.closers, deps.exports.Close)
	}

	deps.authenticator = buildAuthenticator(ctx, cfg, logger)
	return deps
}

func buildSessions(cfg config.Config, logger *zap.Logger) middleware.SessionStore {
	if cfg.Session.HashKey == "" {
		logger.Warn("session hash key not set; browser sessions disabled")
		return nil
	}
	var blockKey []byte
	if cfg.Session.BlockKey != "" {
		blockKey = []byte(cfg.Session.BlockKey)
	}
	mgr, err := appsession.NewManager(appsession.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      []byte(cfg.Session.HashKey),
		BlockKey:     blockKey,
		CookieSecure: cfg.Session.Secure,
	})
	if err != nil {
		logger.Warn("session manager init failed", zap.Error(err))
		return nil
	}
	return mgr
}

func buildFirestore(ctx context.Context, cfg config.Config, logger *zap.Logger) *firestore.Client {
	projectID := cfg.Firestore.ProjectID
	if projectID == "" {
		projectID = cfg.Firebase.ProjectID
	}
	if projectID == "" {
		logger.Warn("firestore project not configured; using in-memory backends")
		return nil
	}
	if cfg.Firestore.EmulatorHost != "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost)
	}

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		logger.Warn("firestore client init failed; using in-memory backends", zap.Error(err))
		return nil
	}
	return client
}

func buildMedia(cfg config.Config, storageClient *storage.Client, logger *zap.Logger) media.Uploader {
	if cfg.Media.HostEndpoint != "" {
		client, err := media.NewHostClient(cfg.Media.HostEndpoint, cfg.Media.HostAPIKey, nil)
		if err != nil {
			logger.Warn("media host client init failed", zap.Error(err))
			return nil
		}
		return client
	}
	if storageClient != nil && cfg.Storage.MediaBucket != "" {
		uploader, err := media.NewBucketUploader(storageClient, cfg.Storage.MediaBucket, logger)
		if err != nil {
			logger.Warn("media bucket uploader init failed", zap.Error(err))
			return nil
		}
		return uploader
	}
	logger.Warn("media upload not configured")
	return nil
}

func buildExports(ctx context.Context, cfg config.Config, storageClient *storage.Client, repo records.Repository, logger *zap.Logger) *exports.Service {
	if storageClient == nil || cfg.Storage.ExportsBucket == "" {
		logger.Warn("exports bucket not configured; background exports disabled")
		return nil
	}
	store, err := exports.NewBucketArchiveStore(storageClient, cfg.Storage.ExportsBucket)
	if err != nil {
		logger.Warn("exports archive store init failed", zap.Error(err))
		return nil
	}

	var events exports.EventPublisher
	if cfg.Exports.CompletionTopic != "" {
		projectID := cfg.Firebase.ProjectID
		if projectID == "" {
			projectID = cfg.Firestore.ProjectID
		}
		psClient, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Warn("pubsub client init failed; export events disabled", zap.Error(err))
		} else {
			publisher, err := exports.NewPubSubPublisher(psClient.Topic(cfg.Exports.CompletionTopic))
			if err != nil {
				logger.Warn("export publisher init failed", zap.Error(err))
			} else {
				events = publisher
			}
		}
	}

	return exports.NewService(repo, store, events, exports.NewHTTPPhotoFetcher(nil), exports.Config{
		Workers:   cfg.Exports.Workers,
		QueueSize: cfg.Exports.QueueSize,
	}, logger)
}

func buildAuthenticator(ctx context.Context, cfg config.Config, logger *zap.Logger) middleware.Authenticator {
	if cfg.Auth.Disabled {
		logger.Warn("ID-token verification disabled; using passthrough authenticator")
		return nil
	}
	if cfg.Firebase.ProjectID == "" {
		logger.Warn("firebase project not configured; using passthrough authenticator")
		return nil
	}

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opts...)
	if err != nil {
		logger.Warn("firebase app init failed; using passthrough authenticator", zap.Error(err))
		return nil
	}
	client, err := app.Auth(ctx)
	if err != nil {
		logger.Warn("firebase auth init failed; using passthrough authenticator", zap.Error(err))
		return nil
	}

	logger.Info("firebase authenticator enabled", zap.String("project", cfg.Firebase.ProjectID))
	return middleware.NewFirebaseAuthenticator(client)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
