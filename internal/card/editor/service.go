package editor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/card/snapshot"
	"campusworks.org/idcard-admin/internal/card/template"
)

// Service opens editor sessions: a saved snapshot wins, otherwise the stored
// template document is fetched and normalised. Sessions are rebuilt per
// request; all durable state lives in the snapshot store.
type Service struct {
	source template.Source
	store  snapshot.Store
	logger *zap.Logger
}

// NewService constructs the editor service.
func NewService(source template.Source, store snapshot.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, store: store, logger: logger}
}

// OpenResult reports how the session was produced.
type OpenResult struct {
	Session *Session
	// Resumed is true when the session came from a saved snapshot.
	Resumed bool
	// LoadError carries a non-fatal fetch or normalize failure; the session
	// then wraps an empty template so editing can still proceed.
	LoadError error
}

// Open builds the session for one selection. storageKey scopes the snapshot
// (one editing surface per staff user).
func (s *Service) Open(ctx context.Context, storageKey, idType, templateType string) (OpenResult, error) {
	key := Key{IDType: idType, TemplateType: templateType}

	snap, err := s.store.Load(ctx, storageKey, idType, templateType)
	if err != nil {
		return OpenResult{}, err
	}
	if snap != nil {
		return OpenResult{
			Session: Restore(key, snap, s.keyedStore(storageKey), s.logger),
			Resumed: true,
		}, nil
	}

	raw, err := s.source.Fetch(ctx, idType, templateType)
	if err != nil {
		s.logger.Warn("editor: template fetch failed, starting empty",
			zap.String("idType", idType), zap.String("templateType", templateType), zap.Error(err))
		return OpenResult{
			Session:   New(key, template.Empty(), s.keyedStore(storageKey), s.logger),
			LoadError: err,
		}, nil
	}

	tpl, err := template.Normalize(raw, s.logger)
	if err != nil {
		if !errors.Is(err, template.ErrMissingFront) {
			s.logger.Warn("editor: template normalize failed, starting empty",
				zap.String("idType", idType), zap.String("templateType", templateType), zap.Error(err))
		}
		return OpenResult{
			Session:   New(key, template.Empty(), s.keyedStore(storageKey), s.logger),
			LoadError: err,
		}, nil
	}

	return OpenResult{Session: New(key, tpl, s.keyedStore(storageKey), s.logger)}, nil
}

// Discard drops the saved snapshot for the storage key.
func (s *Service) Discard(ctx context.Context, storageKey string) error {
	return s.store.Clear(ctx, storageKey)
}

// Publish writes the exported document back to the template source and
// clears the working snapshot.
func (s *Service) Publish(ctx context.Context, storageKey string, sess *Session, doc []byte) error {
	key := sess.Key()
	if err := s.source.Store(ctx, key.IDType, key.TemplateType, doc); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, storageKey); err != nil {
		s.logger.Warn("editor: snapshot clear after publish failed",
			zap.String("key", storageKey), zap.Error(err))
	}
	return nil
}

// keyedStore adapts the shared snapshot store so the session always saves
// under the caller's storage key rather than the selection key.
func (s *Service) keyedStore(storageKey string) snapshot.Store {
	return &rekeyedStore{inner: s.store, key: storageKey}
}

type rekeyedStore struct {
	inner snapshot.Store
	key   string
}

func (r *rekeyedStore) Save(ctx context.Context, _ string, snap snapshot.Snapshot) error {
	return r.inner.Save(ctx, r.key, snap)
}

func (r *rekeyedStore) Load(ctx context.Context, _, idType, templateType string) (*snapshot.Snapshot, error) {
	return r.inner.Load(ctx, r.key, idType, templateType)
}

func (r *rekeyedStore) Clear(ctx context.Context, _ string) error {
	return r.inner.Clear(ctx, r.key)
}
