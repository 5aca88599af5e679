package snapshot

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultSnapshotCollection = "editor_snapshots"

// FirestoreStore persists one snapshot document per editor key.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

// NewFirestoreStore constructs a Firestore-backed snapshot store. An empty
// collection name selects the default.
func NewFirestoreStore(client *firestore.Client, collection string, logger *zap.Logger) *FirestoreStore {
	if client == nil {
		panic("snapshot: firestore client is required")
	}
	if collection == "" {
		collection = defaultSnapshotCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

// Save writes the snapshot document, replacing any previous state for key.
func (s *FirestoreStore) Save(ctx context.Context, key string, snap Snapshot) error {
	if _, err := s.client.Collection(s.collection).Doc(key).Set(ctx, snap); err != nil {
		return fmt.Errorf("snapshot: save %s: %w", key, err)
	}
	return nil
}

// Load fetches and decodes the snapshot for key. Missing documents and
// selection mismatches return nil, nil; undecodable documents are deleted
// and likewise treated as absent.
func (s *FirestoreStore) Load(ctx context.Context, key, idType, templateType string) (*Snapshot, error) {
	doc, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: load %s: %w", key, err)
	}

	var snap Snapshot
	if err := doc.DataTo(&snap); err != nil {
		s.logger.Warn("snapshot: clearing corrupt stored state",
			zap.String("key", key), zap.Error(err))
		if _, delErr := doc.Ref.Delete(ctx); delErr != nil {
			s.logger.Warn("snapshot: delete corrupt doc failed",
				zap.String("key", key), zap.Error(delErr))
		}
		return nil, nil
	}
	// A document written without its template field decodes cleanly but
	// cannot seed a session. Treat it like any other corrupt payload.
	if snap.Template == nil || snap.Template.Front == nil {
		s.logger.Warn("snapshot: clearing stored state with missing template",
			zap.String("key", key))
		if _, delErr := doc.Ref.Delete(ctx); delErr != nil {
			s.logger.Warn("snapshot: delete corrupt doc failed",
				zap.String("key", key), zap.Error(delErr))
		}
		return nil, nil
	}
	if snap.IDType != idType || snap.TemplateType != templateType {
		return nil, nil
	}
	return &snap, nil
}

// Clear deletes the snapshot document unconditionally.
func (s *FirestoreStore) Clear(ctx context.Context, key string) error {
	if _, err := s.client.Collection(s.collection).Doc(key).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("snapshot: clear %s: %w", key, err)
	}
	return nil
}
