package records

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultRecordsCollection = "records"

// FirestoreRepository reads and writes person records as flat string-map
// documents, one per person.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

// NewFirestoreRepository constructs a Firestore-backed repository. An empty
// collection name selects the default.
func NewFirestoreRepository(client *firestore.Client, collection string, logger *zap.Logger) *FirestoreRepository {
	if client == nil {
		panic("records: firestore client is required")
	}
	if collection == "" {
		collection = defaultRecordsCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreRepository{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

// List streams matching documents. Documents that fail to decode are logged
// and skipped so one malformed record never hides the rest.
func (r *FirestoreRepository) List(ctx context.Context, q Query) ([]Record, error) {
	query := r.client.Collection(r.collection).Query
	if q.Type != "" {
		query = query.Where(KeyType, "==", q.Type)
	}
	if q.Class != "" {
		query = query.Where(KeyClass, "==", q.Class)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("records: list: %w", err)
		}
		var raw map[string]string
		if err := snap.DataTo(&raw); err != nil {
			r.logger.Warn("records: skip malformed doc",
				zap.String("path", snap.Ref.Path), zap.Error(err))
			continue
		}
		out = append(out, NewRecord(raw))
	}
	return out, nil
}

// Get fetches one record by document id.
func (r *FirestoreRepository) Get(ctx context.Context, id string) (Record, error) {
	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("records: get %s: %w", id, err)
	}
	var raw map[string]string
	if err := snap.DataTo(&raw); err != nil {
		return nil, fmt.Errorf("records: decode %s: %w", id, err)
	}
	return NewRecord(raw), nil
}

// Put validates and writes the record document, replacing any existing one.
func (r *FirestoreRepository) Put(ctx context.Context, id string, rec Record) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	if _, err := r.client.Collection(r.collection).Doc(id).Set(ctx, map[string]string(rec)); err != nil {
		return fmt.Errorf("records: put %s: %w", id, err)
	}
	return nil
}

// Delete removes the record document; absent ids are tolerated.
func (r *FirestoreRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(r.collection).Doc(id).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("records: delete %s: %w", id, err)
	}
	return nil
}
