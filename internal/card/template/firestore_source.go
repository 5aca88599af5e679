package template

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultTemplatesCollection = "card_templates"

// FirestoreSource stores one template document per selection. Documents are
// kept as a JSON string field so the stored form matches the export format
// byte for byte.
type FirestoreSource struct {
	client     *firestore.Client
	collection string
}

type templateDoc struct {
	IDType       string `firestore:"idType"`
	TemplateType string `firestore:"templateType"`
	Document     string `firestore:"document"`
}

// NewFirestoreSource constructs a source over the named collection. An
// empty collection name selects the default.
func NewFirestoreSource(client *firestore.Client, collection string) *FirestoreSource {
	if client == nil {
		panic("template: firestore client is required")
	}
	if collection == "" {
		collection = defaultTemplatesCollection
	}
	return &FirestoreSource{client: client, collection: collection}
}

// Fetch returns the stored document for the selection.
func (s *FirestoreSource) Fetch(ctx context.Context, idType, templateType string) ([]byte, error) {
	snap, err := s.client.Collection(s.collection).Doc(sourceKey(idType, templateType)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, idType, templateType)
		}
		return nil, fmt.Errorf("template: fetch %s/%s: %w", idType, templateType, err)
	}
	var doc templateDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("template: decode %s/%s: %w", idType, templateType, err)
	}
	if !json.Valid([]byte(doc.Document)) {
		return nil, fmt.Errorf("template: stored document %s/%s is not valid JSON", idType, templateType)
	}
	return []byte(doc.Document), nil
}

// Store replaces the document for the selection.
func (s *FirestoreSource) Store(ctx context.Context, idType, templateType string, raw []byte) error {
	doc := templateDoc{
		IDType:       idType,
		TemplateType: templateType,
		Document:     string(raw),
	}
	if _, err := s.client.Collection(s.collection).Doc(sourceKey(idType, templateType)).Set(ctx, doc); err != nil {
		return fmt.Errorf("template: store %s/%s: %w", idType, templateType, err)
	}
	return nil
}
