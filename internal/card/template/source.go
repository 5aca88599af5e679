package template

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTemplateNotFound is returned when no document exists for the selection.
var ErrTemplateNotFound = errors.New("template: no document for selection")

// Source fetches the raw template document for an (idType, templateType)
// selection. The payload is the stored JSON form, pre-normalization.
type Source interface {
	Fetch(ctx context.Context, idType, templateType string) ([]byte, error)
	Store(ctx context.Context, idType, templateType string, doc []byte) error
}

// StaticSource serves documents from memory. Used in tests and as the seed
// catalogue for local development.
type StaticSource struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewStaticSource builds a source over the given documents, keyed by
// "<idType>:<templateType>".
func NewStaticSource(docs map[string][]byte) *StaticSource {
	copied := make(map[string][]byte, len(docs))
	for k, v := range docs {
		copied[k] = append([]byte(nil), v...)
	}
	return &StaticSource{docs: copied}
}

// Fetch returns the stored document for the selection.
func (s *StaticSource) Fetch(_ context.Context, idType, templateType string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[sourceKey(idType, templateType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, idType, templateType)
	}
	return append([]byte(nil), doc...), nil
}

// Store replaces the document for the selection.
func (s *StaticSource) Store(_ context.Context, idType, templateType string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[sourceKey(idType, templateType)] = append([]byte(nil), doc...)
	return nil
}

func sourceKey(idType, templateType string) string {
	return idType + ":" + templateType
}
