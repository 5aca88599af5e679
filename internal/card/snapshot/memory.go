package snapshot

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore keeps serialized snapshots in process memory. Used in tests
// and local development; the deployed store is Firestore-backed.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	logger *zap.Logger
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		blobs:  make(map[string][]byte),
		logger: logger,
	}
}

// Save serializes and stores the snapshot under key.
func (s *MemoryStore) Save(_ context.Context, key string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}

// Load returns the stored snapshot when its recorded selection matches.
// Corrupt payloads are dropped and treated as absent.
func (s *MemoryStore) Load(_ context.Context, key, idType, templateType string) (*Snapshot, error) {
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("snapshot: clearing corrupt stored state", zap.String("key", key), zap.Error(err))
		s.mu.Lock()
		delete(s.blobs, key)
		s.mu.Unlock()
		return nil, nil
	}
	if snap.Template == nil || snap.Template.Front == nil {
		s.logger.Warn("snapshot: clearing stored state with missing template", zap.String("key", key))
		s.mu.Lock()
		delete(s.blobs, key)
		s.mu.Unlock()
		return nil, nil
	}
	if snap.IDType != idType || snap.TemplateType != templateType {
		return nil, nil
	}
	return &snap, nil
}

// Clear deletes any stored snapshot for key.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Corrupt overwrites the stored payload with invalid JSON. Test hook.
func (s *MemoryStore) Corrupt(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		s.blobs[key] = []byte("{not json")
	}
}
