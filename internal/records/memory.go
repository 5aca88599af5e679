package records

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-process Repository used in tests and local
// development.
type MemoryRepository struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemoryRepository constructs an empty repository, optionally seeded.
func NewMemoryRepository(seed map[string]Record) *MemoryRepository {
	recs := make(map[string]Record, len(seed))
	for id, rec := range seed {
		recs[id] = rec.Clone()
	}
	return &MemoryRepository{recs: recs}
}

// List returns matching records sorted by id for deterministic output.
func (r *MemoryRepository) List(_ context.Context, q Query) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.recs))
	for id := range r.recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec := r.recs[id]
		if q.Type != "" && rec.Type() != q.Type {
			continue
		}
		if q.Class != "" && rec.Field(KeyClass) != q.Class {
			continue
		}
		out = append(out, rec.Clone())
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Get returns a copy of the record for id.
func (r *MemoryRepository) Get(_ context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Put validates and stores the record under id.
func (r *MemoryRepository) Put(_ context.Context, id string, rec Record) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[id] = rec.Clone()
	return nil
}

// Delete removes the record; deleting an absent id is not an error.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, id)
	return nil
}
