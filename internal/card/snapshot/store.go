// Package snapshot persists in-progress editor state keyed by the current
// template selection, so a reload restores the working edit instead of the
// last-fetched document.
package snapshot

import (
	"context"
	"time"

	"campusworks.org/idcard-admin/internal/card/template"
)

// Snapshot bundles the full working state of one editor session, including
// bookkeeping (field ids, collapse flags) that never reaches an export.
type Snapshot struct {
	Template  *template.Template                   `json:"template" firestore:"template"`
	Selection map[template.SideName][]string       `json:"selection" firestore:"selection"`
	Collapsed map[string]bool                      `json:"collapsed,omitempty" firestore:"collapsed,omitempty"`
	Masters   map[template.Group]string            `json:"masters,omitempty" firestore:"masters,omitempty"`

	// IDType and TemplateType record the selection the snapshot was saved
	// under. A load only succeeds when both match the caller's current
	// selection.
	IDType       string    `json:"idType" firestore:"idType"`
	TemplateType string    `json:"templateType" firestore:"templateType"`
	SavedAt      time.Time `json:"savedAt" firestore:"savedAt"`
}

// Store is the keyed snapshot persistence contract. Key identifies the
// editing surface (one per staff user in practice).
//
// Load returns nil, nil when no snapshot exists, when the stored
// (idType, templateType) pair does not match, or when the stored payload is
// corrupt. Corruption is cleared silently so the caller falls through to a
// fresh fetch.
type Store interface {
	Save(ctx context.Context, key string, snap Snapshot) error
	Load(ctx context.Context, key, idType, templateType string) (*Snapshot, error)
	Clear(ctx context.Context, key string) error
}
