package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"campusworks.org/idcard-admin/internal/card/snapshot"
	"campusworks.org/idcard-admin/internal/card/template"
)

const storedDoc = `{"front": {"items": [{"type": "text", "text": "Name:"}, {"type": "text", "text": "{{name}}"}]}}`

func newService(t *testing.T) (*Service, *snapshot.MemoryStore) {
	t.Helper()
	source := template.NewStaticSource(map[string][]byte{
		"student:standard": []byte(storedDoc),
		"staff:standard":   []byte(`{"back": {"items": []}}`),
	})
	store := snapshot.NewMemoryStore(nil)
	return NewService(source, store, nil), store
}

func TestOpenFetchesAndNormalizes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.Open(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	require.False(t, res.Resumed)
	require.NoError(t, res.LoadError)
	require.Equal(t, 2, res.Session.Template().FieldCount())
	require.Equal(t, "f1", res.Session.Template().Front.Items[0].ID)
}

func TestOpenResumesSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.Open(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	id := res.Session.Template().Front.Items[0].ID
	require.NoError(t, res.Session.Deselect(ctx, template.SideFront, id))

	resumed, err := svc.Open(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	require.True(t, resumed.Resumed)
	require.False(t, resumed.Session.IsSelected(template.SideFront, id))
}

func TestOpenSurvivesSnapshotMissingTemplate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t)

	// A snapshot document written without its template, as a partial or
	// interrupted save would leave behind.
	require.NoError(t, store.Save(ctx, "staff-uid-1", snapshot.Snapshot{
		IDType:       "student",
		TemplateType: "standard",
	}))

	res, err := svc.Open(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	require.False(t, res.Resumed)
	require.NoError(t, res.LoadError)
	require.Equal(t, 2, res.Session.Template().FieldCount())
}

func TestOpenSelectionChangeIgnoresSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.Open(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	id := res.Session.Template().Front.Items[0].ID
	require.NoError(t, res.Session.Deselect(ctx, template.SideFront, id))

	// Switching template type bypasses the saved state of the old selection.
	other, err := svc.Open(ctx, "staff-uid-1", "student", "compact")
	require.NoError(t, err)
	require.False(t, other.Resumed)
}

func TestOpenMissingFrontFallsBackEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.Open(ctx, "staff-uid-1", "staff", "standard")
	require.NoError(t, err)
	require.ErrorIs(t, res.LoadError, template.ErrMissingFront)
	require.NotNil(t, res.Session.Template().Front)
	require.Zero(t, res.Session.Template().FieldCount())
}

func TestOpenUnknownSelectionFallsBackEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.Open(ctx, "staff-uid-1", "student", "missing")
	require.NoError(t, err)
	require.ErrorIs(t, res.LoadError, template.ErrTemplateNotFound)
	require.Zero(t, res.Session.Template().FieldCount())
}

func TestPublishStoresAndClearsSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t)

	res, err := svc.Open(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	require.NoError(t, res.Session.SetMasterColor(ctx, template.GroupLabel, "#333333"))

	require.NoError(t, svc.Publish(ctx, "staff-uid-1", res.Session, []byte(`{"front": {"items": []}}`)))

	snap, err := store.Load(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	require.Nil(t, snap)

	// The published document is what the next open fetches.
	reopened, err := svc.Open(ctx, "staff-uid-1", "student", "standard")
	require.NoError(t, err)
	require.Zero(t, reopened.Session.Template().FieldCount())
}
