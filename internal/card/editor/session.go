// Package editor owns the mutable working state of one card template edit:
// the normalised template, per-side selection sets, display grouping, master
// color propagation, and pointer-drag geometry. All state lives on an
// explicit Session passed to each operation; there are no package globals.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/card/snapshot"
	"campusworks.org/idcard-admin/internal/card/template"
)

var (
	// ErrFieldNotFound is returned when an operation names an unknown field id.
	ErrFieldNotFound = errors.New("editor: field not found")
	// ErrInvalidGroup is returned for group names outside label/value/photo.
	ErrInvalidGroup = errors.New("editor: invalid group")
	// ErrDragActive is returned when a drag begins while another is in flight.
	ErrDragActive = errors.New("editor: drag already in progress")
	// ErrNoDrag is returned when drag updates arrive without an active drag.
	ErrNoDrag = errors.New("editor: no drag in progress")
)

// Key identifies which template an editor session is working on. Snapshots
// saved under one key are never restored under another.
type Key struct {
	IDType       string
	TemplateType string
}

// StorageKey is the snapshot-store document key for this selection.
func (k Key) StorageKey() string {
	return k.IDType + ":" + k.TemplateType
}

// Point is a pointer position in card-canvas coordinates.
type Point struct {
	X float64
	Y float64
}

type dragState struct {
	fieldID     string
	side        template.SideName
	start       Point
	originLeft  float64
	originTop   float64
	currentLeft float64
	currentTop  float64
}

// Session is the explicit editing state for one (idType, templateType)
// selection. Every mutating operation persists a snapshot afterwards so a
// reload restores the in-progress edit.
type Session struct {
	key       Key
	tpl       *template.Template
	selected  map[template.SideName]map[string]struct{}
	collapsed map[string]bool
	masters   map[template.Group]string
	drag      *dragState
	store     snapshot.Store
	logger    *zap.Logger
}

// New builds a session around a freshly normalised template. All fields
// start selected (visible) on their side.
func New(key Key, tpl *template.Template, store snapshot.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		key:       key,
		tpl:       tpl,
		selected:  map[template.SideName]map[string]struct{}{},
		collapsed: map[string]bool{},
		masters:   map[template.Group]string{},
		store:     store,
		logger:    logger,
	}
	for _, name := range tpl.Sides() {
		set := make(map[string]struct{})
		for _, f := range tpl.Side(name).Items {
			set[f.ID] = struct{}{}
		}
		s.selected[name] = set
	}
	return s
}

// Restore rebuilds a session from a previously saved snapshot. Selection
// entries referring to ids no longer present are pruned.
func Restore(key Key, snap *snapshot.Snapshot, store snapshot.Store, logger *zap.Logger) *Session {
	s := New(key, snap.Template, store, logger)
	for _, name := range snap.Template.Sides() {
		set := make(map[string]struct{})
		side := snap.Template.Side(name)
		for _, id := range snap.Selection[name] {
			if side.FieldByID(id) != nil {
				set[id] = struct{}{}
			}
		}
		s.selected[name] = set
	}
	if snap.Collapsed != nil {
		s.collapsed = snap.Collapsed
	}
	if snap.Masters != nil {
		s.masters = snap.Masters
	}
	return s
}

// Template exposes the session's working template.
func (s *Session) Template() *template.Template { return s.tpl }

// Key returns the selection the session is editing under.
func (s *Session) Key() Key { return s.key }

// Collapsed reports the UI collapse flag for a field.
func (s *Session) Collapsed(fieldID string) bool { return s.collapsed[fieldID] }

// SetCollapsed records the collapse/expand UI flag for a field.
func (s *Session) SetCollapsed(ctx context.Context, fieldID string, collapsed bool) error {
	if collapsed {
		s.collapsed[fieldID] = true
	} else {
		delete(s.collapsed, fieldID)
	}
	return s.persist(ctx)
}

// Selection returns the selected field ids for a side, in item order.
func (s *Session) Selection(side template.SideName) []string {
	set := s.selected[side]
	sd := s.tpl.Side(side)
	if sd == nil {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, f := range sd.Items {
		if _, ok := set[f.ID]; ok {
			out = append(out, f.ID)
		}
	}
	return out
}

// SelectionSets exposes the raw per-side selection sets for the serializer.
func (s *Session) SelectionSets() map[template.SideName]map[string]struct{} {
	return s.selected
}

// IsSelected reports whether the field is included on its side.
func (s *Session) IsSelected(side template.SideName, fieldID string) bool {
	_, ok := s.selected[side][fieldID]
	return ok
}

// Select includes the field on the given side.
func (s *Session) Select(ctx context.Context, side template.SideName, fieldID string) error {
	sd := s.tpl.Side(side)
	if sd == nil || sd.FieldByID(fieldID) == nil {
		return fmt.Errorf("%w: %s on %s", ErrFieldNotFound, fieldID, side)
	}
	s.ensureSet(side)[fieldID] = struct{}{}
	return s.persist(ctx)
}

// Deselect excludes the field from rendering and export on its side.
func (s *Session) Deselect(ctx context.Context, side template.SideName, fieldID string) error {
	delete(s.selected[side], fieldID)
	return s.persist(ctx)
}

// SelectAll includes every field on the side.
func (s *Session) SelectAll(ctx context.Context, side template.SideName) error {
	sd := s.tpl.Side(side)
	if sd == nil {
		return nil
	}
	set := s.ensureSet(side)
	for _, f := range sd.Items {
		set[f.ID] = struct{}{}
	}
	return s.persist(ctx)
}

// ClearAll empties the side's selection set.
func (s *Session) ClearAll(ctx context.Context, side template.SideName) error {
	s.selected[side] = make(map[string]struct{})
	return s.persist(ctx)
}

// SetGroup reassigns a field's display group. Photo membership requires an
// image field. The field stays on its current side.
func (s *Session) SetGroup(ctx context.Context, fieldID string, group template.Group) error {
	if !template.ValidGroup(group) {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	_, f := s.findField(fieldID)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	if group == template.GroupPhoto && f.Type != template.FieldImage {
		return fmt.Errorf("%w: photo group requires an image field", ErrInvalidGroup)
	}
	f.Group = group
	return s.persist(ctx)
}

// SetLinked toggles whether a field follows its group's master color.
// Re-linking snaps the field to the current master value rather than
// waiting for the next master edit.
func (s *Session) SetLinked(ctx context.Context, fieldID string, linked bool) error {
	_, f := s.findField(fieldID)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	f.IsLinked = linked
	if linked {
		if master, ok := s.masters[f.Group]; ok {
			if f.Group == template.GroupPhoto {
				f.BorderColor = master
				f.RecomputeBorder()
			} else {
				f.Color = master
			}
		}
	}
	return s.persist(ctx)
}

// MasterColor returns the last-set master color for the group, if any.
func (s *Session) MasterColor(group template.Group) (string, bool) {
	v, ok := s.masters[group]
	return v, ok
}

// SetMasterColor pushes a group-wide color to every linked member of the
// group across both sides: text color for label/value, border color (plus
// the recomputed border composite) for photo. Idempotent.
func (s *Session) SetMasterColor(ctx context.Context, group template.Group, value string) error {
	if !template.ValidGroup(group) {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	s.masters[group] = value
	for _, name := range s.tpl.Sides() {
		for _, f := range s.tpl.Side(name).Items {
			if f.Group != group || !f.IsLinked {
				continue
			}
			if group == template.GroupPhoto {
				f.BorderColor = value
				f.RecomputeBorder()
			} else {
				f.Color = value
			}
		}
	}
	return s.persist(ctx)
}

// MoveToOppositeSide transfers a field from one side to the other, carrying
// its selection state along. No-op when the field is not on the named side.
func (s *Session) MoveToOppositeSide(ctx context.Context, side template.SideName, fieldID string) error {
	src := s.tpl.Side(side)
	if src == nil {
		return nil
	}
	f, ok := src.RemoveField(fieldID)
	if !ok {
		return nil
	}

	dstName := side.Opposite()
	dst := s.tpl.Side(dstName)
	if dst == nil {
		dst = &template.Side{PageStyle: template.PageStyle{}, Items: []*template.Field{}}
		if dstName == template.SideBack {
			s.tpl.Back = dst
		} else {
			s.tpl.Front = dst
		}
	}
	dst.Items = append(dst.Items, f)

	wasSelected := s.IsSelected(side, fieldID)
	delete(s.selected[side], fieldID)
	if wasSelected {
		s.ensureSet(dstName)[fieldID] = struct{}{}
	}
	return s.persist(ctx)
}

// FieldPatch carries optional per-field property edits. Nil entries leave
// the property untouched. Color edits through a patch are the explicit
// non-master path: they do not clear IsLinked, the field simply diverges
// until the next master sync.
type FieldPatch struct {
	Text         *string
	Src          *string
	Bookmark     *string
	FontSize     *string
	Color        *string
	FontWeight   *string
	FontFamily   *string
	BorderWidth  *string
	BorderStyle  *string
	BorderColor  *string
	BorderRadius *string
	Width        *string
	Height       *string
}

// UpdateField applies a property patch to one field.
func (s *Session) UpdateField(ctx context.Context, fieldID string, patch FieldPatch) error {
	_, f := s.findField(fieldID)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}

	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&f.Text, patch.Text)
	assign(&f.Src, patch.Src)
	assign(&f.Bookmark, patch.Bookmark)
	assign(&f.FontSize, patch.FontSize)
	assign(&f.Color, patch.Color)
	assign(&f.FontWeight, patch.FontWeight)
	assign(&f.FontFamily, patch.FontFamily)
	assign(&f.BorderWidth, patch.BorderWidth)
	assign(&f.BorderStyle, patch.BorderStyle)
	assign(&f.BorderColor, patch.BorderColor)
	assign(&f.BorderRadius, patch.BorderRadius)
	if patch.Width != nil {
		f.Width = template.NormalizeLength(*patch.Width)
	}
	if patch.Height != nil {
		f.Height = template.NormalizeLength(*patch.Height)
	}
	if patch.BorderWidth != nil || patch.BorderStyle != nil || patch.BorderColor != nil {
		f.RecomputeBorder()
	}
	return s.persist(ctx)
}

// BeginDrag captures the pointer for a field. Only one drag may be active
// at a time.
func (s *Session) BeginDrag(fieldID string, start Point) error {
	if s.drag != nil {
		return ErrDragActive
	}
	side, f := s.findField(fieldID)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	left := f.Left.Pixels()
	top := f.Top.Pixels()
	s.drag = &dragState{
		fieldID:     fieldID,
		side:        side,
		start:       start,
		originLeft:  left,
		originTop:   top,
		currentLeft: left,
		currentTop:  top,
	}
	return nil
}

// UpdateDrag recomputes the pending position from the current pointer,
// flooring left/top at zero. The template is not touched until EndDrag.
func (s *Session) UpdateDrag(current Point) error {
	if s.drag == nil {
		return ErrNoDrag
	}
	left := s.drag.originLeft + (current.X - s.drag.start.X)
	top := s.drag.originTop + (current.Y - s.drag.start.Y)
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	s.drag.currentLeft = left
	s.drag.currentTop = top
	return nil
}

// DragPosition exposes the pending drag position for preview rendering.
func (s *Session) DragPosition() (fieldID string, left, top float64, active bool) {
	if s.drag == nil {
		return "", 0, 0, false
	}
	return s.drag.fieldID, s.drag.currentLeft, s.drag.currentTop, true
}

// EndDrag commits the pending position into the template and releases the
// pointer capture.
func (s *Session) EndDrag(ctx context.Context) error {
	if s.drag == nil {
		return ErrNoDrag
	}
	d := s.drag
	s.drag = nil
	if f := s.tpl.Side(d.side).FieldByID(d.fieldID); f != nil {
		f.Left = template.Px(d.currentLeft)
		f.Top = template.Px(d.currentTop)
	}
	return s.persist(ctx)
}

// SetPosition places a field directly, flooring coordinates at zero. Used
// by clients that resolve the drag on their end and submit the result.
func (s *Session) SetPosition(ctx context.Context, fieldID string, left, top float64) error {
	_, f := s.findField(fieldID)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	f.Left = template.Px(left)
	f.Top = template.Px(top)
	return s.persist(ctx)
}

// Snapshot assembles the persistable working state.
func (s *Session) Snapshot() snapshot.Snapshot {
	selection := make(map[template.SideName][]string, len(s.selected))
	for _, name := range s.tpl.Sides() {
		selection[name] = s.Selection(name)
	}
	return snapshot.Snapshot{
		Template:     s.tpl,
		Selection:    selection,
		Collapsed:    s.collapsed,
		Masters:      s.masters,
		IDType:       s.key.IDType,
		TemplateType: s.key.TemplateType,
		SavedAt:      time.Now().UTC(),
	}
}

// Reset clears the persisted snapshot for this session's key.
func (s *Session) Reset(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Clear(ctx, s.key.StorageKey())
}

func (s *Session) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, s.key.StorageKey(), s.Snapshot()); err != nil {
		s.logger.Warn("editor: snapshot save failed",
			zap.String("key", s.key.StorageKey()), zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) ensureSet(side template.SideName) map[string]struct{} {
	set, ok := s.selected[side]
	if !ok {
		set = make(map[string]struct{})
		s.selected[side] = set
	}
	return set
}

func (s *Session) findField(fieldID string) (template.SideName, *template.Field) {
	for _, name := range s.tpl.Sides() {
		if f := s.tpl.Side(name).FieldByID(fieldID); f != nil {
			return name, f
		}
	}
	return "", nil
}
