package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SideName identifies one face of a card.
type SideName string

const (
	// SideFront is the mandatory face of every template.
	SideFront SideName = "front"
	// SideBack is the optional second face.
	SideBack SideName = "back"
)

// Opposite returns the other card face.
func (s SideName) Opposite() SideName {
	if s == SideBack {
		return SideFront
	}
	return SideBack
}

// FieldType distinguishes text fields from image fields.
type FieldType string

const (
	// FieldText renders a literal or placeholder string.
	FieldText FieldType = "text"
	// FieldImage renders a picture from a URL or data URI.
	FieldImage FieldType = "image"
)

// Group classifies a field for bulk style edits.
type Group string

const (
	// GroupLabel marks caption fields ("Name:", "Class:").
	GroupLabel Group = "label"
	// GroupValue marks record-substituted fields.
	GroupValue Group = "value"
	// GroupPhoto marks image fields.
	GroupPhoto Group = "photo"
)

// ValidGroup reports whether g is one of the three display groups.
func ValidGroup(g Group) bool {
	switch g {
	case GroupLabel, GroupValue, GroupPhoto:
		return true
	}
	return false
}

// Length is a CSS pixel length. Raw documents may carry bare numbers or
// numeric strings; decoding normalises all of them to "<n>px".
type Length string

// UnmarshalJSON accepts numbers, numeric strings, and already-suffixed pixel
// strings.
func (l *Length) UnmarshalJSON(data []byte) error {
	var asNumber float64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*l = Length(formatPx(asNumber))
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("template: invalid length %s", string(data))
	}
	*l = NormalizeLength(asString)
	return nil
}

// NormalizeLength coerces a raw value into pixel form. Empty input stays
// empty so defaults can be applied later.
func NormalizeLength(raw string) Length {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Length(formatPx(n))
	}
	return Length(trimmed)
}

// Px builds a Length from a numeric pixel value.
func Px(v float64) Length {
	return Length(formatPx(v))
}

// Pixels parses the numeric component of the length, defaulting to zero.
func (l Length) Pixels() float64 {
	trimmed := strings.TrimSuffix(strings.TrimSpace(string(l)), "px")
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatPx(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10) + "px"
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// Field is one positioned element on a card side.
type Field struct {
	// ID is assigned at normalization time and stripped before export.
	ID string `json:"id,omitempty" firestore:"id,omitempty"`

	Type FieldType `json:"type" firestore:"type"`

	Left   Length `json:"left,omitempty" firestore:"left,omitempty"`
	Top    Length `json:"top,omitempty" firestore:"top,omitempty"`
	Width  Length `json:"width,omitempty" firestore:"width,omitempty"`
	Height Length `json:"height,omitempty" firestore:"height,omitempty"`

	FontSize   string `json:"fontSize,omitempty" firestore:"fontSize,omitempty"`
	Color      string `json:"color,omitempty" firestore:"color,omitempty"`
	FontWeight string `json:"fontWeight,omitempty" firestore:"fontWeight,omitempty"`
	FontFamily string `json:"fontFamily,omitempty" firestore:"fontFamily,omitempty"`

	BorderWidth  string `json:"borderWidth,omitempty" firestore:"borderWidth,omitempty"`
	BorderStyle  string `json:"borderStyle,omitempty" firestore:"borderStyle,omitempty"`
	BorderColor  string `json:"borderColor,omitempty" firestore:"borderColor,omitempty"`
	BorderRadius string `json:"borderRadius,omitempty" firestore:"borderRadius,omitempty"`
	// Border is the derived composite "<width> <style> <color>" kept in sync
	// with the three components above.
	Border string `json:"border,omitempty" firestore:"border,omitempty"`

	// Text holds a literal string or a placeholder template with {{name}}
	// tokens. Image fields keep their source in Src.
	Text string `json:"text,omitempty" firestore:"text,omitempty"`
	Src  string `json:"src,omitempty" firestore:"src,omitempty"`

	// Bookmark keys a per-record override looked up at render time.
	Bookmark string `json:"bookmark,omitempty" firestore:"bookmark,omitempty"`

	Group    Group `json:"group,omitempty" firestore:"group,omitempty"`
	IsLinked bool  `json:"isLinked,omitempty" firestore:"isLinked,omitempty"`
}

// Clone returns an independent copy of the field.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	clone := *f
	return &clone
}

// RecomputeBorder refreshes the derived composite border string from the
// current width/style/color components.
func (f *Field) RecomputeBorder() {
	if f.Type != FieldImage {
		return
	}
	f.Border = strings.TrimSpace(f.BorderWidth + " " + f.BorderStyle + " " + f.BorderColor)
}

// PageStyle is the recognized background/sizing attribute set for a card
// side. Unrecognized keys from raw documents are dropped during
// normalization rather than carried verbatim.
type PageStyle map[string]string

var recognizedPageStyleKeys = map[string]struct{}{
	"width":              {},
	"height":             {},
	"backgroundColor":    {},
	"backgroundImage":    {},
	"backgroundSize":     {},
	"backgroundPosition": {},
	"backgroundRepeat":   {},
	"borderRadius":       {},
}

// RecognizedPageStyleKey reports whether the key belongs to the closed
// attribute set.
func RecognizedPageStyleKey(key string) bool {
	_, ok := recognizedPageStyleKeys[key]
	return ok
}

// Clone returns an independent copy of the style map.
func (p PageStyle) Clone() PageStyle {
	if p == nil {
		return nil
	}
	out := make(PageStyle, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Side holds the page style and ordered field sequence for one card face.
type Side struct {
	PageStyle PageStyle `json:"pageStyle,omitempty" firestore:"pageStyle,omitempty"`
	Items     []*Field  `json:"items" firestore:"items"`
}

// Clone returns a deep copy of the side.
func (s *Side) Clone() *Side {
	if s == nil {
		return nil
	}
	clone := &Side{
		PageStyle: s.PageStyle.Clone(),
		Items:     make([]*Field, 0, len(s.Items)),
	}
	for _, f := range s.Items {
		clone.Items = append(clone.Items, f.Clone())
	}
	return clone
}

// FieldByID returns the field with the given id, or nil.
func (s *Side) FieldByID(id string) *Field {
	if s == nil {
		return nil
	}
	for _, f := range s.Items {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// RemoveField deletes the field with the given id preserving order and
// reports whether it was present.
func (s *Side) RemoveField(id string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	for i, f := range s.Items {
		if f.ID == id {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			return f, true
		}
	}
	return nil, false
}

// Template is the root card layout document. Front is required; a template
// is two-sided iff Back is present.
type Template struct {
	Front *Side `json:"front" firestore:"front"`
	Back  *Side `json:"back,omitempty" firestore:"back,omitempty"`

	// NextID is the session-scoped id counter. Persisted in snapshots so ids
	// are never reused within a load cycle; stripped on export.
	NextID int `json:"nextId,omitempty" firestore:"nextId,omitempty"`
}

// Empty returns a usable blank template, the fallback when a fetch fails.
func Empty() *Template {
	return &Template{
		Front:  &Side{PageStyle: PageStyle{}, Items: []*Field{}},
		NextID: 1,
	}
}

// TwoSided reports whether the template carries a back face.
func (t *Template) TwoSided() bool {
	return t != nil && t.Back != nil
}

// Side returns the named side, or nil when absent.
func (t *Template) Side(name SideName) *Side {
	if t == nil {
		return nil
	}
	switch name {
	case SideFront:
		return t.Front
	case SideBack:
		return t.Back
	}
	return nil
}

// Sides lists the present sides in front-then-back order.
func (t *Template) Sides() []SideName {
	names := []SideName{SideFront}
	if t.TwoSided() {
		names = append(names, SideBack)
	}
	return names
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	return &Template{
		Front:  t.Front.Clone(),
		Back:   t.Back.Clone(),
		NextID: t.NextID,
	}
}

// FieldCount returns the combined number of fields across both sides.
func (t *Template) FieldCount() int {
	count := 0
	for _, name := range t.Sides() {
		count += len(t.Side(name).Items)
	}
	return count
}
