package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrMissingFront is returned when a fetched document has no front side.
// Callers fall back to Empty() and surface the failure to the user.
var ErrMissingFront = errors.New("template: document has no front side")

const (
	defaultFontSize    = "14px"
	defaultTextColor   = "#000000"
	defaultFontWeight  = "normal"
	defaultFontFamily  = "Arial, Helvetica, sans-serif"
	defaultImageSize   = Length("100px")
	defaultBorderWidth = "1px"
	defaultBorderStyle = "solid"
	defaultBorderColor = "#000000"
)

// Normalize decodes a raw template document and brings it into internal
// form: both sides materialised with item lists and filtered page styles,
// every field carrying a unique id and the defaulted style attributes.
func Normalize(raw []byte, logger *zap.Logger) (*Template, error) {
	var t Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("template: decode document: %w", err)
	}
	if err := NormalizeTemplate(&t, logger); err != nil {
		return nil, err
	}
	return &t, nil
}

// NormalizeTemplate normalises an already-decoded template in place.
// Idempotent: a second pass only assigns ids to fields that still lack one.
func NormalizeTemplate(t *Template, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if t == nil || t.Front == nil {
		return ErrMissingFront
	}
	if t.NextID < 1 {
		t.NextID = 1
	}

	normalizeSide(t, t.Front, logger)
	if t.Back != nil {
		normalizeSide(t, t.Back, logger)
	}
	return nil
}

func normalizeSide(t *Template, s *Side, logger *zap.Logger) {
	if s.Items == nil {
		s.Items = []*Field{}
	}
	s.PageStyle = filterPageStyle(s.PageStyle, logger)
	for _, f := range s.Items {
		normalizeField(t, f)
	}
}

func filterPageStyle(style PageStyle, logger *zap.Logger) PageStyle {
	filtered := make(PageStyle, len(style))
	for key, value := range style {
		if !RecognizedPageStyleKey(key) {
			logger.Debug("template: dropping unrecognized page style key",
				zap.String("key", key))
			continue
		}
		filtered[key] = value
	}
	return filtered
}

func normalizeField(t *Template, f *Field) {
	if f.Type != FieldImage {
		f.Type = FieldText
	}
	if f.ID == "" {
		f.ID = fmt.Sprintf("f%d", t.NextID)
		t.NextID++
	}

	f.Left = NormalizeLength(string(f.Left))
	f.Top = NormalizeLength(string(f.Top))
	if f.Left == "" {
		f.Left = "0px"
	}
	if f.Top == "" {
		f.Top = "0px"
	}

	switch f.Type {
	case FieldText:
		if f.FontSize == "" {
			f.FontSize = defaultFontSize
		}
		if f.Color == "" {
			f.Color = defaultTextColor
		}
		if f.FontWeight == "" {
			f.FontWeight = defaultFontWeight
		}
		if f.FontFamily == "" {
			f.FontFamily = defaultFontFamily
		}
	case FieldImage:
		f.Width = NormalizeLength(string(f.Width))
		f.Height = NormalizeLength(string(f.Height))
		if f.Width == "" {
			f.Width = defaultImageSize
		}
		if f.Height == "" {
			f.Height = defaultImageSize
		}
		if f.BorderWidth == "" {
			f.BorderWidth = defaultBorderWidth
		}
		if f.BorderStyle == "" {
			f.BorderStyle = defaultBorderStyle
		}
		if f.BorderColor == "" {
			f.BorderColor = defaultBorderColor
		}
		f.RecomputeBorder()
	}

	if !ValidGroup(f.Group) || (f.Group == GroupPhoto && f.Type != FieldImage) {
		f.Group = deriveGroup(f)
	}
}

// deriveGroup applies the display-group heuristic: images are photos,
// colon-terminated captions are labels, everything else is a value.
func deriveGroup(f *Field) Group {
	if f.Type == FieldImage {
		return GroupPhoto
	}
	if strings.HasSuffix(strings.TrimSpace(f.Text), ":") {
		return GroupLabel
	}
	return GroupValue
}
