// Package render turns a template plus a record into concrete card layouts
// and composes them into printable sheets.
package render

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/records"
)

// Card canvas defaults, applied when the side's page style is silent.
const (
	defaultCardWidth  = "540px"
	defaultCardHeight = "860px"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)
	sanitizer          = bluemonday.StrictPolicy()
)

// Element is one resolved, positioned item on a rendered card. All geometry
// is final; no further substitution happens downstream.
type Element struct {
	Type template.FieldType `json:"type"`

	Left   template.Length `json:"left"`
	Top    template.Length `json:"top"`
	Width  template.Length `json:"width,omitempty"`
	Height template.Length `json:"height,omitempty"`

	FontSize   string `json:"fontSize,omitempty"`
	Color      string `json:"color,omitempty"`
	FontWeight string `json:"fontWeight,omitempty"`
	FontFamily string `json:"fontFamily,omitempty"`
	Border     string `json:"border,omitempty"`
	Radius     string `json:"borderRadius,omitempty"`

	Text string `json:"text,omitempty"`
	Src  string `json:"src,omitempty"`
}

// Card is one rendered face of one record's ID card.
type Card struct {
	Side     template.SideName  `json:"side"`
	Width    template.Length    `json:"width"`
	Height   template.Length    `json:"height"`
	Style    template.PageStyle `json:"style,omitempty"`
	Elements []Element          `json:"elements"`
}

// RenderCard resolves one side of the template against a record: bookmark
// values and position overrides applied, placeholders interpolated, image
// sources vetted. Resolution problems never abort the card; the affected
// slot renders empty and the problem is logged.
func RenderCard(sideName template.SideName, tpl *template.Template, rec records.Record, logger *zap.Logger) Card {
	if logger == nil {
		logger = zap.NewNop()
	}
	card := Card{
		Side:   sideName,
		Width:  defaultCardWidth,
		Height: defaultCardHeight,
	}
	side := tpl.Side(sideName)
	if side == nil {
		return card
	}

	card.Style = side.PageStyle.Clone()
	if w := side.PageStyle["width"]; w != "" {
		card.Width = template.NormalizeLength(w)
	}
	if h := side.PageStyle["height"]; h != "" {
		card.Height = template.NormalizeLength(h)
	}

	card.Elements = make([]Element, 0, len(side.Items))
	for _, f := range side.Items {
		card.Elements = append(card.Elements, renderField(f, rec, logger))
	}
	return card
}

func renderField(f *template.Field, rec records.Record, logger *zap.Logger) Element {
	el := Element{
		Type:       f.Type,
		Left:       f.Left,
		Top:        f.Top,
		Width:      f.Width,
		Height:     f.Height,
		FontSize:   f.FontSize,
		Color:      f.Color,
		FontWeight: f.FontWeight,
		FontFamily: f.FontFamily,
		Border:     f.Border,
		Radius:     f.BorderRadius,
	}

	// A bookmark may reposition its field per record.
	if f.Bookmark != "" {
		if left := rec.Field(f.Bookmark + "_left"); left != "" {
			el.Left = template.NormalizeLength(left)
		}
		if top := rec.Field(f.Bookmark + "_top"); top != "" {
			el.Top = template.NormalizeLength(top)
		}
	}

	switch f.Type {
	case template.FieldImage:
		src := f.Src
		if f.Bookmark != "" {
			if v, ok := rec.Lookup(f.Bookmark); ok && v != "" {
				src = v
			}
		}
		el.Src = vetImageSource(src, logger)
	default:
		text := f.Text
		if f.Bookmark != "" {
			if v, ok := rec.Lookup(f.Bookmark); ok {
				text = v
			}
		}
		el.Text = sanitizer.Sanitize(interpolate(text, rec))
	}
	return el
}

// interpolate replaces {{key}} tokens with record values. Unknown keys
// become empty strings rather than leaking the token into print output.
func interpolate(text string, rec records.Record) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := placeholderPattern.FindStringSubmatch(token)[1]
		return rec.Field(key)
	})
}

// vetImageSource accepts absolute http(s) URLs and data URIs only. Anything
// else renders as an empty slot.
func vetImageSource(src string, logger *zap.Logger) string {
	trimmed := strings.TrimSpace(src)
	switch {
	case trimmed == "":
		return ""
	case strings.HasPrefix(trimmed, "http://"),
		strings.HasPrefix(trimmed, "https://"),
		strings.HasPrefix(trimmed, "data:"):
		return trimmed
	}
	logger.Warn("render: rejecting image source", zap.String("src", trimmed))
	return ""
}

// RenderDeck renders every record against the template, front then back for
// two-sided layouts, preserving record order. The record list is copied up
// front so callers may mutate theirs while the deck is in progress; calling
// again with the same input restarts cleanly.
func RenderDeck(tpl *template.Template, recs []records.Record, logger *zap.Logger) []Card {
	batch := make([]records.Record, len(recs))
	copy(batch, recs)

	sides := tpl.Sides()
	deck := make([]Card, 0, len(batch)*len(sides))
	for _, rec := range batch {
		for _, side := range sides {
			card := RenderCard(side, tpl, rec, logger)
			if side == template.SideFront {
				if err := AppendIdentifier(&card, rec); err != nil {
					if logger != nil {
						logger.Warn("render: identifier generation failed", zap.Error(err))
					}
				}
			}
			deck = append(deck, card)
		}
	}
	return deck
}
