package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/records"
)

func renderTemplate(t *testing.T) *template.Template {
	t.Helper()
	tpl := &template.Template{
		Front: &template.Side{
			PageStyle: template.PageStyle{"width": "400px", "height": "250px", "backgroundColor": "#ffffff"},
			Items: []*template.Field{
				{Type: template.FieldText, Text: "Name:", Left: "10px", Top: "10px"},
				{Type: template.FieldText, Text: "{{name}} ({{class}})", Left: "80px", Top: "10px"},
				{Type: template.FieldText, Text: "placeholder", Bookmark: "name", Left: "80px", Top: "40px"},
				{Type: template.FieldImage, Src: "https://img.example/p.png", Bookmark: "photo_url"},
			},
		},
		Back: &template.Side{
			Items: []*template.Field{
				{Type: template.FieldText, Text: "Address: {{address}}"},
			},
		},
	}
	require.NoError(t, template.NormalizeTemplate(tpl, nil))
	return tpl
}

func studentRecord() records.Record {
	return records.NewRecord(map[string]string{
		"Type":         records.TypeStudent,
		"Name":         "Asha Rao",
		"Class":        "7B",
		"Admission_No": "2026-0113",
		"Photo_URL":    "https://img.example/asha.png",
	})
}

func TestRenderCardInterpolation(t *testing.T) {
	t.Parallel()

	card := RenderCard(template.SideFront, renderTemplate(t), studentRecord(), nil)
	require.Equal(t, "Asha Rao (7B)", card.Elements[1].Text)
}

func TestRenderCardMissingKeyEmpty(t *testing.T) {
	t.Parallel()

	card := RenderCard(template.SideBack, renderTemplate(t), studentRecord(), nil)
	require.Equal(t, "Address: ", card.Elements[0].Text)
}

func TestRenderCardBookmarkOverridesText(t *testing.T) {
	t.Parallel()

	card := RenderCard(template.SideFront, renderTemplate(t), studentRecord(), nil)
	require.Equal(t, "Asha Rao", card.Elements[2].Text)
}

func TestRenderCardBookmarkKeyNormalized(t *testing.T) {
	t.Parallel()

	tpl := renderTemplate(t)
	tpl.Front.Items[2].Bookmark = " NAME "
	tpl.Front.Items[3].Bookmark = "Photo_URL"

	card := RenderCard(template.SideFront, tpl, studentRecord(), nil)
	require.Equal(t, "Asha Rao", card.Elements[2].Text)
	require.Equal(t, "https://img.example/asha.png", card.Elements[3].Src)
}

func TestRenderCardBookmarkPositionOverride(t *testing.T) {
	t.Parallel()

	rec := studentRecord()
	rec["name_left"] = "120"
	rec["name_top"] = "55px"

	card := RenderCard(template.SideFront, renderTemplate(t), rec, nil)
	require.Equal(t, template.Length("120px"), card.Elements[2].Left)
	require.Equal(t, template.Length("55px"), card.Elements[2].Top)
}

func TestRenderCardSanitizesRecordText(t *testing.T) {
	t.Parallel()

	rec := studentRecord()
	rec["name"] = `<script>alert(1)</script>Asha`

	card := RenderCard(template.SideFront, renderTemplate(t), rec, nil)
	require.Equal(t, "Asha", card.Elements[2].Text)
}

func TestRenderCardImageSourceVetting(t *testing.T) {
	t.Parallel()

	tpl := renderTemplate(t)
	rec := studentRecord()

	rec["photo_url"] = "javascript:alert(1)"
	card := RenderCard(template.SideFront, tpl, rec, nil)
	require.Empty(t, card.Elements[3].Src)

	rec["photo_url"] = "data:image/png;base64,iVBORw0KGgo="
	card = RenderCard(template.SideFront, tpl, rec, nil)
	require.Equal(t, rec["photo_url"], card.Elements[3].Src)
}

func TestRenderCardCanvasDefaults(t *testing.T) {
	t.Parallel()

	tpl := renderTemplate(t)
	front := RenderCard(template.SideFront, tpl, studentRecord(), nil)
	require.Equal(t, template.Length("400px"), front.Width)
	require.Equal(t, template.Length("250px"), front.Height)

	// The back declares no dimensions and falls back to the defaults.
	back := RenderCard(template.SideBack, tpl, studentRecord(), nil)
	require.Equal(t, template.Length(defaultCardWidth), back.Width)
	require.Equal(t, template.Length(defaultCardHeight), back.Height)
}

func TestRenderDeckOrderAndSides(t *testing.T) {
	t.Parallel()

	tpl := renderTemplate(t)
	recs := []records.Record{
		studentRecord(),
		records.NewRecord(map[string]string{"type": records.TypeStudent, "name": "Benoy K", "admission_no": "2026-0114"}),
	}

	deck := RenderDeck(tpl, recs, nil)
	require.Len(t, deck, 4)
	require.Equal(t, template.SideFront, deck[0].Side)
	require.Equal(t, template.SideBack, deck[1].Side)
	require.Equal(t, "Benoy K", deck[2].Elements[2].Text)
}

func TestRenderDeckSnapshotsRecords(t *testing.T) {
	t.Parallel()

	tpl := renderTemplate(t)
	recs := []records.Record{studentRecord(), studentRecord()}

	deck := RenderDeck(tpl, recs, nil)
	require.Len(t, deck, 4)

	// Re-running with the same inputs restarts from scratch.
	again := RenderDeck(tpl, recs, nil)
	require.Len(t, again, len(deck))
}
