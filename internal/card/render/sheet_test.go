package render

import (
	"bytes"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"campusworks.org/idcard-admin/internal/records"
)

func TestWriteSheetHTML(t *testing.T) {
	t.Parallel()

	tpl := renderTemplate(t)
	recs := make([]records.Record, 6)
	for i := range recs {
		recs[i] = studentRecord()
	}
	sheets := Paginate(RenderDeck(tpl, recs, nil), 10)

	var buf bytes.Buffer
	require.NoError(t, WriteSheetHTML(&buf, sheets))

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	// 6 records x 2 sides = 12 cards over two sheets of ten.
	require.Equal(t, 2, doc.Find("div.sheet").Length())
	require.Equal(t, 12, doc.Find("div.card").Length())
	require.Equal(t, 10, doc.Find(`div.sheet[data-sheet="1"] div.card`).Length())

	first := doc.Find("div.card").First()
	require.Equal(t, "front", first.AttrOr("data-side", ""))
	style, _ := first.Attr("style")
	require.Contains(t, style, "width: 400px")
	require.Contains(t, style, "background-color: #ffffff")

	// Interpolated text lands in positioned spans; the QR identifier is an
	// embedded PNG image.
	require.Contains(t, first.Text(), "Asha Rao (7B)")
	src, ok := first.Find("img").Last().Attr("src")
	require.True(t, ok)
	require.Contains(t, src, "data:image/png;base64,")
}

func TestWriteSheetHTMLSkipsEmptyImageSlots(t *testing.T) {
	t.Parallel()

	tpl := renderTemplate(t)
	rec := studentRecord()
	rec["photo_url"] = "ftp://nope/photo.png"

	sheets := Paginate(RenderDeck(tpl, []records.Record{rec}, nil), 10)

	var buf bytes.Buffer
	require.NoError(t, WriteSheetHTML(&buf, sheets))

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	// Only the identifier QR survives; the rejected photo renders nothing.
	front := doc.Find(`div.card[data-side="front"]`)
	require.Equal(t, 1, front.Find("img").Length())
}

func TestWriteSheetHTMLEmptyDeck(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSheetHTML(&buf, nil))

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	require.Zero(t, doc.Find("div.sheet").Length())
}
