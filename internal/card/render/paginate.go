package render

// Print sheet geometry: ten card slots laid out five across, two down.
const (
	SheetColumns = 5
	SheetRows    = 2

	defaultPerPage = SheetColumns * SheetRows
)

// Sheet is one printable page of cards.
type Sheet struct {
	Number int    `json:"number"`
	Cards  []Card `json:"cards"`
}

// Paginate splits the deck into sheets of perPage cards, preserving order.
// perPage values below one fall back to the full 5x2 grid. The final sheet
// may be partial.
func Paginate(cards []Card, perPage int) []Sheet {
	if perPage < 1 {
		perPage = defaultPerPage
	}
	sheets := make([]Sheet, 0, (len(cards)+perPage-1)/perPage)
	for start := 0; start < len(cards); start += perPage {
		end := start + perPage
		if end > len(cards) {
			end = len(cards)
		}
		sheets = append(sheets, Sheet{
			Number: len(sheets) + 1,
			Cards:  cards[start:end],
		})
	}
	return sheets
}
