package ui

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campusworks.org/idcard-admin/internal/card/render"
	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/platform/httpx"
	"campusworks.org/idcard-admin/internal/records"
)

// PrintSheets renders the published template against the selected records
// and composes the deck into printable sheets. format=json returns the sheet
// structure; the default is a standalone HTML page.
func (h *Handlers) PrintSheets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idType := strings.TrimSpace(q.Get("idType"))
	if idType == "" {
		idType = defaultIDType
	}
	templateType := strings.TrimSpace(q.Get("templateType"))
	if templateType == "" {
		templateType = defaultTemplateType
	}

	raw, err := h.templates.Fetch(r.Context(), idType, templateType)
	if errors.Is(err, template.ErrTemplateNotFound) {
		writeNotFound(w, r, "template_not_found", "no stored template for this selection")
		return
	}
	if err != nil {
		writeInternal(w, r, h.logger, "print: template fetch failed", err)
		return
	}
	tpl, err := template.Normalize(raw, h.logger)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_template", "stored template document is invalid", http.StatusUnprocessableEntity))
		return
	}

	recs, err := h.records.List(r.Context(), records.Query{
		Type:  idType,
		Class: strings.TrimSpace(q.Get("class")),
	})
	if err != nil {
		writeInternal(w, r, h.logger, "print: record listing failed", err)
		return
	}

	deck := render.RenderDeck(tpl, recs, h.logger)
	sheets := render.Paginate(deck, 0)

	if strings.EqualFold(q.Get("format"), "json") {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"idType":       idType,
			"templateType": templateType,
			"cardCount":    len(deck),
			"sheets":       sheets,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteSheetHTML(w, sheets); err != nil {
		h.logger.Error("print: sheet rendering failed", zap.Error(err))
	}
}
