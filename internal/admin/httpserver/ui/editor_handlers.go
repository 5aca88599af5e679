package ui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	custommw "campusworks.org/idcard-admin/internal/admin/httpserver/middleware"
	"campusworks.org/idcard-admin/internal/card/editor"
	"campusworks.org/idcard-admin/internal/card/export"
	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/platform/httpx"
)

const (
	defaultIDType       = "student"
	defaultTemplateType = "standard"
)

// editorState is the JSON view of an open editing session.
type editorState struct {
	IDType       string                         `json:"idType"`
	TemplateType string                         `json:"templateType"`
	Resumed      bool                           `json:"resumed"`
	LoadError    string                         `json:"loadError,omitempty"`
	Template     *template.Template             `json:"template"`
	Selection    map[template.SideName][]string `json:"selection"`
	Collapsed    map[string]bool                `json:"collapsed,omitempty"`
	Masters      map[template.Group]string      `json:"masters,omitempty"`
}

func (h *Handlers) openEditor(w http.ResponseWriter, r *http.Request) (editor.OpenResult, string, string, string, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return editor.OpenResult{}, "", "", "", false
	}

	idType := strings.TrimSpace(r.URL.Query().Get("idType"))
	templateType := strings.TrimSpace(r.URL.Query().Get("templateType"))
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		savedID, savedTpl := sess.Selection()
		if idType == "" {
			idType = savedID
		}
		if templateType == "" {
			templateType = savedTpl
		}
	}
	if idType == "" {
		idType = defaultIDType
	}
	if templateType == "" {
		templateType = defaultTemplateType
	}

	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.SetSelection(idType, templateType)
	}

	storageKey := fmt.Sprintf("%s|%s:%s", user.UID, idType, templateType)
	res, err := h.editor.Open(r.Context(), storageKey, idType, templateType)
	if err != nil {
		writeInternal(w, r, h.logger, "editor: open failed", err)
		return editor.OpenResult{}, "", "", "", false
	}
	return res, storageKey, idType, templateType, true
}

func (h *Handlers) stateFor(res editor.OpenResult, idType, templateType string) editorState {
	sess := res.Session
	tpl := sess.Template()

	selection := make(map[template.SideName][]string)
	collapsed := make(map[string]bool)
	masters := make(map[template.Group]string)
	for _, name := range tpl.Sides() {
		selection[name] = sess.Selection(name)
		for _, f := range tpl.Side(name).Items {
			if sess.Collapsed(f.ID) {
				collapsed[f.ID] = true
			}
		}
	}
	for _, g := range []template.Group{template.GroupLabel, template.GroupValue, template.GroupPhoto} {
		if v, ok := sess.MasterColor(g); ok {
			masters[g] = v
		}
	}

	return editorState{
		IDType:       idType,
		TemplateType: templateType,
		Resumed:      res.Resumed,
		LoadError:    errorText(res.LoadError),
		Template:     tpl,
		Selection:    selection,
		Collapsed:    collapsed,
		Masters:      masters,
	}
}

// EditorState returns the current working state for the requested selection.
func (h *Handlers) EditorState(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

type selectionRequest struct {
	Action  string `json:"action"`
	Side    string `json:"side,omitempty"`
	FieldID string `json:"fieldId,omitempty"`
}

// EditorSelection mutates the per-side selection set.
func (h *Handlers) EditorSelection(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	side := template.SideName(req.Side)
	var err error
	switch req.Action {
	case "select":
		err = res.Session.Select(r.Context(), side, req.FieldID)
	case "deselect":
		err = res.Session.Deselect(r.Context(), side, req.FieldID)
	case "selectAll":
		err = res.Session.SelectAll(r.Context(), side)
	case "clearAll":
		err = res.Session.ClearAll(r.Context(), side)
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_action", "unknown selection action", http.StatusBadRequest))
		return
	}
	if h.writeEditorError(w, r, err) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

type fieldPatchRequest struct {
	Text         *string `json:"text,omitempty"`
	Src          *string `json:"src,omitempty"`
	Bookmark     *string `json:"bookmark,omitempty"`
	FontSize     *string `json:"fontSize,omitempty"`
	Color        *string `json:"color,omitempty"`
	FontWeight   *string `json:"fontWeight,omitempty"`
	FontFamily   *string `json:"fontFamily,omitempty"`
	BorderWidth  *string `json:"borderWidth,omitempty"`
	BorderStyle  *string `json:"borderStyle,omitempty"`
	BorderColor  *string `json:"borderColor,omitempty"`
	BorderRadius *string `json:"borderRadius,omitempty"`
	Width        *string `json:"width,omitempty"`
	Height       *string `json:"height,omitempty"`
}

// EditorFieldPatch applies property edits to one field.
func (h *Handlers) EditorFieldPatch(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req fieldPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := res.Session.UpdateField(r.Context(), chi.URLParam(r, "fieldID"), editor.FieldPatch{
		Text:         req.Text,
		Src:          req.Src,
		Bookmark:     req.Bookmark,
		FontSize:     req.FontSize,
		Color:        req.Color,
		FontWeight:   req.FontWeight,
		FontFamily:   req.FontFamily,
		BorderWidth:  req.BorderWidth,
		BorderStyle:  req.BorderStyle,
		BorderColor:  req.BorderColor,
		BorderRadius: req.BorderRadius,
		Width:        req.Width,
		Height:       req.Height,
	})
	if h.writeEditorError(w, r, err) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorFieldGroup reassigns a field's display group.
func (h *Handlers) EditorFieldGroup(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Group string `json:"group"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := res.Session.SetGroup(r.Context(), chi.URLParam(r, "fieldID"), template.Group(req.Group))
	if h.writeEditorError(w, r, err) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorFieldLink toggles whether a field follows its group's master color.
func (h *Handlers) EditorFieldLink(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Linked bool `json:"linked"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := res.Session.SetLinked(r.Context(), chi.URLParam(r, "fieldID"), req.Linked)
	if h.writeEditorError(w, r, err) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorFieldMove transfers a field to the opposite side.
func (h *Handlers) EditorFieldMove(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Side string `json:"side"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := res.Session.MoveToOppositeSide(r.Context(), template.SideName(req.Side), chi.URLParam(r, "fieldID"))
	if h.writeEditorError(w, r, err) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorFieldPosition places a field at client-resolved drag coordinates.
// Negative coordinates are floored at the canvas origin.
func (h *Handlers) EditorFieldPosition(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Left float64 `json:"left"`
		Top  float64 `json:"top"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := res.Session.SetPosition(r.Context(), chi.URLParam(r, "fieldID"), req.Left, req.Top)
	if h.writeEditorError(w, r, err) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorFieldCollapse records the collapse/expand flag for a field editor row.
func (h *Handlers) EditorFieldCollapse(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Collapsed bool `json:"collapsed"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := res.Session.SetCollapsed(r.Context(), chi.URLParam(r, "fieldID"), req.Collapsed); err != nil {
		writeInternal(w, r, h.logger, "editor: collapse failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorGroupColor pushes a master color to every linked member of a group.
func (h *Handlers) EditorGroupColor(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Group string `json:"group"`
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := res.Session.SetMasterColor(r.Context(), template.Group(req.Group), req.Value)
	if h.writeEditorError(w, r, err) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorReset discards the working snapshot so the next open refetches the
// stored template.
func (h *Handlers) EditorReset(w http.ResponseWriter, r *http.Request) {
	_, storageKey, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	if err := h.editor.Discard(r.Context(), storageKey); err != nil {
		writeInternal(w, r, h.logger, "editor: reset failed", err)
		return
	}
	res, err := h.editor.Open(r.Context(), storageKey, idType, templateType)
	if err != nil {
		writeInternal(w, r, h.logger, "editor: reopen failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.stateFor(res, idType, templateType))
}

// EditorExport serialises the selected fields as a downloadable document.
func (h *Handlers) EditorExport(w http.ResponseWriter, r *http.Request) {
	res, _, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	doc, err := export.Marshal(res.Session.Template(), res.Session.SelectionSets())
	if errors.Is(err, export.ErrNothingToExport) {
		httpx.WriteError(r.Context(), w, httpx.NewError("nothing_to_export", "no fields are selected", http.StatusUnprocessableEntity))
		return
	}
	if err != nil {
		writeInternal(w, r, h.logger, "editor: export failed", err)
		return
	}

	filename := fmt.Sprintf("%s-%s.json", idType, templateType)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// EditorPublish stores the exported document as the new template and clears
// the working snapshot.
func (h *Handlers) EditorPublish(w http.ResponseWriter, r *http.Request) {
	res, storageKey, idType, templateType, ok := h.openEditor(w, r)
	if !ok {
		return
	}
	doc, err := export.Marshal(res.Session.Template(), res.Session.SelectionSets())
	if errors.Is(err, export.ErrNothingToExport) {
		httpx.WriteError(r.Context(), w, httpx.NewError("nothing_to_export", "no fields are selected", http.StatusUnprocessableEntity))
		return
	}
	if err != nil {
		writeInternal(w, r, h.logger, "editor: publish serialize failed", err)
		return
	}
	if err := h.editor.Publish(r.Context(), storageKey, res.Session, doc); err != nil {
		writeInternal(w, r, h.logger, "editor: publish failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"idType":       idType,
		"templateType": templateType,
		"published":    true,
	})
}

// writeEditorError maps editor domain errors onto the JSON envelope. Returns
// true when a response was written.
func (h *Handlers) writeEditorError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, editor.ErrFieldNotFound):
		writeNotFound(w, r, "field_not_found", err.Error())
	case errors.Is(err, editor.ErrInvalidGroup):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_group", err.Error(), http.StatusUnprocessableEntity))
	default:
		writeInternal(w, r, h.logger, "editor: operation failed", err)
	}
	return true
}
