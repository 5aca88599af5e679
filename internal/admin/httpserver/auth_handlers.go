package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	custommw "campusworks.org/idcard-admin/internal/admin/httpserver/middleware"
	appsession "campusworks.org/idcard-admin/internal/admin/session"
	"campusworks.org/idcard-admin/internal/platform/httpx"
)

const tokenCookieName = "Authorization"

type authHandlers struct {
	authenticator custommw.Authenticator
	basePath      string
	loginPath     string
}

func newAuthHandlers(authenticator custommw.Authenticator, basePath, loginPath string) *authHandlers {
	if authenticator == nil {
		panic("auth: authenticator is required")
	}
	if strings.TrimSpace(basePath) == "" {
		basePath = "/"
	}
	if strings.TrimSpace(loginPath) == "" {
		if basePath == "/" {
			loginPath = "/login"
		} else {
			loginPath = strings.TrimRight(basePath, "/") + "/login"
		}
	}
	return &authHandlers{
		authenticator: authenticator,
		basePath:      basePath,
		loginPath:     loginPath,
	}
}

// LoginForm describes the login endpoint to clients that were redirected
// here. The admin frontend performs the actual sign-in and posts the ID
// token back.
func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	payload := map[string]string{
		"loginPath": h.loginPath,
		"method":    http.MethodPost,
	}
	if reason := h.messageForQuery(r.URL.Query()); reason != "" {
		payload["message"] = reason
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

// Login validates the posted ID token, binds the staff profile to the
// session, and issues the auth cookie.
func (h *authHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
		Next    string `json:"next,omitempty"`
	}
	if err := decodeLoginBody(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid", http.StatusBadRequest))
		return
	}

	token := strings.TrimSpace(req.IDToken)
	if token == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("missing_token", "an ID token is required", http.StatusBadRequest))
		return
	}

	user, err := h.authenticator.Authenticate(r, token)
	if err != nil || user == nil {
		log.Printf("admin login failed: %v", err)
		httpx.WriteError(r.Context(), w, httpx.NewError(h.errorCodeFor(err), "authentication failed", http.StatusUnauthorized))
		return
	}

	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess != nil {
		sess.SetUser(&appsession.User{
			UID:   user.UID,
			Email: user.Email,
			Roles: append([]string(nil), user.Roles...),
		})
	}

	issuedToken := token
	if user.Token != "" {
		issuedToken = user.Token
	}
	h.setAuthCookie(w, r, issuedToken)

	target := h.redirectTarget(req.Next)
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"uid":      user.UID,
		"email":    user.Email,
		"roles":    user.Roles,
		"redirect": target,
	})
}

// Logout destroys the session and clears the auth cookie.
func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess != nil {
		sess.Destroy()
	}
	h.clearAuthCookie(w)

	redirect := h.loginURLWithParams(map[string]string{"status": "logged_out"})
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", redirect)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "logged_out",
		"redirect": redirect,
	})
}

func decodeLoginBody(r *http.Request, dst *struct {
	IDToken string `json:"idToken"`
	Next    string `json:"next,omitempty"`
}) error {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return err
		}
		dst.IDToken = r.PostFormValue("id_token")
		dst.Next = r.PostFormValue("next")
		return nil
	}
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst)
}

func (h *authHandlers) errorCodeFor(err error) string {
	var authErr *custommw.AuthError
	if errors.As(err, &authErr) && authErr.Reason != "" {
		return authErr.Reason
	}
	return custommw.ReasonTokenInvalid
}

func (h *authHandlers) messageForQuery(q url.Values) string {
	if q == nil {
		return ""
	}
	if status := q.Get("status"); status == "logged_out" {
		return "signed out"
	}
	switch q.Get("reason") {
	case custommw.ReasonTokenExpired, "expired":
		return "your session has expired, sign in again"
	case custommw.ReasonMissingToken:
		return "sign-in required"
	case custommw.ReasonTokenInvalid:
		return "sign-in credentials were rejected"
	default:
		return ""
	}
}

func (h *authHandlers) redirectTarget(raw string) string {
	next := h.normalizeNext(raw)
	if next != "" {
		return next
	}
	if strings.TrimSpace(h.basePath) == "" {
		return "/"
	}
	return h.basePath
}

func (h *authHandlers) setAuthCookie(w http.ResponseWriter, r *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		h.clearAuthCookie(w)
		return
	}
	value := token
	if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
		value = "Bearer " + token
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Path:     h.cookiePath(),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *authHandlers) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *authHandlers) cookiePath() string {
	if strings.TrimSpace(h.basePath) == "" {
		return "/"
	}
	return h.basePath
}

func (h *authHandlers) loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(h.loginPath)
	if err != nil {
		return h.loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	trim := func(p string) string {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		for len(p) > 1 && strings.HasSuffix(p, "/") {
			p = strings.TrimSuffix(p, "/")
		}
		return p
	}
	return trim(a) == trim(b)
}

func (h *authHandlers) normalizeNext(raw string) string {
	sanitized := sanitizeNextTarget(h.basePath, raw)
	if sanitized == "" {
		return ""
	}
	if h.loginPath != "" && samePath(pathOnly(sanitized), h.loginPath) {
		return ""
	}
	return sanitized
}

// sanitizeNextTarget keeps post-login redirects inside the admin base path
// and rejects absolute or protocol-relative targets.
func sanitizeNextTarget(basePath, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}

	unescaped, err := url.PathUnescape(pathValue)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	normalisedBase := normalizeBase(basePath)
	if normalisedBase != "/" && !hasSafePrefix(cleaned, normalisedBase) {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func normalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if len(base) > 1 && strings.HasSuffix(base, "/") {
		base = strings.TrimRight(base, "/")
	}
	return base
}

func hasSafePrefix(pathValue, base string) bool {
	if base == "/" {
		return strings.HasPrefix(pathValue, "/")
	}
	if !strings.HasPrefix(pathValue, base) {
		return false
	}
	if len(pathValue) == len(base) {
		return true
	}
	return pathValue[len(base)] == '/'
}

func pathOnly(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
