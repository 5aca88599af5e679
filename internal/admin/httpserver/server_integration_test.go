package httpserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"campusworks.org/idcard-admin/internal/admin/httpserver/middleware"
	"campusworks.org/idcard-admin/internal/admin/testutil"
)

func TestDashboardRedirectsWithoutAuth(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(ts.URL + "/admin")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/admin/login", resp.Header.Get("Location"))
}

func TestDashboardOverviewForAuthenticatedUser(t *testing.T) {
	t.Parallel()

	auth := &tokenAuthenticator{Token: "test-token"}
	ts := testutil.NewServer(t, testutil.WithAuthenticator(auth))

	var overview struct {
		Students int `json:"students"`
		Staff    int `json:"staff"`
	}
	getJSON(t, ts.URL+"/admin", auth.Token, &overview)
	require.Equal(t, 1, overview.Students)
	require.Equal(t, 1, overview.Staff)
}

func TestEditorSelectionRoundTrip(t *testing.T) {
	t.Parallel()

	auth := &tokenAuthenticator{Token: "test-token"}
	ts := testutil.NewServer(t, testutil.WithAuthenticator(auth))

	client := newClient(t)

	state := fetchEditorState(t, client, ts.URL, auth.Token)
	require.Len(t, state.Selection["front"], 2)
	require.False(t, state.Resumed)

	csrf := cookieValue(t, client, ts.URL, "csrf_token")
	body := `{"action": "deselect", "side": "front", "fieldId": "` + state.Selection["front"][0] + `"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/admin/editor/selection", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated editorStateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	require.Len(t, updated.Selection["front"], 1)

	// The snapshot persists, so reopening resumes the edit.
	resumed := fetchEditorState(t, client, ts.URL, auth.Token)
	require.True(t, resumed.Resumed)
	require.Len(t, resumed.Selection["front"], 1)
}

func TestEditorExportOmitsBookkeeping(t *testing.T) {
	t.Parallel()

	auth := &tokenAuthenticator{Token: "test-token"}
	ts := testutil.NewServer(t, testutil.WithAuthenticator(auth))

	client := newClient(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/admin/editor/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), "student-standard.json")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(body), `"id"`)
	require.NotContains(t, string(body), `"nextId"`)
	require.Contains(t, string(body), "{{name}}")
}

func TestRecordsListing(t *testing.T) {
	t.Parallel()

	auth := &tokenAuthenticator{Token: "test-token"}
	ts := testutil.NewServer(t, testutil.WithAuthenticator(auth))

	var payload struct {
		Records []struct {
			ID     string            `json:"id"`
			Fields map[string]string `json:"fields"`
		} `json:"records"`
	}
	getJSON(t, ts.URL+"/admin/records/?type=student", auth.Token, &payload)
	require.Len(t, payload.Records, 1)
	require.Equal(t, "2026-0001", payload.Records[0].ID)
	require.Equal(t, "Asha Rao", payload.Records[0].Fields["name"])
}

func TestPrintSheetsRendersHTML(t *testing.T) {
	t.Parallel()

	auth := &tokenAuthenticator{Token: "test-token"}
	ts := testutil.NewServer(t, testutil.WithAuthenticator(auth))

	client := newClient(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/admin/print/sheets?idType=student&templateType=standard", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find(".sheet").Length())
	require.Equal(t, 1, doc.Find(".card").Length())
	require.Contains(t, doc.Find(".card").Text(), "Asha Rao")
}

func TestRoleWithoutCapabilityForbidden(t *testing.T) {
	t.Parallel()

	auth := &tokenAuthenticator{Token: "printer-token", Roles: []string{"printer"}}
	ts := testutil.NewServer(t, testutil.WithAuthenticator(auth))

	client := newClient(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/admin/editor/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

type editorStateView struct {
	IDType       string              `json:"idType"`
	TemplateType string              `json:"templateType"`
	Resumed      bool                `json:"resumed"`
	Selection    map[string][]string `json:"selection"`
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func fetchEditorState(t *testing.T, client *http.Client, baseURL, token string) editorStateView {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/admin/editor/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state editorStateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/admin", nil)
	require.NoError(t, err)
	for _, c := range client.Jar.Cookies(req.URL) {
		if c.Name == name {
			return c.Value
		}
	}
	t.Fatalf("cookie %s not found", name)
	return ""
}

func getJSON(t *testing.T, url, token string, dst any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

type tokenAuthenticator struct {
	Token string
	Roles []string
}

func (t *tokenAuthenticator) Authenticate(_ *http.Request, token string) (*middleware.User, error) {
	if token != t.Token {
		return nil, middleware.ErrUnauthorized
	}
	roles := t.Roles
	if len(roles) == 0 {
		roles = []string{"admin"}
	}
	return &middleware.User{
		UID:   "tester",
		Email: "tester@school.example",
		Token: token,
		Roles: roles,
	}, nil
}
