package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/auth"
	"github.com/sakif/onelink-portfolio/internal/config"
	"github.com/sakif/onelink-portfolio/internal/githubapi"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/service"
)

// =========================================================================
// fakes
// =========================================================================

type stubOAuth struct{}

func (stubOAuth) AuthURL(state string) string {
	return "https://github.test/authorize?state=" + url.QueryEscape(state)
}

func (stubOAuth) Exchange(_ context.Context, code string) (*auth.GitHubUser, error) {
	if code != "ok" {
		return nil, errors.New("bad code")
	}
	return &auth.GitHubUser{ID: 1234, Login: "Octo", Bio: "gopher", AccessToken: "gho_server_test"}, nil
}

// stubGitHub serves two repositories and only accepts the token handed out
// by stubOAuth, so a successful sync proves the sealed credential round trip.
type stubGitHub struct {
	mu    sync.Mutex
	calls int
}

const wantToken = "gho_server_test"

func (g *stubGitHub) ListRepositories(_ context.Context, credential, username string) ([]githubapi.Repository, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if credential != wantToken {
		return nil, apperror.Auth("list repositories", nil)
	}
	updated := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return []githubapi.Repository{
		{ID: 1, Name: "blog", Owner: username, HTMLURL: "https://github.com/Octo/blog", Homepage: "https://octo.netlify.app", UpdatedAt: &updated},
		{ID: 2, Name: "wip", Owner: username, HTMLURL: "https://github.com/Octo/wip", Description: "work in progress"},
	}, nil
}

func (g *stubGitHub) GetLanguages(_ context.Context, credential, _, _ string) (map[string]int, error) {
	if credential != wantToken {
		return nil, apperror.Auth("languages", nil)
	}
	return map[string]int{"Go": 100}, nil
}

func (g *stubGitHub) GetReadme(_ context.Context, credential, _, _ string) (string, error) {
	if credential != wantToken {
		return "", apperror.Auth("readme", nil)
	}
	return "# readme", nil
}

// =========================================================================
// helpers
// =========================================================================

type testApp struct {
	t      *testing.T
	srv    *Server
	client *http.Client
	token  string
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()

	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "server.db")
	cfg.JWTSecret = "server-test-secret-0123456789"
	cfg.FrontendURL = "http://front.test"
	cfg.CORSOrigins = []string{"http://front.test"}
	for _, m := range mutate {
		m(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger, Deps{OAuth: stubOAuth{}, GitHub: &stubGitHub{}})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	return &testApp{t: t, srv: srv}
}

func (a *testApp) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(rr, req)
	return rr
}

// signIn walks the OAuth redirect dance and keeps the issued token.
func (a *testApp) signIn() url.Values {
	a.t.Helper()

	rr := a.do(http.MethodGet, "/auth/github/login", nil)
	require.Equal(a.t, http.StatusTemporaryRedirect, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(a.t, err)

	rr = a.do(http.MethodGet, "/auth/github/callback?code=ok&state="+url.QueryEscape(loc.Query().Get("state")), nil)
	require.Equal(a.t, http.StatusSeeOther, rr.Code)
	back, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(a.t, err)

	a.token = back.Query().Get("token")
	require.NotEmpty(a.t, a.token)
	return back.Query()
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

// =========================================================================
// tests
// =========================================================================

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rr := app.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","database":"sqlite"}`, rr.Body.String())
}

func TestProtectedRoutesNeedAuth(t *testing.T) {
	app := newTestApp(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/users/me"},
		{http.MethodPost, "/projects/sync"},
		{http.MethodGet, "/projects"},
		{http.MethodGet, "/users/me/skills"},
	} {
		rr := app.do(tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestEndToEnd_SyncAndPortfolio(t *testing.T) {
	app := newTestApp(t)
	back := app.signIn()
	assert.Equal(t, "octo", back.Get("username"))

	// Profile.
	me := decode[model.User](t, app.do(http.MethodGet, "/users/me", nil))
	assert.Equal(t, "Octo", me.GitHubUsername)
	assert.Equal(t, "octo", me.PortfolioUsername)

	// Sync.
	rr := app.do(http.MethodPost, "/projects/sync", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	syncBody := decode[map[string]any](t, rr)
	assert.Equal(t, "Synced 2 projects", syncBody["message"])
	assert.EqualValues(t, 2, syncBody["synced_count"])
	assert.EqualValues(t, 0, syncBody["degraded_count"])
	assert.Equal(t, true, syncBody["complete"])

	// Listing.
	page := decode[service.ProjectPage](t, app.do(http.MethodGet, "/projects", nil))
	require.Equal(t, 2, page.Total)
	byName := map[string]model.Project{}
	for _, p := range page.Items {
		byName[p.Name] = p
	}
	assert.Equal(t, model.StatusDeployed, byName["blog"].Status)
	assert.Equal(t, "https://octo.netlify.app", byName["blog"].DeployedURL)
	assert.Equal(t, model.StatusInProgress, byName["wip"].Status)

	deployed := decode[service.ProjectPage](t, app.do(http.MethodGet, "/projects?status=deployed", nil))
	assert.Equal(t, 1, deployed.Total)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/projects?status=shipped", nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/projects?limit=lots", nil).Code)

	// Hide one project; the public page shows only the other.
	wip := byName["wip"]
	rr = app.do(http.MethodPut, "/projects/"+wip.ID, map[string]any{"is_visible": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.False(t, decode[model.Project](t, rr).IsVisible)

	// A second sync keeps the choice.
	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/projects/sync", nil).Code)
	got := decode[model.Project](t, app.do(http.MethodGet, "/projects/"+wip.ID, nil))
	assert.False(t, got.IsVisible)

	// Resume section.
	rr = app.do(http.MethodPost, "/users/me/skills", map[string]any{"name": "Go", "category": "backend"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	skill := decode[model.Skill](t, rr)
	rr = app.do(http.MethodPut, "/users/me/skills/"+skill.ID, map[string]any{"proficiency": "expert"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = app.do(http.MethodPost, "/users/me/experience", map[string]any{
		"title": "Engineer", "company": "Acme", "start_date": "2021-01-01T00:00:00Z", "is_current": true,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// Public page, no auth.
	owner := app.token
	app.token = ""
	pf := decode[model.Portfolio](t, app.do(http.MethodGet, "/portfolio/octo", nil))
	require.Len(t, pf.Projects, 1)
	assert.Equal(t, "blog", pf.Projects[0].Name)
	require.Len(t, pf.Skills, 1)
	assert.Equal(t, "expert", pf.Skills[0].Proficiency)
	assert.Len(t, pf.Experiences, 1)
	assert.NotContains(t, app.do(http.MethodGet, "/portfolio/octo", nil).Body.String(), "gho_")

	pub := app.do(http.MethodGet, "/users/octo", nil)
	require.Equal(t, http.StatusOK, pub.Code)
	assert.Equal(t, "gopher", decode[model.PublicUser](t, pub).Bio)

	// Going private hides everything public.
	app.token = owner
	rr = app.do(http.MethodPut, "/users/me", map[string]any{"is_public": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	app.token = ""
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/portfolio/octo", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/users/octo", nil).Code)

	// Delete is local only.
	app.token = owner
	assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, "/projects/"+wip.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/projects/"+wip.ID, nil).Code)
}

func TestMemoryStateStore(t *testing.T) {
	app := newTestApp(t, func(c *config.Config) { c.StateStore = config.StateStoreMemory })
	app.signIn()
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/users/me", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodOptions, "/projects", nil)
	req.Header.Set("Origin", "http://front.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	app.srv.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "http://front.test", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers")), "authorization"))
}

func TestNewSyncService_SharesStorage(t *testing.T) {
	app := newTestApp(t)
	app.signIn()
	me := decode[model.User](t, app.do(http.MethodGet, "/users/me", nil))

	cfg := config.Default()
	cfg.JWTSecret = "server-test-secret-0123456789"
	svc, err := NewSyncService(cfg, app.srv.DB(), &stubGitHub{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	outcomes, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, me.ID, outcomes[0].UserID)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 2, outcomes[0].Result.SyncedCount)
}
