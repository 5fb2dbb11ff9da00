package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/config"
	"github.com/BaSui01/clubcms/internal/content"
	"github.com/BaSui01/clubcms/internal/database"
	"github.com/BaSui01/clubcms/internal/session"
)

// =============================================================================
// 🧪 端到端路由测试（内存 SQLite + 内存会话）
// =============================================================================

type apiFixture struct {
	t        *testing.T
	mux      *http.ServeMux
	store    *content.Store
	sessions *session.MemoryStore
	cookie   *http.Cookie
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	backend, err := database.OpenSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	require.NoError(t, content.AutoMigrate(backend.DB()))

	store := content.NewStore(backend, zap.NewNop())
	require.NoError(t, store.Seed(context.Background()))

	sessions := session.NewMemoryStore(time.Hour, nil)
	cookieCfg := config.DefaultSessionConfig()
	cookieCfg.Secure = false

	mux := http.NewServeMux()
	Routes{
		Health:   NewHealthHandler(zap.NewNop()),
		DBHealth: NewDBHealthHandler(nil, backend.Ping, "ops-key", zap.NewNop()),
		Content:  NewContentHandler(store, zap.NewNop()),
		Auth:     NewAuthHandler(store, sessions, cookieCfg, zap.NewNop()),
	}.Register(mux)

	return &apiFixture{t: t, mux: mux, store: store, sessions: sessions}
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if f.cookie != nil {
		r.AddCookie(f.cookie)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

func (f *apiFixture) login() {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "admin"})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == "clubcms_session" {
			f.cookie = c
		}
	}
	require.NotNil(f.t, f.cookie)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, data any) Response {
	t.Helper()
	var resp Response
	raw := w.Body.Bytes()
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	if data != nil {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &envelope))
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return resp
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/auth/status", nil)
	var status AuthStatus
	decodeResponse(t, w, &status)
	assert.False(t, status.Authenticated)

	w = f.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	f.login()
	cookie := f.cookie
	assert.True(t, cookie.HttpOnly)

	w = f.do(http.MethodGet, "/api/auth/status", nil)
	decodeResponse(t, w, &status)
	assert.True(t, status.Authenticated)
	assert.Equal(t, "admin", status.Username)

	w = f.do(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/auth/status", nil)
	decodeResponse(t, w, &status)
	assert.False(t, status.Authenticated, "session deleted on logout")
	assert.Zero(t, f.sessions.Len())
}

func TestAdminRoutesRequireSession(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/pages", map[string]any{"title": "Hi", "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeResponse(t, w, nil)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	f.cookie = &http.Cookie{Name: "clubcms_session", Value: "not-a-session"}
	w = f.do(http.MethodGet, "/api/contacts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateUsernameReissuesSession(t *testing.T) {
	f := newAPIFixture(t)
	f.login()
	old := f.cookie

	w := f.do(http.MethodPost, "/api/auth/update-username", map[string]string{"new_username": "chair", "password": "admin"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var fresh *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "clubcms_session" {
			fresh = c
		}
	}
	require.NotNil(t, fresh)
	assert.NotEqual(t, old.Value, fresh.Value)

	_, err := f.sessions.Get(context.Background(), old.Value)
	assert.ErrorIs(t, err, session.ErrNotFound)

	f.cookie = fresh
	w = f.do(http.MethodPost, "/api/auth/change-password", map[string]string{"current_password": "admin", "new_password": "longer-secret"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPagesAndComments(t *testing.T) {
	f := newAPIFixture(t)
	f.login()

	w := f.do(http.MethodPost, "/api/pages", map[string]any{"title": "Launch Night", "content": "<p>We launched</p>", "is_blog": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var page content.Page
	decodeResponse(t, w, &page)
	assert.Equal(t, "launch-night", page.Slug)

	w = f.do(http.MethodPost, "/api/pages", map[string]any{"title": "x", "content": "y", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields rejected")

	f.cookie = nil
	w = f.do(http.MethodPost, "/api/pages/launch-night/comments", map[string]string{"name": "Zed", "content": "Congrats!"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/pages/launch-night/comments", map[string]string{"name": "Z", "content": "Congrats!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/pages/launch-night", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &page)
	assert.Equal(t, int64(1), page.CommentCount)

	w = f.do(http.MethodGet, "/api/pages?type=blog", nil)
	var pages []content.Page
	decodeResponse(t, w, &pages)
	assert.Len(t, pages, 1)

	w = f.do(http.MethodGet, "/api/pages/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.login()
	w = f.do(http.MethodPut, "/api/pages/launch-night", map[string]any{"comments_disabled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.cookie = nil
	w = f.do(http.MethodPost, "/api/pages/launch-night/comments", map[string]string{"name": "Zed", "content": "Another one"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeResponse(t, w, nil)
	assert.Equal(t, "COMMENTS_DISABLED", resp.Error.Code)
}

func TestEventRegistration(t *testing.T) {
	f := newAPIFixture(t)
	f.login()

	w := f.do(http.MethodPost, "/api/events", map[string]any{"name": "Go Workshop", "event_date": "2024-05-20"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ev content.Event
	decodeResponse(t, w, &ev)
	assert.Equal(t, "go-workshop-20240520", ev.ID)

	w = f.do(http.MethodPost, "/api/events", map[string]any{"name": "Go Workshop", "event_date": "2024-05-20"})
	assert.Equal(t, http.StatusConflict, w.Code)

	f.cookie = nil
	reg := map[string]string{
		"name": "Cy", "email": "cy@uni.edu", "department": "CS", "academic_year": "2",
		"college_code": "UNI", "student_id": "S1",
	}
	w = f.do(http.MethodPost, "/api/events/"+ev.ID+"/register", reg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p content.Participant
	decodeResponse(t, w, &p)

	w = f.do(http.MethodPost, "/api/events/"+ev.ID+"/register", reg)
	assert.Equal(t, http.StatusOK, w.Code, "re-registration updates")

	w = f.do(http.MethodGet, "/api/events/"+ev.ID+"/achievement?college_code=UNI&student_id=S1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.login()
	w = f.do(http.MethodPut, "/api/participants/"+itoa(p.ID)+"/attendance", map[string]bool{"attended": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/api/events/"+ev.ID+"/participants", nil)
	var participants []content.Participant
	decodeResponse(t, w, &participants)
	require.Len(t, participants, 1)
	assert.True(t, participants[0].Attended)

	w = f.do(http.MethodPut, "/api/events/"+ev.ID, map[string]any{"accepting_submissions": false})
	require.Equal(t, http.StatusOK, w.Code)

	f.cookie = nil
	w = f.do(http.MethodGet, "/api/events/"+ev.ID+"/achievement?college_code=UNI&student_id=S1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ach achievementResponse
	decodeResponse(t, w, &ach)
	assert.True(t, ach.Achieved)
	assert.Equal(t, "UNIS1", ach.ParticipantCode)

	reg["student_id"] = "S2"
	w = f.do(http.MethodPost, "/api/events/"+ev.ID+"/register", reg)
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeResponse(t, w, nil)
	assert.Equal(t, "SUBMISSIONS_CLOSED", resp.Error.Code)
}

func TestSiteEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/settings", nil)
	var settings map[string]string
	decodeResponse(t, w, &settings)
	assert.Equal(t, "5", settings["posts_per_page"])

	w = f.do(http.MethodPost, "/api/contact", map[string]string{
		"name": "Al", "email": "al@example.com", "subject": "Hi", "message": "I would like to join",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	f.login()
	w = f.do(http.MethodPut, "/api/settings", map[string]string{"site_title": "Chess Club"})
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &settings)
	assert.Equal(t, "Chess Club", settings["site_title"])

	w = f.do(http.MethodGet, "/api/contacts?unread=true", nil)
	var contacts []content.Contact
	decodeResponse(t, w, &contacts)
	require.Len(t, contacts, 1)

	w = f.do(http.MethodPut, "/api/contacts/"+itoa(contacts[0].ID)+"/read", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/gallery", map[string]any{"url": "https://cdn/a.jpg", "public_id": "club/a"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodDelete, "/api/gallery/public/club/a", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodDelete, "/api/team/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDBHealthRoutes_SQLite(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/health/db", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/health/db/terminate-idle", nil)
	r.Header.Set("X-API-Key", "ops-key")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no connection manager for SQLite")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
