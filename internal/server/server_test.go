package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/voyagen/m3ueditor/internal/auth"
	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/logging"
	"github.com/voyagen/m3ueditor/internal/metrics"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store/storetest"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []cache.SyncJob
	err  error
}

func (q *fakeQueue) Dispatch(_ context.Context, job cache.SyncJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeFolders struct{ removed []string }

func (f *fakeFolders) Remove(kind, uuid string) error {
	f.removed = append(f.removed, kind+"/"+uuid)
	return nil
}

type testEnv struct {
	srv     *Server
	mem     *storetest.Memory
	queue   *fakeQueue
	folders *fakeFolders
	tokens  *auth.Tokens
}

func newEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()
	env := &testEnv{
		mem:     storetest.NewMemory(),
		queue:   &fakeQueue{},
		folders: &fakeFolders{},
		tokens:  auth.NewTokens("test-secret", time.Hour),
	}
	env.srv = New(Options{
		Store:     env.mem,
		Tokens:    env.tokens,
		Queue:     env.queue,
		Folders:   env.folders,
		Metrics:   metrics.New(),
		Log:       logging.Discard(),
		RateLimit: rateLimit,
	})
	return env
}

// user creates a user with password "secret" and returns it with a bearer token.
func (e *testEnv) user(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Name: name, Email: name + "@example.com", PasswordHash: string(hash)}
	require.NoError(t, e.mem.CreateUser(context.Background(), u))
	token, err := e.tokens.Issue(u.ID)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) playlist(t *testing.T, userID int64, name string) *models.Playlist {
	t.Helper()
	p := &models.Playlist{UserID: userID, Name: name, URL: "http://example.com/" + name + ".m3u", SyncInterval: "24 hours"}
	require.NoError(t, e.mem.CreatePlaylist(context.Background(), p))
	return p
}

func (e *testEnv) channel(t *testing.T, userID, playlistID int64, name, group string) int64 {
	t.Helper()
	ctx := context.Background()
	ch := &models.Channel{UserID: userID, PlaylistID: playlistID, Name: name, Group: group, URL: "http://s/" + name, Enabled: true}
	if group != "" {
		gid, err := e.mem.GetOrCreateGroup(ctx, userID, playlistID, group)
		require.NoError(t, err)
		ch.GroupID = &gid
	}
	id, err := e.mem.UpsertChannel(ctx, ch)
	require.NoError(t, err)
	return id
}

func TestHealth(t *testing.T) {
	env := newEnv(t, 0)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDocsAndMetrics(t *testing.T) {
	env := newEnv(t, 0)
	rec := env.do(t, http.MethodGet, "/api/docs", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec = env.do(t, http.MethodGet, "/api/docs/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi:")

	env.do(t, http.MethodGet, "/api/health", "", nil)
	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `m3ueditor_http_requests_total{method="GET",route="/api/health",status="200"}`)
}

func TestAuthentication(t *testing.T) {
	env := newEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/user/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[APIError](t, rec)
	assert.Equal(t, 401, body.Status)
	assert.Equal(t, "Unauthorized", body.Error)

	rec = env.do(t, http.MethodGet, "/api/v1/user/whoami", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := auth.NewTokens("other-secret", time.Hour)
	forged, err := other.Issue(1)
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/v1/user/whoami", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueTokenAndWhoami(t *testing.T) {
	env := newEnv(t, 0)
	env.user(t, "admin")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"email": "ADMIN@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decodeBody[tokenResponse](t, rec).Token
	require.NotEmpty(t, token)

	rec = env.do(t, http.MethodGet, "/api/v1/user/whoami", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"admin"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody[APIError](t, rec).Errors, "email")

	rec = env.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decodeBody[APIError](t, rec).Errors
	assert.Equal(t, []string{"The email field is required."}, errs["email"])
	assert.Equal(t, []string{"The password field is required."}, errs["password"])
}

func TestPlaylistLifecycle(t *testing.T) {
	env := newEnv(t, 0)
	u, token := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/playlists", token, map[string]any{
		"name": "Provider", "url": "http://example.com/list.m3u",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.Playlist](t, rec)
	assert.Equal(t, u.ID, created.UserID)
	assert.Equal(t, "24 hours", created.SyncInterval)
	assert.NotEmpty(t, created.UUID)
	assert.Equal(t, []cache.SyncJob{{Kind: cache.JobPlaylist, ID: created.ID, UserID: u.ID, Force: true}}, env.queue.jobs)

	rec = env.do(t, http.MethodPut, "/api/v1/playlists/"+itoa(created.ID), token, map[string]any{
		"name": "Renamed", "sync_interval": "",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[models.Playlist](t, rec)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "24 hours", updated.SyncInterval)
	assert.Equal(t, created.URL, updated.URL)

	rec = env.do(t, http.MethodGet, "/api/v1/playlists", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Playlist](t, rec), 1)

	rec = env.do(t, http.MethodDelete, "/api/v1/playlists/"+itoa(created.ID), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Playlist deleted"}`, rec.Body.String())
	assert.Equal(t, []string{"playlist/" + created.UUID}, env.folders.removed)

	rec = env.do(t, http.MethodDelete, "/api/v1/playlists/"+itoa(created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaylistValidation(t *testing.T) {
	env := newEnv(t, 0)
	_, token := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/playlists", token, map[string]any{})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody[APIError](t, rec)
	assert.Equal(t, "The given data was invalid.", body.Message)
	assert.Equal(t, []string{"The name field is required."}, body.Errors["name"])
	assert.Equal(t, []string{"The url field is required."}, body.Errors["url"])

	rec = env.do(t, http.MethodPost, "/api/v1/playlists", token, map[string]any{
		"name": "x", "url": "not a url", "sync_interval": "5 fortnights",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body = decodeBody[APIError](t, rec)
	assert.Equal(t, []string{"The url field must be a valid URL."}, body.Errors["url"])
	assert.Contains(t, body.Errors, "sync_interval")
	assert.Empty(t, env.queue.jobs)

	rec = env.do(t, http.MethodPost, "/api/v1/playlists", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "empty body is validated, not rejected as JSON")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/playlists", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	raw := httptest.NewRecorder()
	env.srv.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestCrossUserAccessIsForbidden(t *testing.T) {
	env := newEnv(t, 0)
	alice, _ := env.user(t, "alice")
	_, bobToken := env.user(t, "bob")
	p := env.playlist(t, alice.ID, "mine")
	chID := env.channel(t, alice.ID, p.ID, "News", "UK")

	cases := []struct {
		method, path string
		body         any
	}{
		{http.MethodPut, "/api/v1/playlists/" + itoa(p.ID), map[string]any{"name": "stolen"}},
		{http.MethodDelete, "/api/v1/playlists/" + itoa(p.ID), nil},
		{http.MethodPost, "/api/v1/sync/playlist/" + itoa(p.ID), nil},
		{http.MethodPut, "/api/v1/channels/" + itoa(chID), map[string]any{"enabled": false}},
		{http.MethodDelete, "/api/v1/channels/" + itoa(chID), nil},
	}
	for _, tc := range cases {
		rec := env.do(t, tc.method, tc.path, bobToken, tc.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.method+" "+tc.path)
		assert.Equal(t, "Unauthorized", decodeBody[APIError](t, rec).Message)
	}

	got, err := env.mem.GetPlaylist(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Name)
	assert.Empty(t, env.queue.jobs)

	rec := env.do(t, http.MethodPut, "/api/v1/playlists/9999", bobToken, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/playlists", bobToken, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSyncEndpoints(t *testing.T) {
	env := newEnv(t, 0)
	u, token := env.user(t, "alice")
	p := env.playlist(t, u.ID, "Provider")
	e := &models.Epg{UserID: u.ID, Name: "Guide", URL: "http://example.com/epg.xml"}
	require.NoError(t, env.mem.CreateEpg(context.Background(), e))

	rec := env.do(t, http.MethodPost, "/api/v1/sync/playlist/"+itoa(p.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Playlist \"Provider\" is currently being synced..."}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/sync/playlist/"+itoa(p.ID)+"/false", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sync/epg/"+itoa(e.ID)+"/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sync/epg/"+itoa(e.ID)+"/maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []cache.SyncJob{
		{Kind: cache.JobPlaylist, ID: p.ID, UserID: u.ID, Force: true},
		{Kind: cache.JobPlaylist, ID: p.ID, UserID: u.ID, Force: false},
		{Kind: cache.JobEpg, ID: e.ID, UserID: u.ID, Force: true},
	}, env.queue.jobs)

	env.queue.err = errors.New("redis down")
	rec = env.do(t, http.MethodPost, "/api/v1/sync/playlist/"+itoa(p.ID), token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGroupRenameCascades(t *testing.T) {
	env := newEnv(t, 0)
	u, token := env.user(t, "alice")
	p := env.playlist(t, u.ID, "Provider")
	chID := env.channel(t, u.ID, p.ID, "News", "UK")
	groups := env.mem.Groups(p.ID)
	require.Len(t, groups, 1)

	rec := env.do(t, http.MethodPut, "/api/v1/groups/"+itoa(groups[0].ID), token, map[string]any{"name": "United Kingdom"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ch, err := env.mem.GetChannel(context.Background(), chID)
	require.NoError(t, err)
	assert.Equal(t, "United Kingdom", ch.Group)

	rec = env.do(t, http.MethodGet, "/api/v1/groups", token, nil)
	list := decodeBody[[]models.Group](t, rec)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Playlist)
	assert.Equal(t, "Provider", list[0].Playlist.Name)
}

func TestGroupCreateValidatesOwnership(t *testing.T) {
	env := newEnv(t, 0)
	alice, _ := env.user(t, "alice")
	bob, bobToken := env.user(t, "bob")
	alicePl := env.playlist(t, alice.ID, "a")
	bobPl := env.playlist(t, bob.ID, "b")

	rec := env.do(t, http.MethodPost, "/api/v1/groups", bobToken, map[string]any{"name": "G", "playlist_id": alicePl.ID})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"The selected playlist id is invalid."}, decodeBody[APIError](t, rec).Errors["playlist_id"])

	rec = env.do(t, http.MethodPost, "/api/v1/groups", bobToken, map[string]any{"name": "G", "playlist_id": bobPl.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/groups", bobToken, map[string]any{"name": "G", "playlist_id": bobPl.ID})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody[APIError](t, rec).Errors, "name")
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
