package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvolkov/linkcut/internal/auth"
	"github.com/mvolkov/linkcut/internal/clicks"
	"github.com/mvolkov/linkcut/internal/httpapi"
	"github.com/mvolkov/linkcut/internal/shortcode"
	"github.com/mvolkov/linkcut/internal/shortener"
	"github.com/mvolkov/linkcut/internal/store"
)

// memStore backs the whole stack in memory: links for the shortener core,
// users for auth and username lookup.
type memStore struct {
	nextLinkID int64
	nextUserID int64
	links      map[string]*store.Link
	users      map[string]*store.User
}

func newMemStore() *memStore {
	return &memStore{links: map[string]*store.Link{}, users: map[string]*store.User{}}
}

func (m *memStore) CreateLink(_ context.Context, originalURL, shortCode string, expiresAt *time.Time, ownerID *int64) (*store.CreateOutcome, error) {
	if _, ok := m.links[shortCode]; ok {
		return nil, store.ErrAliasTaken
	}
	var existing []store.Link
	for _, l := range m.links {
		if l.OriginalURL == originalURL {
			existing = append(existing, *l)
		}
	}
	if len(existing) > 0 {
		sort.Slice(existing, func(i, j int) bool { return existing[i].ID > existing[j].ID })
		return &store.CreateOutcome{Existing: existing}, nil
	}
	m.nextLinkID++
	link := &store.Link{
		ID:          m.nextLinkID,
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
		OwnerID:     ownerID,
	}
	m.links[shortCode] = link
	return &store.CreateOutcome{Created: link}, nil
}

func (m *memStore) FindByCode(_ context.Context, shortCode string) (*store.Link, error) {
	l, ok := m.links[shortCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) FindByURL(_ context.Context, originalURL string) ([]store.Link, error) {
	var out []store.Link
	for _, l := range m.links {
		if l.OriginalURL == originalURL {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) RecordVisit(_ context.Context, shortCode string, at time.Time) error {
	if l, ok := m.links[shortCode]; ok {
		l.VisitCount++
		l.LastAccessed = &at
	}
	return nil
}

func (m *memStore) UpdateURL(_ context.Context, shortCode, newURL string) error {
	l, ok := m.links[shortCode]
	if !ok {
		return store.ErrNotFound
	}
	l.OriginalURL = newURL
	return nil
}

func (m *memStore) OwnerOf(_ context.Context, shortCode string) (*int64, error) {
	l, ok := m.links[shortCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l.OwnerID, nil
}

func (m *memStore) DeleteLink(_ context.Context, shortCode string) error {
	if _, ok := m.links[shortCode]; !ok {
		return store.ErrNotFound
	}
	delete(m.links, shortCode)
	return nil
}

func (m *memStore) CreateUser(_ context.Context, username, passwordHash string) error {
	if _, ok := m.users[username]; ok {
		return store.ErrUsernameTaken
	}
	m.nextUserID++
	m.users[username] = &store.User{ID: m.nextUserID, Username: username, PasswordHash: passwordHash}
	return nil
}

func (m *memStore) FindUserByName(_ context.Context, username string) (*store.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

type memCache struct {
	entries map[string]string
}

func (m *memCache) Get(_ context.Context, shortCode string) (string, bool) {
	v, ok := m.entries[shortCode]
	return v, ok
}

func (m *memCache) Set(_ context.Context, shortCode, originalURL string, _ time.Duration) {
	m.entries[shortCode] = originalURL
}

func (m *memCache) Delete(_ context.Context, shortCode string) {
	delete(m.entries, shortCode)
}

type chanPublisher struct {
	events chan clicks.Event
}

func (p *chanPublisher) Publish(_ context.Context, ev clicks.Event) error {
	p.events <- ev
	return nil
}

func newTestApp(t *testing.T) (*fiber.App, *memStore, *chanPublisher) {
	t.Helper()
	ms := newMemStore()
	mc := &memCache{entries: map[string]string{}}
	accounts := auth.New(ms)
	svc := shortener.New(ms, mc, shortcode.New(6), time.Hour)
	pub := &chanPublisher{events: make(chan clicks.Event, 16)}

	h := httpapi.New(svc, accounts, accounts, ms, pub, "http://sho.rt")
	app := fiber.New()
	h.Routes(app)
	return app, ms, pub
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestShortenAndRedirect(t *testing.T) {
	app, ms, _ := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"abc123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://sho.rt/abc123", body["short_url"])

	req := httptest.NewRequest("GET", "/abc123", nil)
	redirect, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, redirect.StatusCode)
	assert.Equal(t, "https://example.com/a", redirect.Header.Get("Location"))
	assert.EqualValues(t, 1, ms.links["abc123"].VisitCount)
}

func TestShortenValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/links/shorten", `{"url":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/links/shorten", `{"url":"notaurl"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","username":"ghost"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShortenAliasConflict(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"abc123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/b","custom_alias":"abc123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Alias already taken", body["error"])
}

func TestShortenDuplicateURLListsExisting(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"abc123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("POST", "/links/shorten", strings.NewReader(`{"url":"https://example.com/a"}`))
	req.Header.Set("Content-Type", "application/json")
	resp2, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "https://example.com/a", list[0]["original_url"])
	assert.Equal(t, "http://sho.rt/abc123", list[0]["short_url"])
}

func TestRedirectFailures(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest("GET", "/nosuch", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	expired := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	body := fmt.Sprintf(`{"url":"https://example.com/old","custom_alias":"old123","expires_at":%q}`, expired)
	created, _ := doJSON(t, app, "POST", "/links/shorten", body, nil)
	require.Equal(t, http.StatusOK, created.StatusCode)

	req = httptest.NewRequest("GET", "/old123", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestRedirectPublishesClickEvent(t *testing.T) {
	app, _, pub := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"abc123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("GET", "/abc123", nil)
	req.Header.Set("User-Agent", "test-agent")
	_, err := app.Test(req, -1)
	require.NoError(t, err)

	select {
	case ev := <-pub.events:
		assert.Equal(t, "abc123", ev.ShortCode)
		assert.Equal(t, "test-agent", ev.UserAgent)
	case <-time.After(time.Second):
		t.Fatal("no click event published")
	}
}

func TestStats(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"abc123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("GET", "/abc123", nil)
	_, err := app.Test(req, -1)
	require.NoError(t, err)

	resp, body := doJSON(t, app, "GET", "/links/abc123/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://example.com/a", body["original_url"])
	assert.EqualValues(t, 1, body["visit_count"])
	assert.NotNil(t, body["last_accessed"])

	resp, _ = doJSON(t, app, "GET", "/links/nosuch/stats", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"abc123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("GET", "/links/search?original_url=https%3A%2F%2Fexample.com%2Fa", nil)
	found, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, found.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(found.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "abc123", list[0]["short_code"])

	req = httptest.NewRequest("GET", "/links/search?original_url=https%3A%2F%2Fexample.com%2Fnone", nil)
	empty, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, empty.StatusCode)
	require.NoError(t, json.NewDecoder(empty.Body).Decode(&list))
	assert.Empty(t, list)

	resp, _ = doJSON(t, app, "GET", "/links/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateAuthorization(t *testing.T) {
	app, ms, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/register", `{"username":"alice","password":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, "POST", "/register", `{"username":"bob","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"owned1","username":"alice"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	update := `{"new_url":"https://example.com/b"}`

	resp, _ = doJSON(t, app, "PUT", "/links/owned1", update, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, "PUT", "/links/owned1", update, map[string]string{"Authorization": "garbage"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "PUT", "/links/owned1", update, map[string]string{"Authorization": "alice:wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, "PUT", "/links/owned1", update, map[string]string{"Authorization": "bob:hunter2"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, "PUT", "/links/owned1", update, map[string]string{"Authorization": "alice:s3cret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://example.com/b", ms.links["owned1"].OriginalURL)

	resp, _ = doJSON(t, app, "PUT", "/links/nosuch", update, map[string]string{"Authorization": "alice:s3cret"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteEndpoint(t *testing.T) {
	app, ms, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/register", `{"username":"alice","password":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/a","custom_alias":"owned1","username":"alice"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Anonymous links are immutable even for authenticated users.
	resp, _ = doJSON(t, app, "POST", "/links/shorten", `{"url":"https://example.com/b","custom_alias":"anon01"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, "DELETE", "/links/anon01", "", map[string]string{"Authorization": "alice:s3cret"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, "DELETE", "/links/owned1", "", map[string]string{"Authorization": "alice:s3cret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, ms.links, "owned1")

	req := httptest.NewRequest("GET", "/owned1", nil)
	gone, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestRegisterDuplicate(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/register", `{"username":"alice","password":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/register", `{"username":"alice","password":"other"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Username already taken", body["error"])
}
