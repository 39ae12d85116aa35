package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/cardbook/internal/config"
	"github.com/sakif/cardbook/internal/repository/sqlite"
	"github.com/sakif/cardbook/internal/server"
)

type envelope struct {
	Status  string            `json:"status"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
	Error   string            `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func testConfig() *config.Config {
	return &config.Config{
		Env:   config.EnvDevelopment,
		Port:  8080,
		Store: config.StoreConfig{Driver: config.DriverSQLite, DBPath: ":memory:"},
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret-0123456789",
			JWTExpire:        time.Hour,
			ResetTokenExpire: 10 * time.Minute,
			ResetURL:         "http://localhost:3000/reset-password",
		},
		CORSOrigins:       []string{"*"},
		AuthRatePerMinute: 1000,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := server.New(cfg, db, logger)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return &testServer{t: t, handler: srv.Router()}
}

func (ts *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

func (ts *testServer) signUp(name string) authData {
	ts.t.Helper()
	rec, env := ts.do(http.MethodPost, "/api/users/sign-up", "", map[string]string{
		"name":            name,
		"email":           name + "@example.com",
		"password":        "password1",
		"confirmPassword": "password1",
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[authData](ts.t, env)
}

type cardData struct {
	ID          string `json:"id"`
	IsPublished bool   `json:"isPublished"`
}

// publishedCard creates and publishes a card whose name is public and whose
// phone number is private.
func (ts *testServer) publishedCard(token, name, city string) string {
	ts.t.Helper()
	rec, env := ts.do(http.MethodPost, "/api/portfolio", token, map[string]any{
		"jobInfo": map[string]any{
			"name":        map[string]any{"content": name, "isPublic": true},
			"phoneNumber": map[string]any{"content": "0912345678", "isPublic": false},
			"city":        map[string]any{"content": city, "isPublic": true},
		},
		"homepageTitle": name + "'s page",
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decodeData[cardData](ts.t, env)

	rec, _ = ts.do(http.MethodPost, "/api/portfolio/"+card.ID+"/publish", token, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return card.ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec, env := ts.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)
}

func TestSignUpAndLogin(t *testing.T) {
	ts := newTestServer(t, testConfig())
	alice := ts.signUp("alice")
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, "alice", alice.User.Name)

	t.Run("login returns a token", func(t *testing.T) {
		rec, env := ts.do(http.MethodPost, "/api/users/login", "", map[string]string{
			"email": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, decodeData[authData](t, env).Token)
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		rec, env := ts.do(http.MethodPost, "/api/users/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-pass1",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "error", env.Status)
	})

	t.Run("duplicate email is 409", func(t *testing.T) {
		rec, _ := ts.do(http.MethodPost, "/api/users/sign-up", "", map[string]string{
			"name": "alice2", "email": "alice@example.com",
			"password": "password1", "confirmPassword": "password1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestValidationDetails(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec, env := ts.do(http.MethodPost, "/api/users/sign-up", "", map[string]string{
		"name":            "bob",
		"email":           "not-an-email",
		"password":        "short",
		"confirmPassword": "different",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Details, "email")
	assert.Contains(t, env.Details, "password")
	assert.Contains(t, env.Details, "confirmPassword")
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, testConfig())

	for _, path := range []string{"/api/users/me", "/api/portfolio", "/api/bookmark-list/groups", "/api/messages"} {
		rec, env := ts.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "error", env.Status, path)
	}

	rec, _ := ts.do(http.MethodGet, "/api/users/me", "garbage.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedPathIDs(t *testing.T) {
	ts := newTestServer(t, testConfig())
	alice := ts.signUp("alice")

	tests := []struct {
		method, path, token, field string
	}{
		{http.MethodGet, "/api/homepage/not-an-id", "", "cardId"},
		{http.MethodPost, "/api/bookmark-list/cards/abc", alice.Token, "cardId"},
		{http.MethodDelete, "/api/bookmark-list/groups/abc", alice.Token, "groupId"},
		{http.MethodGet, "/api/portfolio/123", alice.Token, "cardId"},
		{http.MethodPatch, "/api/messages/xyz/read", alice.Token, "messageId"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec, env := ts.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.field+" must be a valid id", env.Message)
		})
	}
}

func TestMeAndNavbar(t *testing.T) {
	ts := newTestServer(t, testConfig())
	alice := ts.signUp("alice")

	rec, env := ts.do(http.MethodGet, "/api/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), "passwordHash")

	rec, env = ts.do(http.MethodGet, "/api/users/navbar", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nav := decodeData[struct {
		Name        string `json:"name"`
		UnreadCount int64  `json:"unreadCount"`
	}](t, env)
	assert.Equal(t, "alice", nav.Name)
	assert.Zero(t, nav.UnreadCount)
}

type groupData struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IsDefaultGroup bool   `json:"isDefaultGroup"`
}

func TestBookmarkFlow(t *testing.T) {
	ts := newTestServer(t, testConfig())
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	cardID := ts.publishedCard(bob.Token, "Bob", "Taipei")

	rec, _ := ts.do(http.MethodPost, "/api/bookmark-list/cards/"+cardID, alice.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("duplicate bookmark is 409", func(t *testing.T) {
		rec, env := ts.do(http.MethodPost, "/api/bookmark-list/cards/"+cardID, alice.Token, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "error", env.Status)
	})

	rec, env := ts.do(http.MethodGet, "/api/bookmark-list/groups", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decodeData[[]groupData](t, env)
	require.Len(t, groups, 1)
	defaultGroup := groups[0]
	assert.True(t, defaultGroup.IsDefaultGroup)

	t.Run("default group cannot be deleted", func(t *testing.T) {
		rec, _ := ts.do(http.MethodDelete, "/api/bookmark-list/groups/"+defaultGroup.ID, alice.Token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("tagging and searching", func(t *testing.T) {
		rec, _ := ts.do(http.MethodPatch, "/api/bookmark-list/cards/"+cardID+"/notes", alice.Token, map[string]any{
			"note": "met at conference",
			"tags": []string{"golang"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec, env := ts.do(http.MethodGet, "/api/bookmark-list/tags", alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"golang"}, decodeData[[]string](t, env))

		rec, env = ts.do(http.MethodGet, "/api/bookmark-list/tags/golang", alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		byTag := decodeData[struct {
			Records []json.RawMessage `json:"records"`
		}](t, env)
		assert.Len(t, byTag.Records, 1)

		rec, _ = ts.do(http.MethodGet, "/api/bookmark-list/search", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "empty query")
	})

	t.Run("group contents paginate", func(t *testing.T) {
		rec, env := ts.do(http.MethodGet, "/api/bookmark-list/groups/"+defaultGroup.ID+"/cards?page=1&limit=10", alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		page := decodeData[struct {
			TotalPage   int               `json:"totalPage"`
			CurrentPage int               `json:"currentPage"`
			Records     []json.RawMessage `json:"records"`
		}](t, env)
		assert.Equal(t, 1, page.CurrentPage)
		assert.Len(t, page.Records, 1)

		rec, _ = ts.do(http.MethodGet, "/api/bookmark-list/groups/"+defaultGroup.ID+"/cards?page=0", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("removing twice is 404", func(t *testing.T) {
		rec, _ := ts.do(http.MethodDelete, "/api/bookmark-list/cards/"+cardID, alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec, _ = ts.do(http.MethodDelete, "/api/bookmark-list/cards/"+cardID, alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGroupLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig())
	alice := ts.signUp("alice")

	rec, env := ts.do(http.MethodPost, "/api/bookmark-list/groups", alice.Token, map[string]string{"name": "Work"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	groups := decodeData[[]groupData](t, env)
	require.Len(t, groups, 2)
	work := groups[1]
	assert.Equal(t, "Work", work.Name)

	rec, env = ts.do(http.MethodPatch, "/api/bookmark-list/groups/"+work.ID+"/order", alice.Token, map[string]int{"newIndex": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	groups = decodeData[[]groupData](t, env)
	assert.Equal(t, work.ID, groups[0].ID)

	rec, _ = ts.do(http.MethodPatch, "/api/bookmark-list/groups/"+work.ID, alice.Token, map[string]string{"name": "Clients"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = ts.do(http.MethodDelete, "/api/bookmark-list/groups/"+work.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	groups = decodeData[[]groupData](t, env)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].IsDefaultGroup)
}

type homepageData struct {
	Role     string                     `json:"role"`
	JobInfo  map[string]json.RawMessage `json:"jobInfo"`
	Bookmark json.RawMessage            `json:"bookmark"`
}

func TestHomepageRoles(t *testing.T) {
	ts := newTestServer(t, testConfig())
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	cardID := ts.publishedCard(bob.Token, "Bob", "Taipei")
	path := "/api/homepage/" + cardID

	t.Run("guest sees only public fields", func(t *testing.T) {
		rec, env := ts.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		view := decodeData[homepageData](t, env)
		assert.Equal(t, "guest", view.Role)
		assert.Contains(t, view.JobInfo, "name")
		assert.NotContains(t, view.JobInfo, "phoneNumber")
	})

	t.Run("author sees private fields", func(t *testing.T) {
		_, env := ts.do(http.MethodGet, path, bob.Token, nil)
		view := decodeData[homepageData](t, env)
		assert.Equal(t, "author", view.Role)
		assert.Contains(t, view.JobInfo, "phoneNumber")
	})

	t.Run("bookmarked member sees the bookmark", func(t *testing.T) {
		_, env := ts.do(http.MethodGet, path, alice.Token, nil)
		assert.Equal(t, "nonBookmarkedMember", decodeData[homepageData](t, env).Role)

		rec, _ := ts.do(http.MethodPost, "/api/bookmark-list/cards/"+cardID, alice.Token, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		_, env = ts.do(http.MethodGet, path, alice.Token, nil)
		view := decodeData[homepageData](t, env)
		assert.Equal(t, "bookmarkedMember", view.Role)
		assert.NotEmpty(t, view.Bookmark)
	})

	t.Run("unknown card is 404", func(t *testing.T) {
		rec, _ := ts.do(http.MethodGet, "/api/homepage/d0hq8k4n2s1m3v5b7c9g", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHomepageLinks(t *testing.T) {
	ts := newTestServer(t, testConfig())
	bob := ts.signUp("bob")
	alice := ts.signUp("alice")
	cardID := ts.publishedCard(bob.Token, "Bob", "Taipei")

	link := map[string]string{"type": "GITHUB", "title": "code", "link": "https://github.com/bob"}
	rec, env := ts.do(http.MethodPost, "/api/homepage/"+cardID+"/link", bob.Token, link)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	links := decodeData[[]struct {
		ID string `json:"id"`
	}](t, env)
	require.Len(t, links, 1)

	rec, _ = ts.do(http.MethodPost, "/api/homepage/"+cardID+"/link", alice.Token, link)
	assert.Equal(t, http.StatusNotFound, rec.Code, "only the owner edits links")

	rec, _ = ts.do(http.MethodPatch, "/api/homepage/"+cardID+"/job-info/toggle", bob.Token, map[string]string{"fieldName": "phoneNumber"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, env = ts.do(http.MethodGet, "/api/homepage/"+cardID, "", nil)
	assert.Contains(t, decodeData[homepageData](t, env).JobInfo, "phoneNumber")

	rec, _ = ts.do(http.MethodDelete, "/api/homepage/"+cardID+"/link/"+links[0].ID, bob.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCardWall(t *testing.T) {
	ts := newTestServer(t, testConfig())
	bob := ts.signUp("bob")
	carol := ts.signUp("carol")
	ts.publishedCard(bob.Token, "Bob", "Taipei")
	ts.publishedCard(carol.Token, "Carol", "Tainan")

	rec, env := ts.do(http.MethodPost, "/api/portfolio", bob.Token, map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, decodeData[cardData](t, env).IsPublished)

	type wall struct {
		Records []struct {
			Name string `json:"name"`
		} `json:"records"`
	}

	rec, env = ts.do(http.MethodGet, "/api/card-wall", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeData[wall](t, env).Records, 2, "unpublished cards stay off the wall")

	_, env = ts.do(http.MethodGet, "/api/card-wall?city=Tainan", "", nil)
	records := decodeData[wall](t, env).Records
	require.Len(t, records, 1)
	assert.Equal(t, "Carol", records[0].Name)
}

func TestNotifyFollowers(t *testing.T) {
	ts := newTestServer(t, testConfig())
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	cardID := ts.publishedCard(bob.Token, "Bob", "Taipei")

	rec, _ := ts.do(http.MethodPost, "/api/bookmark-list/cards/"+cardID, alice.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := ts.do(http.MethodPost, "/api/messages/"+cardID, bob.Token, map[string]string{
		"messageBody": "new number", "category": "CHANGE",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeData[map[string]int](t, env)["sent"])

	_, env = ts.do(http.MethodGet, "/api/users/navbar", alice.Token, nil)
	assert.EqualValues(t, 1, decodeData[map[string]any](t, env)["unreadCount"])

	rec, env = ts.do(http.MethodGet, "/api/messages?category=CHANGE", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inbox := decodeData[[]struct {
		ID string `json:"id"`
	}](t, env)
	require.Len(t, inbox, 1)

	rec, _ = ts.do(http.MethodPatch, "/api/messages/"+inbox[0].ID+"/read", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = ts.do(http.MethodGet, "/api/users/navbar", alice.Token, nil)
	assert.EqualValues(t, 0, decodeData[map[string]any](t, env)["unreadCount"])
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRatePerMinute = 2
	ts := newTestServer(t, cfg)

	body := map[string]string{"email": "nobody@example.com", "password": "password1"}
	for i := 0; i < 2; i++ {
		rec, _ := ts.do(http.MethodPost, "/api/users/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, _ := ts.do(http.MethodPost, "/api/users/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestGoogleRoutesDisabledWithoutCredentials(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/users/google", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoogleLoginRedirects(t *testing.T) {
	cfg := testConfig()
	cfg.Google = config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "http://localhost:8080/api/users/google/callback",
	}
	ts := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/users/google", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "accounts.google.com")
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
