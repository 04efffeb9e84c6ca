package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mbolis/survey-intake/app"
	"github.com/mbolis/survey-intake/config"
	"github.com/mbolis/survey-intake/database"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app     app.App
	handler http.Handler
}

func newTestEnv(t *testing.T, configure ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Config{
		DBUrl:       filepath.Join(t.TempDir(), "test.sqlite"),
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
		RefreshTTL:  time.Hour,
		SurveyURL:   "https://forms.example.org/kippra",
	}
	for _, c := range configure {
		c(&cfg)
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := app.New(db, cfg)
	require.NoError(t, err)
	return &testEnv{a, Wire(a)}
}

// createUser adds an account; passing done marks its password as already
// changed.
func (env *testEnv) createUser(t *testing.T, nu users.NewUser, done bool) {
	t.Helper()
	ctx := context.Background()
	u, err := env.app.Users.Create(ctx, 0, nu)
	require.NoError(t, err)
	if done {
		require.NoError(t, env.app.Users.ChangePassword(ctx, u.ID, nu.Password))
	}
}

// client keeps the cookies a browser would.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (env *testEnv) client() *client {
	return &client{env, map[string]*http.Cookie{}}
}

func (c *client) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c.env.handler.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
		} else {
			c.cookies[cookie.Name] = cookie
		}
	}
	return rec
}

func (c *client) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return c.do(t, httptest.NewRequest("GET", path, nil))
}

func (c *client) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	return c.do(t, req)
}

func (c *client) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return c.postForm(t, "/login", url.Values{"username": {username}, "password": {password}})
}

func postWebhook(t *testing.T, env *testEnv, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("content-type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.client().get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t)
	rec := env.client().get(t, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="https://forms.example.org/kippra"`)

	env = newTestEnv(t, func(cfg *config.Config) { cfg.SurveyURL = "" })
	rec = env.client().get(t, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "SURVEY_URL not set")
}

const submission = `{
	"formdef_id": "kippra_css",
	"formdef_version": "1",
	"instanceID": "uuid:0001",
	"SubmissionDate": "2024-05-10T08:30:15.123Z",
	"age": "25-34",
	"org_role": "manager",
	"org_category": "2",
	"prod_1": "4",
	"prod_2": "5",
	"channel_1": "2"
}`

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := postWebhook(t, env, submission)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", resp["status"])
	processed := resp["processed_data"].(map[string]any)
	assert.Equal(t, "uuid:0001", processed["instanceID"])
	assert.Equal(t, map[string]any{"prod_1": "4", "prod_2": "5"}, processed["prod"])

	rec, resp = postWebhook(t, env, submission)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "duplicate", "message": "Record already exists"}, resp)

	var n int
	require.NoError(t, env.app.QueryRow(`SELECT COUNT(*) FROM survey`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWebhookErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", ``, "no JSON data received"},
		{"null body", `null`, "no JSON data received"},
		{"empty object", `{}`, "no JSON data received"},
		{"missing instanceID", `{"age":"25-34"}`, "missing instanceID"},
		{"null grouped answer", `{"instanceID":"uuid:x","prod_1":"1","prod_2":null}`, "Database integrity error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := postWebhook(t, env, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", resp["status"])
			assert.Equal(t, tt.message, resp["message"])
		})
	}

	rec, resp := postWebhook(t, env, `{"instanceID":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", resp["status"])
}

func TestWebhookSecret(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.WebhookSecret = "s3cret" })

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(submission))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(submission))
	req.Header.Set(httpx.WebhookAuthHeader, httpx.WebhookHash([]byte(submission), "s3cret"))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPagesNeedLogin(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	for _, path := range []string{"/dashboard", "/survey", "/demographic", "/admin/create_user"} {
		rec := c.get(t, path)
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code, path)
		assert.Equal(t, "/login?goto="+url.QueryEscape(path), rec.Header().Get("location"))
	}

	rec := c.get(t, "/api/forms")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"not authenticated"}`, rec.Body.String())
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, users.NewUser{Username: "viewer", Email: "viewer@example.org", Password: "pw"}, true)
	c := env.client()

	rec := c.get(t, "/login?goto=/survey")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="/survey"`)

	rec = c.login(t, "nobody", "pw")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "User does not exist")

	rec = c.login(t, "viewer", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
	assert.NotContains(t, c.cookies, httpx.AccessTokenCookie)

	rec = c.postForm(t, "/login", url.Values{"username": {"viewer"}, "password": {"pw"}, "goto": {"/survey"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/survey", rec.Header().Get("location"))
	assert.Contains(t, c.cookies, httpx.AccessTokenCookie)
	assert.Contains(t, c.cookies, httpx.RefreshTokenCookie)

	rec = c.get(t, "/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logout (viewer)")
	assert.NotContains(t, rec.Body.String(), "/admin/create_user")

	rec = c.get(t, "/logout")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("location"))
	assert.Empty(t, c.cookies)
	assert.Equal(t, http.StatusTemporaryRedirect, c.get(t, "/dashboard").Code)
}

func TestLoginRedirectStaysLocal(t *testing.T) {
	assert.Equal(t, "/survey?x=1", safeGoto("/survey?x=1"))
	assert.Equal(t, "/dashboard", safeGoto(""))
	assert.Equal(t, "/dashboard", safeGoto("https://evil.example.org"))
	assert.Equal(t, "/dashboard", safeGoto("//evil.example.org"))
	assert.Equal(t, "/dashboard", safeGoto(`/\evil.example.org`))
}

func TestNewAccountMustChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, users.NewUser{Username: "fresh", Email: "fresh@example.org"}, false)
	c := env.client()

	rec := c.login(t, "fresh", "whatever")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/change_password?show_modal=true", rec.Header().Get("location"))

	rec = c.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/change_password?show_modal=true", rec.Header().Get("location"))

	rec = c.get(t, "/api/forms")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.get(t, "/change_password?show_modal=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="modal"`)
	assert.Contains(t, rec.Body.String(), "You must change your password before proceeding.")

	rec = c.postForm(t, "/change_password", url.Values{"password": {""}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/change_password", rec.Header().Get("location"))

	rec = c.postForm(t, "/change_password", url.Values{"password": {"n3w"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("location"))
	assert.NotContains(t, c.cookies, httpx.AccessTokenCookie)

	rec = c.get(t, "/login")
	assert.Contains(t, rec.Body.String(), "Your password has been updated!")

	assert.Equal(t, http.StatusUnauthorized, c.login(t, "fresh", "whatever").Code)
	rec = c.login(t, "fresh", "n3w")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("location"))
	assert.Equal(t, http.StatusOK, c.get(t, "/dashboard").Code)
}

func TestSessionRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, users.NewUser{Username: "viewer", Email: "viewer@example.org", Password: "pw"}, true)
	c := env.client()
	c.login(t, "viewer", "pw")

	oldRefresh := c.cookies[httpx.RefreshTokenCookie].Value
	delete(c.cookies, httpx.AccessTokenCookie)

	rec := c.get(t, "/survey")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, c.cookies, httpx.AccessTokenCookie)
	assert.NotEqual(t, oldRefresh, c.cookies[httpx.RefreshTokenCookie].Value)

	c.cookies[httpx.AccessTokenCookie].Value = "garbage"
	rec = c.get(t, "/api/forms")
	assert.Equal(t, http.StatusOK, rec.Code)

	stale := env.client()
	stale.cookies[httpx.RefreshTokenCookie] = &http.Cookie{Name: httpx.RefreshTokenCookie, Value: oldRefresh}
	rec = stale.get(t, "/survey")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code, "refresh tokens are single use")
}

func TestAPI(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, users.NewUser{Username: "viewer", Email: "viewer@example.org", Password: "pw"}, true)
	postWebhook(t, env, submission)
	c := env.client()
	c.login(t, "viewer", "pw")

	rec := c.get(t, "/api/forms")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"kippra_css","name":"kippra_css"}]`, rec.Body.String())

	rec = c.get(t, "/api/category_counts")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"formdef_id is required"}`, rec.Body.String())

	rec = c.get(t, "/api/category_counts?formdef_id=kippra_css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"Dissemination channels": {"Q1": {"Disagree": 1}},
		"products and services": {"Q1": {"Agree": 1}, "Q2": {"Strongly Agree": 1}}
	}`, rec.Body.String())

	rec = c.get(t, "/api/category_counts?formdef_id=kippra_css&role=director")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = c.get(t, "/api/category_scores")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"formdef_id is required"}`, rec.Body.String())

	rec = c.get(t, "/api/category_scores?formdef_id=kippra_css")
	assert.Equal(t, http.StatusOK, rec.Code)
	var scores map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	assert.Equal(t, []map[string]any{{"key": "25-34", "count": float64(1)}}, scores["Age"])
	assert.Equal(t, []map[string]any{{"key": "Public", "count": float64(1)}}, scores["Organization Type"])
}

func TestAPIBearerClients(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, users.NewUser{Username: "robot", Email: "robot@example.org", Password: "pw"}, true)

	req := httptest.NewRequest("POST", "/api/login", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest("POST", "/api/login", nil)
	req.SetBasicAuth("robot", "pw")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tokens httpx.Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))

	req = httptest.NewRequest("GET", "/api/forms", nil)
	req.Header.Set("authorization", "Bearer "+tokens.AccessToken)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	req = httptest.NewRequest("POST", "/api/refresh", nil)
	req.Header.Set("authorization", "Refresh "+tokens.RefreshToken)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("POST", "/api/refresh", nil)
	req.Header.Set("authorization", "Refresh "+tokens.RefreshToken)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, users.NewUser{Username: "boss", Email: "boss@example.org", Password: "pw", IsAdmin: true}, true)
	env.createUser(t, users.NewUser{Username: "viewer", Email: "viewer@example.org", Password: "pw"}, true)
	ctx := context.Background()

	viewer := env.client()
	viewer.login(t, "viewer", "pw")
	rec := viewer.get(t, "/admin/create_user")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("location"))
	rec = viewer.postForm(t, "/admin/create_user", url.Values{"username": {"x"}, "email": {"x@example.org"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	boss := env.client()
	boss.login(t, "boss", "pw")

	rec = boss.get(t, "/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "viewer@example.org")

	assert.Equal(t, http.StatusOK, boss.get(t, "/admin/create_user").Code)

	rec = boss.postForm(t, "/admin/create_user", url.Values{
		"username": {"analyst"},
		"email":    {"analyst@example.org"},
		"is_admin": {"on"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("location"))
	assert.Contains(t, boss.get(t, "/dashboard").Body.String(), "User created successfully")

	analyst, err := env.app.Users.ByUsername(ctx, "analyst")
	require.NoError(t, err)
	assert.True(t, analyst.IsAdmin)
	assert.True(t, analyst.IsNew)
	bossUser, err := env.app.Users.ByUsername(ctx, "boss")
	require.NoError(t, err)
	activity, err := env.app.Users.Activity(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, bossUser.ID, activity.CreateUID)

	rec = boss.postForm(t, "/admin/create_user", url.Values{"username": {"analyst"}, "email": {"other@example.org"}})
	assert.Equal(t, "/admin/create_user", rec.Header().Get("location"))
	assert.Contains(t, boss.get(t, "/admin/create_user").Body.String(), "Username or email already in use")

	rec = boss.postForm(t, "/admin/create_user", url.Values{"username": {""}, "email": {""}})
	assert.Equal(t, "/admin/create_user", rec.Header().Get("location"))

	rec = boss.postForm(t, "/admin/delete_user/"+itoa(analyst.ID), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, boss.get(t, "/dashboard").Body.String(), "User deleted successfully")
	_, err = env.app.Users.ByID(ctx, analyst.ID)
	assert.ErrorIs(t, err, users.ErrNotFound)

	boss.postForm(t, "/admin/delete_user/"+itoa(analyst.ID), nil)
	assert.Contains(t, boss.get(t, "/dashboard").Body.String(), "User not found")

	boss.postForm(t, "/admin/delete_user/"+itoa(bossUser.ID), nil)
	assert.Contains(t, boss.get(t, "/dashboard").Body.String(), "You cannot delete your own account")
	_, err = env.app.Users.ByID(ctx, bossUser.ID)
	assert.NoError(t, err)
}
