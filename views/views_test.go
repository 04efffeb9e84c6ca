package views

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFlash struct{ Category, Message string }

type testPage struct {
	Title    string
	Username string
	IsAdmin  bool
	Flashes  []testFlash
	Data     map[string]any
}

func TestRenderPages(t *testing.T) {
	v, err := Parse()
	require.NoError(t, err)

	for _, name := range []string{
		"index.html",
		"login.html",
		"change_password.html",
		"admin_dashboard.html",
		"user_dashboard.html",
		"create_user.html",
		"demographic_charts.html",
		"survey_graphs.html",
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			err := v.Render(rec, http.StatusOK, name, testPage{Title: name, Data: map[string]any{}})
			require.NoError(t, err)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("content-type"))
			assert.Contains(t, rec.Body.String(), "<title>"+name+"</title>")
		})
	}
}

func TestRenderEscapes(t *testing.T) {
	v, err := Parse()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = v.Render(rec, http.StatusUnauthorized, "login.html", testPage{
		Title:   "Login",
		Flashes: []testFlash{{"danger", "<b>Invalid credentials</b>"}},
		Data:    map[string]any{"Goto": "/survey"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="flash flash-danger"`)
	assert.Contains(t, body, "&lt;b&gt;Invalid credentials&lt;/b&gt;")
	assert.Contains(t, body, `value="/survey"`)
	assert.NotContains(t, body, "<nav>", "anonymous pages have no menu")
}

func TestRenderUnknownPage(t *testing.T) {
	v, err := Parse()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	assert.Error(t, v.Render(rec, http.StatusOK, "missing.html", nil))
	assert.Empty(t, rec.Body.String())
}
