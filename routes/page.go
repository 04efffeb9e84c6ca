package routes

import (
	"net/http"

	"github.com/mbolis/survey-intake/app"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/routes/middlewares"
)

type page struct {
	Title    string
	Username string
	IsAdmin  bool
	Flashes  []httpx.Flash
	Data     map[string]any
}

func renderPage(app app.App, w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.Username = middlewares.Username(r)
	p.IsAdmin = middlewares.HasRole(r, httpx.RoleAdmin)
	p.Flashes = app.Flashes.Pop(w, r)
	if p.Data == nil {
		p.Data = map[string]any{}
	}

	if err := app.Views.Render(w, status, name, p); err != nil {
		httpx.LogInternalError(w, "render."+name, err)
	}
}

func redirectWithFlash(app app.App, w http.ResponseWriter, r *http.Request, location, category, message string) {
	app.Flashes.Add(w, r, category, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}
