package routes

import (
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-intake/app"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/log"
	"github.com/mbolis/survey-intake/routes/middlewares"
	"github.com/mbolis/survey-intake/users"
)

// Login exchanges HTTP basic credentials for a token pair, for API clients.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		body := httpx.PasswordGrant(user, pass).Encode()
		r.Body = io.NopCloser(strings.NewReader(body))
		r.Header.Set("content-type", "application/x-www-form-urlencoded")
		r.Header.Set("content-length", strconv.Itoa(len(body)))
		app.UserCredentials(w, r)
	}
}

var refreshAuth = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Refresh exchanges the refresh token found in "Authorization: Refresh <token>"
// for a new token pair.
func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := refreshAuth.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		tokens, err := httpx.RequestTokens(app.BearerServer, httpx.RefreshGrant(match[1]))
		var status httpx.StatusError
		if errors.As(err, &status) {
			httpx.LogStatus(w, int(status), log.DebugLevel, "refresh.grant")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "refresh.grant", err)
			return
		}
		render.JSON(w, r, tokens)
	}
}

// safeGoto keeps post-login redirects on this site.
func safeGoto(location string) string {
	if !strings.HasPrefix(location, "/") || strings.HasPrefix(location, "//") || strings.HasPrefix(location, "/\\") {
		return "/dashboard"
	}
	return location
}

func LoginPage(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(app, w, r, http.StatusOK, "login.html", page{
			Title: "Login",
			Data:  map[string]any{"Goto": r.URL.Query().Get("goto")},
		})
	}
}

// LoginSubmit signs a user in from the login form and stores the token pair
// in cookies. New accounts are sent to change their password first.
func LoginSubmit(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")
		goTo := r.PostFormValue("goto")

		failed := func(msg string) {
			app.Flashes.Add(w, r, "danger", msg)
			renderPage(app, w, r, http.StatusUnauthorized, "login.html", page{
				Title: "Login",
				Data:  map[string]any{"Goto": goTo},
			})
		}

		u, err := app.Users.ByUsername(r.Context(), username)
		if errors.Is(err, users.ErrNotFound) {
			log.Debugf("login: unknown user %q", username)
			failed("User does not exist")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.login.user", err)
			return
		}

		tokens, err := httpx.RequestTokens(app.BearerServer, httpx.PasswordGrant(username, password))
		var status httpx.StatusError
		if errors.As(err, &status) {
			log.Debugf("login: rejected %q", username)
			failed("Invalid credentials")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "login.grant", err)
			return
		}
		httpx.SetSessionCookies(w, tokens, app.RefreshMaxAge())
		log.Infof("login: %s signed in", username)

		if u.IsNew {
			redirectWithFlash(app, w, r, "/change_password?show_modal=true", "warning", "You must change your password before proceeding.")
			return
		}
		http.Redirect(w, r, safeGoto(goTo), http.StatusSeeOther)
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := middlewares.Username(r)
		if err := httpx.RevokeTokens(app.DB, username); err != nil {
			httpx.LogInternalError(w, "db.logout.revoke", err)
			return
		}
		httpx.ClearSessionCookies(w)
		log.Infof("logout: %s signed out", username)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

func ChangePasswordPage(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(app, w, r, http.StatusOK, "change_password.html", page{
			Title: "Change password",
			Data:  map[string]any{"ShowModal": r.URL.Query().Get("show_modal") == "true"},
		})
	}
}

// ChangePassword replaces the password of the signed in user, then ends the
// session so the next login uses the new one.
func ChangePassword(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.PostFormValue("password")
		if password == "" {
			redirectWithFlash(app, w, r, "/change_password", "danger", "Password must not be empty")
			return
		}

		username := middlewares.Username(r)
		u, err := app.Users.ByUsername(r.Context(), username)
		if err != nil {
			httpx.LogInternalError(w, "db.change_password.user", err)
			return
		}
		if err = app.Users.ChangePassword(r.Context(), u.ID, password); err != nil {
			httpx.LogInternalError(w, "db.change_password", err)
			return
		}
		if err = httpx.RevokeTokens(app.DB, username); err != nil {
			httpx.LogInternalError(w, "db.change_password.revoke", err)
			return
		}
		httpx.ClearSessionCookies(w)
		log.Infof("change_password: %s updated their password", username)

		redirectWithFlash(app, w, r, "/login", "success", "Your password has been updated!")
	}
}
