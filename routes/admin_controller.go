package routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mbolis/survey-intake/app"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/log"
	"github.com/mbolis/survey-intake/routes/middlewares"
	"github.com/mbolis/survey-intake/users"
)

// Dashboard shows administrators the user list, everybody else the chart
// links.
func Dashboard(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !middlewares.HasRole(r, httpx.RoleAdmin) {
			renderPage(app, w, r, http.StatusOK, "user_dashboard.html", page{Title: "Dashboard"})
			return
		}

		list, err := app.Users.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "db.list_users", err)
			return
		}
		renderPage(app, w, r, http.StatusOK, "admin_dashboard.html", page{
			Title: "Admin dashboard",
			Data:  map[string]any{"Users": list},
		})
	}
}

func DemographicCharts(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(app, w, r, http.StatusOK, "demographic_charts.html", page{Title: "Demographics"})
	}
}

func SurveyCharts(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(app, w, r, http.StatusOK, "survey_graphs.html", page{Title: "Survey results"})
	}
}

func CreateUserPage(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(app, w, r, http.StatusOK, "create_user.html", page{Title: "Create user"})
	}
}

// CreateUser adds an account from the admin form. The password may be left
// empty: the new user then picks one at first login.
func CreateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nu := users.NewUser{
			Username: strings.TrimSpace(r.PostFormValue("username")),
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Password: r.PostFormValue("password"),
			IsAdmin:  r.PostFormValue("is_admin") == "on",
		}
		if nu.Username == "" || nu.Email == "" {
			redirectWithFlash(app, w, r, "/admin/create_user", "danger", "Username and email are required")
			return
		}

		actor, err := app.Users.ByUsername(r.Context(), middlewares.Username(r))
		if err != nil {
			httpx.LogInternalError(w, "db.create_user.actor", err)
			return
		}

		u, err := app.Users.Create(r.Context(), actor.ID, nu)
		if errors.Is(err, users.ErrUserExists) {
			redirectWithFlash(app, w, r, "/admin/create_user", "danger", "Username or email already in use")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.create_user", err)
			return
		}
		log.WithFields(log.Fields{
			"user":  u.Username,
			"admin": u.IsAdmin,
			"by":    actor.Username,
		}).Info("create_user: account created")

		redirectWithFlash(app, w, r, "/dashboard", "success", "User created successfully")
	}
}

func DeleteUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		target, err := app.Users.ByID(r.Context(), userID)
		if errors.Is(err, users.ErrNotFound) {
			redirectWithFlash(app, w, r, "/dashboard", "danger", "User not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_user.find", err)
			return
		}
		if target.Username == middlewares.Username(r) {
			redirectWithFlash(app, w, r, "/dashboard", "danger", "You cannot delete your own account")
			return
		}

		err = app.Users.Delete(r.Context(), userID)
		if errors.Is(err, users.ErrNotFound) {
			redirectWithFlash(app, w, r, "/dashboard", "danger", "User not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_user", err)
			return
		}
		log.Infof("delete_user: %s removed by %s", target.Username, middlewares.Username(r))

		redirectWithFlash(app, w, r, "/dashboard", "success", "User deleted successfully")
	}
}
