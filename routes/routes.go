package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/survey-intake/app"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/log"
	"github.com/mbolis/survey-intake/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.Logger, NoColor: true}),
		middleware.Recoverer,
	)

	root.Get("/health", Health)
	root.With(httpx.WebhookAuth(app.WebhookSecret)).Post("/webhook", Webhook(app))

	root.Mount("/api", apiRouter(app))

	root.Get("/", Index(app))
	root.Get("/login", LoginPage(app))
	root.Post("/login", LoginSubmit(app))

	root.Group(func(r chi.Router) {
		r.Use(middlewares.Guard(app.BearerServer, app.TokenSecret, app.RefreshMaxAge(), true)...)

		r.Get("/logout", Logout(app))
		r.Get("/change_password", ChangePasswordPage(app))
		r.Post("/change_password", ChangePassword(app))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.PasswordChanged(true))

			r.Get("/dashboard", Dashboard(app))
			r.Get("/demographic", DemographicCharts(app))
			r.Get("/survey", SurveyCharts(app))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewares.Admin)

				r.Get("/create_user", CreateUserPage(app))
				r.Post("/create_user", CreateUser(app))
				r.Post(`/delete_user/{id:^\d+$}`, DeleteUser(app))
			})
		})
	})

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	api.Group(func(r chi.Router) {
		r.Use(middlewares.Guard(app.BearerServer, app.TokenSecret, app.RefreshMaxAge(), false)...)
		r.Use(middlewares.PasswordChanged(false))

		r.Get("/forms", ListForms(app))
		r.Get("/category_counts", CategoryCounts(app))
		r.Get("/category_scores", CategoryScores(app))
	})

	return api
}
