package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-intake/app"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/log"
	"github.com/mbolis/survey-intake/survey"
)

func formRequired(w http.ResponseWriter, r *http.Request, code string) {
	httpx.LogJSON(w, r, http.StatusBadRequest, log.DebugLevel, code, map[string]string{
		"error": survey.ErrFormRequired.Error(),
	})
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := survey.Forms(r.Context(), app.DB)
		if err != nil {
			httpx.LogInternalErrorJSON(w, r, "db.list_forms", err, "Failed to fetch forms")
			return
		}
		render.JSON(w, r, forms)
	}
}

// CategoryCounts answers with category -> question -> answer -> count for a
// form, optionally restricted to one category and one respondent role.
func CategoryCounts(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		counts, err := survey.CountCategories(r.Context(), app.DB, survey.CountsFilter{
			FormID:   q.Get("formdef_id"),
			Category: q.Get("category"),
			Role:     q.Get("role"),
		})
		if errors.Is(err, survey.ErrFormRequired) {
			formRequired(w, r, "category_counts.formdef_id")
			return
		}
		if err != nil {
			httpx.LogInternalErrorJSON(w, r, "db.category_counts", err, "Failed to fetch category counts")
			return
		}
		render.JSON(w, r, counts)
	}
}

func CategoryScores(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores, err := survey.ScoreCategories(r.Context(), app.DB, r.URL.Query().Get("formdef_id"))
		if errors.Is(err, survey.ErrFormRequired) {
			formRequired(w, r, "category_scores.formdef_id")
			return
		}
		if err != nil {
			httpx.LogInternalErrorJSON(w, r, "db.category_scores", err, "Failed to fetch category scores")
			return
		}
		render.JSON(w, r, scores)
	}
}
