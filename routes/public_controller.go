package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-intake/app"
	"github.com/mbolis/survey-intake/database"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/log"
	"github.com/mbolis/survey-intake/survey"
)

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

func Index(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.SurveyURL == "" {
			httpx.LogStatusMsg(w, http.StatusInternalServerError, log.ErrorLevel, "index.survey_url", "SURVEY_URL not set")
			return
		}
		renderPage(app, w, r, http.StatusOK, "index.html", page{
			Title: "Survey",
			Data:  map[string]any{"SurveyURL": app.SurveyURL},
		})
	}
}

func webhookError(w http.ResponseWriter, r *http.Request, code string, level log.Level, msg string) {
	httpx.LogJSON(w, r, http.StatusBadRequest, level, code, map[string]string{
		"status":  "error",
		"message": msg,
	})
}

// Webhook stores one form submission. Submissions are identified by their
// instanceID: deliveries of an already stored one are acknowledged and
// ignored.
func Webhook(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]survey.Value
		err := render.DecodeJSON(r.Body, &raw)
		if err != nil && !errors.Is(err, io.EOF) {
			webhookError(w, r, "webhook.decode", log.InfoLevel, err.Error())
			return
		}
		log.Debugf("webhook: received %d fields", len(raw))

		payload, err := app.Reshaper.Reshape(raw)
		if err != nil {
			webhookError(w, r, "webhook.reshape", log.InfoLevel, err.Error())
			return
		}

		outcome, err := survey.Ingest(r.Context(), app.DB, payload)
		switch {
		case database.IsIntegrityError(err):
			log.WithError(err).Warn("webhook.integrity")
			webhookError(w, r, "webhook.integrity", log.DebugLevel, "Database integrity error")
			return
		case err != nil:
			webhookError(w, r, "webhook.ingest", log.WarnLevel, err.Error())
			return
		}

		if outcome.Status == survey.StatusDuplicate {
			log.Infof("webhook: duplicate submission %s", payload.Get("instanceID"))
			render.JSON(w, r, map[string]string{
				"status":  "duplicate",
				"message": "Record already exists",
			})
			return
		}

		log.WithFields(log.Fields{
			"survey_id":   outcome.SurveyID,
			"instance_id": payload.Get("instanceID").String(),
		}).Info("webhook: stored submission")
		render.JSON(w, r, map[string]any{
			"status":         "success",
			"processed_data": payload,
		})
	}
}
