package app

import (
	"database/sql"

	"github.com/go-chi/oauth"
	"github.com/mbolis/survey-intake/config"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/survey"
	"github.com/mbolis/survey-intake/users"
	"github.com/mbolis/survey-intake/views"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Users    *users.Store
	Reshaper survey.Reshaper
	Views    *views.Views
	Flashes  *httpx.Flashes
}

func New(db *sql.DB, cfg config.Config) (App, error) {
	v, err := views.Parse()
	if err != nil {
		return App{}, err
	}
	return App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
		Users:        users.NewStore(db),
		Reshaper:     survey.NewReshaper(cfg.FlatFields),
		Views:        v,
		Flashes:      httpx.NewFlashes(cfg.TokenSecret),
	}, nil
}
