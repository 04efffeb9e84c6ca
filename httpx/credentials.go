package httpx

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/oauth"
	"github.com/mbolis/survey-intake/config"
	"github.com/mbolis/survey-intake/users"
)

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

type credentialsVerifier struct {
	db         *sql.DB
	users      *users.Store
	refreshTTL time.Duration
}

func CredentialsVerifier(db *sql.DB, refreshTTL time.Duration) oauth.CredentialsVerifier {
	return &credentialsVerifier{db, users.NewStore(db), refreshTTL}
}

// NewBearerServer issues the access and refresh tokens carried by session
// cookies and by API clients.
func NewBearerServer(db *sql.DB, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(db, cfg.RefreshTTL), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	u, err := cs.users.ByUsername(r.Context(), username)
	if err != nil {
		return err
	}
	return users.Authenticate(u, password)
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	now := time.Now().UTC()
	// housekeeping: drop what can no longer be refreshed
	_, err := cs.db.Exec(`DELETE FROM token WHERE username = ? AND expiration < ?`, credential, now)
	if err != nil {
		return err
	}

	_, err = cs.db.Exec(
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		credential,
		tokenID,
		refreshTokenID,
		now.Add(cs.refreshTTL),
	)
	return err
}

// ValidateTokenID consumes a refresh token: each one can be used once.
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	tx, err := cs.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var expiration time.Time
	err = tx.
		QueryRow(`
			SELECT expiration FROM token
			WHERE username = ?
				AND token_id = ?
				AND refresh_token_id = ?`,
			credential,
			tokenID,
			refreshTokenID,
		).
		Scan(&expiration)
	if err != nil {
		return errors.New("could not refresh")
	}

	res, err := tx.Exec(`
		DELETE FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?`,
		credential,
		tokenID,
		refreshTokenID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return errors.New("could not refresh")
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	if expiration.Before(time.Now()) {
		return errors.New("could not refresh")
	}
	return nil
}
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	u, err := cs.users.ByUsername(r.Context(), credential)
	if err != nil {
		return nil, err
	}

	role := RoleViewer
	if u.IsAdmin {
		role = RoleAdmin
	}
	return map[string]string{
		"roles":  role,
		"is_new": strconv.FormatBool(u.IsNew),
	}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}

// RevokeTokens drops every refresh token of a user, ending all sessions once
// their access tokens expire.
func RevokeTokens(db *sql.DB, username string) error {
	_, err := db.Exec(`DELETE FROM token WHERE username = ?`, username)
	return err
}
