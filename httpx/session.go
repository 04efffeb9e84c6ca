package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/oauth"
	"github.com/pkg/errors"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// StatusError carries the status the bearer server answered with.
type StatusError int

func (e StatusError) Error() string {
	return "bearer server: " + http.StatusText(int(e))
}

// RequestTokens runs a token grant against the bearer server outside of a
// client request. form holds grant_type and the fields that grant needs.
func RequestTokens(bs *oauth.BearerServer, form url.Values) (Tokens, error) {
	body := form.Encode()
	req, err := http.NewRequest("POST", "/", strings.NewReader(body))
	if err != nil {
		return Tokens{}, errors.Wrap(err, "new token request")
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(body)))

	resp := NewResponseBuffer()
	bs.UserCredentials(resp, req)
	if resp.Status() != http.StatusOK {
		return Tokens{}, StatusError(resp.Status())
	}

	var tokens Tokens
	if err := resp.DecodeJSON(&tokens); err != nil {
		return Tokens{}, errors.Wrap(err, "decode tokens")
	}
	return tokens, nil
}

func PasswordGrant(username, password string) url.Values {
	return url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
}

func RefreshGrant(refreshToken string) url.Values {
	return url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
}

// SetSessionCookies stores a token pair in the browser. The refresh cookie
// outlives the access cookie by refreshMaxAge seconds.
func SetSessionCookies(w http.ResponseWriter, tokens Tokens, refreshMaxAge int) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     AccessTokenCookie,
		Value:    tokens.AccessToken,
		MaxAge:   int(tokens.ExpiresIn),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		MaxAge:   refreshMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Path:     "/",
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
