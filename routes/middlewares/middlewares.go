package middlewares

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/mbolis/survey-intake/httpx"
	"github.com/mbolis/survey-intake/log"
)

// Claims returns the claims of the token validated by Authenticated.
func Claims(r *http.Request) map[string]string {
	claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	return claims
}

// Username returns the subject of the token validated by Authenticated.
func Username(r *http.Request) string {
	username, _ := r.Context().Value(oauth.CredentialContext).(string)
	return username
}

func HasRole(r *http.Request, role string) bool {
	rolesClaim, ok := Claims(r)["roles"]
	if !ok {
		return false
	}
	for _, rr := range strings.Split(rolesClaim, ",") {
		if rr == role {
			return true
		}
	}
	return false
}

// Authenticated rejects requests without a valid bearer token.
func Authenticated(secret string) func(http.Handler) http.Handler {
	return oauth.Authorize(secret, nil)
}

// Admin middleware to check for the 'admin' role in an OAuth token.
// Page visits from other users are sent back to their dashboard.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !HasRole(r, httpx.RoleAdmin) {
			if r.Method == http.MethodGet {
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			httpx.LogStatus(w, http.StatusForbidden, log.InfoLevel, "admin.role")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PasswordChanged holds back accounts that still have to replace their
// initial password.
func PasswordChanged(redirect bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Claims(r)["is_new"] == "true" {
				if redirect {
					http.Redirect(w, r, "/change_password?show_modal=true", http.StatusSeeOther)
					return
				}
				httpx.LogJSON(w, r, http.StatusForbidden, log.InfoLevel, "password_changed", map[string]string{
					"error": "password change required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard chains the middlewares every private route needs.
func Guard(bs *oauth.BearerServer, secret string, refreshMaxAge int, redirect bool) chi.Middlewares {
	return chi.Chain(CookieAuth(bs, refreshMaxAge, redirect), Authenticated(secret))
}

// CookieAuth turns the session cookies into a bearer authorization header,
// refreshing the token pair when the access token is gone or rejected.
// Requests that already carry an authorization header pass through.
func CookieAuth(bearerServer *oauth.BearerServer, refreshMaxAge int, redirect bool) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("authorization") != "" {
				h.ServeHTTP(w, r)
				return
			}

			unauthorized := func() {
				if redirect && r.Method == http.MethodGet {
					http.Redirect(w, r, "/login?goto="+url.QueryEscape(r.RequestURI), http.StatusTemporaryRedirect)
					return
				}
				httpx.LogJSON(w, r, http.StatusUnauthorized, log.DebugLevel, "cookie_auth", map[string]string{
					"error": "not authenticated",
				})
			}

			token, err := r.Cookie(httpx.AccessTokenCookie)
			if err == nil {
				r.Header.Set("authorization", "Bearer "+token.Value)
				// a request body cannot be replayed after a refresh
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					h.ServeHTTP(w, r)
					return
				}
				buf := httpx.NewResponseBuffer()
				h.ServeHTTP(buf, r)
				if buf.Status() != http.StatusUnauthorized {
					buf.Flush(w)
					return
				}
			}

			// token was empty or unauthorized
			refreshToken, err := r.Cookie(httpx.RefreshTokenCookie)
			if err != nil {
				unauthorized()
				return
			}

			tokens, err := httpx.RequestTokens(bearerServer, httpx.RefreshGrant(refreshToken.Value))
			if err != nil {
				log.Debug("cookie_auth.refresh:", err)
				httpx.ClearSessionCookies(w)
				unauthorized()
				return
			}
			httpx.SetSessionCookies(w, tokens, refreshMaxAge)

			r.Header.Set("authorization", "Bearer "+tokens.AccessToken)
			h.ServeHTTP(w, r)
		})
	}
}
