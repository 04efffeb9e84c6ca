package httpx

import (
	"bytes"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/mbolis/survey-intake/log"
)

const WebhookAuthHeader = "X-Webhook-Auth-Hash"

// WebhookHash is base64(sha512(body + secret)), the value senders put in
// the X-Webhook-Auth-Hash header.
func WebhookHash(body []byte, secret string) string {
	h := sha512.New()
	h.Write(body)
	h.Write([]byte(secret))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WebhookAuth rejects deliveries whose hash header does not match the body.
// An empty secret accepts every delivery.
func WebhookAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				LogStatusMsg(w, http.StatusBadRequest, log.InfoLevel, "webhook.read_body", "could not read body")
				return
			}
			r.Body.Close()

			got := r.Header.Get(WebhookAuthHeader)
			want := WebhookHash(body, secret)
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				LogStatus(w, http.StatusForbidden, log.WarnLevel, "webhook.auth_hash")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
