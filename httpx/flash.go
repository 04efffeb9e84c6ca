package httpx

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/mbolis/survey-intake/log"
)

const flashCookie = "flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

type Flashes struct {
	codec *securecookie.SecureCookie
}

// NewFlashes derives the cookie signing and encryption keys from secret.
func NewFlashes(secret string) *Flashes {
	hashKey := sha256.Sum256([]byte("flash-hash:" + secret))
	blockKey := sha256.Sum256([]byte("flash-block:" + secret))
	return &Flashes{securecookie.New(hashKey[:], blockKey[:])}
}

// Add queues a message after any already carried by the request.
func (f *Flashes) Add(w http.ResponseWriter, r *http.Request, category, message string) {
	flashes := append(f.read(r), Flash{category, message})
	encoded, err := f.codec.Encode(flashCookie, flashes)
	if err != nil {
		log.Warn("flash.encode:", err)
		return
	}
	cookie := &http.Cookie{
		Path:     "/",
		Name:     flashCookie,
		Value:    encoded,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
	// later reads within the same request see the message too
	others := otherCookies(r, flashCookie)
	r.Header.Del("cookie")
	for _, c := range others {
		r.AddCookie(c)
	}
	r.AddCookie(cookie)
}

// Pop returns the queued messages and clears them.
func (f *Flashes) Pop(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := f.read(r)
	if len(flashes) > 0 {
		http.SetCookie(w, &http.Cookie{
			Path:   "/",
			Name:   flashCookie,
			MaxAge: -1,
		})
	}
	return flashes
}

func (f *Flashes) read(r *http.Request) []Flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := f.codec.Decode(flashCookie, cookie.Value, &flashes); err != nil {
		log.Debug("flash.decode:", err)
		return nil
	}
	return flashes
}

func otherCookies(r *http.Request, name string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, c := range r.Cookies() {
		if c.Name != name {
			cookies = append(cookies, c)
		}
	}
	return cookies
}
