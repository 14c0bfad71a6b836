package security

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie the site reads to decide who is signed in.
const SessionCookieName = "auth-token"

func sessionCookie(value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSessionCookie stores token in an HttpOnly cookie living for ttl.
// secure is on in prod, where the site is served over TLS.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, sessionCookie(token, int(ttl/time.Second), secure))
}

// ReadSessionCookie returns http.ErrNoCookie when the request has none.
func ReadSessionCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// ClearSessionCookie tells the browser to drop the session cookie now.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, sessionCookie("", -1, secure))
}
