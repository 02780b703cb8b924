package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/cms-front/internal/log"
)

// AuthTokenCookie holds the bearer session token. It is deliberately not
// HttpOnly: the dashboard scripts read it back as a fallback token source.
const AuthTokenCookie = "authToken"

// AuthTokenMaxAge is the lifetime of the auth cookie
const AuthTokenMaxAge = 24 * time.Hour

// AuthToken builds the auth cookie. Over an encrypted transport the cookie is
// Secure and SameSite=Strict, otherwise SameSite=Lax without Secure.
func AuthToken(value string, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:   AuthTokenCookie,
		Value:  value,
		Path:   "/",
		MaxAge: int(AuthTokenMaxAge.Seconds()),
	}
	applyTransport(c, secure)
	return c
}

// ExpiredAuthToken builds a cookie that removes the auth cookie. It carries
// the same Secure and SameSite attributes as the cookie it replaces.
func ExpiredAuthToken(secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:    AuthTokenCookie,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	}
	applyTransport(c, secure)
	return c
}

func applyTransport(c *http.Cookie, secure bool) {
	if secure {
		c.Secure = true
		c.SameSite = http.SameSiteStrictMode
	} else {
		c.SameSite = http.SameSiteLaxMode
	}
}

// SetAuthToken writes the auth cookie to the response
func SetAuthToken(w http.ResponseWriter, value string, secure bool) {
	http.SetCookie(w, AuthToken(value, secure))

	sameSite := "Lax"
	if secure {
		sameSite = "Strict"
	}
	log.LogTraceWithFields("cookie", "Auth cookie set", map[string]any{
		"maxAge":   AuthTokenMaxAge.String(),
		"secure":   secure,
		"sameSite": sameSite,
	})
}

// ClearAuthToken expires the auth cookie on the response
func ClearAuthToken(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, ExpiredAuthToken(secure))
	log.LogTraceWithFields("cookie", "Auth cookie cleared", map[string]any{
		"secure": secure,
	})
}

// GetAuthToken returns the auth cookie value. An empty value counts as absent.
func GetAuthToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(AuthTokenCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// HasAuthToken reports whether the request carries the cookie at all, even
// with an empty value
func HasAuthToken(r *http.Request) bool {
	_, err := r.Cookie(AuthTokenCookie)
	return err == nil
}
