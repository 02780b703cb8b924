package server

import (
	"net/http"
	"strings"

	"github.com/dgellow/cms-front/internal/cookie"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/prometheus/client_golang/prometheus"
)

// PathClass is how the route guard treats a path
type PathClass string

const (
	ClassLanding   PathClass = "landing"
	ClassPublic    PathClass = "public"
	ClassProtected PathClass = "protected"
	ClassUnmatched PathClass = "unmatched"
)

// DefaultProtectedPrefixes are the dashboard subtrees that need a session
var DefaultProtectedPrefixes = []string{"/dashboard", "/editor", "/blogs", "/authors", "/api-keys"}

// GuardConfig configures the route guard
type GuardConfig struct {
	LoginPath   string
	LandingPath string
	// PublicPaths are matched exactly
	PublicPaths []string
	// ProtectedPrefixes match the prefix itself and everything below it
	ProtectedPrefixes []string
	// ScrubStaleCookie expires an auth cookie that is present but empty
	// when redirecting to login
	ScrubStaleCookie bool
	// SecureCookie marks the scrubbing cookie Secure. Requests over TLS
	// always get a Secure one.
	SecureCookie bool
}

// DefaultGuardConfig returns the dashboard's guard layout
func DefaultGuardConfig() GuardConfig {
	return NewGuardConfig("/login", "/auth/success", true)
}

// NewGuardConfig builds the guard layout around the given login and landing
// paths. The site root and the two auth proxy routes are always public.
func NewGuardConfig(loginPath, landingPath string, scrubStaleCookie bool) GuardConfig {
	return GuardConfig{
		LoginPath:         loginPath,
		LandingPath:       landingPath,
		PublicPaths:       []string{"/", loginPath, landingPath, "/api/auth/google", "/api/auth/me"},
		ProtectedPrefixes: DefaultProtectedPrefixes,
		ScrubStaleCookie:  scrubStaleCookie,
	}
}

// Classify returns the class of path. The landing path wins over the public
// list, which wins over the protected prefixes.
func (g GuardConfig) Classify(path string) PathClass {
	if path == g.LandingPath {
		return ClassLanding
	}
	for _, p := range g.PublicPaths {
		if path == p {
			return ClassPublic
		}
	}
	for _, prefix := range g.ProtectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return ClassProtected
		}
	}
	return ClassUnmatched
}

// Decision is the guard's verdict for one request
type Decision struct {
	Class PathClass
	Allow bool
	// Redirect is set when Allow is false
	Redirect string
	// ScrubCookie asks for the auth cookie to be expired on the redirect
	ScrubCookie bool
}

// Decide runs the guard for r. Only cookie presence is checked; the token
// itself is validated by the API.
func (g GuardConfig) Decide(r *http.Request) Decision {
	class := g.Classify(r.URL.Path)

	switch class {
	case ClassLanding, ClassPublic, ClassUnmatched:
		// the landing page is let through because the cookie may not be
		// visible yet right after the identity provider redirect
		return Decision{Class: class, Allow: true}
	}

	if _, ok := cookie.GetAuthToken(r); ok {
		return Decision{Class: class, Allow: true}
	}
	return Decision{
		Class:       class,
		Redirect:    g.LoginPath,
		ScrubCookie: g.ScrubStaleCookie && cookie.HasAuthToken(r),
	}
}

// NewRouteGuardMiddleware redirects requests for protected paths that carry
// no auth cookie to the login page. decisions may be nil.
func NewRouteGuardMiddleware(cfg GuardConfig, decisions *prometheus.CounterVec) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := cfg.Decide(r)

			outcome := "allow"
			if !d.Allow {
				outcome = "redirect"
			}
			if decisions != nil {
				decisions.WithLabelValues(string(d.Class), outcome).Inc()
			}

			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}

			log.LogDebugWithFields("guard", "Redirecting unauthenticated request", map[string]any{
				"path":     r.URL.Path,
				"redirect": d.Redirect,
				"scrub":    d.ScrubCookie,
			})
			if d.ScrubCookie {
				cookie.ClearAuthToken(w, cfg.SecureCookie || r.TLS != nil)
			}
			http.Redirect(w, r, d.Redirect, http.StatusTemporaryRedirect)
		})
	}
}
