package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgellow/cms-front/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	g := DefaultGuardConfig()

	tests := []struct {
		path string
		want PathClass
	}{
		{"/auth/success", ClassLanding},
		{"/", ClassPublic},
		{"/login", ClassPublic},
		{"/api/auth/google", ClassPublic},
		{"/api/auth/me", ClassPublic},
		{"/dashboard", ClassProtected},
		{"/dashboard/settings", ClassProtected},
		{"/editor/42", ClassProtected},
		{"/blogs", ClassProtected},
		{"/authors/7/edit", ClassProtected},
		{"/api-keys", ClassProtected},
		{"/dashboards", ClassUnmatched},
		{"/health", ClassUnmatched},
		{"/login/extra", ClassUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Classify(tt.path))
		})
	}
}

func TestRouteGuardMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		cookie       *http.Cookie
		wantStatus   int
		wantLocation string
		wantScrub    bool
	}{
		{
			name:         "protected without cookie redirects",
			path:         "/dashboard/settings",
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/login",
		},
		{
			name:       "protected with cookie passes",
			path:       "/dashboard/settings",
			cookie:     &http.Cookie{Name: "authToken", Value: "abc"},
			wantStatus: http.StatusOK,
		},
		{
			name:         "empty cookie counts as absent and is scrubbed",
			path:         "/blogs",
			cookie:       &http.Cookie{Name: "authToken", Value: ""},
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/login",
			wantScrub:    true,
		},
		{
			name:       "landing without cookie passes",
			path:       "/auth/success",
			wantStatus: http.StatusOK,
		},
		{
			name:       "landing with cookie passes",
			path:       "/auth/success",
			cookie:     &http.Cookie{Name: "authToken", Value: "abc"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "root without cookie passes",
			path:       "/",
			wantStatus: http.StatusOK,
		},
		{
			name:       "login with cookie passes",
			path:       "/login",
			cookie:     &http.Cookie{Name: "authToken", Value: "abc"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unmatched path is not guarded",
			path:       "/favicon.ico",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			handler := NewRouteGuardMiddleware(DefaultGuardConfig(), nil)(next)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))

			scrubbed := false
			for _, c := range w.Result().Cookies() {
				if c.Name == "authToken" && c.MaxAge < 0 {
					scrubbed = true
				}
			}
			assert.Equal(t, tt.wantScrub, scrubbed)
		})
	}
}

func TestRouteGuardMiddleware_ScrubDisabled(t *testing.T) {
	cfg := NewGuardConfig("/signin", "/welcome", false)
	handler := NewRouteGuardMiddleware(cfg, nil)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/api-keys", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: ""})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/signin", w.Header().Get("Location"))
	assert.Empty(t, w.Result().Cookies())
}

func TestRouteGuardMiddleware_CountsDecisions(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	handler := NewRouteGuardMiddleware(DefaultGuardConfig(), m.GuardDecisions)(http.NotFoundHandler())

	for _, path := range []string{"/dashboard", "/dashboard", "/login"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	redirects, err := m.GuardDecisions.GetMetricWithLabelValues("protected", "redirect")
	require.NoError(t, err)
	assert.Equal(t, 2.0, counterValue(t, redirects))

	allowed, err := m.GuardDecisions.GetMetricWithLabelValues("public", "allow")
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, allowed))
}

func TestRouteGuardMiddleware_ScrubMatchesCookieAttributes(t *testing.T) {
	tests := []struct {
		name         string
		secure       bool
		wantSameSite http.SameSite
	}{
		{name: "https origin", secure: true, wantSameSite: http.SameSiteStrictMode},
		{name: "plain http origin", secure: false, wantSameSite: http.SameSiteLaxMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGuardConfig()
			cfg.SecureCookie = tt.secure
			handler := NewRouteGuardMiddleware(cfg, nil)(http.NotFoundHandler())

			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.AddCookie(&http.Cookie{Name: "authToken", Value: ""})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Less(t, cookies[0].MaxAge, 0)
			assert.Equal(t, tt.secure, cookies[0].Secure)
			assert.Equal(t, tt.wantSameSite, cookies[0].SameSite)
		})
	}
}
