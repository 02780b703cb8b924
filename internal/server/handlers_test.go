package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgellow/cms-front/internal/crypto"
	"github.com/dgellow/cms-front/internal/metrics"
	"github.com/dgellow/cms-front/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "abc123"

type testServer struct {
	api      *testutil.FakeAPI
	handlers *Handlers
	router   http.Handler
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	api := testutil.NewFakeAPI(t)
	api.AddUser(testToken, map[string]any{"id": 7, "email": "ada@example.com", "name": "Ada"})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h, err := NewHandlers(HandlersConfig{
		BaseURL:     "http://localhost:3000",
		APIBaseURL:  api.URL(),
		APIRequests: m.APIRequests,
		CSRF:        crypto.NewCSRFProtection([]byte(strings.Repeat("k", 32)), time.Hour),
	})
	require.NoError(t, err)

	hash, err := crypto.HashPassword("scrape")
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Name:                "cms-front",
		Handlers:            h,
		Guard:               DefaultGuardConfig(),
		Metrics:             m,
		Gatherer:            reg,
		MetricsUser:         "prom",
		MetricsPasswordHash: hash,
	})
	return &testServer{api: api, handlers: h, router: router, metrics: m}
}

type reqOpt func(*http.Request)

func withCookie(value string) reqOpt {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "authToken", Value: value})
	}
}

func acceptJSON(r *http.Request) {
	r.Header.Set("Accept", "application/json")
}

func acceptHTML(r *http.Request) {
	r.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
}

func withCSRF(token string) reqOpt {
	return func(r *http.Request) {
		r.Header.Set("X-CSRF-Token", token)
	}
}

func (s *testServer) do(method, target string, body url.Values, opts ...reqOpt) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) csrf(t *testing.T, binding string) string {
	t.Helper()
	token, err := s.handlers.csrf.Generate(binding)
	require.NoError(t, err)
	return token
}

// authCookie returns the auth cookie set on the response, if any
func authCookie(w *httptest.ResponseRecorder) (*http.Cookie, bool) {
	for _, c := range w.Result().Cookies() {
		if c.Name == "authToken" {
			return c, true
		}
	}
	return nil, false
}

func assertCookieCleared(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	c, ok := authCookie(w)
	require.True(t, ok, "expected the auth cookie to be cleared")
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "cms-front", body["service"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/metrics", nil, func(r *http.Request) { r.SetBasicAuth("prom", "scrape") })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cms_front_http_requests_total")
}

func TestRoot(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/", nil, withCookie(testToken))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestLoginPages(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/login", nil, acceptHTML)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/api/auth/google"`)

	w = s.do(http.MethodGet, "/api/auth/google", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, s.api.URL()+"/auth/google", w.Header().Get("Location"))
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/auth/me", nil, withCookie(testToken))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":true}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	// presence only, the API is never asked
	assert.Empty(t, s.api.Requests())
}

func TestLanding(t *testing.T) {
	t.Run("token is stored and the viewer continues to the dashboard", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/auth/success?token="+testToken, nil, acceptHTML)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))
		c, ok := authCookie(w)
		require.True(t, ok)
		assert.Equal(t, testToken, c.Value)
		assert.Equal(t, 86400, c.MaxAge)
		assert.Equal(t, "/", c.Path)

		probe, ok := s.api.LastRequest(http.MethodGet, "/auth/me")
		require.True(t, ok)
		assert.Equal(t, "Bearer "+testToken, probe.Authorization)
	})

	t.Run("without token or cookie the waiting page is shown", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/auth/success", nil, acceptHTML)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Logging you in")
		assert.Empty(t, s.api.Requests())
	})

	t.Run("existing cookie is probed", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/auth/success", nil, withCookie(testToken))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))
		_, set := authCookie(w)
		assert.False(t, set, "cookie is unchanged")
	})

	t.Run("rejected token goes back to login", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/auth/success?token=forged", nil)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		_, set := authCookie(w)
		assert.False(t, set)
	})

	t.Run("rejected cookie is cleared", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/auth/success", nil, withCookie("expired"))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assertCookieCleared(t, w)
	})
}

func TestDashboard(t *testing.T) {
	t.Run("renders the summary as JSON", func(t *testing.T) {
		s := newTestServer(t)
		s.api.SeedBlog(map[string]any{"title": "One"})
		s.api.SeedBlog(map[string]any{"title": "Two"})
		s.api.SeedAuthor(map[string]any{"name": "Ada"})
		s.api.SetAPIKeyActive(true)

		w := s.do(http.MethodGet, "/dashboard", nil, withCookie(testToken), acceptJSON)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			User struct {
				Email string `json:"email"`
			} `json:"user"`
			Data DashboardSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ada@example.com", body.User.Email)
		assert.Equal(t, DashboardSummary{Blogs: 2, Authors: 1, Documents: 0, APIKeyActive: true}, body.Data)
	})

	t.Run("renders HTML for browsers", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/dashboard", nil, withCookie(testToken), acceptHTML)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "Welcome, Ada")
		assert.Contains(t, w.Body.String(), `name="csrf_token"`)
	})

	t.Run("no cookie is redirected by the guard", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/dashboard", nil)

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assert.Empty(t, s.api.Requests())
	})

	t.Run("invalid cookie ends the session", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/dashboard", nil, withCookie("expired"))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assertCookieCleared(t, w)
	})
}

func TestListAndDetailPages(t *testing.T) {
	s := newTestServer(t)
	blogID := s.api.SeedBlog(map[string]any{"title": "Hello", "status": "DRAFT"})
	authorID := s.api.SeedAuthor(map[string]any{"name": "Grace"})
	docID := s.api.SeedDocument(map[string]any{"name": "Notes"})

	tests := []struct {
		path string
		want string
	}{
		{"/blogs", "Hello"},
		{"/blogs/" + blogID, "Hello"},
		{"/authors", "Grace"},
		{"/authors/" + authorID, "Grace"},
		{"/editor", "Notes"},
		{"/editor/" + docID, "Notes"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := s.do(http.MethodGet, tt.path, nil, withCookie(testToken), acceptJSON)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}

	t.Run("empty lists are arrays", func(t *testing.T) {
		empty := newTestServer(t)
		w := empty.do(http.MethodGet, "/blogs", nil, withCookie(testToken), acceptJSON)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})

	t.Run("missing record is a 404", func(t *testing.T) {
		w := s.do(http.MethodGet, "/blogs/999", nil, withCookie(testToken), acceptJSON)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"not_found","message":"Not Found"}`, w.Body.String())
	})

	t.Run("API failure is a bad gateway", func(t *testing.T) {
		s.api.ForceStatus(http.MethodGet, "/authors", http.StatusInternalServerError)
		w := s.do(http.MethodGet, "/authors", nil, withCookie(testToken), acceptHTML)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "Bad Gateway")
	})
}

func TestDeleteActions(t *testing.T) {
	t.Run("rejects a missing CSRF token", func(t *testing.T) {
		s := newTestServer(t)
		id := s.api.SeedBlog(map[string]any{"title": "Keep"})

		w := s.do(http.MethodPost, "/blogs/"+id+"/delete", url.Values{}, withCookie(testToken), acceptHTML)

		assert.Equal(t, http.StatusForbidden, w.Code)
		_, deleted := s.api.LastRequest(http.MethodDelete, "/blogs/"+id)
		assert.False(t, deleted)
	})

	t.Run("rejects a token bound to another session", func(t *testing.T) {
		s := newTestServer(t)
		id := s.api.SeedAuthor(map[string]any{"name": "Keep"})

		form := url.Values{"csrf_token": {s.csrf(t, "someone-else")}}
		w := s.do(http.MethodPost, "/authors/"+id+"/delete", form, withCookie(testToken))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	tests := []struct {
		name string
		seed func(*testutil.FakeAPI) string
		path string
		back string
	}{
		{"blog", func(a *testutil.FakeAPI) string { return a.SeedBlog(map[string]any{"title": "x"}) }, "/blogs", "/blogs"},
		{"author", func(a *testutil.FakeAPI) string { return a.SeedAuthor(map[string]any{"name": "x"}) }, "/authors", "/authors"},
		{"document", func(a *testutil.FakeAPI) string { return a.SeedDocument(map[string]any{"name": "x"}) }, "/editor", "/editor"},
	}
	for _, tt := range tests {
		t.Run("deletes a "+tt.name, func(t *testing.T) {
			s := newTestServer(t)
			id := tt.seed(s.api)

			form := url.Values{"csrf_token": {s.csrf(t, testToken)}}
			w := s.do(http.MethodPost, tt.path+"/"+id+"/delete", form, withCookie(testToken), acceptHTML)

			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.back, w.Header().Get("Location"))
			req, ok := s.api.LastRequest(http.MethodDelete, tt.path+"/"+id)
			require.True(t, ok)
			assert.Equal(t, "Bearer "+testToken, req.Authorization)
		})
	}

	t.Run("JSON clients get 204", func(t *testing.T) {
		s := newTestServer(t)
		id := s.api.SeedBlog(map[string]any{"title": "x"})

		w := s.do(http.MethodPost, "/blogs/"+id+"/delete", nil,
			withCookie(testToken), acceptJSON, withCSRF(s.csrf(t, testToken)))

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestAPIKeys(t *testing.T) {
	s := newTestServer(t)
	csrf := withCSRF(s.csrf(t, testToken))

	w := s.do(http.MethodGet, "/api-keys", nil, withCookie(testToken), acceptJSON)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":false`)

	w = s.do(http.MethodPost, "/api-keys/generate", nil, withCookie(testToken), acceptJSON, csrf)
	require.Equal(t, http.StatusCreated, w.Code)
	var generated struct {
		Active bool   `json:"active"`
		APIKey string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &generated))
	assert.True(t, generated.Active)
	assert.True(t, strings.HasPrefix(generated.APIKey, "sk_test_"))

	w = s.do(http.MethodPost, "/api-keys/generate", nil, withCookie(testToken), acceptJSON, csrf)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"An active API key already exists"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api-keys/deactivate", nil, withCookie(testToken), acceptJSON, csrf)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, "/api-keys/deactivate", nil, withCookie(testToken), acceptJSON, csrf)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateAPIKey_HTMLShowsKeyOnce(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"csrf_token": {s.csrf(t, testToken)}}
	w := s.do(http.MethodPost, "/api-keys/generate", form, withCookie(testToken), acceptHTML)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sk_test_")
	assert.Contains(t, w.Body.String(), "API key generated")
}

func TestLogout(t *testing.T) {
	t.Run("clears the cookie and ends the upstream session", func(t *testing.T) {
		s := newTestServer(t)

		form := url.Values{"csrf_token": {s.csrf(t, testToken)}}
		w := s.do(http.MethodPost, "/logout", form, withCookie(testToken))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assertCookieCleared(t, w)

		req, ok := s.api.LastRequest(http.MethodPost, "/auth/logout")
		require.True(t, ok)
		assert.Equal(t, "Bearer "+testToken, req.Authorization)
	})

	t.Run("upstream failure is swallowed", func(t *testing.T) {
		s := newTestServer(t)
		s.api.FailLogout()

		form := url.Values{"csrf_token": {s.csrf(t, testToken)}}
		w := s.do(http.MethodPost, "/logout", form, withCookie(testToken))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assertCookieCleared(t, w)
	})

	t.Run("requires a CSRF token when signed in", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/logout", url.Values{}, withCookie(testToken), acceptJSON)

		assert.Equal(t, http.StatusForbidden, w.Code)
		_, called := s.api.LastRequest(http.MethodPost, "/auth/logout")
		assert.False(t, called)
	})

	t.Run("without a session still lands on login", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/logout", url.Values{})

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assertCookieCleared(t, w)
	})
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/nope", nil, acceptJSON)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// unknown protected paths are still guarded
	w = s.do(http.MethodGet, "/dashboard/settings", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)

	w = s.do(http.MethodGet, "/dashboard/settings", nil, withCookie(testToken), acceptJSON)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIRequestsAreCounted(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodGet, "/dashboard", nil, withCookie(testToken), acceptJSON)

	c, err := s.metrics.APIRequests.GetMetricWithLabelValues("auth", "fetch current user", "ok")
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, c))
}

func TestAPICallsCarryTheAuthCookie(t *testing.T) {
	t.Run("sent when the API shares the dashboard host", func(t *testing.T) {
		api := testutil.NewFakeAPI(t)
		api.AddUser(testToken, map[string]any{"id": 7, "email": "ada@example.com"})
		h, err := NewHandlers(HandlersConfig{BaseURL: api.URL(), APIBaseURL: api.URL()})
		require.NoError(t, err)
		router := NewRouter(RouterConfig{Name: "cms-front", Handlers: h, Guard: DefaultGuardConfig()})

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: "authToken", Value: testToken})
		req.Header.Set("Accept", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		me, ok := api.LastRequest(http.MethodGet, "/auth/me")
		require.True(t, ok)
		assert.Equal(t, "authToken="+testToken, me.Cookie)
		assert.Equal(t, "Bearer "+testToken, me.Authorization)
	})

	t.Run("kept from other hosts", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/dashboard", nil, withCookie(testToken), acceptJSON)

		require.Equal(t, http.StatusOK, w.Code)
		me, ok := s.api.LastRequest(http.MethodGet, "/auth/me")
		require.True(t, ok)
		assert.Empty(t, me.Cookie)
	})
}

func TestJSONErrorsCarryTypedCodes(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *testServer)
		method     string
		path       string
		form       url.Values
		csrf       bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			method:     http.MethodPost,
			path:       "/editor",
			form:       url.Values{"content": {"x"}},
			csrf:       true,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"bad_request","message":"name: cannot be blank."}`,
		},
		{
			name:       "forbidden",
			method:     http.MethodPost,
			path:       "/editor",
			form:       url.Values{"name": {"x"}},
			wantStatus: http.StatusForbidden,
			wantBody:   `{"error":"forbidden","message":"Invalid CSRF token"}`,
		},
		{
			name:       "conflict",
			setup:      func(s *testServer) { s.api.ForceStatus(http.MethodPost, "/authors", http.StatusConflict) },
			method:     http.MethodPost,
			path:       "/authors",
			form:       url.Values{"name": {"Grace"}, "email": {"grace@example.com"}},
			csrf:       true,
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"conflict","message":"Conflict"}`,
		},
		{
			name:       "bad gateway",
			setup:      func(s *testServer) { s.api.ForceStatus(http.MethodGet, "/blogs", http.StatusInternalServerError) },
			method:     http.MethodGet,
			path:       "/blogs",
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"bad_gateway","message":"The CMS API is unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.setup != nil {
				tt.setup(s)
			}
			opts := []reqOpt{withCookie(testToken), acceptJSON}
			if tt.csrf {
				opts = append(opts, withCSRF(s.csrf(t, testToken)))
			}

			w := s.do(tt.method, tt.path, tt.form, opts...)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestHeadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		opts       []reqOpt
		wantStatus int
	}{
		{name: "health", path: "/health", wantStatus: http.StatusOK},
		{name: "signed in page", path: "/dashboard", opts: []reqOpt{withCookie(testToken), acceptHTML}, wantStatus: http.StatusOK},
		{name: "form page", path: "/blogs/new", opts: []reqOpt{withCookie(testToken)}, wantStatus: http.StatusOK},
		{name: "guarded page", path: "/dashboard", wantStatus: http.StatusTemporaryRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodHead, tt.path, nil, tt.opts...)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
