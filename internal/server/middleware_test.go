package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgellow/cms-front/internal/crypto"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/dgellow/cms-front/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRequestIDMiddleware(t *testing.T) {
	incoming := uuid.NewString()

	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "reuses a valid incoming id", header: incoming, wantSame: true},
		{name: "replaces a malformed id", header: "not-a-uuid"},
		{name: "mints an id when missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = log.RequestID(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			NewRequestIDMiddleware()(next).ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			assert.Equal(t, got, seen)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
			if tt.wantSame {
				assert.Equal(t, tt.header, got)
			} else {
				assert.NotEqual(t, tt.header, got)
			}
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	NewRecoverMiddleware("test")(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestBasicAuthMiddleware(t *testing.T) {
	hash, err := crypto.HashPassword("s3cret")
	require.NoError(t, err)

	tests := []struct {
		name     string
		user     string
		password string
		setAuth  bool
		wantCode int
	}{
		{name: "valid credentials", user: "ops", password: "s3cret", setAuth: true, wantCode: http.StatusOK},
		{name: "wrong password", user: "ops", password: "nope", setAuth: true, wantCode: http.StatusUnauthorized},
		{name: "wrong user", user: "admin", password: "s3cret", setAuth: true, wantCode: http.StatusUnauthorized},
		{name: "no credentials", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.password)
			}
			w := httptest.NewRecorder()
			NewBasicAuthMiddleware("metrics", "ops", hash)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="metrics"`, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestLoggerMiddleware_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := NewLoggerMiddleware("test", m)(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/success?token=secret", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	c, err := m.HTTPRequests.GetMetricWithLabelValues("GET", "418")
	require.NoError(t, err)
	assert.Equal(t, 2.0, counterValue(t, c))
}

func TestChainMiddleware(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := ChainMiddleware(http.NotFoundHandler(), mw("inner"), mw("outer"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}
