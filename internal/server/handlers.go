package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dgellow/cms-front/internal/client"
	"github.com/dgellow/cms-front/internal/cookie"
	"github.com/dgellow/cms-front/internal/crypto"
	"github.com/dgellow/cms-front/internal/envutil"
	jsonwriter "github.com/dgellow/cms-front/internal/json"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/dgellow/cms-front/internal/session"
	"github.com/dgellow/cms-front/internal/tokenstore"
	"github.com/elnormous/contenttype"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	htmlMediaType = contenttype.NewMediaType("text/html")
	jsonMediaType = contenttype.NewMediaType("application/json")
	// HTML first: browsers sending */* get pages
	pageMediaTypes = []contenttype.MediaType{htmlMediaType, jsonMediaType}
)

// HandlersConfig configures the dashboard handlers
type HandlersConfig struct {
	// BaseURL is the public URL of the dashboard
	BaseURL string
	// APIBaseURL is the CMS REST API root
	APIBaseURL    string
	HTTPClient    *http.Client
	APIRequests   *prometheus.CounterVec
	LoginPath     string
	LandingPath   string
	DashboardPath string
	// CSRF protects form posts. A random key is used when nil.
	CSRF *crypto.CSRFProtection
}

// Handlers serves the dashboard pages and auth endpoints. Each request gets
// its own token store seeded from the auth cookie, so no session state is
// shared between requests.
type Handlers struct {
	origin        *url.URL
	apiBaseURL    string
	httpClient    *http.Client
	apiRequests   *prometheus.CounterVec
	loginPath     string
	landingPath   string
	dashboardPath string
	loginURL      string
	csrf          *crypto.CSRFProtection
}

// NewHandlers creates the dashboard handlers
func NewHandlers(cfg HandlersConfig) (*Handlers, error) {
	origin, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	// validates the API base URL once up front
	probe, err := client.New(cfg.APIBaseURL)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		origin:        origin,
		apiBaseURL:    cfg.APIBaseURL,
		httpClient:    cfg.HTTPClient,
		apiRequests:   cfg.APIRequests,
		loginPath:     orDefault(cfg.LoginPath, session.DefaultLoginPath),
		landingPath:   orDefault(cfg.LandingPath, "/auth/success"),
		dashboardPath: orDefault(cfg.DashboardPath, session.DefaultDashboardPath),
		loginURL:      probe.LoginURL(),
		csrf:          cfg.CSRF,
	}

	if h.csrf == nil {
		key, err := crypto.GenerateSecureToken()
		if err != nil {
			return nil, fmt.Errorf("generating CSRF key: %w", err)
		}
		h.csrf = crypto.NewCSRFProtection([]byte(key), csrfTTL)
	}
	return h, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// secure reports whether the auth cookie should be Secure for r
func (h *Handlers) secure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if h.origin != nil && h.origin.Scheme != "" {
		return h.origin.Scheme == "https"
	}
	return !envutil.IsDev()
}

// redirectNavigator turns session navigations into an HTTP redirect
type redirectNavigator struct {
	path string
}

func (n *redirectNavigator) Replace(path string) {
	n.path = path
}

// requestScope is the per-request wiring of token store, API client and
// session hook
type requestScope struct {
	store   *tokenstore.Store
	api     *client.Client
	nav     *redirectNavigator
	session *session.Session
	// initial is the auth cookie the request arrived with
	initial string
}

func (h *Handlers) scope(r *http.Request, opts ...session.Option) (*requestScope, error) {
	store := tokenstore.NewFromRequest(r, h.origin)

	clientOpts := []client.Option{client.WithTokens(store)}
	if h.httpClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(h.httpClient))
	}
	// after WithHTTPClient, which would drop the jar
	clientOpts = append(clientOpts, client.WithCookieJar(store.Jar()))
	if h.apiRequests != nil {
		clientOpts = append(clientOpts, client.WithRequestCounter(h.apiRequests))
	}
	api, err := client.New(h.apiBaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	nav := &redirectNavigator{}
	opts = append([]session.Option{
		session.WithLoginPath(h.loginPath),
		session.WithDashboardPath(h.dashboardPath),
	}, opts...)

	initial, _ := cookie.GetAuthToken(r)
	return &requestScope{
		store:   store,
		api:     api,
		nav:     nav,
		session: session.New(api, store, nav, opts...),
		initial: initial,
	}, nil
}

// token returns the session token the scope currently holds
func (s *requestScope) token() string {
	t, _ := s.store.Token()
	return t
}

// syncCookie mirrors token store changes made while handling the request
// onto the response
func (h *Handlers) syncCookie(w http.ResponseWriter, r *http.Request, s *requestScope) {
	current := s.token()
	switch {
	case current == s.initial:
	case current == "":
		cookie.ClearAuthToken(w, h.secure(r))
	default:
		cookie.SetAuthToken(w, current, h.secure(r))
	}
}

// finish applies cookie changes and follows a pending navigation. It reports
// whether the response has been written.
func (h *Handlers) finish(w http.ResponseWriter, r *http.Request, s *requestScope) bool {
	h.syncCookie(w, r, s)
	if s.nav.path == "" {
		return false
	}
	status := http.StatusFound
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, s.nav.path, status)
	return true
}

// loadSession runs the identity probe and redirects when it fails. A nil
// user means the response has been written.
func (h *Handlers) loadSession(w http.ResponseWriter, r *http.Request) (*requestScope, *client.User) {
	s, err := h.scope(r)
	if err != nil {
		h.fail(w, r, err)
		return nil, nil
	}
	state := s.session.Load(r.Context())
	if h.finish(w, r, s) {
		return nil, nil
	}
	if !state.Authenticated() {
		h.fail(w, r, state.Err)
		return nil, nil
	}
	return s, state.User
}

// wantsJSON negotiates between the HTML page and its JSON data
func wantsJSON(r *http.Request) bool {
	accepted, _, err := contenttype.GetAcceptableMediaType(r, pageMediaTypes)
	if err != nil {
		return false
	}
	return accepted.Matches(jsonMediaType)
}

// fail maps an error to a response. An API 401 ends the session.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *client.APIError
	status := http.StatusBadGateway
	message := "The CMS API is unavailable"
	switch {
	case client.IsUnauthorized(err):
		cookie.ClearAuthToken(w, h.secure(r))
		if wantsJSON(r) {
			jsonwriter.WriteUnauthorized(w, "Session expired")
			return
		}
		http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
		return
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		message = apiErr.Message
	case errors.Is(err, errBadCSRF):
		status = http.StatusForbidden
		message = "Invalid CSRF token"
	case errors.Is(err, errBadForm):
		status = http.StatusBadRequest
		message = "Invalid form submission"
	}

	log.LogWarnCtx(r.Context(), "server", "Request failed", map[string]any{
		"path":   r.URL.Path,
		"status": status,
		"error":  fmt.Sprint(err),
	})

	if wantsJSON(r) {
		writeJSONError(w, status, message)
		return
	}
	h.renderStatus(w, r, status, "error", pageData{
		Title:       http.StatusText(status),
		Message:     message,
		MessageType: "error",
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	switch status {
	case http.StatusBadRequest:
		jsonwriter.WriteBadRequest(w, message)
	case http.StatusForbidden:
		jsonwriter.WriteForbidden(w, message)
	case http.StatusNotFound:
		jsonwriter.WriteNotFound(w, message)
	case http.StatusConflict:
		jsonwriter.WriteConflict(w, message)
	case http.StatusBadGateway:
		jsonwriter.WriteBadGateway(w, message)
	default:
		jsonwriter.WriteError(w, status, "error", message)
	}
}
