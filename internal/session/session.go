// Package session exposes the signed-in user to page handlers. A Session
// probes the identity endpoint once, remembers the outcome, and sends
// unauthenticated viewers to the login page.
package session

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/dgellow/cms-front/internal/client"
	"github.com/dgellow/cms-front/internal/log"
)

const (
	DefaultLoginPath     = "/login"
	DefaultDashboardPath = "/dashboard"

	// TokenParam is the landing query parameter carrying a fresh token
	TokenParam = "token"
)

// Identity is the part of the API client a Session needs
type Identity interface {
	Me(ctx context.Context) (*client.User, error)
	Logout(ctx context.Context) error
}

// TokenStore persists the session token
type TokenStore interface {
	SetToken(token string)
	ClearToken()
}

// Navigator performs a client-side navigation that replaces the current entry
type Navigator interface {
	Replace(path string)
}

// State is what page handlers render from
type State struct {
	User      *client.User
	IsLoading bool
	Err       error
}

// Authenticated reports whether the probe produced a user
func (s State) Authenticated() bool {
	return s.User != nil && s.Err == nil
}

// Option configures a Session
type Option func(*Session)

// WithRedirect controls whether a failed probe navigates to the login page.
// It defaults to true.
func WithRedirect(redirect bool) Option {
	return func(s *Session) {
		s.redirect = redirect
	}
}

func WithLoginPath(path string) Option {
	return func(s *Session) {
		s.loginPath = path
	}
}

func WithDashboardPath(path string) Option {
	return func(s *Session) {
		s.dashboardPath = path
	}
}

// Session holds the identity probe result for one page view
type Session struct {
	api    Identity
	tokens TokenStore
	nav    Navigator

	redirect      bool
	loginPath     string
	dashboardPath string

	once  sync.Once
	mu    sync.RWMutex
	state State
}

// New creates a Session. Nothing is fetched until Load is called.
func New(api Identity, tokens TokenStore, nav Navigator, opts ...Option) *Session {
	s := &Session{
		api:           api,
		tokens:        tokens,
		nav:           nav,
		redirect:      true,
		loginPath:     DefaultLoginPath,
		dashboardPath: DefaultDashboardPath,
		state:         State{IsLoading: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Load probes the identity endpoint. Only the first call does any work;
// concurrent and later calls wait for it and return the same state.
func (s *Session) Load(ctx context.Context) State {
	s.once.Do(func() {
		s.probe(ctx)
	})
	return s.State()
}

func (s *Session) probe(ctx context.Context) {
	user, err := s.api.Me(ctx)
	if err == nil && user == nil {
		err = errors.New("identity endpoint returned no user")
	}

	if err != nil {
		s.setState(State{Err: err})
		// any failed probe invalidates the stored token
		if s.tokens != nil {
			s.tokens.ClearToken()
		}
		log.LogDebugWithFields("session", "Identity probe failed", map[string]any{
			"error":        err.Error(),
			"unauthorized": client.IsUnauthorized(err),
			"redirect":     s.redirect,
		})
		if s.redirect {
			s.navigate(s.loginPath)
		}
		return
	}

	s.setState(State{User: user})
	log.LogTraceWithFields("session", "Identity probe succeeded", map[string]any{
		"user": user.Email,
	})
}

// Logout ends the session upstream on a best-effort basis, then clears the
// token store and navigates to the login page whatever the outcome.
func (s *Session) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		log.LogWarn("Logout request failed, clearing local session anyway: %v", err)
	}
	if s.tokens != nil {
		s.tokens.ClearToken()
	}
	s.setState(State{})
	s.navigate(s.loginPath)
}

// CompleteLogin handles the OAuth landing page. A token query parameter is
// persisted before the identity probe so the probe carries it. On success the
// viewer continues to the dashboard.
func (s *Session) CompleteLogin(ctx context.Context, landing *url.URL) State {
	if landing != nil {
		if token := landing.Query().Get(TokenParam); token != "" && s.tokens != nil {
			s.tokens.SetToken(token)
		}
	}

	state := s.Load(ctx)
	if state.Authenticated() {
		s.navigate(s.dashboardPath)
	}
	return state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) navigate(path string) {
	if s.nav != nil {
		s.nav.Replace(path)
	}
}
