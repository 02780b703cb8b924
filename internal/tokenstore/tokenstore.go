// Package tokenstore keeps the dashboard's bearer session token.
//
// The token lives in two places: a session-scoped Storage (the authoritative
// source for outgoing API calls) and the authToken cookie (the only source the
// route guard can see). SetToken writes both, ClearToken clears both, and Token
// prefers the session value over the cookie.
package tokenstore

import (
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/dgellow/cms-front/internal/cookie"
	"github.com/dgellow/cms-front/internal/log"
	"golang.org/x/oauth2"
)

// SessionKey is the session storage key holding the token
const SessionKey = "authToken"

// ErrNoToken is returned by the oauth2 token source when no token is stored
var ErrNoToken = errors.New("no session token")

// Storage is the session-scoped key/value store
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
}

// MemoryStorage is an in-process Storage safe for concurrent use
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryStorage) SetItem(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
}

func (m *MemoryStorage) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// Store resolves, persists and clears the session token
type Store struct {
	session Storage
	jar     http.CookieJar
	origin  *url.URL
}

// New creates a Store. The origin is the URL the cookie is scoped to; its
// scheme decides whether the cookie is issued as Secure.
func New(session Storage, jar http.CookieJar, origin *url.URL) *Store {
	return &Store{
		session: session,
		jar:     jar,
		origin:  origin,
	}
}

// NewInMemory creates a Store backed by a fresh MemoryStorage and cookie jar
func NewInMemory(origin *url.URL) *Store {
	jar, _ := cookiejar.New(nil)
	return New(NewMemoryStorage(), jar, origin)
}

// NewFromRequest creates a Store seeded from the auth cookie of an incoming
// request. Session storage starts empty, so the cookie is the only source.
func NewFromRequest(r *http.Request, origin *url.URL) *Store {
	s := NewInMemory(origin)
	if value, ok := cookie.GetAuthToken(r); ok {
		s.jar.SetCookies(origin, []*http.Cookie{cookie.AuthToken(value, s.secure())})
	}
	return s
}

// Jar returns the cookie jar backing the store
func (s *Store) Jar() http.CookieJar {
	if s == nil {
		return nil
	}
	return s.jar
}

func (s *Store) secure() bool {
	return s.origin != nil && s.origin.Scheme == "https"
}

// Token returns the session value if present, then the cookie value. A nil
// Store or one without backends reports no token.
func (s *Store) Token() (string, bool) {
	if s == nil {
		return "", false
	}
	if s.session != nil {
		if v, ok := s.session.GetItem(SessionKey); ok && v != "" {
			return v, true
		}
	}
	if s.jar != nil && s.origin != nil {
		for _, c := range s.jar.Cookies(s.origin) {
			if c.Name == cookie.AuthTokenCookie && c.Value != "" {
				return c.Value, true
			}
		}
	}
	return "", false
}

// SetToken writes the token to session storage and the cookie
func (s *Store) SetToken(token string) {
	if s == nil {
		return
	}
	if s.session != nil {
		s.session.SetItem(SessionKey, token)
	}
	if s.jar != nil && s.origin != nil {
		s.jar.SetCookies(s.origin, []*http.Cookie{cookie.AuthToken(token, s.secure())})
	}
	log.LogTraceWithFields("tokenstore", "Session token stored", map[string]any{
		"secure": s.secure(),
	})
}

// ClearToken removes the session entry and expires the cookie
func (s *Store) ClearToken() {
	if s == nil {
		return
	}
	if s.session != nil {
		s.session.RemoveItem(SessionKey)
	}
	if s.jar != nil && s.origin != nil {
		s.jar.SetCookies(s.origin, []*http.Cookie{cookie.ExpiredAuthToken(s.secure())})
	}
	log.LogTraceWithFields("tokenstore", "Session token cleared", nil)
}

// TokenSource adapts the store to oauth2.TokenSource. The token is looked up
// on every call, so later SetToken/ClearToken calls are observed.
func (s *Store) TokenSource() oauth2.TokenSource {
	return storeTokenSource{s: s}
}

type storeTokenSource struct {
	s *Store
}

func (ts storeTokenSource) Token() (*oauth2.Token, error) {
	t, ok := ts.s.Token()
	if !ok {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: t, TokenType: "Bearer"}, nil
}
