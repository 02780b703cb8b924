// Package authheader builds the header set attached to every CMS API request.
package authheader

import (
	"net/http"
	"net/textproto"
	"sort"

	"golang.org/x/oauth2"
)

// TokenGetter yields the current session token, if any
type TokenGetter interface {
	Token() (string, bool)
}

// TokenGetterFunc adapts a function to TokenGetter
type TokenGetterFunc func() (string, bool)

func (f TokenGetterFunc) Token() (string, bool) { return f() }

// Headers is an ordered header mapping with canonical keys. Setting an
// existing key replaces its value and keeps its position.
type Headers struct {
	keys   []string
	values map[string]string
}

// NewHeaders returns an empty header set
func NewHeaders() Headers {
	return Headers{values: make(map[string]string)}
}

// Set stores value under the canonical form of key
func (h *Headers) Set(key, value string) {
	if h.values == nil {
		h.values = make(map[string]string)
	}
	key = textproto.CanonicalMIMEHeaderKey(key)
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Get returns the value stored for key
func (h Headers) Get(key string) (string, bool) {
	v, ok := h.values[textproto.CanonicalMIMEHeaderKey(key)]
	return v, ok
}

// Keys returns the header names in insertion order
func (h Headers) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Len returns the number of headers
func (h Headers) Len() int { return len(h.keys) }

// HTTPHeader converts the set to an http.Header
func (h Headers) HTTPHeader() http.Header {
	out := make(http.Header, len(h.keys))
	for _, k := range h.keys {
		out.Set(k, h.values[k])
	}
	return out
}

// Apply sets every header on the request, replacing existing values
func (h Headers) Apply(req *http.Request) {
	for _, k := range h.keys {
		req.Header.Set(k, h.values[k])
	}
}

// Init is a caller-supplied header collection. Map, Pairs and Native cover
// the accepted shapes; all of them are folded into Headers at the boundary.
type Init interface {
	each(fn func(key, value string))
}

// Map is a plain mapping. Keys are applied in sorted order so the result is
// deterministic.
type Map map[string]string

func (m Map) each(fn func(key, value string)) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fn(k, m[k])
	}
}

// Pairs is an ordered list of name/value pairs. Later pairs win.
type Pairs [][2]string

func (p Pairs) each(fn func(key, value string)) {
	for _, kv := range p {
		fn(kv[0], kv[1])
	}
}

// Native wraps an http.Header. For multi-valued headers the last value wins.
type Native http.Header

func (n Native) each(fn func(key, value string)) {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if vs := n[k]; len(vs) > 0 {
			fn(k, vs[len(vs)-1])
		}
	}
}

// Normalize folds any Init into Headers. A nil Init yields an empty set.
func Normalize(in Init) Headers {
	h := NewHeaders()
	if in != nil {
		in.each(h.Set)
	}
	return h
}

// AuthHeaders starts from Content-Type: application/json, merges extra over
// it and appends Authorization: Bearer <token> when src yields a token. It
// never fails: without a token the Authorization header is simply omitted.
func AuthHeaders(src TokenGetter, extra Init) Headers {
	h := NewHeaders()
	h.Set("Content-Type", "application/json")
	if extra != nil {
		extra.each(h.Set)
	}

	if src == nil {
		return h
	}
	if token, ok := src.Token(); ok && token != "" {
		t := &oauth2.Token{AccessToken: token}
		h.Set("Authorization", t.Type()+" "+t.AccessToken)
	}
	return h
}
