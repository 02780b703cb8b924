package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// RecordedRequest is a request seen by the FakeAPI
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Cookie        string
	Body          map[string]any
}

// FakeAPI is an in-memory stand-in for the CMS REST API. A request is
// authenticated when it carries one of the valid tokens as a bearer header
// or as the authToken cookie.
type FakeAPI struct {
	Server *httptest.Server

	mu          sync.Mutex
	tokens      map[string]map[string]any // token -> user
	requests    []RecordedRequest
	blogs       []map[string]any
	authors     []map[string]any
	documents   []map[string]any
	apiKey      bool
	nextID      int
	failLogout  bool
	forceStatus map[string]int // "METHOD /path" -> status
}

// NewFakeAPI starts a fake API that is closed when the test ends
func NewFakeAPI(t testing.TB) *FakeAPI {
	f := &FakeAPI{
		tokens:      make(map[string]map[string]any),
		forceStatus: make(map[string]int),
		nextID:      1,
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Get("/auth/me", f.handleMe)
	r.Post("/auth/logout", f.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(f.requireAuth)
		f.mountCollection(r, "/blogs", &f.blogs)
		f.mountCollection(r, "/authors", &f.authors)
		f.mountCollection(r, "/editor", &f.documents)
		r.Get("/api-key", f.handleAPIKeyStatus)
		r.Post("/api-key", f.handleAPIKeyGenerate)
		r.Delete("/api-key", f.handleAPIKeyDeactivate)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake API
func (f *FakeAPI) URL() string { return f.Server.URL }

// AddUser registers a token that authenticates as the given user
func (f *FakeAPI) AddUser(token string, user map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = user
}

// SeedBlog, SeedAuthor and SeedDocument add records and return their IDs
func (f *FakeAPI) SeedBlog(fields map[string]any) string {
	return f.seed(&f.blogs, fields)
}

func (f *FakeAPI) SeedAuthor(fields map[string]any) string {
	return f.seed(&f.authors, fields)
}

func (f *FakeAPI) SeedDocument(fields map[string]any) string {
	return f.seed(&f.documents, fields)
}

// SetAPIKeyActive sets the reported API key status
func (f *FakeAPI) SetAPIKeyActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey = active
}

// FailLogout makes the logout endpoint answer 500
func (f *FakeAPI) FailLogout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLogout = true
}

// ForceStatus makes "METHOD /path" answer with status and a message body
func (f *FakeAPI) ForceStatus(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceStatus[method+" "+path] = status
}

// Requests returns every request seen so far
func (f *FakeAPI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// LastRequest returns the most recent request to path, if any
func (f *FakeAPI) LastRequest(method, path string) (RecordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method && f.requests[i].Path == path {
			return f.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

func (f *FakeAPI) seed(coll *[]map[string]any, fields map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(coll, fields)
}

func (f *FakeAPI) insertLocked(coll *[]map[string]any, fields map[string]any) string {
	id := strconv.Itoa(f.nextID)
	f.nextID++
	rec := map[string]any{"id": id, "createdAt": "2025-01-01T00:00:00.000Z", "updatedAt": "2025-01-01T00:00:00.000Z"}
	for k, v := range fields {
		rec[k] = v
	}
	*coll = append(*coll, rec)
	return id
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Cookie:        r.Header.Get("Cookie"),
		}
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.Body = body
			}
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		status, forced := f.forceStatus[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if forced {
			writeJSON(w, status, map[string]any{"message": http.StatusText(status)})
			return
		}

		// the handlers read the decoded body from the recording
		r = r.WithContext(withBody(r.Context(), rec.Body))
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) userFor(r *http.Request) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if u, ok := f.tokens[strings.TrimPrefix(auth, "Bearer ")]; ok {
			return u, true
		}
	}
	if c, err := r.Cookie("authToken"); err == nil {
		if u, ok := f.tokens[c.Value]; ok {
			return u, true
		}
	}
	return nil, false
}

func (f *FakeAPI) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.userFor(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := f.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (f *FakeAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fail := f.failLogout
	f.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (f *FakeAPI) mountCollection(r chi.Router, path string, coll *[]map[string]any) {
	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		out := append([]map[string]any{}, *coll...)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})
	r.Post(path, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		id := f.insertLocked(coll, bodyFrom(r.Context()))
		rec := findLocked(*coll, id)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, rec)
	})
	r.Get(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		rec := findLocked(*coll, chi.URLParam(r, "id"))
		f.mu.Unlock()
		if rec == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})
	r.Put(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		rec := findLocked(*coll, chi.URLParam(r, "id"))
		if rec != nil {
			for k, v := range bodyFrom(r.Context()) {
				rec[k] = v
			}
		}
		f.mu.Unlock()
		if rec == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})
	r.Delete(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		f.mu.Lock()
		found := false
		kept := (*coll)[:0]
		for _, rec := range *coll {
			if rec["id"] == id {
				found = true
				continue
			}
			kept = append(kept, rec)
		}
		*coll = kept
		f.mu.Unlock()
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (f *FakeAPI) handleAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	active := f.apiKey
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"active": active})
}

func (f *FakeAPI) handleAPIKeyGenerate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.apiKey {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "An active API key already exists"})
		return
	}
	f.apiKey = true
	writeJSON(w, http.StatusCreated, map[string]any{"apiKey": "sk_test_" + strconv.Itoa(f.nextID)})
}

func (f *FakeAPI) handleAPIKeyDeactivate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.apiKey {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "No active API key"})
		return
	}
	f.apiKey = false
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type bodyKey struct{}

func withBody(ctx context.Context, body map[string]any) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyFrom(ctx context.Context) map[string]any {
	body, _ := ctx.Value(bodyKey{}).(map[string]any)
	return body
}

func findLocked(coll []map[string]any, id string) map[string]any {
	for _, rec := range coll {
		if rec["id"] == id {
			return rec
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
