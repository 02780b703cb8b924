package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/dgellow/cms-front/internal/client"
	jsonwriter "github.com/dgellow/cms-front/internal/json"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const csrfTTL = 2 * time.Hour

var errBadCSRF = errors.New("invalid CSRF token")

// csrfToken issues a form token bound to the session token
func (h *Handlers) csrfToken(s *requestScope) string {
	token, err := h.csrf.Generate(s.token())
	if err != nil {
		log.LogError("Failed to generate CSRF token: %v", err)
		return ""
	}
	return token
}

// validCSRF checks the form field, or the X-CSRF-Token header for scripted
// clients
func (h *Handlers) validCSRF(r *http.Request, binding string) bool {
	token := r.Header.Get("X-CSRF-Token")
	if token == "" {
		if err := r.ParseForm(); err != nil {
			return false
		}
		token = r.PostFormValue("csrf_token")
	}
	return token != "" && h.csrf.Validate(token, binding)
}

// DashboardSummary is what the dashboard shows
type DashboardSummary struct {
	Blogs        int  `json:"blogs"`
	Authors      int  `json:"authors"`
	Documents    int  `json:"documents"`
	APIKeyActive bool `json:"apiKeyActive"`
}

// Dashboard fetches the counts for every resource concurrently
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	s, user := h.loadSession(w, r)
	if user == nil {
		return
	}

	var summary DashboardSummary
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		blogs, err := s.api.ListBlogs(ctx)
		summary.Blogs = len(blogs)
		return err
	})
	g.Go(func() error {
		authors, err := s.api.ListAuthors(ctx)
		summary.Authors = len(authors)
		return err
	})
	g.Go(func() error {
		docs, err := s.api.ListDocuments(ctx)
		summary.Documents = len(docs)
		return err
	})
	g.Go(func() error {
		status, err := s.api.APIKeyStatus(ctx)
		if err != nil {
			return err
		}
		summary.APIKeyActive = status.Active
		return nil
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, "dashboard", pageData{
		Title:     "Dashboard",
		User:      user,
		CSRFToken: h.csrfToken(s),
		Data:      summary,
	})
}

// listPage renders a collection page
func listPage[T any](h *Handlers, name, title string, list func(s *requestScope, r *http.Request) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, user := h.loadSession(w, r)
		if user == nil {
			return
		}
		items, err := list(s, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		h.render(w, r, name, pageData{Title: title, User: user, CSRFToken: h.csrfToken(s), Data: items})
	}
}

// detailPage renders a single record addressed by the {id} URL parameter
func detailPage[T any](h *Handlers, name string, get func(s *requestScope, r *http.Request, id string) (*T, error), title func(*T) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, user := h.loadSession(w, r)
		if user == nil {
			return
		}
		item, err := get(s, r, chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.render(w, r, name, pageData{Title: title(item), User: user, CSRFToken: h.csrfToken(s), Data: item})
	}
}

// action runs a state-changing POST after the CSRF check, then redirects to
// back, or answers 204 for JSON clients
func (h *Handlers) action(back string, do func(s *requestScope, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, user := h.loadSession(w, r)
		if user == nil {
			return
		}
		if !h.validCSRF(r, s.token()) {
			h.fail(w, r, errBadCSRF)
			return
		}
		if err := do(s, r); err != nil {
			h.fail(w, r, err)
			return
		}
		log.LogInfoCtx(r.Context(), "server", "Action completed", map[string]any{
			"path": r.URL.Path,
			"user": user.Email,
		})
		if wantsJSON(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// Blogs and friends are built from the generic page helpers
func (h *Handlers) Blogs() http.HandlerFunc {
	return listPage(h, "blogs", "Blog posts", func(s *requestScope, r *http.Request) ([]client.Blog, error) {
		return s.api.ListBlogs(r.Context())
	})
}

func (h *Handlers) Blog() http.HandlerFunc {
	return detailPage(h, "blog", func(s *requestScope, r *http.Request, id string) (*client.Blog, error) {
		return s.api.GetBlog(r.Context(), id)
	}, func(b *client.Blog) string { return b.Title })
}

func (h *Handlers) DeleteBlog() http.HandlerFunc {
	return h.action("/blogs", func(s *requestScope, r *http.Request) error {
		return s.api.DeleteBlog(r.Context(), chi.URLParam(r, "id"))
	})
}

func (h *Handlers) Authors() http.HandlerFunc {
	return listPage(h, "authors", "Authors", func(s *requestScope, r *http.Request) ([]client.Author, error) {
		return s.api.ListAuthors(r.Context())
	})
}

func (h *Handlers) Author() http.HandlerFunc {
	return detailPage(h, "author", func(s *requestScope, r *http.Request, id string) (*client.Author, error) {
		return s.api.GetAuthor(r.Context(), id)
	}, func(a *client.Author) string { return a.Name })
}

func (h *Handlers) DeleteAuthor() http.HandlerFunc {
	return h.action("/authors", func(s *requestScope, r *http.Request) error {
		return s.api.DeleteAuthor(r.Context(), chi.URLParam(r, "id"))
	})
}

func (h *Handlers) Documents() http.HandlerFunc {
	return listPage(h, "documents", "Documents", func(s *requestScope, r *http.Request) ([]client.Document, error) {
		return s.api.ListDocuments(r.Context())
	})
}

func (h *Handlers) Document() http.HandlerFunc {
	return detailPage(h, "document", func(s *requestScope, r *http.Request, id string) (*client.Document, error) {
		return s.api.GetDocument(r.Context(), id)
	}, func(d *client.Document) string { return d.Name })
}

func (h *Handlers) DeleteDocument() http.HandlerFunc {
	return h.action("/editor", func(s *requestScope, r *http.Request) error {
		return s.api.DeleteDocument(r.Context(), chi.URLParam(r, "id"))
	})
}

// apiKeyPage is the data behind the API key page
type apiKeyPage struct {
	Active    bool   `json:"active"`
	Generated string `json:"apiKey,omitempty"`
}

// APIKeys shows whether a key is active
func (h *Handlers) APIKeys(w http.ResponseWriter, r *http.Request) {
	s, user := h.loadSession(w, r)
	if user == nil {
		return
	}
	status, err := s.api.APIKeyStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "apikeys", pageData{
		Title:     "API key",
		User:      user,
		CSRFToken: h.csrfToken(s),
		Data:      apiKeyPage{Active: status.Active},
	})
}

// GenerateAPIKey issues a key and shows it once. There is no redirect here:
// the plaintext key only exists in this response.
func (h *Handlers) GenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	s, user := h.loadSession(w, r)
	if user == nil {
		return
	}
	if !h.validCSRF(r, s.token()) {
		h.fail(w, r, errBadCSRF)
		return
	}

	key, err := s.api.GenerateAPIKey(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log.LogInfoCtx(r.Context(), "server", "API key generated", map[string]any{
		"user": user.Email,
	})

	if wantsJSON(r) {
		_ = jsonwriter.WriteResponse(w, http.StatusCreated, apiKeyPage{Active: true, Generated: key})
		return
	}
	h.render(w, r, "apikeys", pageData{
		Title:       "API key",
		User:        user,
		CSRFToken:   h.csrfToken(s),
		Message:     "API key generated",
		MessageType: "success",
		Data:        apiKeyPage{Active: true, Generated: key},
	})
}

func (h *Handlers) DeactivateAPIKey() http.HandlerFunc {
	return h.action("/api-keys", func(s *requestScope, r *http.Request) error {
		return s.api.DeactivateAPIKey(r.Context())
	})
}
