package server

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dgellow/cms-front/internal/client"
	jsonwriter "github.com/dgellow/cms-front/internal/json"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

var errBadForm = errors.New("malformed form submission")

// formPage is the data behind the create and edit screens
type formPage struct {
	// Action is where the form posts
	Action string `json:"action"`
	// ID is empty on the create screen
	ID        string            `json:"id,omitempty"`
	Values    url.Values        `json:"values,omitempty"`
	Authors   []client.Author   `json:"authors,omitempty"`
	Documents []client.Document `json:"documents,omitempty"`
}

// resourceForm wires the create and edit screens of one resource
type resourceForm[T any] struct {
	page string
	noun string
	base string

	id     func(*T) client.ID
	get    func(s *requestScope, r *http.Request, id string) (*T, error)
	values func(*T) url.Values
	create func(s *requestScope, r *http.Request, form url.Values) (*T, error)
	update func(s *requestScope, r *http.Request, id string, form url.Values) (*T, error)
	// options fills the select choices, may be nil
	options func(s *requestScope, r *http.Request, page *formPage) error
	// created is where browsers land after a create
	created func(*T) string
}

func (f resourceForm[T]) show(h *Handlers, w http.ResponseWriter, r *http.Request, s *requestScope, user *client.User, status int, page formPage, message string) {
	if f.options != nil {
		if err := f.options(s, r, &page); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	title := "New " + f.noun
	if page.ID != "" {
		title = "Edit " + f.noun
	}
	data := pageData{Title: title, User: user, CSRFToken: h.csrfToken(s), Data: page}
	if message != "" {
		data.Message = message
		data.MessageType = "error"
	}
	h.renderStatus(w, r, status, f.page, data)
}

func (f resourceForm[T]) newPage(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, user := h.loadSession(w, r)
		if user == nil {
			return
		}
		f.show(h, w, r, s, user, http.StatusOK, formPage{Action: f.base, Values: url.Values{}}, "")
	}
}

func (f resourceForm[T]) editPage(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, user := h.loadSession(w, r)
		if user == nil {
			return
		}
		id := chi.URLParam(r, "id")
		item, err := f.get(s, r, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		f.show(h, w, r, s, user, http.StatusOK, formPage{
			Action: f.base + "/" + id,
			ID:     id,
			Values: f.values(item),
		}, "")
	}
}

// submit creates the record, or updates the one named by the {id} URL
// parameter. Input the client rejects is shown again with a 400.
func (f resourceForm[T]) submit(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, user := h.loadSession(w, r)
		if user == nil {
			return
		}
		if !h.validCSRF(r, s.token()) {
			h.fail(w, r, errBadCSRF)
			return
		}
		if err := r.ParseForm(); err != nil {
			h.fail(w, r, errBadForm)
			return
		}
		form := r.PostForm
		form.Del("csrf_token")

		id := chi.URLParam(r, "id")
		var (
			item *T
			err  error
		)
		if id == "" {
			item, err = f.create(s, r, form)
		} else {
			item, err = f.update(s, r, id, form)
		}

		if errs, ok := client.ValidationErrors(err); ok {
			log.LogDebug("Rejected %s form: %v", f.noun, errs)
			if wantsJSON(r) {
				jsonwriter.WriteBadRequest(w, errs.Error())
				return
			}
			action := f.base
			if id != "" {
				action += "/" + id
			}
			f.show(h, w, r, s, user, http.StatusBadRequest, formPage{Action: action, ID: id, Values: form}, errs.Error())
			return
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}

		log.LogInfoCtx(r.Context(), "server", "Record saved", map[string]any{
			"resource": f.noun,
			"id":       f.id(item).String(),
			"created":  id == "",
			"user":     user.Email,
		})

		if wantsJSON(r) {
			status := http.StatusOK
			if id == "" {
				status = http.StatusCreated
			}
			_ = jsonwriter.WriteResponse(w, status, pageJSON{User: user, Data: item})
			return
		}
		next := f.base + "/" + f.id(item).String()
		if id == "" && f.created != nil {
			next = f.created(item)
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}

// optional returns the trimmed field, or nil when the form does not carry it
func optional(form url.Values, key string) *string {
	if !form.Has(key) {
		return nil
	}
	v := strings.TrimSpace(form.Get(key))
	return &v
}

func field(form url.Values, key string) string {
	return strings.TrimSpace(form.Get(key))
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL slug from a title
func slugify(title string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// localDateTime formats an API timestamp for a datetime-local input
func localDateTime(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("2006-01-02T15:04")
}

func (h *Handlers) blogForm() resourceForm[client.Blog] {
	return resourceForm[client.Blog]{
		page: "blog_form",
		noun: "blog post",
		base: "/blogs",
		id:   func(b *client.Blog) client.ID { return b.ID },
		get: func(s *requestScope, r *http.Request, id string) (*client.Blog, error) {
			return s.api.GetBlog(r.Context(), id)
		},
		values: func(b *client.Blog) url.Values {
			return url.Values{
				"title":          {b.Title},
				"slug":           {b.Slug},
				"editorId":       {b.EditorID},
				"authorId":       {b.AuthorID},
				"status":         {string(b.Status)},
				"scheduledAt":    {localDateTime(b.ScheduledAt)},
				"seoTitle":       {b.SEOTitle},
				"seoDescription": {b.SEODescription},
				"seoKeywords":    {b.SEOKeywords},
			}
		},
		create: func(s *requestScope, r *http.Request, form url.Values) (*client.Blog, error) {
			in := client.BlogInput{
				Title:          field(form, "title"),
				Slug:           field(form, "slug"),
				EditorID:       field(form, "editorId"),
				AuthorID:       field(form, "authorId"),
				Status:         client.BlogStatus(field(form, "status")),
				ScheduledAt:    field(form, "scheduledAt"),
				SEOTitle:       field(form, "seoTitle"),
				SEODescription: field(form, "seoDescription"),
				SEOKeywords:    field(form, "seoKeywords"),
			}
			if in.Slug == "" {
				in.Slug = slugify(in.Title)
			}
			if in.Status == "" {
				in.Status = client.BlogStatusDraft
			}
			return s.api.CreateBlog(r.Context(), in)
		},
		update: func(s *requestScope, r *http.Request, id string, form url.Values) (*client.Blog, error) {
			in := client.BlogUpdate{
				Title:          optional(form, "title"),
				Slug:           optional(form, "slug"),
				EditorID:       optional(form, "editorId"),
				AuthorID:       optional(form, "authorId"),
				ScheduledAt:    optional(form, "scheduledAt"),
				SEOTitle:       optional(form, "seoTitle"),
				SEODescription: optional(form, "seoDescription"),
				SEOKeywords:    optional(form, "seoKeywords"),
			}
			if status := optional(form, "status"); status != nil {
				st := client.BlogStatus(*status)
				in.Status = &st
			}
			return s.api.UpdateBlog(r.Context(), id, in)
		},
		options: func(s *requestScope, r *http.Request, page *formPage) error {
			g, ctx := errgroup.WithContext(r.Context())
			g.Go(func() error {
				authors, err := s.api.ListAuthors(ctx)
				page.Authors = authors
				return err
			})
			g.Go(func() error {
				docs, err := s.api.ListDocuments(ctx)
				page.Documents = docs
				return err
			})
			return g.Wait()
		},
		created: func(*client.Blog) string { return "/blogs" },
	}
}

func (h *Handlers) NewBlog() http.HandlerFunc    { return h.blogForm().newPage(h) }
func (h *Handlers) EditBlog() http.HandlerFunc   { return h.blogForm().editPage(h) }
func (h *Handlers) CreateBlog() http.HandlerFunc { return h.blogForm().submit(h) }
func (h *Handlers) UpdateBlog() http.HandlerFunc { return h.blogForm().submit(h) }

func (h *Handlers) authorForm() resourceForm[client.Author] {
	return resourceForm[client.Author]{
		page: "author_form",
		noun: "author",
		base: "/authors",
		id:   func(a *client.Author) client.ID { return a.ID },
		get: func(s *requestScope, r *http.Request, id string) (*client.Author, error) {
			return s.api.GetAuthor(r.Context(), id)
		},
		values: func(a *client.Author) url.Values {
			return url.Values{
				"name":         {a.Name},
				"email":        {a.Email},
				"profileImage": {a.ProfileImage},
				"description":  {a.Description},
			}
		},
		create: func(s *requestScope, r *http.Request, form url.Values) (*client.Author, error) {
			return s.api.CreateAuthor(r.Context(), client.AuthorInput{
				Name:         field(form, "name"),
				Email:        field(form, "email"),
				ProfileImage: field(form, "profileImage"),
				Description:  field(form, "description"),
			})
		},
		update: func(s *requestScope, r *http.Request, id string, form url.Values) (*client.Author, error) {
			return s.api.UpdateAuthor(r.Context(), id, client.AuthorUpdate{
				Name:         optional(form, "name"),
				Email:        optional(form, "email"),
				ProfileImage: optional(form, "profileImage"),
				Description:  optional(form, "description"),
			})
		},
		created: func(*client.Author) string { return "/authors" },
	}
}

func (h *Handlers) NewAuthor() http.HandlerFunc    { return h.authorForm().newPage(h) }
func (h *Handlers) EditAuthor() http.HandlerFunc   { return h.authorForm().editPage(h) }
func (h *Handlers) CreateAuthor() http.HandlerFunc { return h.authorForm().submit(h) }
func (h *Handlers) UpdateAuthor() http.HandlerFunc { return h.authorForm().submit(h) }

// documentForm edits the document body as raw markup. Content is passed
// through untouched, trailing whitespace included.
func (h *Handlers) documentForm() resourceForm[client.Document] {
	return resourceForm[client.Document]{
		page: "document_form",
		noun: "document",
		base: "/editor",
		id:   func(d *client.Document) client.ID { return d.ID },
		get: func(s *requestScope, r *http.Request, id string) (*client.Document, error) {
			return s.api.GetDocument(r.Context(), id)
		},
		values: func(d *client.Document) url.Values {
			return url.Values{"name": {d.Name}, "content": {d.Content}}
		},
		create: func(s *requestScope, r *http.Request, form url.Values) (*client.Document, error) {
			return s.api.CreateDocument(r.Context(), client.DocumentInput{
				Name:    field(form, "name"),
				Content: form.Get("content"),
			})
		},
		update: func(s *requestScope, r *http.Request, id string, form url.Values) (*client.Document, error) {
			in := client.DocumentUpdate{Name: optional(form, "name")}
			if form.Has("content") {
				content := form.Get("content")
				in.Content = &content
			}
			return s.api.UpdateDocument(r.Context(), id, in)
		},
	}
}

func (h *Handlers) NewDocument() http.HandlerFunc    { return h.documentForm().newPage(h) }
func (h *Handlers) EditDocument() http.HandlerFunc   { return h.documentForm().editPage(h) }
func (h *Handlers) CreateDocument() http.HandlerFunc { return h.documentForm().submit(h) }
func (h *Handlers) UpdateDocument() http.HandlerFunc { return h.documentForm().submit(h) }
