package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/dgellow/cms-front/internal/client"
	jsonwriter "github.com/dgellow/cms-front/internal/json"
	"github.com/dgellow/cms-front/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"login", "landing", "dashboard",
	"blogs", "blog", "blog_form", "authors", "author", "author_form",
	"documents", "document", "document_form",
	"apikeys", "error",
}

// pages maps a page name to its template set, each parsed together with the
// shared layout
var pages = func() map[string]*template.Template {
	m := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		m[name] = template.Must(template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return m
}()

// pageData is handed to every template
type pageData struct {
	Title       string
	User        *client.User
	CSRFToken   string
	Message     string
	MessageType string // "success" or "error"
	Data        any
}

// pageJSON is the JSON rendition of a page
type pageJSON struct {
	User    *client.User `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	h.renderStatus(w, r, http.StatusOK, name, data)
}

// renderStatus writes the page as HTML, or its data as JSON when the client
// prefers it
func (h *Handlers) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if wantsJSON(r) {
		_ = jsonwriter.WriteResponse(w, status, pageJSON{User: data.User, Message: data.Message, Data: data.Data})
		return
	}

	tmpl, ok := pages[name]
	if !ok {
		jsonwriter.WriteInternalServerError(w, "unknown page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.LogErrorWithFields("server", "Failed to render page", map[string]any{
			"page":  name,
			"error": err.Error(),
		})
	}
}
