package client

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID accepts both string and numeric identifiers from the API
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// User is the identity returned by /auth/me. Fields the dashboard does not
// model are kept in Extra.
type User struct {
	ID    ID             `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name,omitempty"`
	Image string         `json:"image,omitempty"`
	Extra map[string]any `json:"-"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, known := range []string{"id", "email", "name", "image"} {
		delete(raw, known)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}

	*u = User(p)
	return nil
}

// DisplayName returns the name, falling back to the email
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}

// BlogStatus is the publication state of a blog post
type BlogStatus string

const (
	BlogStatusDraft     BlogStatus = "DRAFT"
	BlogStatusPublic    BlogStatus = "PUBLIC"
	BlogStatusScheduled BlogStatus = "SCHEDULED"
)

type Blog struct {
	ID             ID         `json:"id"`
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	EditorID       string     `json:"editorId"`
	AuthorID       string     `json:"authorId"`
	Status         BlogStatus `json:"status"`
	ScheduledAt    string     `json:"scheduledAt,omitempty"`
	SEOTitle       string     `json:"seoTitle,omitempty"`
	SEODescription string     `json:"seoDescription,omitempty"`
	SEOKeywords    string     `json:"seoKeywords,omitempty"`
	CreatedAt      string     `json:"createdAt"`
	UpdatedAt      string     `json:"updatedAt"`
}

// BlogInput creates a blog post
type BlogInput struct {
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	EditorID       string     `json:"editorId"`
	AuthorID       string     `json:"authorId"`
	Status         BlogStatus `json:"status"`
	ScheduledAt    string     `json:"scheduledAt,omitempty"`
	SEOTitle       string     `json:"seoTitle,omitempty"`
	SEODescription string     `json:"seoDescription,omitempty"`
	SEOKeywords    string     `json:"seoKeywords,omitempty"`
}

// BlogUpdate is a partial blog update; nil fields are left untouched
type BlogUpdate struct {
	Title          *string     `json:"title,omitempty"`
	Slug           *string     `json:"slug,omitempty"`
	EditorID       *string     `json:"editorId,omitempty"`
	AuthorID       *string     `json:"authorId,omitempty"`
	Status         *BlogStatus `json:"status,omitempty"`
	ScheduledAt    *string     `json:"scheduledAt,omitempty"`
	SEOTitle       *string     `json:"seoTitle,omitempty"`
	SEODescription *string     `json:"seoDescription,omitempty"`
	SEOKeywords    *string     `json:"seoKeywords,omitempty"`
}

type Author struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage,omitempty"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type AuthorInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage,omitempty"`
	Description  string `json:"description,omitempty"`
}

type AuthorUpdate struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
	Description  *string `json:"description,omitempty"`
}

// Document is a rich-text document edited in the dashboard editor
type Document struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type DocumentInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type DocumentUpdate struct {
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
}

type APIKeyStatus struct {
	Active bool `json:"active"`
}

type GeneratedAPIKey struct {
	APIKey string `json:"apiKey"`
}
