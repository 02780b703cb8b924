package client

import (
	"context"
	"fmt"
	"net/http"
)

// blogCreatePayload is what the API expects on create: the author reference
// travels as blogAuthorId and scheduledAt is omitted when blank.
type blogCreatePayload struct {
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	EditorID       string     `json:"editorId,omitempty"`
	BlogAuthorID   string     `json:"blogAuthorId"`
	Status         BlogStatus `json:"status"`
	ScheduledAt    string     `json:"scheduledAt,omitempty"`
	SEOTitle       string     `json:"seoTitle,omitempty"`
	SEODescription string     `json:"seoDescription,omitempty"`
	SEOKeywords    string     `json:"seoKeywords,omitempty"`
}

func (c *Client) ListBlogs(ctx context.Context) ([]Blog, error) {
	var blogs []Blog
	err := c.do(ctx, call{
		resource: "blogs",
		op:       "fetch blogs",
		method:   http.MethodGet,
		url:      c.endpoint("blogs"),
		out:      &blogs,
	})
	return blogs, err
}

func (c *Client) GetBlog(ctx context.Context, id string) (*Blog, error) {
	var blog Blog
	err := c.do(ctx, call{
		resource: "blogs",
		op:       "fetch blog",
		method:   http.MethodGet,
		url:      c.endpoint("blogs", id),
		out:      &blog,
	})
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

func (c *Client) CreateBlog(ctx context.Context, in BlogInput) (*Blog, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blog: %w", err)
	}
	scheduledAt, err := normalizeScheduledAt(in.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("invalid blog: scheduledAt: %w", err)
	}

	payload := blogCreatePayload{
		Title:          in.Title,
		Slug:           in.Slug,
		EditorID:       in.EditorID,
		BlogAuthorID:   in.AuthorID,
		Status:         in.Status,
		ScheduledAt:    scheduledAt,
		SEOTitle:       in.SEOTitle,
		SEODescription: in.SEODescription,
		SEOKeywords:    in.SEOKeywords,
	}

	var blog Blog
	err = c.do(ctx, call{
		resource: "blogs",
		op:       "create blog",
		method:   http.MethodPost,
		url:      c.endpoint("blogs"),
		body:     payload,
		out:      &blog,
	})
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

func (c *Client) UpdateBlog(ctx context.Context, id string, in BlogUpdate) (*Blog, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blog update: %w", err)
	}
	if in.ScheduledAt != nil {
		normalized, err := normalizeScheduledAt(*in.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("invalid blog update: scheduledAt: %w", err)
		}
		if normalized == "" {
			in.ScheduledAt = nil
		} else {
			in.ScheduledAt = &normalized
		}
	}

	var blog Blog
	err := c.do(ctx, call{
		resource: "blogs",
		op:       "update blog",
		method:   http.MethodPut,
		url:      c.endpoint("blogs", id),
		body:     in,
		out:      &blog,
	})
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

func (c *Client) DeleteBlog(ctx context.Context, id string) error {
	return c.do(ctx, call{
		resource: "blogs",
		op:       "delete blog",
		method:   http.MethodDelete,
		url:      c.endpoint("blogs", id),
	})
}
