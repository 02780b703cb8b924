package client

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListAuthors(ctx context.Context) ([]Author, error) {
	var authors []Author
	err := c.do(ctx, call{
		resource: "authors",
		op:       "fetch authors",
		method:   http.MethodGet,
		url:      c.endpoint("authors"),
		out:      &authors,
	})
	return authors, err
}

func (c *Client) GetAuthor(ctx context.Context, id string) (*Author, error) {
	var author Author
	err := c.do(ctx, call{
		resource: "authors",
		op:       "fetch author",
		method:   http.MethodGet,
		url:      c.endpoint("authors", id),
		out:      &author,
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (c *Client) CreateAuthor(ctx context.Context, in AuthorInput) (*Author, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid author: %w", err)
	}

	var author Author
	err := c.do(ctx, call{
		resource: "authors",
		op:       "create author",
		method:   http.MethodPost,
		url:      c.endpoint("authors"),
		body:     in,
		out:      &author,
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (c *Client) UpdateAuthor(ctx context.Context, id string, in AuthorUpdate) (*Author, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid author update: %w", err)
	}

	var author Author
	err := c.do(ctx, call{
		resource: "authors",
		op:       "update author",
		method:   http.MethodPut,
		url:      c.endpoint("authors", id),
		body:     in,
		out:      &author,
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (c *Client) DeleteAuthor(ctx context.Context, id string) error {
	return c.do(ctx, call{
		resource: "authors",
		op:       "delete author",
		method:   http.MethodDelete,
		url:      c.endpoint("authors", id),
	})
}
