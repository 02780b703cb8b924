package client

import (
	"context"
	"fmt"
	"net/http"
)

// Documents live under /editor on the API

func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := c.do(ctx, call{
		resource: "documents",
		op:       "fetch documents",
		method:   http.MethodGet,
		url:      c.endpoint("editor"),
		out:      &docs,
	})
	return docs, err
}

func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := c.do(ctx, call{
		resource: "documents",
		op:       "fetch document",
		method:   http.MethodGet,
		url:      c.endpoint("editor", id),
		out:      &doc,
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) CreateDocument(ctx context.Context, in DocumentInput) (*Document, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	var doc Document
	err := c.do(ctx, call{
		resource: "documents",
		op:       "create document",
		method:   http.MethodPost,
		url:      c.endpoint("editor"),
		body:     in,
		out:      &doc,
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) UpdateDocument(ctx context.Context, id string, in DocumentUpdate) (*Document, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document update: %w", err)
	}

	var doc Document
	err := c.do(ctx, call{
		resource: "documents",
		op:       "update document",
		method:   http.MethodPut,
		url:      c.endpoint("editor", id),
		body:     in,
		out:      &doc,
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, call{
		resource: "documents",
		op:       "delete document",
		method:   http.MethodDelete,
		url:      c.endpoint("editor", id),
	})
}
