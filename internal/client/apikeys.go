package client

import (
	"context"
	"net/http"
)

// There is at most one API key per account, so the endpoint has no ID

func (c *Client) APIKeyStatus(ctx context.Context) (*APIKeyStatus, error) {
	var status APIKeyStatus
	err := c.do(ctx, call{
		resource: "api_key",
		op:       "fetch API key status",
		method:   http.MethodGet,
		url:      c.endpoint("api-key"),
		out:      &status,
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GenerateAPIKey issues a new key. The plaintext key is only ever returned here.
func (c *Client) GenerateAPIKey(ctx context.Context) (string, error) {
	var generated GeneratedAPIKey
	err := c.do(ctx, call{
		resource: "api_key",
		op:       "generate API key",
		method:   http.MethodPost,
		url:      c.endpoint("api-key"),
		out:      &generated,
	})
	if err != nil {
		return "", err
	}
	return generated.APIKey, nil
}

func (c *Client) DeactivateAPIKey(ctx context.Context) error {
	return c.do(ctx, call{
		resource: "api_key",
		op:       "deactivate API key",
		method:   http.MethodDelete,
		url:      c.endpoint("api-key"),
	})
}
