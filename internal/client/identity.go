package client

import (
	"context"
	"net/http"
)

// Me asks the API who the current session belongs to. A 401 means the token
// is missing or no longer valid; see IsUnauthorized.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	err := c.do(ctx, call{
		resource: "auth",
		op:       "fetch current user",
		method:   http.MethodGet,
		url:      c.endpoint("auth", "me"),
		out:      &user,
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout ends the session upstream. The response body is ignored.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{
		resource: "auth",
		op:       "log out",
		method:   http.MethodPost,
		url:      c.endpoint("auth", "logout"),
	})
}

// LoginURL is where the browser is sent to start the Google OAuth flow
func (c *Client) LoginURL() string {
	return c.endpoint("auth", "google")
}
