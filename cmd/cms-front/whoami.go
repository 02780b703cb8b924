package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dgellow/cms-front/internal/client"
	"github.com/dgellow/cms-front/internal/session"
	"github.com/dgellow/cms-front/internal/tokenstore"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func whoamiCmd() *cobra.Command {
	var (
		token  string
		apiURL string
	)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show who a session token belongs to",
		Long: `Run the identity probe against the CMS API with the given session
token and print the user it resolves to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			if apiURL == "" {
				return errors.New("--api-url or CMS_API_BASE_URL is required")
			}

			origin, err := url.Parse(apiURL)
			if err != nil {
				return fmt.Errorf("invalid API URL: %w", err)
			}
			store := tokenstore.NewInMemory(origin)
			store.SetToken(token)

			hc := oauth2.NewClient(cmd.Context(), store.TokenSource())
			hc.Timeout = 30 * time.Second

			api, err := client.New(apiURL,
				client.WithHTTPClient(hc),
				client.WithCookieJar(store.Jar()),
				client.WithTokens(store),
			)
			if err != nil {
				return err
			}

			state := session.New(api, store, nil, session.WithRedirect(false)).Load(cmd.Context())
			if !state.Authenticated() {
				if client.IsUnauthorized(state.Err) {
					return errors.New("token rejected by the API")
				}
				return fmt.Errorf("identity probe failed: %w", state.Err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state.User)
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "session token to check")
	cmd.Flags().StringVar(&apiURL, "api-url", os.Getenv("CMS_API_BASE_URL"), "CMS API base URL")

	return cmd
}
