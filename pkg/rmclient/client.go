// Package rmclient provides the main entry point for creating Redmine clients.
package rmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/redmine-ws/internal/client"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// New creates a new Redmine client. The endpoint is normalised: a trailing
// slash is dropped and https:// is assumed when no scheme is given. config
// itself is not modified.
func New(ctx context.Context, config *redmine.Config) (redmine.Client, error) {
	if config == nil {
		return nil, redmine.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, redmine.ErrBaseURLRequired
	}

	normalised := *config
	normalised.BaseURL = NormalizeURL(config.BaseURL)

	c, err := client.New(ctx, &normalised)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NewWithKey creates a client authenticating with an API key.
func NewWithKey(ctx context.Context, baseURL, apiKey string) (redmine.Client, error) {
	return New(ctx, &redmine.Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
	})
}

// NewWithPassword creates a client authenticating with HTTP Basic. The first
// request on it performs the authentication handshake.
func NewWithPassword(ctx context.Context, baseURL, username, password string) (redmine.Client, error) {
	return New(ctx, &redmine.Config{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
	})
}

// NormalizeURL trims trailing slashes and defaults the scheme to https.
func NormalizeURL(raw string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}
