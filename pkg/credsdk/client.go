package credsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to a credcore server. Credentials are optional; public
// endpoints work without them.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// At most one credential is sent. The bearer token wins.
	BearerToken string
	APIKey      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithBearerToken authenticates requests with a JWT.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.BearerToken = token }
}

// WithAPIKey authenticates requests with an API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.APIKey = key }
}

// NewClient returns a client for baseURL with a 10 second timeout.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
