package credsdk

import (
	"context"
	"net/http"
)

// Livez checks that the server is running.
func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// Readyz checks that the server can serve traffic. A degraded server
// returns an *APIError with status 503.
func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// JWKS fetches the verification key set.
func (c *Client) JWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}
	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// CSRFToken is a token together with the cookie that must accompany it.
type CSRFToken struct {
	CSRFResponse
	Cookie *http.Cookie
}

// CSRF obtains a double-submit token.
func (c *Client) CSRF(ctx context.Context) (*CSRFToken, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/csrf", nil, nil)
	if err != nil {
		return nil, err
	}
	cookies := resp.Cookies()

	var tok CSRFToken
	if err := decodeJSON(resp, &tok.CSRFResponse, http.StatusOK); err != nil {
		return nil, err
	}
	for _, ck := range cookies {
		if ck.Value == tok.Token {
			tok.Cookie = ck
			break
		}
	}
	return &tok, nil
}
