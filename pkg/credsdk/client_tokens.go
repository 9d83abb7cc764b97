package credsdk

import (
	"context"
	"net/http"
)

// IssueToken mints a JWT. Requires tokens:issue.
func (c *Client) IssueToken(ctx context.Context, req IssueTokenRequest) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/tokens", req, nil)
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyToken asks the server for a verdict on token. An invalid token is
// not an error; check VerifyTokenResponse.Valid.
func (c *Client) VerifyToken(ctx context.Context, token string) (*VerifyTokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/tokens/verify", VerifyTokenRequest{Token: token}, nil)
	if err != nil {
		return nil, err
	}
	var out VerifyTokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
