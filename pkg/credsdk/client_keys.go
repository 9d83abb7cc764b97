package credsdk

import (
	"context"
	"net/http"
	"net/url"
)

// RotateKey promotes a new signing key. Requires admin:write.
func (c *Client) RotateKey(ctx context.Context) (*RotateKeyResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/keys/rotate", nil, nil)
	if err != nil {
		return nil, err
	}
	var out RotateKeyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListKeys returns every signing key, revoked ones included. Requires
// admin:read.
func (c *Client) ListKeys(ctx context.Context) ([]SigningKeyInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/keys", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []SigningKeyInfo
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// SweepKeys revokes retiring keys past their grace period. Requires
// admin:write.
func (c *Client) SweepKeys(ctx context.Context) (*SweepKeysResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/keys/sweep", nil, nil)
	if err != nil {
		return nil, err
	}
	var out SweepKeysResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeKey removes kid from the verification set immediately. Requires
// admin:write.
func (c *Client) RevokeKey(ctx context.Context, kid string) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/keys/"+url.PathEscape(kid)+"/revoke", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
