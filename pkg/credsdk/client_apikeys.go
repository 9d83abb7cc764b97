package credsdk

import (
	"context"
	"net/http"
	"net/url"
)

// IssueAPIKey creates a key. The plaintext in the response is not
// retrievable again. Requires admin:write.
func (c *Client) IssueAPIKey(ctx context.Context, req IssueAPIKeyRequest) (*IssueAPIKeyResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/apikeys", req, nil)
	if err != nil {
		return nil, err
	}
	var out IssueAPIKeyResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAPIKeys returns every key, newest first. Requires admin:read.
func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKeyInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/apikeys", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []APIKeyInfo
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeAPIKey deactivates a key. Requires admin:write.
func (c *Client) RevokeAPIKey(ctx context.Context, keyID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/apikeys/"+url.PathEscape(keyID)+"/revoke", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// PurgeAPIKey deletes a key record. Requires admin:write.
func (c *Client) PurgeAPIKey(ctx context.Context, keyID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/apikeys/"+url.PathEscape(keyID), nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// APIKeySelf returns the identity of the API key the client is using.
func (c *Client) APIKeySelf(ctx context.Context) (*APIKeySelfResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/apikeys/self", nil, nil)
	if err != nil {
		return nil, err
	}
	var out APIKeySelfResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
