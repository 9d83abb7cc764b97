package credsdk

import (
	"context"
	"net/http"
	"net/url"
)

// RecordPassword runs the reuse check for userID and records password when
// it passes. A reused password returns an *APIError with code
// ErrorCodePasswordReused. The endpoint is CSRF protected, so a token is
// fetched first. Requires passwords:write.
func (c *Client) RecordPassword(ctx context.Context, userID, password string) error {
	tok, err := c.CSRF(ctx)
	if err != nil {
		return err
	}
	headers := map[string]string{tok.HeaderName: tok.Token}
	if tok.Cookie != nil {
		headers["Cookie"] = (&http.Cookie{Name: tok.Cookie.Name, Value: tok.Cookie.Value}).String()
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/password-history",
		PasswordHistoryRequest{Password: password}, headers)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ForgetPasswords deletes the stored history for userID. Requires
// passwords:write.
func (c *Client) ForgetPasswords(ctx context.Context, userID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/users/"+url.PathEscape(userID)+"/password-history", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
