// Package credsdk is a Go client for the credcore HTTP API.
//
// The wire types in this package are shared with the server handlers, so a
// request built here is exactly what the server decodes.
//
// Basic usage:
//
//	c := credsdk.NewClient("https://cred.example.com", credsdk.WithAPIKey(key))
//	jwks, err := c.JWKS(ctx)
//	...
//	issued, err := c.IssueAPIKey(ctx, credsdk.IssueAPIKeyRequest{
//		ClientName:  "billing",
//		Permissions: []string{"reports:read"},
//	})
//
// Errors returned by the server are *APIError values. Rate limiting and
// store outages carry RetryAfter.
package credsdk
