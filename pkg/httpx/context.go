package httpx

import "context"

// PrincipalKind tells how a caller authenticated.
type PrincipalKind string

const (
	PrincipalToken  PrincipalKind = "token"
	PrincipalAPIKey PrincipalKind = "api_key"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	// Subject is the token "sub" or the API key id.
	Subject string
	Kind    PrincipalKind
	// Scopes holds token scopes or API key permissions.
	Scopes []string
}

// HasScope reports whether p carries scope.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func scopesFromCtx(ctx context.Context) []string {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.Scopes
	}
	return nil
}
