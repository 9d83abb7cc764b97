package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

// TokensHandler mints and verifies JWTs.
type TokensHandler struct {
	Issuer *jwtx.Issuer
	MaxTTL time.Duration
}

// HandleIssue godoc
//
//	@Summary		Issue token
//	@Description	Signs a JWT with the active key. iat, exp and jti are set by the server.
//	@Tags			tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body	credsdk.IssueTokenRequest	true	"Claims"
//	@Security		BearerAuth
//	@Security		APIKeyAuth
//	@Success		201	{object}	credsdk.TokenResponse
//	@Failure		400	{object}	credsdk.ErrorResponse
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Failure		503	{object}	credsdk.ErrorResponse	"no active signing key"
//	@Router			/v1/tokens [post].
func (h *TokensHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req credsdk.IssueTokenRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		writeBadRequest(w, "sub is required")
		return
	}
	if req.TTLSeconds < 0 {
		writeBadRequest(w, "ttl_seconds must not be negative")
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl == 0 {
		ttl = h.Issuer.DefaultTTL()
	}
	if ttl > h.MaxTTL {
		writeBadRequest(w, fmt.Sprintf("ttl_seconds must not exceed %d", int(h.MaxTTL/time.Second)))
		return
	}

	claims := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  req.Subject,
			Audience: jwt.ClaimStrings(req.Audience),
		},
		Scopes: req.Scopes,
		SID:    req.SessionID,
		Extra:  req.Extra,
	}
	issuedAt := time.Now()
	token, err := h.Issuer.Issue(claims, ttl)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, credsdk.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl / time.Second),
		ExpiresAt:   issuedAt.Add(ttl).UTC().Truncate(time.Second),
	})
}

// HandleVerify godoc
//
//	@Summary		Verify token
//	@Description	Checks a JWT against the current verification set. A rejected token is a 200 with valid=false and one of
//	@Description	unknown_key, signature_invalid, token_expired or token_malformed.
//	@Tags			tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body	credsdk.VerifyTokenRequest	true	"Token"
//	@Security		BearerAuth
//	@Security		APIKeyAuth
//	@Success		200	{object}	credsdk.VerifyTokenResponse
//	@Failure		400	{object}	credsdk.ErrorResponse
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Router			/v1/tokens/verify [post].
func (h *TokensHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req credsdk.VerifyTokenRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	claims, err := h.Issuer.Verify(req.Token)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, credsdk.VerifyTokenResponse{Error: verdictCode(err)})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, credsdk.VerifyTokenResponse{Valid: true, Claims: toTokenClaims(claims)})
}

// verdictCode maps a verification failure to its wire code. ErrMalformed is
// checked first because it also matches ErrSignatureInvalid.
func verdictCode(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrUnknownKey):
		return credsdk.ErrorCodeTokenUnknownKey
	case errors.Is(err, jwtx.ErrTokenExpired):
		return credsdk.ErrorCodeTokenExpired
	case errors.Is(err, jwtx.ErrMalformed):
		return credsdk.ErrorCodeTokenMalformed
	default:
		return credsdk.ErrorCodeTokenSignatureInvalid
	}
}

func toTokenClaims(c jwtx.Claims) *credsdk.TokenClaims {
	out := &credsdk.TokenClaims{
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		ID:        c.ID,
		Scopes:    c.Scopes,
		SessionID: c.SID,
		Extra:     c.Extra,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Unix()
	}
	return out
}
