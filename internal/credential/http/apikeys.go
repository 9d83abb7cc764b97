package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
)

// APIKeysHandler serves API key administration.
type APIKeysHandler struct {
	APIKeys *service.APIKeyService
}

// HandleIssue godoc
//
//	@Summary		Issue API key
//	@Description	Creates an API key. The plaintext key is returned once and cannot be recovered.
//	@Tags			apikeys
//	@Accept			json
//	@Produce		json
//	@Param			request	body	credsdk.IssueAPIKeyRequest	true	"Key properties"
//	@Security		BearerAuth
//	@Success		201	{object}	credsdk.IssueAPIKeyResponse
//	@Failure		400	{object}	credsdk.ErrorResponse
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Router			/v1/apikeys [post].
func (h *APIKeysHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req credsdk.IssueAPIKeyRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TTLSeconds < 0 {
		writeBadRequest(w, "ttl_seconds must not be negative")
		return
	}

	issued, err := h.APIKeys.Issue(r.Context(), service.IssueAPIKeyRequest{
		ClientName:  req.ClientName,
		Permissions: req.Permissions,
		RateLimit:   req.RateLimit,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, credsdk.IssueAPIKeyResponse{
		Key:    issued.Key,
		APIKey: toAPIKeyInfo(issued.Record),
	})
}

// HandleList godoc
//
//	@Summary		List API keys
//	@Description	Lists every API key, newest first. Secrets are never returned.
//	@Tags			apikeys
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		credsdk.APIKeyInfo
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Router			/v1/apikeys [get].
func (h *APIKeysHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	keys, err := h.APIKeys.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]credsdk.APIKeyInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyInfo(k))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleSelf godoc
//
//	@Summary		Current API key
//	@Description	Identifies the API key that authenticated the request. The call counts against its rate limit.
//	@Tags			apikeys
//	@Produce		json
//	@Security		APIKeyAuth
//	@Success		200	{object}	credsdk.APIKeySelfResponse
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		429	{object}	credsdk.ErrorResponse
//	@Router			/v1/apikeys/self [get].
func (h *APIKeysHandler) HandleSelf(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PrincipalFrom(r.Context())
	rec, err := h.APIKeys.Get(r.Context(), p.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	perms := rec.Permissions
	if perms == nil {
		perms = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, credsdk.APIKeySelfResponse{
		KeyID:       rec.KeyID,
		ClientName:  rec.ClientName,
		Permissions: perms,
	})
}

// HandleRevoke godoc
//
//	@Summary		Revoke API key
//	@Description	Deactivates an API key. Revoking an already revoked key succeeds.
//	@Tags			apikeys
//	@Param			id	path	string	true	"Key ID"
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Failure		404	{object}	credsdk.ErrorResponse
//	@Router			/v1/apikeys/{id}/revoke [post].
func (h *APIKeysHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := h.APIKeys.Revoke(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePurge godoc
//
//	@Summary		Delete API key
//	@Description	Removes an API key record and its rate window.
//	@Tags			apikeys
//	@Param			id	path	string	true	"Key ID"
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Failure		404	{object}	credsdk.ErrorResponse
//	@Router			/v1/apikeys/{id} [delete].
func (h *APIKeysHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := h.APIKeys.Purge(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toAPIKeyInfo(k domain.APIKey) credsdk.APIKeyInfo {
	perms := k.Permissions
	if perms == nil {
		perms = []string{}
	}
	return credsdk.APIKeyInfo{
		KeyID:       k.KeyID,
		ClientName:  k.ClientName,
		Permissions: perms,
		RateLimit:   k.RateLimit,
		IsActive:    k.IsActive,
		CreatedAt:   k.CreatedAt,
		ExpiresAt:   k.ExpiresAt,
		LastUsedAt:  k.LastUsedAt,
		RevokedAt:   k.RevokedAt,
		UsageCount:  k.UsageCount,
		Metadata:    k.Metadata,
	}
}
