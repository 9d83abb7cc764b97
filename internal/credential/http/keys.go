package http

import (
	"net/http"

	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
)

// KeysHandler serves the signing key administration endpoints.
type KeysHandler struct {
	Keys *service.KeyRotationService
}

// HandleRotate godoc
//
//	@Summary		Rotate signing key
//	@Description	Generates a new active key. The previous key keeps verifying until swept after the grace period.
//	@Tags			keys
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	credsdk.RotateKeyResponse
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Failure		409	{object}	credsdk.ErrorResponse	"another rotation won"
//	@Failure		503	{object}	credsdk.ErrorResponse
//	@Router			/v1/keys/rotate [post].
func (h *KeysHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	res, err := h.Keys.Rotate(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, credsdk.RotateKeyResponse{
		Kid:         res.Kid,
		PreviousKid: res.PreviousKid,
		Algorithm:   res.Algorithm,
	})
}

// HandleList godoc
//
//	@Summary		List signing keys
//	@Description	Lists every signing key, oldest first, including revoked ones. Private material is never returned.
//	@Tags			keys
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		credsdk.SigningKeyInfo
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Router			/v1/keys [get].
func (h *KeysHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Keys.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]credsdk.SigningKeyInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, credsdk.SigningKeyInfo(k))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleSweep godoc
//
//	@Summary		Sweep retiring keys
//	@Description	Revokes retiring keys whose grace period has elapsed.
//	@Tags			keys
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	credsdk.SweepKeysResponse
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Router			/v1/keys/sweep [post].
func (h *KeysHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	kids, err := h.Keys.Sweep(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, credsdk.SweepKeysResponse{Revoked: kids})
}

// HandleRevoke godoc
//
//	@Summary		Revoke signing key
//	@Description	Removes a key from the verification set immediately. Revoking the active key rotates first.
//	@Tags			keys
//	@Param			kid	path	string	true	"Key ID"
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Failure		404	{object}	credsdk.ErrorResponse
//	@Router			/v1/keys/{kid}/revoke [post].
func (h *KeysHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := h.Keys.Revoke(r.Context(), r.PathValue("kid")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
