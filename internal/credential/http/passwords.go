package http

import (
	"net/http"

	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
)

// PasswordsHandler serves the password history guard.
type PasswordsHandler struct {
	Passwords *service.PasswordHistoryService
}

// HandleRecord godoc
//
//	@Summary		Check and record password
//	@Description	Rejects the password if it matches one of the user's recent passwords, otherwise records it.
//	@Description	Requires the CSRF header and cookie.
//	@Tags			passwords
//	@Accept			json
//	@Param			id		path	string							true	"User ID"
//	@Param			request	body	credsdk.PasswordHistoryRequest	true	"New password"
//	@Security		BearerAuth
//	@Success		204
//	@Failure		400	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse	"missing scope or CSRF token"
//	@Failure		409	{object}	credsdk.ErrorResponse	"password_reused"
//	@Failure		503	{object}	credsdk.ErrorResponse
//	@Router			/v1/users/{id}/password-history [post].
func (h *PasswordsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req credsdk.PasswordHistoryRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := h.Passwords.CheckAndRecord(r.Context(), r.PathValue("id"), req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleForget godoc
//
//	@Summary		Forget password history
//	@Description	Deletes every recorded password for the user.
//	@Tags			passwords
//	@Param			id	path	string	true	"User ID"
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	credsdk.ErrorResponse
//	@Failure		403	{object}	credsdk.ErrorResponse
//	@Router			/v1/users/{id}/password-history [delete].
func (h *PasswordsHandler) HandleForget(w http.ResponseWriter, r *http.Request) {
	if err := h.Passwords.Forget(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
