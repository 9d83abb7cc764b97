package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/csrf"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

// CSRFHandler returns the caller's CSRF token, setting the cookie when the
// request carries no valid one.
//
//	@Summary		Get CSRF token
//	@Description	Returns a double-submit token. Echo it in the named header on state-changing requests.
//	@Tags			csrf
//	@Produce		json
//	@Success		200	{object}	credsdk.CSRFResponse
//	@Failure		500	{object}	credsdk.ErrorResponse
//	@Router			/v1/csrf [get].
func CSRFHandler(issuer *csrf.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := issuer.IssueIfAbsent(w, r)
		if err != nil {
			slogx.FromContext(r.Context()).Error("csrf token issue failed", slog.Any("err", err))
			httpx.WriteError(w, http.StatusInternalServerError, credsdk.ErrorCodeServerError, "could not issue csrf token")
			return
		}
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, credsdk.CSRFResponse{
			Token:      tok.Value,
			HeaderName: issuer.HeaderName(),
			ExpiresAt:  tok.ExpiresAt,
		})
	}
}
