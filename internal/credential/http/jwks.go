package http

import (
	"net/http"

	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the active and retiring verification keys. Revoked keys are never listed.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	credsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(issuer *jwtx.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		httpx.WriteJSON(w, http.StatusOK, credsdk.JWKSResponse(issuer.PublicKeySet()))
	}
}
