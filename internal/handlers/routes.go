package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	shares := ShareHandler{
		Sessions: deps.Sessions,
		Issuer:   deps.Issuer,
		Revoker:  deps.Revoker,
		Shares:   deps.Shares,
	}
	access := AccessHandler{Access: deps.Access, Limiter: deps.OTPLimiter}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/shares", shares.HandleShares)
	mux.HandleFunc("/api/v1/shares/revoke", shares.Revoke)
	mux.HandleFunc("/api/v1/share-access", access.Handle)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Sessions   OwnerSessionStore
	Issuer     ShareIssuer
	Revoker    ShareRevoker
	Shares     ShareReader
	Access     ShareAccess
	OTPLimiter RateLimiter
}
