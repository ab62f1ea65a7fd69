package handlers

import (
	"net/http"

	"github.com/sabercon/portal-gateway/middleware"
	"github.com/sabercon/portal-gateway/utils"
)

// StatusResponse reports gateway status, personalized when an identity is
// present. Mounted behind OptionalAuth: anonymous requests are fine.
type StatusResponse struct {
	Service       string `json:"service"`
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
}

// StatusHandler handles GET /api/v1/status
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{Service: "portal-gateway"}

	if identity := middleware.IdentityFromContext(r.Context()); identity != nil {
		response.Authenticated = true
		response.Role = identity.Role
	}

	_ = utils.WriteOK(w, response)
}
