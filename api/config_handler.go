package api

import (
	"net/http"

	"github.com/seenimoa/edgarkpi/internal/config"
	"github.com/seenimoa/edgarkpi/internal/provider"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config      *config.Config                  `json:"config"`
	Credentials []config.CredentialStatus       `json:"credentials"`
	Coverage    map[provider.ModelType][]string `json:"coverage"` // providers serving each model, in registration order
}

// handleGetConfig returns the running configuration. Credentials are
// excluded via json:"-" tags and reported only as masked status.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:      s.cfg,
			Credentials: config.CheckCredentials(s.cfg),
			Coverage:    s.svc.Coverage(),
		},
	})
}
