package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tinoosan/billy/internal/dictionary"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// readyz runs every configured check with a short timeout.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	var failing []string
	for name, c := range s.checks {
		if err := c.Ready(ctx); err != nil {
			s.log.Warn("readiness check failed", "check", name, "err", err)
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		toJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "failing": failing})
		return
	}
	toJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// GET /v1/dictionary/wallets
func (s *Server) getWalletsDictionary(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "success", dictionary.Wallets())
}
