package gateway

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status      string   `json:"status"`
	Uptime      string   `json:"uptime"`
	Channels    []string `json:"channels"`
	CachedRuns  int      `json:"cached_runs"`
	LedgerReady bool     `json:"ledger_ready"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:      "ok",
			Uptime:      time.Since(g.startedAt).Round(time.Second).String(),
			Channels:    g.manager.Channels(),
			CachedRuns:  g.detector.CacheLen(),
			LedgerReady: g.ledger != nil,
		}
		if resp.Channels == nil {
			resp.Channels = []string{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
