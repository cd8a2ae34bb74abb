package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/graphrag/connectd/internal/detect"
	"github.com/graphrag/connectd/internal/notify"
	"github.com/graphrag/connectd/pkg/fact"
)

// detectRequest is the JSON body for POST /api/detect.
type detectRequest struct {
	Facts   []fact.Fact    `json:"facts"`
	Corpus  string         `json:"corpus,omitempty"`
	Options detect.Options `json:"options"`

	// Notify dispatches notifications for high relevance connections
	// after detection.
	Notify bool `json:"notify,omitempty"`
}

// detectResponse is the JSON response for POST /api/detect.
type detectResponse struct {
	Result fact.DetectionResult  `json:"result"`
	Report *notify.ProcessReport `json:"report,omitempty"`
}

// handleDetect runs a detection pass over the posted facts and
// optionally dispatches notifications for the results.
func (g *Gateway) handleDetect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.metrics.RecordError()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}

		start := time.Now()
		result := g.detector.Detect(r.Context(), req.Facts, req.Corpus, req.Options)
		g.metrics.RecordDetection(time.Since(start))

		resp := detectResponse{Result: result}
		if result.Status == fact.StatusFailed {
			g.metrics.RecordError()
		} else if req.Notify {
			report := g.manager.ProcessConnections(r.Context(), result.Connections)
			g.metrics.RecordNotifications(report.Sent)
			resp.Report = &report
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// statsResponse aggregates the stats of every subsystem.
type statsResponse struct {
	Detection     detect.Stats    `json:"detection"`
	Notifications notify.Stats    `json:"notifications"`
	Gateway       MetricsSnapshot `json:"gateway"`
}

func (g *Gateway) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statsResponse{
			Detection:     g.detector.Statistics(),
			Notifications: g.manager.Statistics(),
			Gateway:       g.metrics.Snapshot(),
		})
	}
}

// handleHistory returns recent notification history, oldest first.
// ?limit=N bounds the result; the default returns everything retained.
func (g *Gateway) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := g.manager.History(queryLimit(r, 0))
		if entries == nil {
			entries = []notify.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// handleDeliveries returns recent per-channel delivery records from the
// ledger, newest first.
func (g *Gateway) handleDeliveries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.ledger == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "delivery ledger not configured"})
			return
		}

		entries, err := g.ledger.Recent(r.Context(), queryLimit(r, 50))
		if err != nil {
			g.metrics.RecordError()
			g.logger.Error("ledger query failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger query failed"})
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// handleTestChannels health-checks every registered channel.
func (g *Gateway) handleTestChannels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, g.manager.TestAllChannels(r.Context()))
	}
}

// thresholdRequest is the JSON body for PUT /api/threshold. Nil fields
// are left unchanged.
type thresholdRequest struct {
	Detection    *float64 `json:"detection,omitempty"`
	Notification *float64 `json:"notification,omitempty"`
}

func (g *Gateway) handleSetThreshold() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req thresholdRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}

		if req.Detection != nil {
			if err := g.detector.SetThreshold(*req.Detection); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}
		if req.Notification != nil {
			if err := g.manager.SetThreshold(*req.Notification); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]float64{
			"detection":    g.detector.Threshold(),
			"notification": g.manager.Threshold(),
		})
	}
}

// queryLimit parses the ?limit query parameter, falling back to def on
// absence or garbage.
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
