package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/graphrag/connectd/internal/detect"
	"github.com/graphrag/connectd/internal/ledger"
	"github.com/graphrag/connectd/internal/notify"
	"github.com/graphrag/connectd/internal/score"
	"github.com/graphrag/connectd/pkg/fact"
)

func newTestGateway(t *testing.T, opts ...Option) (*Gateway, *notify.MockChannel) {
	t.Helper()

	detector, err := detect.NewDetector([]score.Strategy{&score.EntityOverlap{}})
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	manager, err := notify.NewManager()
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	mock := notify.NewMockChannel("mock")
	if err := manager.AddChannel(mock); err != nil {
		t.Fatalf("AddChannel() error = %v", err)
	}

	g, err := New("127.0.0.1:0", detector, manager, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, mock
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func aliceFacts() []fact.Fact {
	return []fact.Fact{
		{Text: "Alice works at Acme", Confidence: 0.9, Kind: fact.KindPerson, Entities: []string{"Alice", "Acme"}},
		{Text: "Alice lives in Paris", Confidence: 0.9, Kind: fact.KindPerson, Entities: []string{"Alice", "Paris"}},
	}
}

func TestGatewayHealth(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", resp.StatusCode)
	}

	var health HealthResponse
	decodeJSON(t, resp, &health)
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want ok", health.Status)
	}
	if len(health.Channels) != 1 || health.Channels[0] != "mock" {
		t.Errorf("health.Channels = %v, want [mock]", health.Channels)
	}
	if health.LedgerReady {
		t.Error("LedgerReady = true without a ledger")
	}
}

func TestGatewayDetect(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/detect", detectRequest{Facts: aliceFacts()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/detect status = %d, want 200", resp.StatusCode)
	}

	var out detectResponse
	decodeJSON(t, resp, &out)
	if out.Result.Status != fact.StatusCompleted {
		t.Fatalf("result.Status = %q, want completed", out.Result.Status)
	}
	if out.Result.TotalConnections != 1 {
		t.Errorf("TotalConnections = %d, want 1", out.Result.TotalConnections)
	}
	if out.Report != nil {
		t.Error("report present without notify flag")
	}
	if got := g.metrics.Snapshot().Detections; got != 1 {
		t.Errorf("metrics Detections = %d, want 1", got)
	}
}

func TestGatewayDetectWithNotify(t *testing.T) {
	t.Parallel()

	g, mock := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/detect", detectRequest{Facts: aliceFacts(), Notify: true})
	var out detectResponse
	decodeJSON(t, resp, &out)

	if out.Report == nil {
		t.Fatal("report missing with notify flag")
	}
	if out.Report.Status != notify.StatusNotificationsSent {
		t.Errorf("report.Status = %q, want %q", out.Report.Status, notify.StatusNotificationsSent)
	}
	if got := len(mock.SentEvents()); got != 1 {
		t.Errorf("mock received %d events, want 1", got)
	}
	if got := g.metrics.Snapshot().Notifications; got != 1 {
		t.Errorf("metrics Notifications = %d, want 1", got)
	}
}

func TestGatewayDetectBadBody(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/detect", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if got := g.metrics.Snapshot().Errors; got != 1 {
		t.Errorf("metrics Errors = %d, want 1", got)
	}
}

func TestGatewayStats(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	postJSON(t, srv.URL+"/api/detect", detectRequest{Facts: aliceFacts(), Notify: true}).Body.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	var stats statsResponse
	decodeJSON(t, resp, &stats)

	if stats.Detection.TotalRuns != 1 {
		t.Errorf("detection.TotalRuns = %d, want 1", stats.Detection.TotalRuns)
	}
	if stats.Notifications.Sent != 1 {
		t.Errorf("notifications.Sent = %d, want 1", stats.Notifications.Sent)
	}
	if stats.Gateway.Detections != 1 {
		t.Errorf("gateway.Detections = %d, want 1", stats.Gateway.Detections)
	}
}

func TestGatewayHistory(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	// Empty history still returns a JSON array.
	resp, err := http.Get(srv.URL + "/api/history")
	if err != nil {
		t.Fatalf("GET /api/history: %v", err)
	}
	var entries []notify.HistoryEntry
	decodeJSON(t, resp, &entries)
	if len(entries) != 0 {
		t.Errorf("history = %v, want empty", entries)
	}

	postJSON(t, srv.URL+"/api/detect", detectRequest{Facts: aliceFacts(), Notify: true}).Body.Close()

	resp, err = http.Get(srv.URL + "/api/history?limit=5")
	if err != nil {
		t.Fatalf("GET /api/history: %v", err)
	}
	decodeJSON(t, resp, &entries)
	if len(entries) != 1 {
		t.Errorf("history has %d entries, want 1", len(entries))
	}
}

func TestGatewayDeliveries(t *testing.T) {
	t.Parallel()

	// Without a ledger the endpoint is unavailable.
	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	resp, err := http.Get(srv.URL + "/api/deliveries")
	if err != nil {
		t.Fatalf("GET /api/deliveries: %v", err)
	}
	resp.Body.Close()
	srv.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status without ledger = %d, want 503", resp.StatusCode)
	}

	// With a ledger, recorded deliveries come back.
	led, err := ledger.Open(filepath.Join(t.TempDir(), "deliveries.db"))
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}
	defer led.Close()

	g, _ = newTestGateway(t, WithLedger(led))
	srv = httptest.NewServer(g.buildRouter())
	defer srv.Close()

	d := notify.Delivery{EventID: "evt-1", Channel: "mock", OK: true}
	if err := led.RecordDelivery(context.Background(), d); err != nil {
		t.Fatalf("RecordDelivery() error = %v", err)
	}

	resp, err = http.Get(srv.URL + "/api/deliveries?limit=10")
	if err != nil {
		t.Fatalf("GET /api/deliveries: %v", err)
	}
	var entries []ledger.Entry
	decodeJSON(t, resp, &entries)
	if len(entries) != 1 || entries[0].EventID != "evt-1" {
		t.Errorf("deliveries = %+v, want one evt-1 row", entries)
	}
}

func TestGatewayTestChannels(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/channels/test", struct{}{})
	var results map[string]bool
	decodeJSON(t, resp, &results)
	if ok, found := results["mock"]; !found || !ok {
		t.Errorf("channel test results = %v, want mock healthy", results)
	}
}

func TestGatewaySetThreshold(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	put := func(body any) *http.Response {
		raw, _ := json.Marshal(body)
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/threshold", bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("building request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT /api/threshold: %v", err)
		}
		return resp
	}

	v := 0.9
	resp := put(thresholdRequest{Detection: &v, Notification: &v})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out map[string]float64
	decodeJSON(t, resp, &out)
	if out["detection"] != 0.9 || out["notification"] != 0.9 {
		t.Errorf("thresholds = %v, want both 0.9", out)
	}

	bad := 1.5
	resp = put(thresholdRequest{Detection: &bad})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status for out-of-range threshold = %d, want 400", resp.StatusCode)
	}
	if g.detector.Threshold() != 0.9 {
		t.Errorf("threshold changed by rejected update: %v", g.detector.Threshold())
	}
}

func TestGatewayStartStop(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	ctx := context.Background()

	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := g.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// Stopping twice is harmless.
	if err := g.Stop(ctx); err != nil && err != http.ErrServerClosed {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestGatewayNewValidation(t *testing.T) {
	t.Parallel()

	detector, _ := detect.NewDetector([]score.Strategy{&score.EntityOverlap{}})
	manager, _ := notify.NewManager()

	if _, err := New("not an address", detector, manager); err == nil {
		t.Error("New() accepted an invalid listen address")
	}
	if _, err := New("127.0.0.1:0", nil, manager); err == nil {
		t.Error("New() accepted a nil detector")
	}
	if _, err := New("127.0.0.1:0", detector, nil); err == nil {
		t.Error("New() accepted a nil manager")
	}
}
