package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Webhook defaults.
const (
	DefaultWebhookTimeout = 30 * time.Second
	DefaultWebhookRetries = 3
)

// payloadSource identifies this system in outbound webhook payloads.
// Receivers may key on it; keep it stable.
const payloadSource = "agentic_graphrag"

// WebhookChannel POSTs events as JSON to a configured URL, retrying
// transient network failures with exponential backoff.
type WebhookChannel struct {
	url     string
	retries int
	client  *http.Client
	logger  *slog.Logger

	// sleep is injectable for testing. Defaults to a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// Compile-time interface guard.
var _ Channel = (*WebhookChannel)(nil)

// WebhookOption configures a WebhookChannel.
type WebhookOption func(*WebhookChannel)

// WithWebhookTimeout bounds each HTTP attempt.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookChannel) { w.client.Timeout = d }
}

// WithWebhookRetries sets the attempt ceiling.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *WebhookChannel) { w.retries = n }
}

// WithWebhookLogger injects a diagnostic logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *WebhookChannel) { w.logger = l }
}

// NewWebhookChannel creates a webhook channel targeting url.
func NewWebhookChannel(url string, opts ...WebhookOption) *WebhookChannel {
	w := &WebhookChannel{
		url:     url,
		retries: DefaultWebhookRetries,
		client:  &http.Client{Timeout: DefaultWebhookTimeout},
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w
}

// Name implements Channel.
func (*WebhookChannel) Name() string { return "webhook" }

// webhookPayload is the wire format POSTed to the receiver.
type webhookPayload struct {
	Timestamp string         `json:"timestamp"`
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Source    string         `json:"source"`
}

// Send implements Channel. Up to the configured number of attempts are
// made; a network failure waits 2^attempt seconds before the next try,
// and the final failure is surfaced as a false return rather than
// retried indefinitely. Backoff waits abort early when ctx is done.
func (w *WebhookChannel) Send(ctx context.Context, event Event) bool {
	payload := webhookPayload{
		Timestamp: event.Timestamp.Format(time.RFC3339),
		EventID:   event.ID,
		EventType: event.Type,
		Severity:  string(event.Severity),
		Message:   event.Message,
		Data:      event.Data,
		Source:    payloadSource,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("webhook payload marshal failed", "error", err)
		return false
	}

	for attempt := 0; attempt < w.retries; attempt++ {
		status, err := w.post(ctx, body)
		if err != nil {
			w.logger.Warn("webhook attempt failed",
				"attempt", attempt+1,
				"retries", w.retries,
				"error", err,
			)
			if attempt == w.retries-1 {
				return false
			}
			if err := w.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return false
			}
			continue
		}

		switch status {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			return true
		default:
			w.logger.Warn("webhook returned non-success status", "status", status)
		}
	}
	return false
}

func (w *WebhookChannel) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// HealthCheck implements Channel. It issues one lightweight POST and
// reports success only for 2xx responses. No retries.
func (w *WebhookChannel) HealthCheck(ctx context.Context) bool {
	body, err := json.Marshal(map[string]any{
		"message":   "Webhook notification channel test",
		"test":      true,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return false
	}

	status, err := w.post(ctx, body)
	if err != nil {
		w.logger.Error("webhook health check failed", "error", err)
		return false
	}
	return status >= 200 && status < 300
}

// Close implements Channel.
func (w *WebhookChannel) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes
// first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
