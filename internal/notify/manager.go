package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/graphrag/connectd/pkg/fact"
)

// Delivery is one per-channel send outcome, recorded for audit.
type Delivery struct {
	EventID   string
	EventType string
	Severity  Severity
	Channel   string
	OK        bool
	At        time.Time
}

// DeliveryRecorder persists per-channel delivery outcomes. Recording
// failures are logged, never surfaced to callers.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, d Delivery) error
}

// Manager owns the channel registry and fans each event out to every
// enabled channel concurrently. Safe for concurrent use; channels may
// be added or removed while sends are in flight.
type Manager struct {
	logger   *slog.Logger
	recorder DeliveryRecorder
	history  historyRing

	mu        sync.RWMutex
	channels  map[string]Channel
	threshold float64

	statsMu          sync.Mutex
	sent             int64
	failed           int64
	lastNotification time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithManagerLogger injects a structured logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithManagerThreshold sets the notification relevance threshold. It is
// independent from the detector's threshold; the two may diverge.
func WithManagerThreshold(t float64) ManagerOption {
	return func(m *Manager) { m.threshold = t }
}

// WithRecorder wires a persistent delivery recorder.
func WithRecorder(r DeliveryRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a Manager with no channels registered.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		channels:  make(map[string]Channel),
		threshold: 0.7,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.threshold < 0 || m.threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, m.threshold)
	}
	return m, nil
}

// AddChannel registers a channel under its own name.
func (m *Manager) AddChannel(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := ch.Name()
	if _, exists := m.channels[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	m.channels[name] = ch
	m.logger.Info("notification channel added", "channel", name)
	return nil
}

// RemoveChannel unregisters the named channel. The channel is not
// closed; in-flight sends to it complete normally.
func (m *Manager) RemoveChannel(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNoChannel, name)
	}
	delete(m.channels, name)
	m.logger.Info("notification channel removed", "channel", name)
	return nil
}

// Channels returns the registered channel names, sorted.
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Threshold returns the current notification threshold.
func (m *Manager) Threshold() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.threshold
}

// SetThreshold updates the notification threshold. Values outside
// [0, 1] are rejected and leave the threshold unchanged.
func (m *Manager) SetThreshold(t float64) error {
	if t < 0 || t > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	m.mu.Lock()
	m.threshold = t
	m.mu.Unlock()
	m.logger.Info("notification threshold updated", "threshold", t)
	return nil
}

// ProcessReport summarizes one ProcessConnections call.
type ProcessReport struct {
	Status        string  `json:"status"`
	Processed     int     `json:"connections_processed"`
	HighRelevance int     `json:"high_relevance_connections"`
	Sent          int     `json:"notifications_sent"`
	Threshold     float64 `json:"threshold"`
}

// ProcessConnections statuses.
const (
	StatusNoNotifications   = "no_notifications"
	StatusNotificationsSent = "notifications_sent"
	StatusError             = "error"
)

// ProcessConnections filters connections by the manager's threshold,
// builds one event per survivor, and sends each through every enabled
// channel. It never returns an error; delivery problems are reflected
// in the report.
func (m *Manager) ProcessConnections(ctx context.Context, connections []fact.Connection) ProcessReport {
	threshold := m.Threshold()

	var relevant []fact.Connection
	for _, c := range connections {
		if c.Score.Value >= threshold {
			relevant = append(relevant, c)
		}
	}

	report := ProcessReport{
		Processed:     len(connections),
		HighRelevance: len(relevant),
		Threshold:     threshold,
	}
	if len(relevant) == 0 {
		report.Status = StatusNoNotifications
		return report
	}

	for _, conn := range relevant {
		if ctx.Err() != nil {
			report.Status = StatusError
			return report
		}
		if m.Send(ctx, NewConnectionEvent(conn)) {
			report.Sent++
		}
	}
	report.Status = StatusNotificationsSent
	return report
}

// Send dispatches the event to every enabled channel concurrently and
// returns true iff at least one channel succeeded. Channels are fully
// isolated: a panicking or slow channel never blocks or fails its
// siblings, and each delivery outcome is counted individually.
func (m *Manager) Send(ctx context.Context, event Event) bool {
	results := m.SendDetailed(ctx, event)

	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}

	m.statsMu.Lock()
	if succeeded > 0 {
		m.sent++
		m.lastNotification = time.Now()
	} else {
		m.failed++
	}
	m.statsMu.Unlock()

	if succeeded > 0 {
		m.history.Append(HistoryEntry{
			Timestamp:         event.Timestamp,
			Type:              event.Type,
			Message:           event.Message,
			ChannelsSucceeded: succeeded,
			ChannelsTotal:     len(results),
		})
	}
	return succeeded > 0
}

// SendDetailed performs the fan-out and returns the per-channel
// outcome map. With no matching channels the map is empty.
func (m *Manager) SendDetailed(ctx context.Context, event Event) map[string]bool {
	targets := m.snapshotChannels(event.TargetChannels)
	if len(targets) == 0 {
		m.logger.Warn("no notification channels configured")
		return map[string]bool{}
	}

	type outcome struct {
		name string
		ok   bool
	}
	outcomes := make(chan outcome, len(targets))

	var wg sync.WaitGroup
	for _, ch := range targets {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			ok := m.sendOne(ctx, ch, event)
			outcomes <- outcome{name: ch.Name(), ok: ok}
		}(ch)
	}
	wg.Wait()
	close(outcomes)

	results := make(map[string]bool, len(targets))
	for o := range outcomes {
		results[o.name] = o.ok
		if o.ok {
			m.logger.Debug("notification delivered", "channel", o.name, "event", event.ID)
		} else {
			m.logger.Warn("notification delivery failed", "channel", o.name, "event", event.ID)
		}
		if m.recorder != nil {
			err := m.recorder.RecordDelivery(ctx, Delivery{
				EventID:   event.ID,
				EventType: event.Type,
				Severity:  event.Severity,
				Channel:   o.name,
				OK:        o.ok,
				At:        time.Now(),
			})
			if err != nil {
				m.logger.Error("delivery record failed", "channel", o.name, "error", err)
			}
		}
	}
	return results
}

// sendOne invokes one channel's Send, converting a panic into a failed
// delivery so the fan-out is never aborted.
func (m *Manager) sendOne(ctx context.Context, ch Channel, event Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notification channel panicked", "channel", ch.Name(), "panic", r)
			ok = false
		}
	}()
	return ch.Send(ctx, event)
}

// snapshotChannels copies the matching channels out of the registry so
// the fan-out never holds the lock.
func (m *Manager) snapshotChannels(only []string) []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets := make([]Channel, 0, len(m.channels))
	for name, ch := range m.channels {
		if len(only) > 0 && !slices.Contains(only, name) {
			continue
		}
		targets = append(targets, ch)
	}
	return targets
}

// TestAllChannels health-checks every registered channel independently.
func (m *Manager) TestAllChannels(ctx context.Context) map[string]bool {
	targets := m.snapshotChannels(nil)

	results := make(map[string]bool, len(targets))
	var resultsMu sync.Mutex

	var wg sync.WaitGroup
	for _, ch := range targets {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			ok := m.checkOne(ctx, ch)
			resultsMu.Lock()
			results[ch.Name()] = ok
			resultsMu.Unlock()
			m.logger.Info("channel health check", "channel", ch.Name(), "ok", ok)
		}(ch)
	}
	wg.Wait()
	return results
}

func (m *Manager) checkOne(ctx context.Context, ch Channel) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("channel health check panicked", "channel", ch.Name(), "panic", r)
			ok = false
		}
	}()
	return ch.HealthCheck(ctx)
}

// Stats is a point-in-time snapshot of manager counters.
type Stats struct {
	Sent               int64          `json:"notifications_sent"`
	Failed             int64          `json:"notifications_failed"`
	ChannelsConfigured int            `json:"channels_configured"`
	EnabledChannels    []string       `json:"enabled_channels"`
	Threshold          float64        `json:"current_threshold"`
	LastNotification   time.Time      `json:"last_notification"`
	Recent             []HistoryEntry `json:"recent_notifications"`
}

// Statistics returns a snapshot of the manager's counters, channel
// registry, and the ten most recent history entries.
func (m *Manager) Statistics() Stats {
	m.statsMu.Lock()
	sent, failed, last := m.sent, m.failed, m.lastNotification
	m.statsMu.Unlock()

	return Stats{
		Sent:               sent,
		Failed:             failed,
		ChannelsConfigured: len(m.Channels()),
		EnabledChannels:    m.Channels(),
		Threshold:          m.Threshold(),
		LastNotification:   last,
		Recent:             m.history.Last(10),
	}
}

// History returns up to limit most recent history entries, oldest
// first. A non-positive limit returns everything retained.
func (m *Manager) History(limit int) []HistoryEntry {
	return m.history.Last(limit)
}

// Close closes every registered channel, joining their errors.
func (m *Manager) Close() error {
	m.mu.Lock()
	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.Unlock()

	var errs []error
	for _, ch := range channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("notify: closing channel %s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}
