package notify

import (
	"context"
	"sync"
)

// MockChannel is a test double implementing Channel. It records sent
// events and can simulate failures via SendFunc/HealthFunc.
type MockChannel struct {
	name string

	mu   sync.Mutex
	sent []Event

	// SendFunc, if set, is called instead of the default recording
	// behavior.
	SendFunc func(ctx context.Context, event Event) bool

	// HealthFunc, if set, overrides the default healthy report.
	HealthFunc func(ctx context.Context) bool

	// Closed reports whether Close was called.
	Closed bool
}

// Compile-time interface guard.
var _ Channel = (*MockChannel)(nil)

// NewMockChannel creates a MockChannel with the given name.
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

// Name implements Channel.
func (m *MockChannel) Name() string { return m.name }

// Send implements Channel.
func (m *MockChannel) Send(ctx context.Context, event Event) bool {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, event)
	return true
}

// HealthCheck implements Channel.
func (m *MockChannel) HealthCheck(ctx context.Context) bool {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return true
}

// Close implements Channel.
func (m *MockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SentEvents returns a copy of the recorded events.
func (m *MockChannel) SentEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.sent))
	copy(out, m.sent)
	return out
}
