// Package notify delivers notification events about high-relevance
// connections through independently configured channels (console, file,
// webhook). The Manager fans one event out to every enabled channel
// concurrently; a channel can fail without affecting its siblings.
package notify

import (
	"context"
	"errors"
)

// Sentinel errors for notification operations.
var (
	// ErrInvalidThreshold indicates a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("notify: threshold must be between 0.0 and 1.0")

	// ErrDuplicateChannel indicates a channel with the same name is
	// already registered.
	ErrDuplicateChannel = errors.New("notify: duplicate channel name")

	// ErrNoChannel indicates the named channel is not registered.
	ErrNoChannel = errors.New("notify: unknown channel")
)

// Channel is an independent delivery mechanism for notification events.
//
// Send reports delivery success as a boolean and never panics out of
// its public boundary: internal failures are logged and converted to a
// false return. HealthCheck probes whether the channel is configured
// and reachable.
type Channel interface {
	// Name identifies the channel in configuration and reports.
	Name() string

	// Send delivers one event. False means the event did not reach
	// this channel.
	Send(ctx context.Context, event Event) bool

	// HealthCheck reports whether the channel can currently deliver.
	HealthCheck(ctx context.Context) bool

	// Close releases any held resources.
	Close() error
}
