package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/graphrag/connectd/pkg/fact"
)

// Severity grades how urgent an event is.
type Severity string

// Severity levels, least to most urgent.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// EventTypeConnection marks events raised for high-relevance
// connections.
const EventTypeConnection = "high_relevance_connection"

// Event is one notification. Immutable once built.
type Event struct {
	ID        string         `json:"event_id"`
	Type      string         `json:"event_type"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// TargetChannels restricts delivery to the named channels. Empty
	// means every enabled channel.
	TargetChannels []string `json:"channels,omitempty"`
}

// SeverityForScore derives an event severity from a relevance score.
func SeverityForScore(value float64) Severity {
	switch {
	case value >= 0.9:
		return SeverityCritical
	case value >= 0.8:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// NewConnectionEvent builds the notification event for one detected
// connection.
func NewConnectionEvent(conn fact.Connection) Event {
	return Event{
		ID:       "conn_" + uuid.NewString(),
		Type:     EventTypeConnection,
		Message:  fmt.Sprintf("High relevance connection detected (score: %.2f): %s", conn.Score.Value, conn.Relationship),
		Severity: SeverityForScore(conn.Score.Value),
		Data: map[string]any{
			"source_fact":     conn.SourceFact,
			"target_fact":     conn.TargetFact,
			"relationship":    conn.Relationship,
			"score":           conn.Score.Value,
			"confidence":      conn.Score.Confidence,
			"connection_type": string(conn.Score.Kind),
			"evidence":        conn.Evidence,
			"metadata":        conn.Metadata,
		},
		Timestamp: time.Now(),
	}
}
