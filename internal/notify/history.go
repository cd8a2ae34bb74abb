package notify

import (
	"sync"
	"time"
)

// historyCapacity bounds the in-memory notification history.
const historyCapacity = 100

// HistoryEntry is one observational record of a delivered notification.
type HistoryEntry struct {
	Timestamp         time.Time `json:"timestamp"`
	Type              string    `json:"event_type"`
	Message           string    `json:"message"`
	ChannelsSucceeded int       `json:"channels_sent"`
	ChannelsTotal     int       `json:"total_channels"`
}

// historyRing keeps the last historyCapacity entries. Safe for
// concurrent use.
type historyRing struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

// Append records an entry, dropping the oldest beyond capacity.
func (h *historyRing) Append(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, e)
	if len(h.entries) > historyCapacity {
		h.entries = h.entries[len(h.entries)-historyCapacity:]
	}
}

// Last returns up to n most recent entries, oldest first.
func (h *historyRing) Last(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}
