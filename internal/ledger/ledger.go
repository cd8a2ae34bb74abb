// Package ledger persists per-channel notification delivery outcomes
// in SQLite. It uses modernc.org/sqlite (pure Go, no CGO) with WAL
// mode and a single connection, since SQLite serialises writes anyway.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/graphrag/connectd/internal/notify"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

// Ledger records and queries delivery outcomes.
type Ledger struct {
	db *sql.DB
}

// Compile-time interface guard.
var _ notify.DeliveryRecorder = (*Ledger)(nil)

// Open opens (creating if necessary) the delivery ledger at path and
// migrates the schema.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("ledger: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: set busy_timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// RecordDelivery implements notify.DeliveryRecorder.
func (l *Ledger) RecordDelivery(ctx context.Context, d notify.Delivery) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO deliveries (event_id, event_type, severity, channel, ok, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.EventID, d.EventType, string(d.Severity), d.Channel, d.OK, d.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert delivery: %w", err)
	}
	return nil
}

// Entry is one persisted delivery outcome.
type Entry struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"`
	Channel   string    `json:"channel"`
	OK        bool      `json:"ok"`
	CreatedAt time.Time `json:"created_at"`
}

// Recent returns up to limit most recent deliveries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, event_id, event_type, severity, channel, ok, created_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query deliveries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.Severity, &e.Channel, &e.OK, &createdAt); err != nil {
			return nil, fmt.Errorf("ledger: scan delivery: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByChannel returns total and failed delivery counts per channel.
func (l *Ledger) CountByChannel(ctx context.Context) (map[string][2]int64, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT channel, COUNT(*), SUM(CASE WHEN ok THEN 0 ELSE 1 END)
		 FROM deliveries GROUP BY channel`)
	if err != nil {
		return nil, fmt.Errorf("ledger: count deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string][2]int64)
	for rows.Next() {
		var channel string
		var total, failed int64
		if err := rows.Scan(&channel, &total, &failed); err != nil {
			return nil, fmt.Errorf("ledger: scan counts: %w", err)
		}
		counts[channel] = [2]int64{total, failed}
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
