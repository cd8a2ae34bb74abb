package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultMaxFileSize is the rotation ceiling when none is configured.
const DefaultMaxFileSize = 10 * 1024 * 1024 // 10 MiB

// FileChannel appends one JSON line per event to a log file, rotating
// it to a timestamped backup when it exceeds the size ceiling.
type FileChannel struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	logger   *slog.Logger

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// Compile-time interface guard.
var _ Channel = (*FileChannel)(nil)

// FileOption configures a FileChannel.
type FileOption func(*FileChannel)

// WithMaxFileSize sets the rotation ceiling in bytes.
func WithMaxFileSize(n int64) FileOption {
	return func(f *FileChannel) { f.maxBytes = n }
}

// WithFileLogger injects a diagnostic logger.
func WithFileLogger(l *slog.Logger) FileOption {
	return func(f *FileChannel) { f.logger = l }
}

// NewFileChannel creates a file channel writing to path, creating
// parent directories as needed.
func NewFileChannel(path string, opts ...FileOption) (*FileChannel, error) {
	f := &FileChannel{
		path:     path,
		maxBytes: DefaultMaxFileSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("notify: create directory %s: %w", dir, err)
		}
	}
	return f, nil
}

// Name implements Channel.
func (*FileChannel) Name() string { return "file" }

// fileRecord is the JSON-lines wire format of one event.
type fileRecord struct {
	Timestamp string         `json:"timestamp"`
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
}

// Send implements Channel. The size check and rotation happen before
// the write; a failed rotation is logged but never blocks the write
// attempt.
func (f *FileChannel) Send(_ context.Context, event Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rotateIfNeeded()

	record := fileRecord{
		Timestamp: event.Timestamp.Format(time.RFC3339),
		EventID:   event.ID,
		EventType: event.Type,
		Severity:  string(event.Severity),
		Message:   event.Message,
		Data:      event.Data,
	}
	line, err := json.Marshal(record)
	if err != nil {
		f.logger.Error("file notification marshal failed", "error", err)
		return false
	}

	out, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		f.logger.Error("file notification open failed", "path", f.path, "error", err)
		return false
	}
	defer out.Close()

	if _, err := out.Write(append(line, '\n')); err != nil {
		f.logger.Error("file notification write failed", "path", f.path, "error", err)
		return false
	}
	return true
}

// rotateIfNeeded renames the log to a timestamped backup when it
// exceeds the ceiling. The next write starts a fresh file.
func (f *FileChannel) rotateIfNeeded() {
	info, err := os.Stat(f.path)
	if err != nil || info.Size() <= f.maxBytes {
		return
	}

	stamp := f.now().Format("20060102_150405")
	backup := strings.TrimSuffix(f.path, filepath.Ext(f.path)) + "." + stamp + ".log"
	if err := os.Rename(f.path, backup); err != nil {
		f.logger.Error("notification log rotation failed", "path", f.path, "error", err)
		return
	}
	f.logger.Info("rotated notification log", "backup", backup)
}

// HealthCheck implements Channel. It verifies write access by sending
// a test event.
func (f *FileChannel) HealthCheck(ctx context.Context) bool {
	return f.Send(ctx, Event{
		ID:        "test",
		Type:      "test",
		Message:   "File notification channel test",
		Severity:  SeverityInfo,
		Timestamp: f.now(),
	})
}

// Close implements Channel. Files are opened per write.
func (*FileChannel) Close() error { return nil }
