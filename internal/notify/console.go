package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ANSI color codes per severity. Cosmetic only: coloring never affects
// the delivery outcome.
var consoleColors = map[Severity]string{
	SeverityInfo:     "\033[94m",
	SeverityWarning:  "\033[93m",
	SeverityError:    "\033[91m",
	SeverityCritical: "\033[95m",
}

const colorReset = "\033[0m"

// ConsoleChannel prints events to a writer, standard output by default.
type ConsoleChannel struct {
	mu      sync.Mutex
	out     io.Writer
	colored bool
	logger  *slog.Logger
}

// Compile-time interface guard.
var _ Channel = (*ConsoleChannel)(nil)

// ConsoleOption configures a ConsoleChannel.
type ConsoleOption func(*ConsoleChannel)

// WithConsoleWriter redirects output, mainly for tests.
func WithConsoleWriter(w io.Writer) ConsoleOption {
	return func(c *ConsoleChannel) { c.out = w }
}

// WithConsoleColor toggles ANSI coloring.
func WithConsoleColor(colored bool) ConsoleOption {
	return func(c *ConsoleChannel) { c.colored = colored }
}

// WithConsoleLogger injects a diagnostic logger.
func WithConsoleLogger(l *slog.Logger) ConsoleOption {
	return func(c *ConsoleChannel) { c.logger = l }
}

// NewConsoleChannel creates a colored console channel writing to stdout.
func NewConsoleChannel(opts ...ConsoleOption) *ConsoleChannel {
	c := &ConsoleChannel{out: os.Stdout, colored: true}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Name implements Channel.
func (*ConsoleChannel) Name() string { return "console" }

// Send implements Channel. The line format is
// "[timestamp] SEVERITY: message", followed by pretty-printed data when
// present.
func (c *ConsoleChannel) Send(_ context.Context, event Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("[%s] %s: %s",
		event.Timestamp.Format("2006-01-02 15:04:05"),
		strings.ToUpper(string(event.Severity)),
		event.Message,
	)
	if c.colored {
		if color, ok := consoleColors[event.Severity]; ok {
			line = color + line + colorReset
		}
	}

	if _, err := fmt.Fprintln(c.out, line); err != nil {
		c.logger.Error("console notification failed", "error", err)
		return false
	}

	if len(event.Data) > 0 {
		formatted, err := json.MarshalIndent(event.Data, "  ", "  ")
		if err == nil {
			_, err = fmt.Fprintf(c.out, "  Data: %s\n", formatted)
		}
		if err != nil {
			c.logger.Error("console data output failed", "error", err)
			return false
		}
	}
	return true
}

// HealthCheck implements Channel.
func (c *ConsoleChannel) HealthCheck(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, "Console notification channel test - OK")
	return err == nil
}

// Close implements Channel. The console holds no resources.
func (*ConsoleChannel) Close() error { return nil }
