// Package detect orchestrates relation scoring across a batch of facts,
// applies relevance thresholds, and memoizes results by input
// fingerprint. Scoring failures degrade to a failed result instead of
// propagating; callers check DetectionResult.Status.
package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/graphrag/connectd/internal/score"
	"github.com/graphrag/connectd/pkg/fact"
)

// Defaults applied when neither configuration nor per-run options say
// otherwise.
const (
	DefaultThreshold      = 0.7
	DefaultMaxConnections = 50
)

// ErrInvalidThreshold indicates a threshold outside [0, 1].
var ErrInvalidThreshold = errors.New("detect: threshold must be between 0.0 and 1.0")

// Detector runs every configured strategy over all candidate pairs and
// over each fact against the corpus. Safe for concurrent use.
type Detector struct {
	strategies []score.Strategy
	logger     *slog.Logger
	cache      *resultCache
	stats      stats

	mu             sync.Mutex
	threshold      float64
	maxConnections int
	order          Order
}

// Option configures optional Detector behavior.
type Option func(*Detector)

// WithLogger injects a structured logger. When omitted, log output is
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithThreshold sets the default relevance threshold.
func WithThreshold(t float64) Option {
	return func(d *Detector) { d.threshold = t }
}

// WithMaxConnections sets the default connection cap per run.
func WithMaxConnections(n int) Option {
	return func(d *Detector) { d.maxConnections = n }
}

// WithCacheSize bounds the result cache.
func WithCacheSize(n int) Option {
	return func(d *Detector) { d.cache = newResultCache(n) }
}

// WithOrder sets the default truncation order.
func WithOrder(o Order) Option {
	return func(d *Detector) { d.order = o }
}

// NewDetector creates a Detector over the given strategies.
func NewDetector(strategies []score.Strategy, opts ...Option) (*Detector, error) {
	if len(strategies) == 0 {
		return nil, errors.New("detect: at least one strategy is required")
	}

	d := &Detector{
		strategies:     strategies,
		threshold:      DefaultThreshold,
		maxConnections: DefaultMaxConnections,
		order:          OrderInsertion,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.cache == nil {
		d.cache = newResultCache(defaultCacheSize)
	}
	if d.threshold < 0 || d.threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, d.threshold)
	}
	return d, nil
}

// Threshold returns the configured default relevance threshold.
func (d *Detector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// SetThreshold updates the default relevance threshold. Values outside
// [0, 1] are rejected and leave the current threshold unchanged.
func (d *Detector) SetThreshold(t float64) error {
	if t < 0 || t > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	d.mu.Lock()
	d.threshold = t
	d.mu.Unlock()
	d.logger.Info("detection threshold updated", "threshold", t)
	return nil
}

// Detect scores every unordered fact pair and every fact against the
// corpus, returning the connections that survive kind filtering and
// truncation, partitioned by the relevance threshold.
//
// Detect never returns an error: scoring failures and cancellation
// degrade to a result with Status == StatusFailed and empty connection
// lists.
func (d *Detector) Detect(ctx context.Context, facts []fact.Fact, corpus string, opts Options) fact.DetectionResult {
	start := time.Now()

	threshold := d.Threshold()
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	maxConnections := opts.MaxConnections
	if maxConnections <= 0 {
		d.mu.Lock()
		maxConnections = d.maxConnections
		d.mu.Unlock()
	}
	order := opts.Order
	if order == "" {
		d.mu.Lock()
		order = d.order
		d.mu.Unlock()
	}

	key := Fingerprint(facts, corpus, opts)
	if cached, ok := d.cache.Get(key); ok {
		d.stats.recordCacheHit()
		d.logger.Debug("detection cache hit", "fingerprint", key[:12])
		return cached
	}

	d.logger.Info("starting connection detection",
		"facts", len(facts),
		"threshold", threshold,
	)

	connections, err := d.runStrategies(ctx, facts, corpus)
	if err != nil {
		d.logger.Error("connection detection failed", "error", err)
		return fact.DetectionResult{
			Connections:    []fact.Connection{},
			HighRelevance:  []fact.Connection{},
			ThresholdUsed:  threshold,
			ProcessingTime: time.Since(start).Seconds(),
			Status:         fact.StatusFailed,
		}
	}

	if filter := opts.kindFilter(); filter != nil {
		kept := connections[:0]
		for _, c := range connections {
			if _, ok := filter[c.Score.Kind]; ok {
				kept = append(kept, c)
			}
		}
		connections = kept
	}

	if len(connections) > maxConnections {
		if order == OrderScore {
			sort.SliceStable(connections, func(i, j int) bool {
				return connections[i].Score.Value > connections[j].Score.Value
			})
		}
		connections = connections[:maxConnections]
	}

	highRelevance := make([]fact.Connection, 0)
	for _, c := range connections {
		if c.Score.Value >= threshold {
			highRelevance = append(highRelevance, c)
		}
	}

	elapsed := time.Since(start)
	result := fact.DetectionResult{
		Connections:      connections,
		TotalConnections: len(connections),
		HighRelevance:    highRelevance,
		ThresholdUsed:    threshold,
		ProcessingTime:   elapsed.Seconds(),
		Status:           fact.StatusCompleted,
	}

	d.cache.Put(key, result)
	d.stats.recordRun(len(connections), len(highRelevance), elapsed, start)

	d.logger.Info("connection detection completed",
		"total", len(connections),
		"high_relevance", len(highRelevance),
		"elapsed", elapsed,
	)
	return result
}

// runStrategies collects every non-nil connection from every strategy.
// A panicking strategy aborts the whole run: partial results are never
// returned.
func (d *Detector) runStrategies(ctx context.Context, facts []fact.Fact, corpus string) (connections []fact.Connection, err error) {
	defer func() {
		if r := recover(); r != nil {
			connections = nil
			err = fmt.Errorf("detect: strategy panicked: %v", r)
		}
	}()

	connections = []fact.Connection{}
	for _, s := range d.strategies {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("detect: cancelled: %w", ctx.Err())
		}

		for i := range facts {
			for j := i + 1; j < len(facts); j++ {
				if c := s.ScorePair(facts[i], facts[j]); c != nil {
					connections = append(connections, *c)
				}
			}
		}

		for _, f := range facts {
			if c := s.ScoreCorpus(f, corpus); c != nil {
				connections = append(connections, *c)
			}
		}

		if batch, ok := s.(score.BatchStrategy); ok {
			connections = append(connections, batch.ScoreBatch(facts)...)
		}
	}
	return connections, nil
}

// Statistics returns a snapshot of the detector's counters.
func (d *Detector) Statistics() Stats {
	return d.stats.snapshot()
}

// ClearCache drops every memoized detection result.
func (d *Detector) ClearCache() {
	d.cache.Clear()
	d.logger.Info("detection cache cleared")
}

// CacheLen returns the number of memoized results.
func (d *Detector) CacheLen() int {
	return d.cache.Len()
}
