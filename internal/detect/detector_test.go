package detect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/graphrag/connectd/internal/score"
	"github.com/graphrag/connectd/pkg/fact"
)

// stubStrategy emits a fixed connection per pair with a controllable
// score, or panics on demand.
type stubStrategy struct {
	name      string
	pairScore func(a, b fact.Fact) *fact.Connection
	panics    bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) ScorePair(a, b fact.Fact) *fact.Connection {
	if s.panics {
		panic("boom")
	}
	if s.pairScore == nil {
		return nil
	}
	return s.pairScore(a, b)
}

func (s *stubStrategy) ScoreCorpus(fact.Fact, string) *fact.Connection { return nil }

func fixedScore(value float64, kind fact.RelationKind) func(a, b fact.Fact) *fact.Connection {
	return func(a, b fact.Fact) *fact.Connection {
		return &fact.Connection{
			SourceFact:   a.Text,
			TargetFact:   b.Text,
			Relationship: "stub",
			Score:        fact.RelationScore{Value: value, Confidence: 1, Kind: kind},
		}
	}
}

func defaultStrategies(t *testing.T) []score.Strategy {
	t.Helper()
	ss, err := score.Resolve([]string{"entity_overlap", "lexical", "temporal"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return ss
}

func sampleFacts() []fact.Fact {
	return []fact.Fact{
		{Text: "Alice is an engineer", Confidence: 0.9, Kind: fact.KindPerson, Entities: []string{"Alice"}},
		{Text: "Alice works at Acme", Confidence: 0.95, Kind: fact.KindRelationship, Entities: []string{"Alice", "Acme"}},
	}
}

func TestDetect_AliceScenario(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	res := d.Detect(context.Background(), sampleFacts(), "", Options{})
	if res.Status != fact.StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if res.TotalConnections != 1 || len(res.Connections) != 1 {
		t.Fatalf("got %d connections, want 1", len(res.Connections))
	}
	c := res.Connections[0]
	if math.Abs(c.Score.Value-0.8) > 1e-9 || c.Score.Kind != fact.RelationFactual {
		t.Errorf("score = %v kind %s, want 0.8 factual", c.Score.Value, c.Score.Kind)
	}
	if len(res.HighRelevance) != 1 {
		t.Errorf("high relevance = %d, want 1 (0.8 >= 0.7)", len(res.HighRelevance))
	}
}

func TestDetect_Invariants(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	facts := []fact.Fact{
		{Text: "Acme acquired Globex in 2020", Kind: fact.KindTemporal, Entities: []string{"Acme", "Globex"}},
		{Text: "Globex filed for bankruptcy in 2021", Kind: fact.KindTemporal, Entities: []string{"Globex"}},
		{Text: "Acme builds humanoid robots", Kind: fact.KindOrganization, Entities: []string{"Acme"}},
	}
	res := d.Detect(context.Background(), facts, "Acme robots dominate the robotics market", Options{})

	if res.TotalConnections != len(res.Connections) {
		t.Errorf("total_connections = %d, len(connections) = %d", res.TotalConnections, len(res.Connections))
	}
	for _, hc := range res.HighRelevance {
		if hc.Score.Value < res.ThresholdUsed {
			t.Errorf("high relevance connection below threshold: %v < %v", hc.Score.Value, res.ThresholdUsed)
		}
		found := false
		for _, c := range res.Connections {
			if reflect.DeepEqual(c, hc) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("high relevance entry not a subset of connections: %+v", hc)
		}
	}
}

func TestDetect_CacheIdempotence(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	facts := sampleFacts()
	first := d.Detect(context.Background(), facts, "corpus text here", Options{})
	second := d.Detect(context.Background(), facts, "corpus text here", Options{})

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated detect with identical inputs returned different results")
	}

	st := d.Statistics()
	if st.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", st.CacheHits)
	}
	if st.TotalRuns != 1 {
		t.Errorf("total runs = %d, want 1 (cache hit must not count)", st.TotalRuns)
	}
}

func TestDetect_ClearCacheForcesRecompute(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	facts := sampleFacts()
	d.Detect(context.Background(), facts, "", Options{})
	d.ClearCache()
	if d.CacheLen() != 0 {
		t.Fatalf("cache len = %d after clear", d.CacheLen())
	}
	d.Detect(context.Background(), facts, "", Options{})

	if st := d.Statistics(); st.TotalRuns != 2 || st.CacheHits != 0 {
		t.Errorf("runs = %d hits = %d, want 2 runs and 0 hits", st.TotalRuns, st.CacheHits)
	}
}

func TestDetect_TruncationInsertionOrder(t *testing.T) {
	t.Parallel()
	// Scores rise with insertion order, so insertion-order truncation
	// keeps the weakest connections. That is the documented default;
	// score order is the opt-in alternative.
	var n int
	rising := &stubStrategy{name: "rising", pairScore: func(a, b fact.Fact) *fact.Connection {
		n++
		return &fact.Connection{
			SourceFact: a.Text,
			TargetFact: b.Text,
			Score:      fact.RelationScore{Value: float64(n) / 100, Kind: fact.RelationThematic},
		}
	}}

	d, err := NewDetector([]score.Strategy{rising})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	facts := make([]fact.Fact, 5) // 10 pairs
	for i := range facts {
		facts[i] = fact.Fact{Text: fmt.Sprintf("fact %d", i)}
	}

	res := d.Detect(context.Background(), facts, "", Options{MaxConnections: 3})
	if len(res.Connections) != 3 {
		t.Fatalf("got %d connections, want 3", len(res.Connections))
	}
	if res.Connections[0].Score.Value != 0.01 {
		t.Errorf("insertion order should keep the first (lowest) scores, got %v", res.Connections[0].Score.Value)
	}
}

func TestDetect_TruncationScoreOrder(t *testing.T) {
	t.Parallel()
	var n int
	rising := &stubStrategy{name: "rising", pairScore: func(a, b fact.Fact) *fact.Connection {
		n++
		return &fact.Connection{
			SourceFact: a.Text,
			TargetFact: b.Text,
			Score:      fact.RelationScore{Value: float64(n) / 100, Kind: fact.RelationThematic},
		}
	}}

	d, err := NewDetector([]score.Strategy{rising})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	facts := make([]fact.Fact, 5)
	for i := range facts {
		facts[i] = fact.Fact{Text: fmt.Sprintf("fact %d", i)}
	}

	res := d.Detect(context.Background(), facts, "", Options{MaxConnections: 3, Order: OrderScore})
	if len(res.Connections) != 3 {
		t.Fatalf("got %d connections, want 3", len(res.Connections))
	}
	if res.Connections[0].Score.Value != 0.10 {
		t.Errorf("score order should keep the highest scores first, got %v", res.Connections[0].Score.Value)
	}
}

func TestDetect_KindFilter(t *testing.T) {
	t.Parallel()
	factual := &stubStrategy{name: "f", pairScore: fixedScore(0.8, fact.RelationFactual)}
	d, err := NewDetector([]score.Strategy{factual})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	facts := []fact.Fact{{Text: "a"}, {Text: "b"}}

	res := d.Detect(context.Background(), facts, "", Options{Kinds: []fact.RelationKind{fact.RelationTemporal}})
	if len(res.Connections) != 0 {
		t.Errorf("kind filter should drop factual connections, got %d", len(res.Connections))
	}

	res = d.Detect(context.Background(), facts, "", Options{Kinds: []fact.RelationKind{"all"}})
	if len(res.Connections) != 1 {
		t.Errorf(`"all" disables filtering, got %d connections`, len(res.Connections))
	}
}

func TestDetect_PanicDegradesToFailed(t *testing.T) {
	t.Parallel()
	d, err := NewDetector([]score.Strategy{&stubStrategy{name: "boom", panics: true}})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	res := d.Detect(context.Background(), []fact.Fact{{Text: "a"}, {Text: "b"}}, "", Options{})
	if res.Status != fact.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if len(res.Connections) != 0 || len(res.HighRelevance) != 0 {
		t.Error("failed result must have empty connection lists, never partial ones")
	}

	// Failures are not cached and do not count as runs.
	if st := d.Statistics(); st.TotalRuns != 0 {
		t.Errorf("total runs = %d, want 0", st.TotalRuns)
	}
	if d.CacheLen() != 0 {
		t.Errorf("failed result must not be cached")
	}
}

func TestDetect_CancelledContext(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Detect(ctx, sampleFacts(), "", Options{})
	if res.Status != fact.StatusFailed {
		t.Errorf("status = %s, want failed on cancelled context", res.Status)
	}
}

func TestSetThreshold_Validation(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	if err := d.SetThreshold(1.5); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("SetThreshold(1.5) = %v, want ErrInvalidThreshold", err)
	}
	if got := d.Threshold(); got != DefaultThreshold {
		t.Errorf("threshold changed to %v after rejected update", got)
	}

	if err := d.SetThreshold(0.85); err != nil {
		t.Fatalf("SetThreshold(0.85): %v", err)
	}
	if got := d.Threshold(); got != 0.85 {
		t.Errorf("threshold = %v, want 0.85", got)
	}
}

func TestDetect_PerRunThresholdOverride(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	th := 0.9
	res := d.Detect(context.Background(), sampleFacts(), "", Options{Threshold: &th})
	if res.ThresholdUsed != 0.9 {
		t.Errorf("threshold used = %v, want 0.9", res.ThresholdUsed)
	}
	// The 0.8-scored Alice connection is kept but not high relevance.
	if len(res.Connections) != 1 || len(res.HighRelevance) != 0 {
		t.Errorf("connections = %d high = %d, want 1 and 0", len(res.Connections), len(res.HighRelevance))
	}
}

func TestDetect_EmptyInput(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(defaultStrategies(t))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	res := d.Detect(context.Background(), nil, "", Options{})
	if res.Status != fact.StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if res.TotalConnections != 0 {
		t.Errorf("expected no connections for empty input, got %d", res.TotalConnections)
	}
}
