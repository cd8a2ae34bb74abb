package score

import (
	"fmt"
	"strings"

	"github.com/graphrag/connectd/pkg/fact"
)

func init() {
	RegisterStrategy("entity_overlap", func() Strategy { return &EntityOverlap{} })
}

// EntityOverlap emits a factual connection between two facts that tag at
// least one common entity. The score grows with the overlap size:
// min(1.0, 0.7 + 0.1 per shared entity).
type EntityOverlap struct{}

// Name implements Strategy.
func (*EntityOverlap) Name() string { return "entity_overlap" }

// ScorePair implements Strategy. Shared entities are reported in the
// order they appear on the source fact, keeping output deterministic.
func (*EntityOverlap) ScorePair(a, b fact.Fact) *fact.Connection {
	shared := sharedEntities(a.Entities, b.Entities)
	if len(shared) == 0 {
		return nil
	}

	value := 0.7 + 0.1*float64(len(shared))
	if value > 1.0 {
		value = 1.0
	}

	joined := strings.Join(shared, ", ")
	return &fact.Connection{
		SourceFact:   a.Text,
		TargetFact:   b.Text,
		Relationship: "Share common entities: " + joined,
		Score: fact.RelationScore{
			Value:      value,
			Confidence: 0.85,
			Reasoning:  fmt.Sprintf("Facts share entities %s which indicates a relationship", joined),
			Kind:       fact.RelationFactual,
		},
		Evidence: []string{"Both facts mention: " + joined},
		Metadata: map[string]any{
			"common_entities": shared,
			metadataMethod:    "entity_overlap",
		},
	}
}

// ScoreCorpus implements Strategy. Entity overlap only relates fact
// pairs; corpus comparison is handled by the lexical strategy.
func (*EntityOverlap) ScoreCorpus(fact.Fact, string) *fact.Connection {
	return nil
}

// sharedEntities returns the entities present in both lists, preserving
// the order of the first list. Matching is exact.
func sharedEntities(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	inB := make(map[string]struct{}, len(b))
	for _, e := range b {
		inB[e] = struct{}{}
	}

	var shared []string
	seen := make(map[string]struct{}, len(a))
	for _, e := range a {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		if _, ok := inB[e]; ok {
			shared = append(shared, e)
		}
	}
	return shared
}
