package score

import (
	"github.com/graphrag/connectd/pkg/fact"
)

func init() {
	RegisterStrategy("temporal", func() Strategy { return &Temporal{} })
}

// Temporal links the first two temporal facts of a batch with a fixed
// score. It is a batch strategy: the relationship depends on the batch
// composition, not on any single pair.
type Temporal struct{}

// Compile-time capability guard.
var _ BatchStrategy = (*Temporal)(nil)

// Name implements Strategy.
func (*Temporal) Name() string { return "temporal" }

// ScorePair implements Strategy. Temporal relations are batch-derived.
func (*Temporal) ScorePair(fact.Fact, fact.Fact) *fact.Connection { return nil }

// ScoreCorpus implements Strategy.
func (*Temporal) ScoreCorpus(fact.Fact, string) *fact.Connection { return nil }

// ScoreBatch implements BatchStrategy. When the batch holds two or more
// temporal facts, exactly one connection is emitted between the first
// two, in input order.
func (*Temporal) ScoreBatch(facts []fact.Fact) []fact.Connection {
	var temporal []fact.Fact
	for _, f := range facts {
		if f.Kind == fact.KindTemporal {
			temporal = append(temporal, f)
			if len(temporal) == 2 {
				break
			}
		}
	}
	if len(temporal) < 2 {
		return nil
	}

	return []fact.Connection{{
		SourceFact:   temporal[0].Text,
		TargetFact:   temporal[1].Text,
		Relationship: "Temporal relationship - events occurring in related time periods",
		Score: fact.RelationScore{
			Value:      0.75,
			Confidence: 0.80,
			Reasoning:  "Both facts contain temporal information suggesting a timeline relationship",
			Kind:       fact.RelationTemporal,
		},
		Evidence: []string{"Both facts contain time-related information"},
		Metadata: map[string]any{
			metadataMethod: "temporal_analysis",
		},
	}}
}
