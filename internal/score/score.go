// Package score defines the relation scoring contract and the built-in
// strategies: entity overlap, lexical similarity, and temporal
// co-occurrence. Strategies are pure functions of their inputs so that
// detection results can be cached by input fingerprint.
package score

import (
	"github.com/graphrag/connectd/pkg/fact"
)

// Strategy scores candidate relationships. Implementations must be
// deterministic: identical inputs always produce identical output,
// including evidence ordering.
//
// A nil return means "no relation"; the detector skips the pair.
type Strategy interface {
	// Name identifies the strategy in configuration and metadata.
	Name() string

	// ScorePair compares two facts.
	ScorePair(a, b fact.Fact) *fact.Connection

	// ScoreCorpus compares one fact against a body of prior knowledge.
	ScoreCorpus(f fact.Fact, corpus string) *fact.Connection
}

// BatchStrategy is an optional capability for strategies that emit
// connections by looking at the whole input batch rather than one pair
// at a time. The detector invokes it once per run.
type BatchStrategy interface {
	ScoreBatch(facts []fact.Fact) []fact.Connection
}

// metadataMethod is the metadata key recording which strategy emitted
// a connection.
const metadataMethod = "detection_method"
