package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphrag/connectd/pkg/fact"
)

func init() {
	RegisterStrategy("lexical", func() Strategy { return &Lexical{} })
}

// corpusTarget is the target label used when a fact relates to prior
// knowledge rather than to another fact.
const corpusTarget = "Existing knowledge in the knowledge base"

// stopWords are excluded from token overlap so that shared articles and
// prepositions never count as evidence.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
}

// Lexical emits a semantic connection when two texts share at least two
// meaningful (non-stopword) tokens. The score grows with the overlap:
// min(0.9, 0.5 + 0.05 per shared token).
type Lexical struct{}

// Name implements Strategy.
func (*Lexical) Name() string { return "lexical" }

// ScorePair implements Strategy.
func (l *Lexical) ScorePair(a, b fact.Fact) *fact.Connection {
	return l.relate(a.Text, b.Text, b.Text)
}

// ScoreCorpus implements Strategy.
func (l *Lexical) ScoreCorpus(f fact.Fact, corpus string) *fact.Connection {
	return l.relate(f.Text, corpus, corpusTarget)
}

// relate computes the shared meaningful tokens between source and other
// and builds a connection when at least two remain. Tokens are reported
// sorted so that repeated runs produce identical output.
func (*Lexical) relate(source, other, targetLabel string) *fact.Connection {
	shared := sharedTokens(source, other)
	if len(shared) < 2 {
		return nil
	}

	value := 0.5 + 0.05*float64(len(shared))
	if value > 0.9 {
		value = 0.9
	}

	return &fact.Connection{
		SourceFact:   source,
		TargetFact:   targetLabel,
		Relationship: "Semantic similarity through shared concepts: " + strings.Join(headOf(shared, 3), ", "),
		Score: fact.RelationScore{
			Value:      value,
			Confidence: 0.70,
			Reasoning:  fmt.Sprintf("Shares %d meaningful concepts with related knowledge", len(shared)),
			Kind:       fact.RelationSemantic,
		},
		Evidence: []string{"Shared concepts: " + strings.Join(headOf(shared, 5), ", ")},
		Metadata: map[string]any{
			"shared_concepts": shared,
			metadataMethod:    "semantic_similarity",
		},
	}
}

// sharedTokens returns the sorted set of non-stopword tokens common to
// both texts after lowercasing.
func sharedTokens(a, b string) []string {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var shared []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			shared = append(shared, tok)
		}
	}
	sort.Strings(shared)
	return shared
}

// tokenSet lowercases and splits text on whitespace, dropping stop words.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// headOf returns at most n leading elements of s.
func headOf(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
