// Package fact defines the shared data contract between the detection
// pipeline and its callers: atomic facts, scored connections, and
// detection results. All types are immutable once built.
package fact

// Kind categorizes an extracted fact.
type Kind string

// Supported fact kinds.
const (
	KindPerson       Kind = "person"
	KindOrganization Kind = "organization"
	KindLocation     Kind = "location"
	KindEvent        Kind = "event"
	KindConcept      Kind = "concept"
	KindRelationship Kind = "relationship"
	KindTemporal     Kind = "temporal"
	KindNumeric      Kind = "numeric"
	KindOther        Kind = "other"
)

// Fact is an atomic textual claim produced by an external extraction
// step. The detector consumes facts read-only.
type Fact struct {
	Text          string         `json:"fact"`
	Confidence    float64        `json:"confidence"`
	Kind          Kind           `json:"fact_type"`
	Entities      []string       `json:"entities,omitempty"`
	SourceContext string         `json:"source_context,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
