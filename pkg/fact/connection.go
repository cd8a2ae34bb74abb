package fact

// RelationKind classifies how two knowledge elements relate.
type RelationKind string

// Supported relation kinds.
const (
	RelationSemantic     RelationKind = "semantic"
	RelationFactual      RelationKind = "factual"
	RelationTemporal     RelationKind = "temporal"
	RelationCausal       RelationKind = "causal"
	RelationSpatial      RelationKind = "spatial"
	RelationSocial       RelationKind = "social"
	RelationThematic     RelationKind = "thematic"
	RelationHierarchical RelationKind = "hierarchical"
)

// RelationScore grades a single detected relationship. Created once per
// pair by a scoring strategy; never mutated afterwards.
type RelationScore struct {
	Value      float64      `json:"score"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	Kind       RelationKind `json:"connection_type"`
}

// Connection is a scored, evidenced relationship between two facts, or
// between a fact and a body of prior knowledge.
type Connection struct {
	SourceFact   string         `json:"source_fact"`
	TargetFact   string         `json:"target_fact"`
	Relationship string         `json:"relationship"`
	Score        RelationScore  `json:"score"`
	Evidence     []string       `json:"evidence,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Status reports the outcome of a detection run.
type Status string

// Detection run outcomes.
const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DetectionResult is the aggregate output of one detection run.
//
// Invariants: TotalConnections == len(Connections), HighRelevance is a
// subset of Connections, and every HighRelevance entry has
// Score.Value >= ThresholdUsed.
type DetectionResult struct {
	Connections      []Connection `json:"connections"`
	TotalConnections int          `json:"total_connections"`
	HighRelevance    []Connection `json:"high_relevance_connections"`
	ThresholdUsed    float64      `json:"threshold_used"`
	ProcessingTime   float64      `json:"processing_time"`
	Status           Status       `json:"status"`
}
