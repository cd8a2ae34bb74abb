package detect

import (
	"github.com/graphrag/connectd/pkg/fact"
)

// Order controls how connections are truncated when a run exceeds
// MaxConnections.
type Order string

const (
	// OrderInsertion keeps the first connections in strategy emission
	// order. Low-scoring pairs evaluated early can crowd out better
	// ones found later.
	OrderInsertion Order = "insertion"

	// OrderScore keeps the highest-scoring connections.
	OrderScore Order = "score"
)

// Options tune a single detection run. The zero value defers to the
// detector's configured defaults.
type Options struct {
	// Threshold overrides the detector's relevance threshold for this
	// run. Nil means "use the configured default".
	Threshold *float64 `json:"threshold,omitempty"`

	// MaxConnections caps the number of connections kept. Zero means
	// the configured default (50).
	MaxConnections int `json:"max_connections,omitempty"`

	// Kinds restricts results to the given relation kinds. Empty, or
	// containing "all", disables the filter.
	Kinds []fact.RelationKind `json:"kinds,omitempty"`

	// Order selects the truncation order. Empty means OrderInsertion.
	Order Order `json:"order,omitempty"`
}

// kindAll disables kind filtering when present in Options.Kinds.
const kindAll fact.RelationKind = "all"

// kindFilter returns the set of requested kinds, or nil when filtering
// is disabled.
func (o Options) kindFilter() map[fact.RelationKind]struct{} {
	if len(o.Kinds) == 0 {
		return nil
	}
	set := make(map[fact.RelationKind]struct{}, len(o.Kinds))
	for _, k := range o.Kinds {
		if k == kindAll {
			return nil
		}
		set[k] = struct{}{}
	}
	return set
}
