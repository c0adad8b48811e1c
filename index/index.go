// Package index defines namespace-isolated similarity search over
// embedded memory records.
//
// Design rule, non-negotiable: this component is never consulted for a
// temporal intent. Similarity does not imply recency; routing "first
// message" questions here is exactly the bug class this engine exists to
// prevent.
package index

import (
	"context"

	"github.com/recallhq/recall-go-sdk/core"
)

// Match is one ranked search result.
type Match struct {
	Record     core.MemoryRecord
	Similarity float64
}

// Query is one similarity search, scoped to a single owner namespace.
type Query struct {
	Owner     core.OwnerKey
	Embedding []float32
	K         int

	// Filters are equality constraints over record metadata tags
	// (e.g. emotion labels). The engine passes them through opaquely.
	Filters map[string]string
}

// Index is the per-namespace k-nearest-neighbor backend. Upsert must be
// idempotent by record ID. Search ranks by vector similarity with ties
// broken by descending recency, never the reverse.
type Index interface {
	Upsert(ctx context.Context, rec core.MemoryRecord) error
	Search(ctx context.Context, q Query) ([]Match, error)
	Close() error
}
