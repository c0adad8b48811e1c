// Package embedder defines the text embedding provider used to produce
// query and record vectors. Embedding happens outside the retrieval
// engine proper: callers embed text first and pass the vectors along
// with the record or request.
package embedder

import "context"

// Embedder converts text into a fixed-dimension vector. Implementations
// must be deterministic for identical input within one process lifetime
// and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
