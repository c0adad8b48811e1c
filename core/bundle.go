package core

// ScoredRecord is a semantic candidate with its raw similarity and the
// blended similarity×recency score used for final ranking.
type ScoredRecord struct {
	Record     MemoryRecord
	Similarity float64
	Score      float64
}

// ContextBundle is the per-request output of AssembleContext.
//
// A degraded bundle (TimedOut or !Complete) is still valid input for the
// response generator: absence of data degrades to empty slices, never to
// an error surfaced through the pipeline.
type ContextBundle struct {
	// Recent holds turns in exact chronological order. For temporal
	// intents it holds the scoped range-query answer instead.
	Recent []MemoryRecord

	// Semantic holds ranked candidates from the index, best first.
	// Always empty for temporal intents.
	Semantic []ScoredRecord

	// Summary is the optional bounded-length summary of Recent.
	Summary string

	// Intent is the classification this bundle was assembled under.
	Intent QueryIntent

	// TimedOut is set when any backend exceeded its sub-timeout or the
	// overall deadline expired.
	TimedOut bool

	// Complete is false when any backend was skipped due to
	// unavailability or deadline.
	Complete bool
}
