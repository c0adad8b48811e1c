package core

// IntentKind distinguishes queries whose correct answer depends on
// chronological order from queries answered by topical similarity.
type IntentKind string

const (
	IntentSemantic      IntentKind = "semantic"
	IntentTemporalFirst IntentKind = "temporal_first"
	IntentTemporalLast  IntentKind = "temporal_last"
	IntentTemporalWhen  IntentKind = "temporal_when"
	IntentSessionScoped IntentKind = "session_scoped"
)

// Temporal reports whether the intent must be answered from the
// chronological log. The semantic index is never consulted for these.
func (k IntentKind) Temporal() bool {
	switch k {
	case IntentTemporalFirst, IntentTemporalLast, IntentTemporalWhen:
		return true
	}
	return false
}

// Scope bounds which records a temporal or session query may see.
type Scope string

const (
	ScopeSession     Scope = "session"
	ScopeCalendarDay Scope = "calendar_day"
	ScopeAllTime     Scope = "all_time"
)

// QueryIntent is the classifier's verdict for one utterance.
type QueryIntent struct {
	Kind  IntentKind
	Scope Scope

	// Relative marks offset phrasings like "3 messages ago".
	Relative bool

	// Offset is the message offset for relative queries, zero otherwise.
	Offset int
}
