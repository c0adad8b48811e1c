// Package summarize holds the summarizer collaborator contract: ordered
// records in, bounded-length string out, deterministic truncation.
package summarize

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/recallhq/recall-go-sdk/core"
)

// Summarizer produces a bounded-length summary of ordered records. The
// engine treats it as an optional, best-effort collaborator: a failure
// or timeout just leaves the bundle's summary empty.
type Summarizer interface {
	Summarize(ctx context.Context, records []core.MemoryRecord, maxLen int) (string, error)
}

// Truncating is the deterministic fallback summarizer: it renders the
// turns as "role: content" lines and truncates at the rune bound. No
// model, no network, identical output for identical input.
type Truncating struct{}

// Summarize renders records into a transcript capped at maxLen runes.
func (Truncating) Summarize(_ context.Context, records []core.MemoryRecord, maxLen int) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(r.Role))
		b.WriteString(": ")
		b.WriteString(r.Content)
	}
	return Truncate(b.String(), maxLen), nil
}

// Truncate cuts s to maxLen runes, appending "..." when it had to cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
