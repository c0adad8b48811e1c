// Package guard enforces cross-user isolation on shared-channel buffers
// and repairs role-alternation sequences before they reach the prompt.
package guard

import (
	"go.uber.org/zap"

	"github.com/recallhq/recall-go-sdk/core"
)

// Guard filters visible records by requester identity. Offending records
// are dropped and logged, never merged and never surfaced: merging was
// found to leak one user's text into another's effective context.
type Guard struct {
	log *zap.Logger
}

// Option configures the guard.
type Option func(*Guard)

// WithLogger sets the guard's logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Guard) { g.log = log }
}

// New creates a Guard.
func New(opts ...Option) *Guard {
	g := &Guard{log: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FilterVisible drops every record another user authored. Assistant
// turns are visible to everyone in the channel; user turns only to their
// author.
func (g *Guard) FilterVisible(candidates []core.MemoryRecord, requestingUserID string) []core.MemoryRecord {
	visible := make([]core.MemoryRecord, 0, len(candidates))
	for _, r := range candidates {
		if r.Role != core.RoleAssistant && r.UserID != requestingUserID {
			g.log.Warn("dropped cross-user record",
				zap.String("record_id", r.ID),
				zap.String("author", r.UserID),
				zap.String("requester", requestingUserID),
				zap.Error(core.ErrConsistencyViolation))
			continue
		}
		visible = append(visible, r)
	}
	return visible
}

// RepairAlternation enforces strict user/assistant alternation by
// filtering out offending entries. The first record of a same-role run
// is kept and the rest of the run dropped; content is never merged.
func (g *Guard) RepairAlternation(sequence []core.MemoryRecord) []core.MemoryRecord {
	repaired := make([]core.MemoryRecord, 0, len(sequence))
	var lastRole core.Role
	for _, r := range sequence {
		if len(repaired) > 0 && r.Role == lastRole {
			g.log.Debug("dropped non-alternating record",
				zap.String("record_id", r.ID),
				zap.String("role", string(r.Role)))
			continue
		}
		repaired = append(repaired, r)
		lastRole = r.Role
	}
	return repaired
}
