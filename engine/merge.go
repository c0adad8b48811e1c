package engine

import (
	"math"
	"sort"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/index"
)

// rankSemantic blends each candidate's vector similarity with an
// exponential recency decay and returns candidates best-first. Records
// already present in the recent turns are dropped so the bundle never
// repeats a turn across sections.
//
// The decay halves the score every RecencyHalfLife, so an old match
// needs proportionally higher similarity to outrank a fresh one. Ties
// go to the newer record.
func (e *Engine) rankSemantic(matches []index.Match, recent []core.MemoryRecord, now time.Time) []core.ScoredRecord {
	seen := make(map[string]struct{}, len(recent))
	for _, r := range recent {
		seen[r.ID] = struct{}{}
	}

	scored := make([]core.ScoredRecord, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m.Record.ID]; dup {
			continue
		}
		scored = append(scored, core.ScoredRecord{
			Record:     m.Record,
			Similarity: m.Similarity,
			Score:      m.Similarity * e.recencyDecay(m.Record.Timestamp, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[j].Record.Before(scored[i].Record)
	})
	return scored
}

// recencyDecay is 2^(-age/halfLife), clamped to 1 for records stamped
// in the future relative to the engine clock.
func (e *Engine) recencyDecay(ts, now time.Time) float64 {
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(e.cfg.RecencyHalfLife))
}
