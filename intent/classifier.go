// Package intent classifies an incoming utterance as temporal, semantic,
// or session-scoped. The classifier is deterministic and explainable on
// purpose: temporal recall answered by similarity search is the documented
// root cause of wrong "first message" answers, so the routing decision has
// to be auditable. A learned classifier can be substituted behind the
// same contract later.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/recallhq/recall-go-sdk/core"
)

// Classifier pattern-matches utterances against a fixed taxonomy of
// temporal phrasings. Priority when several patterns match:
// temporal > session-scoped > semantic.
type Classifier struct {
	defaultScope core.Scope
}

// NewClassifier creates a classifier. defaultScope decides what bare
// temporal phrasings ("the first thing I said") are scoped to when the
// utterance itself names no scope.
func NewClassifier(defaultScope core.Scope) *Classifier {
	if defaultScope == "" {
		defaultScope = core.ScopeSession
	}
	return &Classifier{defaultScope: defaultScope}
}

var (
	firstRe    = regexp.MustCompile(`\b(?:the\s+)?(?:very\s+)?first\b`)
	lastRe     = regexp.MustCompile(`\blast\s+(?:time|thing|message)\b|\bmost\s+recent\b`)
	whenRe     = regexp.MustCompile(`\bwhen\s+did\b|\bhow\s+long\s+ago\b|\bwhat\s+time\s+did\b`)
	relativeRe = regexp.MustCompile(`\b(\d+)\s+(?:messages?|turns?)\s+ago\b`)

	sessionRe  = regexp.MustCompile(`\bthis\s+(?:session|conversation|chat)\b|\bsince\s+(?:we|i)\s+started\b`)
	calendarRe = regexp.MustCompile(`\btoday\b|\bthis\s+morning\b|\btonight\b`)
	allTimeRe  = regexp.MustCompile(`\bever\b|\ball\s+time\b|\bever\s+said\b`)
)

// Classify maps one utterance to a QueryIntent. Matching is
// case-insensitive; an utterance with no temporal or session phrasing
// defaults to semantic with all-time scope.
func (c *Classifier) Classify(utterance string) core.QueryIntent {
	text := strings.ToLower(utterance)

	scope := c.scopeOf(text)

	if m := relativeRe.FindStringSubmatch(text); m != nil {
		offset, _ := strconv.Atoi(m[1])
		return core.QueryIntent{
			Kind:     core.IntentTemporalLast,
			Scope:    scope,
			Relative: true,
			Offset:   offset,
		}
	}
	if whenRe.MatchString(text) {
		return core.QueryIntent{Kind: core.IntentTemporalWhen, Scope: scope}
	}
	if firstRe.MatchString(text) {
		return core.QueryIntent{Kind: core.IntentTemporalFirst, Scope: scope}
	}
	if lastRe.MatchString(text) {
		return core.QueryIntent{Kind: core.IntentTemporalLast, Scope: scope}
	}
	if sessionRe.MatchString(text) {
		return core.QueryIntent{Kind: core.IntentSessionScoped, Scope: core.ScopeSession}
	}
	if calendarRe.MatchString(text) {
		return core.QueryIntent{Kind: core.IntentSessionScoped, Scope: core.ScopeCalendarDay}
	}

	return core.QueryIntent{Kind: core.IntentSemantic, Scope: core.ScopeAllTime}
}

// scopeOf resolves the scope for a temporal phrasing: explicit wording in
// the utterance wins, otherwise the configured default applies.
func (c *Classifier) scopeOf(text string) core.Scope {
	switch {
	case sessionRe.MatchString(text):
		return core.ScopeSession
	case calendarRe.MatchString(text):
		return core.ScopeCalendarDay
	case allTimeRe.MatchString(text):
		return core.ScopeAllTime
	}
	return c.defaultScope
}
