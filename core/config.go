package core

import "time"

// Config is the engine's construction-time configuration. There is no
// dynamic reload; build a new engine to change it.
type Config struct {
	// CacheTTL is how long a cache entry stays warm. Expired entries are
	// rebuilt from the chronological log, never served stale.
	CacheTTL time.Duration

	// CacheSize bounds how many recent turns one cache entry holds.
	CacheSize int

	// BootstrapLimit bounds the single range query used to rebuild a
	// cold cache entry.
	BootstrapLimit int

	// InactivityThreshold is the gap after which the next turn starts a
	// new session window.
	InactivityThreshold time.Duration

	// SubTimeout bounds each individual backend call.
	SubTimeout time.Duration

	// Deadline bounds the whole AssembleContext call. On expiry a
	// partial bundle is returned rather than blocking.
	Deadline time.Duration

	// SemanticTopK is how many candidates the index returns.
	SemanticTopK int

	// RecencyHalfLife tunes the decay blended into semantic scores: a
	// candidate this old scores at half its raw similarity. Smaller
	// values favor recency more aggressively.
	RecencyHalfLife time.Duration

	// SummaryMaxLen bounds the summary string in runes.
	SummaryMaxLen int

	// TemporalScope picks what "today"/"this session" means when the
	// utterance itself does not say: the rolling session window
	// (default) or the calendar-day boundary.
	TemporalScope Scope

	// MaxAttempts bounds retries per backend call before the backend is
	// treated as unavailable.
	MaxAttempts int

	// RetryBackoff is the initial backoff between attempts; it doubles
	// per attempt.
	RetryBackoff time.Duration
}

// DefaultConfig holds conservative defaults suitable for a single-node
// deployment.
var DefaultConfig = Config{
	CacheTTL:            5 * time.Minute,
	CacheSize:           20,
	BootstrapLimit:      50,
	InactivityThreshold: 30 * time.Minute,
	SubTimeout:          800 * time.Millisecond,
	Deadline:            2 * time.Second,
	SemanticTopK:        10,
	RecencyHalfLife:     6 * time.Hour,
	SummaryMaxLen:       1000,
	TemporalScope:       ScopeSession,
	MaxAttempts:         3,
	RetryBackoff:        50 * time.Millisecond,
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig
	if c.CacheTTL == 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheSize == 0 {
		c.CacheSize = d.CacheSize
	}
	if c.BootstrapLimit == 0 {
		c.BootstrapLimit = d.BootstrapLimit
	}
	if c.InactivityThreshold == 0 {
		c.InactivityThreshold = d.InactivityThreshold
	}
	if c.SubTimeout == 0 {
		c.SubTimeout = d.SubTimeout
	}
	if c.Deadline == 0 {
		c.Deadline = d.Deadline
	}
	if c.SemanticTopK == 0 {
		c.SemanticTopK = d.SemanticTopK
	}
	if c.RecencyHalfLife == 0 {
		c.RecencyHalfLife = d.RecencyHalfLife
	}
	if c.SummaryMaxLen == 0 {
		c.SummaryMaxLen = d.SummaryMaxLen
	}
	if c.TemporalScope == "" {
		c.TemporalScope = d.TemporalScope
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	return c
}
