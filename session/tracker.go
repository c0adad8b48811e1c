// Package session tracks per-owner session windows based on inactivity
// gaps. Expiry is computed lazily on access rather than by a background
// sweep, so there is no race between a sweep and a concurrent turn.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recallhq/recall-go-sdk/core"
)

// Window is one session for an owner. Windows are immutable; every
// update installs a fresh value via compare-and-swap.
type Window struct {
	StartedAt    time.Time
	LastActivity time.Time
}

// Expired reports whether the window's inactivity gap has elapsed at now.
func (w Window) Expired(now time.Time, threshold time.Duration) bool {
	return now.Sub(w.LastActivity) > threshold
}

// Tracker holds the current window per owner key. All mutation goes
// through CompareAndSwap on the per-key slot; there is no global lock.
type Tracker struct {
	threshold time.Duration
	windows   sync.Map // core.OwnerKey -> Window
	log       *zap.Logger
}

// Option configures the tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(log *zap.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// NewTracker creates a tracker with the given inactivity threshold.
func NewTracker(threshold time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		threshold: threshold,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records a turn at now and returns the window it belongs to.
// The first turn ever, or the first turn after the inactivity threshold,
// starts a new window beginning at that turn; started reports that.
func (t *Tracker) Observe(owner core.OwnerKey, now time.Time) (Window, bool) {
	for {
		prev, loaded := t.windows.Load(owner)
		if !loaded {
			fresh := Window{StartedAt: now, LastActivity: now}
			if _, raced := t.windows.LoadOrStore(owner, fresh); raced {
				continue
			}
			t.log.Debug("session window created",
				zap.String("owner", owner.String()),
				zap.Time("started_at", now))
			return fresh, true
		}

		cur := prev.(Window)
		next := cur
		started := false
		if cur.Expired(now, t.threshold) {
			// The prior window is retired implicitly; nothing persists
			// an expired state.
			next = Window{StartedAt: now}
			started = true
		}
		next.LastActivity = now

		if t.windows.CompareAndSwap(owner, prev, next) {
			if started {
				t.log.Debug("session window rolled over",
					zap.String("owner", owner.String()),
					zap.Time("previous_start", cur.StartedAt),
					zap.Time("started_at", now))
			}
			return next, started
		}
	}
}

// Current returns the active window at now without registering activity.
// ok is false if the owner has no window yet or the last one has expired.
func (t *Tracker) Current(owner core.OwnerKey, now time.Time) (Window, bool) {
	v, loaded := t.windows.Load(owner)
	if !loaded {
		return Window{}, false
	}
	w := v.(Window)
	if w.Expired(now, t.threshold) {
		return Window{}, false
	}
	return w, true
}
