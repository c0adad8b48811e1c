// Package engine composes the session tracker, intent classifier,
// chronological log, semantic index, and hybrid cache into one
// bounded-latency context assembly call.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/recallhq/recall-go-sdk/cache"
	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/guard"
	"github.com/recallhq/recall-go-sdk/index"
	"github.com/recallhq/recall-go-sdk/intent"
	"github.com/recallhq/recall-go-sdk/session"
	"github.com/recallhq/recall-go-sdk/summarize"
	"github.com/recallhq/recall-go-sdk/timeline"
)

// Engine is the retrieval orchestrator. It owns the per-owner session
// and sequence state explicitly (no module-level globals), so multiple
// isolated engines can coexist in one process and tests stay
// deterministic.
type Engine struct {
	cfg        core.Config
	log        timeline.Store
	idx        index.Index
	cache      *cache.Cache
	sessions   *session.Tracker
	classifier *intent.Classifier
	guard      *guard.Guard
	summarizer summarize.Summarizer

	seq    sequencer
	logger *zap.Logger
	now    func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithSummarizer sets the optional summarizer collaborator.
func WithSummarizer(s summarize.Summarizer) Option {
	return func(e *Engine) { e.summarizer = s }
}

// WithLogger sets the engine logger, shared with the internal tracker
// and guard.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given backends. The chronological log
// and the semantic index are independent failure domains: either one
// being down degrades only the requests that need it.
func New(cfg core.Config, log timeline.Store, idx index.Index, c *cache.Cache, opts ...Option) *Engine {
	cfg = cfg.WithDefaults()
	e := &Engine{
		cfg:    cfg,
		log:    log,
		idx:    idx,
		cache:  c,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sessions = session.NewTracker(cfg.InactivityThreshold, session.WithLogger(e.logger))
	e.classifier = intent.NewClassifier(cfg.TemporalScope)
	e.guard = guard.New(guard.WithLogger(e.logger))
	return e
}

// Request is one incoming conversational turn to assemble context for.
type Request struct {
	UserID       string
	BotNamespace string
	ChannelID    string
	Utterance    string

	// QueryEmbedding is the utterance's embedding, computed by the
	// external embedding provider. Required for the semantic path; a
	// missing embedding skips the index and marks the bundle
	// incomplete.
	QueryEmbedding []float32

	// Filters are optional equality constraints over collaborator
	// metadata tags, passed through to the index opaquely.
	Filters map[string]string
}

func (r Request) validate() error {
	switch {
	case r.UserID == "":
		return &core.ValidationError{Field: "user_id", Reason: "must not be empty"}
	case r.BotNamespace == "":
		return &core.ValidationError{Field: "bot_namespace", Reason: "must not be empty"}
	case r.Utterance == "":
		return &core.ValidationError{Field: "utterance", Reason: "must not be empty"}
	}
	return nil
}

// AssembleContext classifies the utterance, fans out to the backends
// the intent needs, and returns a ContextBundle within the configured
// deadline. Backend failures and timeouts degrade the bundle; the only
// error returned is a ValidationError for a malformed request.
func (e *Engine) AssembleContext(ctx context.Context, req Request) (*core.ContextBundle, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	now := e.now()
	owner := core.OwnerKey{UserID: req.UserID, BotNamespace: req.BotNamespace}

	// The incoming turn is activity: it may roll the session window
	// over before any scoped query runs.
	window, _ := e.sessions.Observe(owner, now)

	qi := e.classifier.Classify(req.Utterance)
	bundle := &core.ContextBundle{Intent: qi, Complete: true}

	if qi.Kind.Temporal() || qi.Kind == core.IntentSessionScoped {
		e.assembleTemporal(ctx, req, qi, owner, window, now, bundle)
	} else {
		e.assembleSemantic(ctx, req, owner, now, bundle)
	}

	e.addSummary(ctx, bundle)
	return bundle, nil
}

// assembleTemporal answers from the chronological log alone, scoped by
// the session window or calendar day. The semantic index is not
// consulted here, by design: similarity does not imply recency.
func (e *Engine) assembleTemporal(ctx context.Context, req Request, qi core.QueryIntent, owner core.OwnerKey, window session.Window, now time.Time, bundle *core.ContextBundle) {
	since, until := e.windowBounds(qi.Scope, window, now)

	q := timeline.RangeQuery{Owner: owner, Since: since, Until: until}
	switch {
	case qi.Kind == core.IntentTemporalFirst:
		q.Order, q.Limit = timeline.Asc, 1
	case qi.Kind == core.IntentTemporalLast && qi.Relative && qi.Offset > 0:
		// "N messages ago": the N most recent descending; the answer is
		// the oldest of them.
		q.Order, q.Limit = timeline.Desc, qi.Offset
	case qi.Kind == core.IntentTemporalLast:
		q.Order, q.Limit = timeline.Desc, 1
	default:
		// temporal_when and session_scoped return the whole scoped
		// window, bounded, for the generator to reason over.
		q.Order, q.Limit = timeline.Asc, e.cfg.BootstrapLimit
	}

	var recs []core.MemoryRecord
	err := e.callBackend(ctx, func(ctx context.Context) error {
		var err error
		recs, err = e.log.Range(ctx, q)
		return err
	})
	if err != nil {
		e.degrade(bundle, "chronological log", err)
		return
	}

	if q.Order == timeline.Desc {
		reverse(recs)
	}
	if qi.Relative && qi.Offset > 0 && len(recs) > 0 {
		// Keep only the turn the offset names.
		recs = recs[:1]
	}

	bundle.Recent = e.guard.FilterVisible(recs, req.UserID)
}

// assembleSemantic launches the cache and index lookups concurrently,
// each under its own sub-timeout, then merges with recency-decayed
// scores. Either backend failing degrades only its half of the bundle.
func (e *Engine) assembleSemantic(ctx context.Context, req Request, owner core.OwnerKey, now time.Time, bundle *core.ContextBundle) {
	channel := core.ChannelKey{OwnerKey: owner, ChannelID: req.ChannelID}

	var (
		recent     []core.MemoryRecord
		recentErr  error
		matches    []index.Match
		matchErr   error
		idxSkipped bool
	)

	var g errgroup.Group
	g.Go(func() error {
		recentErr = e.callBackend(ctx, func(ctx context.Context) error {
			var err error
			recent, err = e.cache.GetRecent(ctx, channel, e.cfg.CacheSize)
			return err
		})
		return nil
	})
	g.Go(func() error {
		if e.idx == nil || len(req.QueryEmbedding) == 0 {
			idxSkipped = true
			return nil
		}
		matchErr = e.callBackend(ctx, func(ctx context.Context) error {
			var err error
			matches, err = e.idx.Search(ctx, index.Query{
				Owner:     owner,
				Embedding: req.QueryEmbedding,
				K:         e.cfg.SemanticTopK,
				Filters:   req.Filters,
			})
			return err
		})
		return nil
	})
	g.Wait()

	if recentErr != nil {
		e.degrade(bundle, "recent cache", recentErr)
	} else {
		visible := e.guard.FilterVisible(recent, req.UserID)
		bundle.Recent = e.guard.RepairAlternation(visible)
	}

	switch {
	case idxSkipped:
		bundle.Complete = false
	case matchErr != nil:
		e.degrade(bundle, "semantic index", matchErr)
	default:
		keep := make(map[string]struct{}, len(matches))
		for _, r := range e.guard.FilterVisible(recordsOf(matches), req.UserID) {
			keep[r.ID] = struct{}{}
		}
		visible := matches[:0]
		for _, m := range matches {
			if _, ok := keep[m.Record.ID]; ok {
				visible = append(visible, m)
			}
		}
		bundle.Semantic = e.rankSemantic(visible, bundle.Recent, now)
	}
}

// addSummary invokes the optional summarizer under a sub-timeout. A
// summarizer failure never degrades the bundle; the summary just stays
// empty.
func (e *Engine) addSummary(ctx context.Context, bundle *core.ContextBundle) {
	if e.summarizer == nil || len(bundle.Recent) == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SubTimeout)
	defer cancel()

	summary, err := e.summarizer.Summarize(sctx, bundle.Recent, e.cfg.SummaryMaxLen)
	if err != nil {
		e.logger.Warn("summarizer failed, continuing without summary", zap.Error(err))
		return
	}
	bundle.Summary = summary
}

// callBackend wraps one backend call with the per-call sub-timeout and
// bounded retries.
func (e *Engine) callBackend(ctx context.Context, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SubTimeout)
	defer cancel()
	return core.Retry(sctx, e.cfg.MaxAttempts, e.cfg.RetryBackoff, fn)
}

// degrade marks the bundle incomplete after a backend stayed down or
// overran its budget. The partial bundle is still returned to the
// caller; nothing here becomes a user-facing error.
func (e *Engine) degrade(bundle *core.ContextBundle, backend string, err error) {
	bundle.Complete = false
	if isTimeout(err) {
		bundle.TimedOut = true
	}
	e.logger.Warn("backend degraded",
		zap.String("backend", backend),
		zap.Error(err))
}

// windowBounds resolves the query window for a scope at now.
func (e *Engine) windowBounds(scope core.Scope, window session.Window, now time.Time) (time.Time, time.Time) {
	switch scope {
	case core.ScopeSession:
		return window.StartedAt, time.Time{}
	case core.ScopeCalendarDay:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), time.Time{}
	default:
		return time.Time{}, time.Time{}
	}
}

// Wait blocks until pending durable write-throughs have finished.
func (e *Engine) Wait() {
	e.cache.Wait()
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func recordsOf(matches []index.Match) []core.MemoryRecord {
	recs := make([]core.MemoryRecord, len(matches))
	for i, m := range matches {
		recs[i] = m.Record
	}
	return recs
}

func reverse(recs []core.MemoryRecord) {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
}
