// Package chromem implements the semantic index on chromem-go, a pure Go
// embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/index"
)

// Reserved metadata keys. Collaborator tags are stored unprefixed, so
// search filters address them directly.
const (
	metaUserID    = "_user_id"
	metaChannelID = "_channel_id"
	metaRole      = "_role"
	metaTimestamp = "_ts"
	metaSequence  = "_seq"
	metaType      = "_memory_type"
)

// Index wraps chromem-go with one collection per owner namespace, which
// keeps cross-user isolation structural rather than filter-based.
type Index struct {
	db          *chromem.DB
	collections map[core.OwnerKey]*chromem.Collection
	mu          sync.RWMutex
	log         *zap.Logger
}

// Option configures the index.
type Option func(*Index)

// WithLogger sets the index logger.
func WithLogger(log *zap.Logger) Option {
	return func(i *Index) { i.log = log }
}

// New creates an in-memory chromem-backed index.
func New(opts ...Option) (*Index, error) {
	i := &Index{
		db:          chromem.NewDB(),
		collections: make(map[core.OwnerKey]*chromem.Collection),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// getOrCreateCollection returns the collection for an owner namespace.
func (i *Index) getOrCreateCollection(owner core.OwnerKey) (*chromem.Collection, error) {
	i.mu.RLock()
	col, exists := i.collections[owner]
	i.mu.RUnlock()
	if exists {
		return col, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// Double-check after acquiring the write lock.
	if col, exists := i.collections[owner]; exists {
		return col, nil
	}

	name := fmt.Sprintf("chat:%s:%s", owner.BotNamespace, owner.UserID)
	col, err := i.db.CreateCollection(
		name,
		nil, // embeddings are provided by the caller
		nil, // default cosine distance
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	i.collections[owner] = col
	return col, nil
}

// Upsert stores rec with its pre-computed embedding. Re-submitting the
// same record ID replaces the prior document, so retries are safe.
func (i *Index) Upsert(ctx context.Context, rec core.MemoryRecord) error {
	if len(rec.Embedding) == 0 {
		return &core.ValidationError{Field: "embedding", Reason: "must be set before Upsert"}
	}

	col, err := i.getOrCreateCollection(rec.Owner())
	if err != nil {
		return err
	}

	metadata := map[string]string{
		metaUserID:    rec.UserID,
		metaChannelID: rec.ChannelID,
		metaRole:      string(rec.Role),
		metaTimestamp: strconv.FormatInt(rec.Timestamp.UnixNano(), 10),
		metaSequence:  strconv.FormatUint(rec.Sequence, 10),
		metaType:      string(rec.Type),
	}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: rec.Embedding,
		Metadata:  metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	i.log.Debug("indexed record",
		zap.String("record_id", rec.ID),
		zap.String("owner", rec.Owner().String()))
	return nil
}

// Search ranks the owner's records by similarity to q.Embedding. Ties in
// similarity break by descending recency.
func (i *Index) Search(ctx context.Context, q index.Query) ([]index.Match, error) {
	col, err := i.getOrCreateCollection(q.Owner)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the number of matching documents,
	// which a metadata filter can shrink below the collection size.
	// Retry with smaller limits until the query fits.
	n := q.K
	if count := col.Count(); count < n {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	var results []chromem.Result
	for ; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, q.Embedding, n, q.Filters, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	matches := make([]index.Match, 0, len(results))
	for _, res := range results {
		rec, err := resultToRecord(q.Owner, res)
		if err != nil {
			i.log.Warn("skipping malformed index result",
				zap.String("doc_id", res.ID), zap.Error(err))
			continue
		}
		matches = append(matches, index.Match{Record: rec, Similarity: float64(res.Similarity)})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Similarity != matches[b].Similarity {
			return matches[a].Similarity > matches[b].Similarity
		}
		return matches[b].Record.Before(matches[a].Record)
	})
	return matches, nil
}

// Close releases resources. chromem keeps everything in memory.
func (i *Index) Close() error {
	return nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "nResults must be") ||
		strings.Contains(err.Error(), "number of documents")
}

func resultToRecord(owner core.OwnerKey, res chromem.Result) (core.MemoryRecord, error) {
	tsNanos, err := strconv.ParseInt(res.Metadata[metaTimestamp], 10, 64)
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("parse timestamp: %w", err)
	}
	seq, err := strconv.ParseUint(res.Metadata[metaSequence], 10, 64)
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("parse sequence: %w", err)
	}

	tags := make(map[string]string)
	for k, v := range res.Metadata {
		switch k {
		case metaUserID, metaChannelID, metaRole, metaTimestamp, metaSequence, metaType:
		default:
			tags[k] = v
		}
	}
	if len(tags) == 0 {
		tags = nil
	}

	return core.MemoryRecord{
		ID:           res.ID,
		UserID:       res.Metadata[metaUserID],
		BotNamespace: owner.BotNamespace,
		ChannelID:    res.Metadata[metaChannelID],
		Role:         core.Role(res.Metadata[metaRole]),
		Content:      res.Content,
		Embedding:    res.Embedding,
		Timestamp:    time.Unix(0, tsNanos),
		Sequence:     seq,
		Type:         core.MemoryType(res.Metadata[metaType]),
		Metadata:     tags,
	}, nil
}
