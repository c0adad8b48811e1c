// Package sqlite implements the timeline store on SQLite via the pure-Go
// modernc.org/sqlite driver, so it builds without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/timeline"
)

// Store is a SQLite-backed timeline.Store.
type Store struct {
	db *sql.DB
}

// New opens or creates the database at dbPath. ":memory:" gives an
// ephemeral store for tests.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		bot_namespace TEXT NOT NULL,
		channel_id    TEXT NOT NULL,
		role          TEXT NOT NULL,
		content       TEXT NOT NULL,
		embedding     TEXT,
		ts            INTEGER NOT NULL,
		seq           INTEGER NOT NULL,
		memory_type   TEXT NOT NULL,
		metadata      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_owner_order
		ON records(user_id, bot_namespace, ts, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append writes rec, replacing any prior row with the same ID so retried
// writes collapse into one logical record at one position.
func (s *Store) Append(ctx context.Context, rec core.MemoryRecord) error {
	var embJSON, metaJSON sql.NullString
	if len(rec.Embedding) > 0 {
		b, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		embJSON = sql.NullString{String: string(b), Valid: true}
	}
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, user_id, bot_namespace, channel_id, role, content, embedding, ts, seq, memory_type, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			ts = excluded.ts,
			seq = excluded.seq,
			memory_type = excluded.memory_type,
			metadata = excluded.metadata`,
		rec.ID, rec.UserID, rec.BotNamespace, rec.ChannelID, string(rec.Role),
		rec.Content, embJSON, rec.Timestamp.UnixNano(), rec.Sequence,
		string(rec.Type), metaJSON)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Range scans one owner's records in exact (ts, seq) order.
func (s *Store) Range(ctx context.Context, q timeline.RangeQuery) ([]core.MemoryRecord, error) {
	where := []string{"user_id = ?", "bot_namespace = ?"}
	args := []interface{}{q.Owner.UserID, q.Owner.BotNamespace}

	if q.ChannelID != "" {
		where = append(where, "channel_id = ?")
		args = append(args, q.ChannelID)
	}
	if !q.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		where = append(where, "ts < ?")
		args = append(args, q.Until.UnixNano())
	}

	dir := "ASC"
	if q.Order == timeline.Desc {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, bot_namespace, channel_id, role, content, embedding, ts, seq, memory_type, metadata
		FROM records WHERE %s
		ORDER BY ts %s, seq %s`, strings.Join(where, " AND "), dir, dir)
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	var recs []core.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LastSequence returns the highest stored sequence for owner.
func (s *Store) LastSequence(ctx context.Context, owner core.OwnerKey) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM records WHERE user_id = ? AND bot_namespace = ?`,
		owner.UserID, owner.BotNamespace).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last sequence: %w", err)
	}
	return seq, nil
}

// Stats reports count and span for owner.
func (s *Store) Stats(ctx context.Context, owner core.OwnerKey) (timeline.Stats, error) {
	var st timeline.Stats
	var earliest, latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(ts), MAX(ts) FROM records WHERE user_id = ? AND bot_namespace = ?`,
		owner.UserID, owner.BotNamespace).Scan(&st.Count, &earliest, &latest)
	if err != nil {
		return timeline.Stats{}, fmt.Errorf("stats: %w", err)
	}
	if earliest.Valid {
		st.Earliest = time.Unix(0, earliest.Int64)
	}
	if latest.Valid {
		st.Latest = time.Unix(0, latest.Int64)
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (core.MemoryRecord, error) {
	var rec core.MemoryRecord
	var role, memType string
	var embJSON, metaJSON sql.NullString
	var ts int64

	err := row.Scan(&rec.ID, &rec.UserID, &rec.BotNamespace, &rec.ChannelID,
		&role, &rec.Content, &embJSON, &ts, &rec.Sequence, &memType, &metaJSON)
	if err != nil {
		return rec, fmt.Errorf("scan record: %w", err)
	}

	rec.Role = core.Role(role)
	rec.Type = core.MemoryType(memType)
	rec.Timestamp = time.Unix(0, ts)
	if embJSON.Valid {
		if err := json.Unmarshal([]byte(embJSON.String), &rec.Embedding); err != nil {
			return rec, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return rec, nil
}
