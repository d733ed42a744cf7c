// Package sqlite provides the SQLite-backed turn store driver.
//
// The same driver fronts a local file (github.com/mattn/go-sqlite3) or a
// remote libsql database (github.com/tursodatabase/go-libsql) selected by the
// DSN scheme.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/presencelabs/substrate/pkg/turnstore"
)

// Store implements turnstore.Store on SQLite.
type Store struct {
	db *sql.DB

	// now is swappable in tests for lock expiry.
	now func() time.Time
}

// New opens (or creates) the ledger at dsn. Use ":memory:" for an in-memory
// database; "libsql://..." selects the remote libsql driver.
func New(dsn string) (*Store, error) {
	driver := "sqlite3"
	if strings.HasPrefix(dsn, "libsql://") {
		driver = "libsql"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	if driver == "sqlite3" {
		// WAL keeps concurrent readers off the writer's back. Appends
		// must never block on downstream consumers.
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger schema: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		author TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		summarized INTEGER NOT NULL DEFAULT 0,
		ingested_to_graph INTEGER NOT NULL DEFAULT 0,
		ingestion_batch_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_turns_channel ON turns(channel);
	CREATE INDEX IF NOT EXISTS idx_turns_summarized ON turns(summarized);
	CREATE INDEX IF NOT EXISTS idx_turns_ingested ON turns(ingested_to_graph);

	CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_turn_id INTEGER NOT NULL,
		end_turn_id INTEGER NOT NULL,
		channels TEXT NOT NULL,
		kind TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ingestion_batches (
		batch_id TEXT PRIMARY KEY,
		start_turn_id INTEGER NOT NULL,
		end_turn_id INTEGER NOT NULL,
		channels TEXT NOT NULL,
		ingested_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locks (
		name TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append writes a turn and returns its monotonic id.
func (s *Store) Append(ctx context.Context, t turnstore.Turn) (int64, error) {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (channel, author, content, created_at) VALUES (?, ?, ?, ?)`,
		t.Channel, t.Author, t.Content, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("appending turn: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading turn id: %w", err)
	}

	return id, nil
}

// Query returns turns matching the filter, ordered by id.
func (s *Store) Query(ctx context.Context, f turnstore.Filter) ([]turnstore.Turn, error) {
	var (
		where []string
		args  []any
	)

	if f.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, f.Channel)
	}
	if f.Author != "" {
		where = append(where, "author = ?")
		args = append(args, f.Author)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, f.Until.UTC())
	}
	if f.Contains != "" {
		where = append(where, "content LIKE ?")
		args = append(args, "%"+f.Contains+"%")
	}
	if f.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, f.AfterID)
	}

	query := `SELECT id, channel, author, content, created_at, summarized, ingested_to_graph, ingestion_batch_id FROM turns`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]turnstore.Turn, error) {
	var out []turnstore.Turn
	for rows.Next() {
		var (
			t       turnstore.Turn
			batchID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Channel, &t.Author, &t.Content, &t.CreatedAt, &t.Summarized, &t.IngestedToGraph, &batchID); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if batchID.Valid {
			t.IngestionBatchID = &batchID.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestID returns the highest assigned turn id, 0 when empty.
func (s *Store) LatestID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM turns`).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading latest turn id: %w", err)
	}
	return id.Int64, nil
}

// MarkSummarized flags every turn in the range as covered by a summary.
func (s *Store) MarkSummarized(ctx context.Context, r turnstore.Range) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE turns SET summarized = 1 WHERE id BETWEEN ? AND ?`,
		r.Start, r.End,
	)
	if err != nil {
		return fmt.Errorf("marking turns summarized: %w", err)
	}
	return nil
}

// MarkGraphIngested flags every turn in the range as graph-ingested under the
// given batch id. Turns already carrying a batch id keep their original one.
func (s *Store) MarkGraphIngested(ctx context.Context, r turnstore.Range, batchID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE turns SET ingested_to_graph = 1, ingestion_batch_id = ?
		 WHERE id BETWEEN ? AND ? AND ingested_to_graph = 0`,
		batchID, r.Start, r.End,
	)
	if err != nil {
		return fmt.Errorf("marking turns ingested: %w", err)
	}
	return nil
}

// Unsummarized returns the oldest turns not yet covered by a summary.
func (s *Store) Unsummarized(ctx context.Context, limit int) ([]turnstore.Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, author, content, created_at, summarized, ingested_to_graph, ingestion_batch_id
		 FROM turns WHERE summarized = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unsummarized turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// UnsummarizedCount is the summarization backlog.
func (s *Store) UnsummarizedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE summarized = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting unsummarized turns: %w", err)
	}
	return n, nil
}

// OldestUningested returns the oldest contiguous run of turns not yet sent to
// the graph, capped at limit. Contiguity is enforced in Go so a batch never
// spans a gap left by an earlier batch.
func (s *Store) OldestUningested(ctx context.Context, limit int) ([]turnstore.Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, author, content, created_at, summarized, ingested_to_graph, ingestion_batch_id
		 FROM turns WHERE ingested_to_graph = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying uningested turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(turns); i++ {
		if turns[i].ID != turns[i-1].ID+1 {
			return turns[:i], nil
		}
	}
	return turns, nil
}

// UningestedCount is the graph-ingestion backlog.
func (s *Store) UningestedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE ingested_to_graph = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting uningested turns: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ensure Store implements turnstore.Store.
var _ turnstore.Store = (*Store)(nil)
