package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/presencelabs/substrate/pkg/turnstore"
)

// AddSummary persists a summary produced over a turn range.
func (s *Store) AddSummary(ctx context.Context, sum turnstore.Summary) (int64, error) {
	createdAt := sum.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (start_turn_id, end_turn_id, channels, kind, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sum.StartTurnID, sum.EndTurnID, strings.Join(sum.Channels, ","), sum.Kind, sum.Text, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("adding summary: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading summary id: %w", err)
	}
	return id, nil
}

// RecentSummaries returns the newest summaries, newest first.
func (s *Store) RecentSummaries(ctx context.Context, limit int) ([]turnstore.Summary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_turn_id, end_turn_id, channels, kind, body, created_at
		 FROM summaries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// SearchSummaries is a best-effort text match over summary bodies.
func (s *Store) SearchSummaries(ctx context.Context, query string, limit int) ([]turnstore.Summary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_turn_id, end_turn_id, channels, kind, body, created_at
		 FROM summaries WHERE body LIKE ? ORDER BY id DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]turnstore.Summary, error) {
	var out []turnstore.Summary
	for rows.Next() {
		var (
			sum      turnstore.Summary
			channels string
		)
		if err := rows.Scan(&sum.ID, &sum.StartTurnID, &sum.EndTurnID, &channels, &sum.Kind, &sum.Text, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		if channels != "" {
			sum.Channels = strings.Split(channels, ",")
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SummaryStats reports coverage counts.
func (s *Store) SummaryStats(ctx context.Context) (turnstore.SummaryStats, error) {
	stats := turnstore.SummaryStats{ByKind: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM summaries GROUP BY kind`)
	if err != nil {
		return stats, fmt.Errorf("counting summaries by kind: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return stats, fmt.Errorf("scanning summary counts: %w", err)
		}
		stats.ByKind[kind] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM summaries`).Scan(&last); err != nil {
		return stats, fmt.Errorf("reading last summary time: %w", err)
	}
	if last.Valid {
		stats.LastCreatedAt = last.Time
	}

	backlog, err := s.UnsummarizedCount(ctx)
	if err != nil {
		return stats, err
	}
	stats.Backlog = backlog

	return stats, nil
}

// RecordBatch persists a completed ingestion batch record. Replays of the
// same batch id are ignored to keep bookkeeping idempotent.
func (s *Store) RecordBatch(ctx context.Context, b turnstore.Batch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ingestion_batches
		 (batch_id, start_turn_id, end_turn_id, channels, ingested_count, failed_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.BatchID, b.Turns.Start, b.Turns.End, strings.Join(b.Channels, ","),
		b.IngestedCount, b.FailedCount, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording ingestion batch: %w", err)
	}
	return nil
}

// BatchCompleted reports whether a batch id has already been recorded.
func (s *Store) BatchCompleted(ctx context.Context, batchID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM ingestion_batches WHERE batch_id = ? LIMIT 1`, batchID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking batch: %w", err)
	}
	return true, nil
}

// AcquireLock takes the named cooperative lock for owner. Expired holds are
// stolen; a live hold by another owner reports false.
func (s *Store) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning lock transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()

	if _, err := tx.ExecContext(ctx, `DELETE FROM locks WHERE name = ? AND expires_at < ?`, name, now); err != nil {
		return false, fmt.Errorf("expiring stale lock: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO locks (name, owner, expires_at) VALUES (?, ?, ?)`,
		name, owner, now.Add(ttl),
	)
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lock insert: %w", err)
	}

	if inserted == 0 {
		// Reentrant: the same owner may refresh its own hold.
		var holder string
		if err := tx.QueryRowContext(ctx, `SELECT owner FROM locks WHERE name = ?`, name).Scan(&holder); err != nil {
			return false, fmt.Errorf("reading lock holder: %w", err)
		}
		if holder != owner {
			return false, nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE locks SET expires_at = ? WHERE name = ?`, now.Add(ttl), name); err != nil {
			return false, fmt.Errorf("refreshing lock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing lock: %w", err)
	}
	return true, nil
}

// ReleaseLock drops the named lock if owner holds it.
func (s *Store) ReleaseLock(ctx context.Context, name, owner string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE name = ? AND owner = ?`, name, owner); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// IntegrityCheck runs SQLite's built-in integrity check.
func (s *Store) IntegrityCheck(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("ledger integrity check failed: %s", result)
	}
	return nil
}

// Backup writes a consistent snapshot of the ledger to path via VACUUM INTO.
func (s *Store) Backup(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("backing up ledger: %w", err)
	}
	return nil
}
