// Package turnstore defines the append-only ledger of conversational turns.
//
// The turn store is the single most critical component of the substrate: every
// other layer (summaries, crystals, graph ingestion) derives from it, and its
// loss is unrecoverable. Appends are monotonic and require no cross-writer
// coordination; range bookkeeping (summarized, graph-ingested) is the only
// mutation allowed after a turn is written.
package turnstore

import (
	"context"
	"time"
)

// Turn is one captured message in a conversation. Immutable once written
// except for the summarization and ingestion tracking fields.
type Turn struct {
	ID               int64      `json:"id"`
	Channel          string     `json:"channel"`
	Author           string     `json:"author"`
	Content          string     `json:"content"`
	CreatedAt        time.Time  `json:"created_at"`
	Summarized       bool       `json:"summarized"`
	IngestedToGraph  bool       `json:"ingested_to_graph"`
	IngestionBatchID *string    `json:"ingestion_batch_id,omitempty"`
}

// Filter selects turns from the ledger. Zero values mean "no constraint".
// Contains is a best-effort full-text match, not an index guarantee.
type Filter struct {
	Channel  string
	Author   string
	Since    time.Time
	Until    time.Time
	Contains string
	AfterID  int64
	Limit    int
}

// Range is an inclusive turn-id range.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Summary is a mid-tier compression of a contiguous turn range. Ranges never
// overlap across summaries.
type Summary struct {
	ID          int64     `json:"id"`
	StartTurnID int64     `json:"start_turn_id"`
	EndTurnID   int64     `json:"end_turn_id"`
	Channels    []string  `json:"channels"`
	Kind        string    `json:"kind"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary kinds.
const (
	KindWork      = "work"
	KindSocial    = "social"
	KindTechnical = "technical"
)

// Batch records one graph-ingestion batch. A batch id derived from a turn-id
// range is never reprocessed once marked complete.
type Batch struct {
	BatchID       string   `json:"batch_id"`
	Turns         Range    `json:"turn_id_range"`
	Channels      []string `json:"channels"`
	IngestedCount int      `json:"ingested_count"`
	FailedCount   int      `json:"failed_count"`
}

// SummaryStats reports summary coverage over the ledger.
type SummaryStats struct {
	Total         int            `json:"total"`
	ByKind        map[string]int `json:"by_kind"`
	Backlog       int            `json:"backlog"`
	LastCreatedAt time.Time      `json:"last_created_at,omitzero"`
}

// Store is the ledger contract. Append must never block on downstream
// consumers; everything else treats the store as read-mostly.
type Store interface {
	// Append writes a turn and returns its monotonic id. Ids are never
	// reused. CreatedAt defaults to now when zero.
	Append(ctx context.Context, t Turn) (int64, error)

	// Query returns turns matching the filter, ordered by id.
	Query(ctx context.Context, f Filter) ([]Turn, error)

	// LatestID returns the highest assigned turn id, 0 when empty.
	LatestID(ctx context.Context) (int64, error)

	// MarkSummarized flags every turn in the range as covered by a summary.
	MarkSummarized(ctx context.Context, r Range) error

	// MarkGraphIngested flags every turn in the range as graph-ingested
	// under the given batch id.
	MarkGraphIngested(ctx context.Context, r Range, batchID string) error

	// Unsummarized returns the oldest turns not yet covered by a summary.
	Unsummarized(ctx context.Context, limit int) ([]Turn, error)

	// UnsummarizedCount is the summarization backlog.
	UnsummarizedCount(ctx context.Context) (int, error)

	// OldestUningested returns the oldest contiguous run of turns not yet
	// sent to the graph, capped at limit.
	OldestUningested(ctx context.Context, limit int) ([]Turn, error)

	// UningestedCount is the graph-ingestion backlog.
	UningestedCount(ctx context.Context) (int, error)

	// AddSummary persists a summary produced over a turn range.
	AddSummary(ctx context.Context, s Summary) (int64, error)

	// RecentSummaries returns the newest summaries, newest first.
	RecentSummaries(ctx context.Context, limit int) ([]Summary, error)

	// SearchSummaries is a best-effort text match over summary bodies.
	SearchSummaries(ctx context.Context, query string, limit int) ([]Summary, error)

	// SummaryStats reports coverage counts.
	SummaryStats(ctx context.Context) (SummaryStats, error)

	// RecordBatch persists a completed ingestion batch record.
	RecordBatch(ctx context.Context, b Batch) error

	// BatchCompleted reports whether a batch id has already been recorded.
	BatchCompleted(ctx context.Context, batchID string) (bool, error)

	// AcquireLock takes the named cooperative lock for owner, or reports
	// false when another live owner holds it. Expired holds are stolen.
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)

	// ReleaseLock drops the named lock if owner holds it.
	ReleaseLock(ctx context.Context, name, owner string) error

	// IntegrityCheck verifies the underlying storage is not corrupted.
	IntegrityCheck(ctx context.Context) error

	// Backup writes a consistent snapshot of the ledger to path.
	Backup(ctx context.Context, path string) error

	// Close releases the store's resources.
	Close() error
}

// Lock names used across the substrate.
const (
	LockCrystallize = "crystallize"
	LockGraphIngest = "graph-ingest"
)
