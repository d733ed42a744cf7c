// Package substrate holds types shared across the memory substrate:
// the error taxonomy and the per-component health report.
package substrate

import "errors"

var (
	// ErrStorageUnavailable indicates a backend (embedding, vector, or
	// graph service) is unreachable. Callers degrade to empty results and
	// mark the layer degraded rather than failing an aggregated query.
	ErrStorageUnavailable = errors.New("storage backend unavailable")

	// ErrSyncDrift indicates disk/index parity is broken for the anchor
	// index. Recoverable only via a full resync, not an incremental patch.
	ErrSyncDrift = errors.New("disk/index sync drift")

	// ErrChainIntegrity indicates an operation would break the crystal
	// chain, such as deleting a non-latest crystal. The operation is
	// rejected with no partial state.
	ErrChainIntegrity = errors.New("crystal chain integrity violation")

	// ErrIdempotentReplay indicates an already-completed turn range was
	// offered for ingestion again. This is a logged no-op, not a failure.
	ErrIdempotentReplay = errors.New("turn range already ingested")

	// ErrExtraction indicates an LLM call for summarization,
	// crystallization, or entity extraction failed. The source data
	// remains unconsumed for a future attempt.
	ErrExtraction = errors.New("extraction failed")
)
