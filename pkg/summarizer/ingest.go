package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// DefaultBatchSize is how many turns one ingestion batch covers.
const DefaultBatchSize = 20

// RecommendThreshold is the backlog size above which IngestionStats
// recommends running a batch.
const RecommendThreshold = 20

// ingestLockTTL bounds how long one ingestion run may hold the cooperative
// lock before another owner may steal it.
const ingestLockTTL = 10 * time.Minute

// IngestionStats reports the graph-ingestion backlog.
type IngestionStats struct {
	UningestedCount int  `json:"uningested_count"`
	Recommended     bool `json:"recommended"`
}

// Ingestor pushes raw turn content into the knowledge graph in idempotent
// batches. The extractor needs original text, not summaries, so batches are
// built from the ledger directly.
type Ingestor struct {
	sum       *Summarizer
	adapter   graph.Adapter
	namespace string
	owner     string
}

// NewIngestor creates an Ingestor bound to one graph namespace. The owner
// string identifies this process for the cooperative lock.
func NewIngestor(sum *Summarizer, adapter graph.Adapter, namespace, owner string) (*Ingestor, error) {
	if namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}
	if owner == "" {
		owner = uuid.NewString()
	}
	return &Ingestor{sum: sum, adapter: adapter, namespace: namespace, owner: owner}, nil
}

// Stats reports the ingestion backlog and whether a batch run is worthwhile.
func (ing *Ingestor) Stats(ctx context.Context) (IngestionStats, error) {
	count, err := ing.sum.store.UningestedCount(ctx)
	if err != nil {
		return IngestionStats{}, err
	}
	return IngestionStats{
		UningestedCount: count,
		Recommended:     count >= RecommendThreshold,
	}, nil
}

// BatchID derives the deterministic batch id for a turn range. The same
// range always yields the same id, which is what makes replay detectable.
func BatchID(r turnstore.Range) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%d-%d", r.Start, r.End)).String()
}

// IngestBatch selects the oldest uningested contiguous turn range, sends its
// raw content to the graph, and marks the range on success. Retry happens at
// batch granularity only. Replaying an already-completed range is a logged
// no-op, not an error. Returns a zero batch when the backlog is empty.
func (ing *Ingestor) IngestBatch(ctx context.Context, batchSize int) (turnstore.Batch, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	store := ing.sum.store

	ok, err := store.AcquireLock(ctx, turnstore.LockGraphIngest, ing.owner, ingestLockTTL)
	if err != nil {
		return turnstore.Batch{}, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !ok {
		return turnstore.Batch{}, turnstore.ErrLockHeld
	}
	defer func() {
		if err := store.ReleaseLock(ctx, turnstore.LockGraphIngest, ing.owner); err != nil {
			ing.sum.log.Warn("releasing ingest lock", "error", err)
		}
	}()

	turns, err := store.OldestUningested(ctx, batchSize)
	if err != nil {
		return turnstore.Batch{}, fmt.Errorf("loading uningested turns: %w", err)
	}
	if len(turns) == 0 {
		return turnstore.Batch{}, nil
	}

	r := turnstore.Range{Start: turns[0].ID, End: turns[len(turns)-1].ID}
	batchID := BatchID(r)

	done, err := store.BatchCompleted(ctx, batchID)
	if err != nil {
		return turnstore.Batch{}, fmt.Errorf("checking batch %s: %w", batchID, err)
	}
	if done {
		ing.sum.log.Info("skipping already-ingested range",
			"batch_id", batchID,
			"start", r.Start,
			"end", r.End,
			"error", substrate.ErrIdempotentReplay)
		return turnstore.Batch{BatchID: batchID, Turns: r}, nil
	}

	batch := turnstore.Batch{
		BatchID:  batchID,
		Turns:    r,
		Channels: channels(turns),
	}

	for _, t := range turns {
		_, err := ing.adapter.AddEpisode(ctx, graph.EpisodeRequest{
			Text:          fmt.Sprintf("%s (%s): %s", t.Author, t.Channel, t.Content),
			ReferenceTime: t.CreatedAt,
			Namespace:     ing.namespace,
			EntityTypes:   graph.DefaultEntityTypes,
			Instructions: graph.ComposeExtractionContext(graph.ComposeInput{
				Channel:       t.Channel,
				ReferenceTime: t.CreatedAt,
				Now:           time.Now(),
			}),
		})
		if err != nil {
			// Batch granularity retry: nothing is marked, the whole
			// range stays eligible for the next run.
			batch.FailedCount++
			return batch, fmt.Errorf("%w: ingesting turn %d: %v", ingestErrKind(err), t.ID, err)
		}
		batch.IngestedCount++
	}

	if err := store.MarkGraphIngested(ctx, r, batchID); err != nil {
		return batch, fmt.Errorf("marking range %d-%d ingested: %w", r.Start, r.End, err)
	}
	if err := store.RecordBatch(ctx, batch); err != nil {
		return batch, fmt.Errorf("recording batch %s: %w", batchID, err)
	}

	ing.sum.log.Info("ingested batch",
		"batch_id", batchID,
		"start", r.Start,
		"end", r.End,
		"count", batch.IngestedCount)

	return batch, nil
}

func ingestErrKind(err error) error {
	if errors.Is(err, substrate.ErrStorageUnavailable) {
		return substrate.ErrStorageUnavailable
	}
	return substrate.ErrExtraction
}
