package scheduler

import (
	"context"

	"github.com/presencelabs/substrate/pkg/crystal"
	"github.com/presencelabs/substrate/pkg/curator"
	"github.com/presencelabs/substrate/pkg/summarizer"
)

// CrystallizeJob runs the crystallization engine when its trigger fires.
type CrystallizeJob struct {
	Engine *crystal.Engine
}

func (j *CrystallizeJob) Name() string { return "crystallize" }

func (j *CrystallizeJob) ShouldRun(ctx context.Context, _ Event) (bool, error) {
	return j.Engine.ShouldCrystallize(ctx)
}

func (j *CrystallizeJob) Run(ctx context.Context) error {
	_, err := j.Engine.Create(ctx)
	return err
}

// IngestJob pushes a graph-ingestion batch when the backlog is large enough.
type IngestJob struct {
	Ingestor  *summarizer.Ingestor
	BatchSize int
}

func (j *IngestJob) Name() string { return "graph-ingest" }

func (j *IngestJob) ShouldRun(ctx context.Context, _ Event) (bool, error) {
	stats, err := j.Ingestor.Stats(ctx)
	if err != nil {
		return false, err
	}
	return stats.Recommended, nil
}

func (j *IngestJob) Run(ctx context.Context) error {
	_, err := j.Ingestor.IngestBatch(ctx, j.BatchSize)
	return err
}

// CurateJob runs a graph curation pass on ticks only; curation is
// best-effort background work with no urgency.
type CurateJob struct {
	Curator *curator.Curator
}

func (j *CurateJob) Name() string { return "curate" }

func (j *CurateJob) ShouldRun(_ context.Context, e Event) (bool, error) {
	return e.Type == Tick, nil
}

func (j *CurateJob) Run(ctx context.Context) error {
	_, err := j.Curator.Run(ctx)
	return err
}

var (
	_ Job = (*CrystallizeJob)(nil)
	_ Job = (*IngestJob)(nil)
	_ Job = (*CurateJob)(nil)
)
