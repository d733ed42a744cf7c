package recall

import (
	"context"
	"fmt"
	"strings"

	"github.com/presencelabs/substrate/pkg/anchors"
	"github.com/presencelabs/substrate/pkg/crystal"
	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/utils"
)

// Layer names, also the Source tag on results.
const (
	LayerAnchors   = "anchors"
	LayerGraph     = "graph"
	LayerCrystals  = "crystals"
	LayerSummaries = "summaries"
)

// AnchorLayer recalls from the anchor index.
type AnchorLayer struct {
	Index *anchors.Index
}

func (l *AnchorLayer) Name() string { return LayerAnchors }

func (l *AnchorLayer) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	hits, err := l.Index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, h := range hits {
		out = append(out, Result{
			Source:  LayerAnchors,
			Title:   h.Title,
			Content: utils.Truncate(h.Content, 500),
			Score:   h.Score,
		})
	}
	return out, nil
}

// Health delegates to the index's own parity and reachability report.
func (l *AnchorLayer) Health(ctx context.Context) substrate.ComponentHealth {
	return l.Index.Health(ctx)
}

// GraphLayer recalls facts from the knowledge graph.
type GraphLayer struct {
	Adapter   graph.Adapter
	Namespace string
}

func (l *GraphLayer) Name() string { return LayerGraph }

func (l *GraphLayer) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	facts, err := l.Adapter.Search(ctx, query, l.Namespace, limit)
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, f := range facts {
		content := f.FactText
		if content == "" {
			content = fmt.Sprintf("%s %s %s", f.SourceEntity, f.Predicate, f.TargetEntity)
		}
		out = append(out, Result{Source: LayerGraph, Content: content})
	}
	return out, nil
}

func (l *GraphLayer) Health(ctx context.Context) substrate.ComponentHealth {
	h := substrate.ComponentHealth{Component: LayerGraph, Status: substrate.StatusHealthy}
	if err := l.Adapter.Ping(ctx); err != nil {
		h.Status = substrate.StatusDegraded
		h.Detail = err.Error()
	}
	return h
}

// CrystalLayer recalls from the current crystal window. Crystals are few and
// dense, so matching is a simple substring scan over the window.
type CrystalLayer struct {
	Engine *crystal.Engine
}

func (l *CrystalLayer) Name() string { return LayerCrystals }

func (l *CrystalLayer) Search(_ context.Context, query string, limit int) ([]Result, error) {
	current, err := l.Engine.Current(0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)

	var out []Result
	for i := len(current) - 1; i >= 0 && len(out) < limit; i-- {
		c := current[i]
		if needle != "" && !strings.Contains(strings.ToLower(c.Content), needle) {
			continue
		}
		out = append(out, Result{
			Source:  LayerCrystals,
			Title:   fmt.Sprintf("Crystal %d", c.Sequence),
			Content: utils.Truncate(c.Content, 800),
		})
	}
	return out, nil
}

func (l *CrystalLayer) Health(context.Context) substrate.ComponentHealth {
	h := substrate.ComponentHealth{Component: LayerCrystals, Status: substrate.StatusHealthy}

	current, err := l.Engine.Current(0)
	if err != nil {
		h.Status = substrate.StatusCritical
		h.Detail = err.Error()
		return h
	}
	h.Counts = map[string]int{"current": len(current)}
	return h
}

// SummaryLayer recalls from stored mid-tier summaries.
type SummaryLayer struct {
	Summarizer *summarizer.Summarizer
}

func (l *SummaryLayer) Name() string { return LayerSummaries }

func (l *SummaryLayer) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	sums, err := l.Summarizer.SearchSummaries(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, s := range sums {
		out = append(out, Result{
			Source:  LayerSummaries,
			Title:   fmt.Sprintf("%s summary, turns %d-%d", s.Kind, s.StartTurnID, s.EndTurnID),
			Content: utils.Truncate(s.Text, 500),
		})
	}
	return out, nil
}

var (
	_ Layer = (*AnchorLayer)(nil)
	_ Layer = (*GraphLayer)(nil)
	_ Layer = (*CrystalLayer)(nil)
	_ Layer = (*SummaryLayer)(nil)
)
