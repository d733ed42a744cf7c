// Package recall aggregates ambient memory across every layer of the
// substrate: anchors, graph facts, crystals, and summaries.
//
// One degraded layer never fails the whole query. Each layer reports its own
// health so a caller can distinguish "whole substrate down" from "one layer
// degraded".
package recall

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/substrate"
)

// Result is one recalled item, tagged with the layer it came from.
type Result struct {
	Source  string  `json:"source"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float32 `json:"score,omitempty"`
}

// Layer is one searchable memory tier.
type Layer interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Output is one aggregated recall: merged results, per-layer health, and a
// formatted rendering.
type Output struct {
	Results []Result                    `json:"results"`
	Layers  []substrate.ComponentHealth `json:"layers"`
	Text    string                      `json:"text"`
}

// DefaultLimitPerLayer caps each layer's contribution.
const DefaultLimitPerLayer = 5

// Aggregator fans a query out across a fixed set of layers.
type Aggregator struct {
	layers []Layer
	log    *slog.Logger
}

// New creates an Aggregator over the given layers. Layer order is the merge
// order of the output.
func New(log *slog.Logger, layers ...Layer) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{layers: layers, log: log}
}

// Recall queries every layer concurrently and merges the results. A layer
// that errors is marked degraded and contributes nothing; the query itself
// only fails when it has no layers to ask.
func (a *Aggregator) Recall(ctx context.Context, query string, limitPerLayer int) (*Output, error) {
	if len(a.layers) == 0 {
		return nil, fmt.Errorf("no recall layers configured")
	}
	if limitPerLayer <= 0 {
		limitPerLayer = DefaultLimitPerLayer
	}

	type layerOutput struct {
		results []Result
		health  substrate.ComponentHealth
	}

	outputs := make([]layerOutput, len(a.layers))

	var wg sync.WaitGroup
	for i, layer := range a.layers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			results, err := layer.Search(ctx, query, limitPerLayer)
			health := substrate.ComponentHealth{
				Component: layer.Name(),
				Status:    substrate.StatusHealthy,
				Counts:    map[string]int{"results": len(results)},
			}
			if err != nil {
				health.Status = substrate.StatusDegraded
				health.Detail = err.Error()
				health.Counts["results"] = 0
				results = nil
				a.log.Warn("recall layer degraded", "layer", layer.Name(), "error", err)
			}

			outputs[i] = layerOutput{results: results, health: health}
		}()
	}
	wg.Wait()

	out := &Output{}
	for _, lo := range outputs {
		out.Results = append(out.Results, lo.results...)
		out.Layers = append(out.Layers, lo.health)
	}
	out.Text = Format(out)

	return out, nil
}

// Format renders an aggregated recall as markdown grouped by source layer,
// with a trailing health line for any degraded layer.
func Format(out *Output) string {
	var b strings.Builder

	bySource := map[string][]Result{}
	for _, r := range out.Results {
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	for _, layer := range out.Layers {
		results := bySource[layer.Component]
		if len(results) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", layer.Component)
		for _, r := range results {
			if r.Title != "" {
				fmt.Fprintf(&b, "- **%s**: %s\n", r.Title, strings.TrimSpace(r.Content))
			} else {
				fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(r.Content))
			}
		}
		b.WriteString("\n")
	}

	var degraded []string
	for _, layer := range out.Layers {
		if layer.Status != substrate.StatusHealthy {
			degraded = append(degraded, layer.Component)
		}
	}
	if len(degraded) > 0 {
		fmt.Fprintf(&b, "_degraded layers: %s_\n", strings.Join(degraded, ", "))
	}

	return strings.TrimSpace(b.String())
}

// Health rolls up the health of every layer that reports its own.
func (a *Aggregator) Health(ctx context.Context) substrate.HealthReport {
	var checkers []substrate.Checker
	for _, layer := range a.layers {
		if c, ok := layer.(substrate.Checker); ok {
			checkers = append(checkers, c)
		}
	}
	return substrate.Collect(ctx, checkers...)
}
