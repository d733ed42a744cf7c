// Package curator samples the knowledge graph and removes low-value facts:
// exact duplicates and edges attached to vague entities. The policy is
// conservative, only those two rules delete; everything else is reported.
package curator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/logger"
)

// DefaultSampleQueries is the fixed set of diverse probes used to sample the
// graph. Breadth matters more than precision here.
var DefaultSampleQueries = []string{
	"",
	"is",
	"has",
	"was",
	"uses",
	"knows",
	"wants",
	"said",
	"made",
	"went",
}

// DefaultSampleLimit is how many facts each probe may return.
const DefaultSampleLimit = 50

// stoplist holds tokens too vague to anchor a fact: articles, pronouns, and
// demonstratives. Single-character names are caught separately.
var stoplist = map[string]bool{
	"a": true, "an": true, "the": true,
	"it": true, "he": true, "she": true, "they": true,
	"him": true, "her": true, "them": true,
	"i": true, "we": true, "you": true, "me": true, "us": true,
	"this": true, "that": true, "these": true, "those": true,
	"something": true, "someone": true, "thing": true, "stuff": true,
}

// Candidate is one fact flagged for deletion and the rule that flagged it.
type Candidate struct {
	Fact   graph.Fact
	Reason string
}

const (
	ReasonDuplicate   = "duplicate"
	ReasonVagueEntity = "vague-entity"
)

// Report summarizes one curation pass.
type Report struct {
	Sampled    int
	Candidates []Candidate
	Deleted    int
	Failed     int
	DryRun     bool
}

// Options configures a Curator.
type Options struct {
	// Namespace scopes every sample and deletion. Required.
	Namespace string

	// Queries overrides DefaultSampleQueries.
	Queries []string

	// SampleLimit overrides DefaultSampleLimit.
	SampleLimit int

	Logger *slog.Logger
}

// Curator runs best-effort cleanup passes against a graph adapter.
type Curator struct {
	adapter graph.Adapter
	opts    Options
	log     *slog.Logger
}

// New creates a Curator over the adapter.
func New(adapter graph.Adapter, opts Options) (*Curator, error) {
	if opts.Namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}
	if len(opts.Queries) == 0 {
		opts.Queries = DefaultSampleQueries
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultSampleLimit
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Curator{adapter: adapter, opts: opts, log: log}, nil
}

// Plan samples the graph and reports candidates without deleting anything.
func (c *Curator) Plan(ctx context.Context) (Report, error) {
	report, err := c.analyze(ctx)
	report.DryRun = true
	return report, err
}

// Run samples the graph, then attempts each candidate deletion
// independently. A failed deletion is logged and skipped; another curator run
// may have raced us to it.
func (c *Curator) Run(ctx context.Context) (Report, error) {
	report, err := c.analyze(ctx)
	if err != nil {
		return report, err
	}

	for _, cand := range report.Candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := c.adapter.Delete(ctx, cand.Fact.UUID); err != nil {
			report.Failed++
			c.log.Warn("curator delete failed",
				"uuid", cand.Fact.UUID,
				"reason", cand.Reason,
				"error", err)
			continue
		}

		report.Deleted++
		c.log.Info("curator deleted fact",
			"uuid", cand.Fact.UUID,
			"reason", cand.Reason,
			"fact", cand.Fact.FactText)
	}

	return report, nil
}

// analyze samples with the fixed probe set and computes candidates.
func (c *Curator) analyze(ctx context.Context) (Report, error) {
	var report Report

	// Collect a deduplicated sample across all probes, preserving first-seen
	// order so the oldest occurrence of each signature survives.
	seen := map[string]bool{}
	var sample []graph.Fact

	for _, query := range c.opts.Queries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		facts, err := c.adapter.Search(ctx, query, c.opts.Namespace, c.opts.SampleLimit)
		if err != nil {
			return report, fmt.Errorf("sampling graph with query %q: %w", query, err)
		}
		for _, f := range facts {
			if seen[f.UUID] {
				continue
			}
			seen[f.UUID] = true
			sample = append(sample, f)
		}
	}

	report.Sampled = len(sample)

	bySignature := map[string]int{}
	for _, f := range sample {
		sig := signature(f)

		switch {
		case vague(f.SourceEntity) || vague(f.TargetEntity):
			report.Candidates = append(report.Candidates, Candidate{Fact: f, Reason: ReasonVagueEntity})
		case bySignature[sig] > 0:
			report.Candidates = append(report.Candidates, Candidate{Fact: f, Reason: ReasonDuplicate})
		}

		bySignature[sig]++
	}

	return report, nil
}

// signature is the dedup key for a fact. Two facts with the same signature
// assert the same edge.
func signature(f graph.Fact) string {
	return normalize(f.SourceEntity) + "\x00" + strings.ToLower(strings.TrimSpace(f.Predicate)) + "\x00" + normalize(f.TargetEntity)
}

func normalize(entity string) string {
	return strings.Join(strings.Fields(strings.ToLower(entity)), " ")
}

func vague(entity string) bool {
	norm := normalize(entity)
	if len(norm) <= 1 {
		return true
	}
	return stoplist[norm]
}
