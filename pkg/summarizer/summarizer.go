// Package summarizer compresses unprocessed turn ranges into mid-tier
// summaries and drives the graph-ingestion backlog.
//
// Summarize is pure compression and persists nothing; StoreSummary commits
// the result and marks the covered range. The split lets callers inspect a
// summary before it claims its range.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// DefaultLimit caps how many turns one summary covers.
const DefaultLimit = 50

// kindEmphasis steers the compression prompt per summary kind.
var kindEmphasis = map[string]string{
	turnstore.KindWork:      "Focus on tasks, progress, blockers, and decisions about ongoing work.",
	turnstore.KindSocial:    "Focus on people, relationships, emotional tone, and commitments made.",
	turnstore.KindTechnical: "Focus on systems, tools, errors encountered, and technical conclusions.",
}

// Summarizer compresses turn ranges via the LLM caller.
type Summarizer struct {
	store  turnstore.Store
	caller *llm.Caller
	log    *slog.Logger
}

// New creates a Summarizer over the store and caller.
func New(store turnstore.Store, caller *llm.Caller, log *slog.Logger) *Summarizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Summarizer{store: store, caller: caller, log: log}
}

// Summarize compresses the oldest unsummarized turns into one summary.
// Nothing is persisted; call StoreSummary to commit. Returns nil when the
// backlog is empty.
func (s *Summarizer) Summarize(ctx context.Context, limit int, kind string) (*turnstore.Summary, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if _, ok := kindEmphasis[kind]; !ok {
		return nil, fmt.Errorf("unknown summary kind %q", kind)
	}

	turns, err := s.store.Unsummarized(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("loading unsummarized turns: %w", err)
	}
	if len(turns) == 0 {
		return nil, nil
	}

	text, err := s.caller.Complete(ctx, buildPrompt(turns, kind))
	if err != nil {
		return nil, fmt.Errorf("%w: summarization call: %v", substrate.ErrExtraction, err)
	}

	return &turnstore.Summary{
		StartTurnID: turns[0].ID,
		EndTurnID:   turns[len(turns)-1].ID,
		Channels:    channels(turns),
		Kind:        kind,
		Text:        strings.TrimSpace(text),
	}, nil
}

// StoreSummary persists the summary and marks its turn range summarized.
func (s *Summarizer) StoreSummary(ctx context.Context, sum turnstore.Summary) (int64, error) {
	id, err := s.store.AddSummary(ctx, sum)
	if err != nil {
		return 0, fmt.Errorf("persisting summary: %w", err)
	}

	r := turnstore.Range{Start: sum.StartTurnID, End: sum.EndTurnID}
	if err := s.store.MarkSummarized(ctx, r); err != nil {
		return 0, fmt.Errorf("marking range %d-%d summarized: %w", r.Start, r.End, err)
	}

	s.log.Info("stored summary",
		"id", id,
		"kind", sum.Kind,
		"start", sum.StartTurnID,
		"end", sum.EndTurnID)

	return id, nil
}

// BacklogCount is the number of turns not yet covered by a summary.
func (s *Summarizer) BacklogCount(ctx context.Context) (int, error) {
	return s.store.UnsummarizedCount(ctx)
}

// RecentSummaries returns the newest summaries, newest first.
func (s *Summarizer) RecentSummaries(ctx context.Context, limit int) ([]turnstore.Summary, error) {
	return s.store.RecentSummaries(ctx, limit)
}

// SearchSummaries is a best-effort text match over summary bodies.
func (s *Summarizer) SearchSummaries(ctx context.Context, query string, limit int) ([]turnstore.Summary, error) {
	return s.store.SearchSummaries(ctx, query, limit)
}

// Stats reports summary coverage over the ledger.
func (s *Summarizer) Stats(ctx context.Context) (turnstore.SummaryStats, error) {
	return s.store.SummaryStats(ctx)
}

func buildPrompt(turns []turnstore.Turn, kind string) string {
	var b strings.Builder

	b.WriteString("Compress the following conversation turns into a dense summary. ")
	b.WriteString(kindEmphasis[kind])
	b.WriteString(" Preserve names, decisions, and anything needed for continuity. ")
	b.WriteString("Discard greetings, retries, and debugging noise. ")
	b.WriteString("Respond with the summary text only.\n\n")

	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n",
			t.CreatedAt.Format(time.RFC3339), t.Author, t.Channel, t.Content)
	}

	return b.String()
}

func channels(turns []turnstore.Turn) []string {
	var out []string
	for _, t := range turns {
		if !slices.Contains(out, t.Channel) {
			out = append(out, t.Channel)
		}
	}
	slices.Sort(out)
	return out
}
