// Package eventstream publishes substrate lifecycle events for external
// consumers: other front-ends, dashboards, and offline processors.
package eventstream

import (
	"context"
	"time"
)

// Event types.
const (
	TypeTurnAppended     = "turn_appended"
	TypeSummaryStored    = "summary_stored"
	TypeCrystalCreated   = "crystal_created"
	TypeBatchIngested    = "batch_ingested"
	TypeAnchorSaved      = "anchor_saved"
	TypeResyncCompleted  = "resync_completed"
	TypeCurationFinished = "curation_finished"
)

// Event is one substrate lifecycle notification.
type Event struct {
	Type      string         `json:"type"`
	At        time.Time      `json:"at"`
	Channel   string         `json:"channel,omitempty"`
	TurnID    int64          `json:"turn_id,omitempty"`
	Sequence  int            `json:"sequence,omitempty"`
	BatchID   string         `json:"batch_id,omitempty"`
	Filename  string         `json:"filename,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// Publisher emits events. Publishing is best-effort: the substrate's own
// operations never fail because an event could not be delivered.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

var _ Publisher = Nop{}
