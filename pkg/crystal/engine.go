package crystal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// Trigger thresholds. Either alone is sufficient.
const (
	TriggerTurns = 50
	TriggerHours = 24
)

// crystallizeLockTTL bounds how long one crystallization may hold the
// cooperative lock before another owner may steal it.
const crystallizeLockTTL = 10 * time.Minute

// maxPromptTurns caps how many turns feed one crystal.
const maxPromptTurns = 200

const promptPreamble = `Compress the following conversation turns and summaries into one dense
crystal of memory, targeting roughly 6:1 compression. Preserve emotional
texture, decisions made, and anything needed for continuity. Discard
debugging noise and repeated attempts. Respond in markdown using exactly
these section headers:

## Field state
## Key events
## Decisions
## Internal arc
## Continuity seeds
`

// Engine evaluates the crystallization trigger and produces crystals.
type Engine struct {
	store  turnstore.Store
	chain  *Chain
	caller *llm.Caller
	owner  string
	log    *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewEngine creates an Engine. The owner string identifies this process for
// the cooperative lock; empty means a random one.
func NewEngine(store turnstore.Store, chain *Chain, caller *llm.Caller, owner string, log *slog.Logger) *Engine {
	if owner == "" {
		owner = uuid.NewString()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{store: store, chain: chain, caller: caller, owner: owner, log: log, now: time.Now}
}

// ShouldCrystallize evaluates the trigger: at least TriggerTurns turns or
// TriggerHours hours since the last crystal.
func (e *Engine) ShouldCrystallize(ctx context.Context) (bool, error) {
	latest, err := e.chain.Latest()
	if err != nil {
		return false, err
	}

	latestID, err := e.store.LatestID(ctx)
	if err != nil {
		return false, fmt.Errorf("reading latest turn id: %w", err)
	}

	if latest == nil {
		return latestID >= TriggerTurns, nil
	}

	turnsSince := latestID - latest.EndTurnID
	hoursSince := e.now().Sub(latest.CreatedAt).Hours()

	return turnsSince >= TriggerTurns || hoursSince >= TriggerHours, nil
}

// Maybe crystallizes if the trigger fires, returning nil without error when
// it doesn't.
func (e *Engine) Maybe(ctx context.Context) (*Crystal, error) {
	fire, err := e.ShouldCrystallize(ctx)
	if err != nil {
		return nil, err
	}
	if !fire {
		return nil, nil
	}
	return e.Create(ctx)
}

// Create produces one crystal from the turns since the last crystal,
// bypassing the trigger. The operation is all-or-nothing: an LLM failure
// leaves the chain untouched.
func (e *Engine) Create(ctx context.Context) (*Crystal, error) {
	ok, err := e.store.AcquireLock(ctx, turnstore.LockCrystallize, e.owner, crystallizeLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring crystallize lock: %w", err)
	}
	if !ok {
		return nil, turnstore.ErrLockHeld
	}
	defer func() {
		if err := e.store.ReleaseLock(ctx, turnstore.LockCrystallize, e.owner); err != nil {
			e.log.Warn("releasing crystallize lock", "error", err)
		}
	}()

	latest, err := e.chain.Latest()
	if err != nil {
		return nil, err
	}

	var afterID int64
	if latest != nil {
		afterID = latest.EndTurnID
	}

	turns, err := e.store.Query(ctx, turnstore.Filter{AfterID: afterID, Limit: maxPromptTurns})
	if err != nil {
		return nil, fmt.Errorf("loading turns for crystal: %w", err)
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: no turns to crystallize", substrate.ErrExtraction)
	}

	summaries, err := e.store.RecentSummaries(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("loading summaries for crystal: %w", err)
	}

	content, err := e.caller.Complete(ctx, buildPrompt(turns, summaries, latest))
	if err != nil {
		return nil, fmt.Errorf("%w: crystallization call: %v", substrate.ErrExtraction, err)
	}

	seq, err := e.chain.NextSequence()
	if err != nil {
		return nil, err
	}

	c := Crystal{
		Sequence:    seq,
		Start:       turns[0].CreatedAt,
		End:         turns[len(turns)-1].CreatedAt,
		StartTurnID: turns[0].ID,
		EndTurnID:   turns[len(turns)-1].ID,
		Content:     strings.TrimSpace(content),
		CreatedAt:   e.now().UTC(),
	}
	c.Normalize()

	if err := e.chain.Append(c); err != nil {
		return nil, err
	}

	e.log.Info("created crystal",
		"sequence", c.Sequence,
		"start_turn", c.StartTurnID,
		"end_turn", c.EndTurnID,
		"tokens", c.TokenEstimate)

	return &c, nil
}

// Delete removes a crystal by sequence. Only the newest crystal is a valid
// target.
func (e *Engine) Delete(ctx context.Context, sequence int) error {
	_ = ctx
	return e.chain.DeleteLatest(sequence)
}

// List returns the whole chain, oldest first.
func (e *Engine) List() ([]Crystal, error) { return e.chain.List() }

// Current returns the newest n crystals from the current window.
func (e *Engine) Current(n int) ([]Crystal, error) { return e.chain.Current(n) }

func buildPrompt(turns []turnstore.Turn, summaries []turnstore.Summary, prior *Crystal) string {
	var b strings.Builder

	b.WriteString(promptPreamble)

	if prior != nil {
		b.WriteString("\nPrior crystal for continuity (do not repeat it, build on it):\n\n")
		b.WriteString(prior.Content)
		b.WriteString("\n")
	}

	if len(summaries) > 0 {
		b.WriteString("\nRecent mid-tier summaries:\n\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "- [%s] %s\n", s.Kind, s.Text)
		}
	}

	b.WriteString("\nTurns:\n\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n",
			t.CreatedAt.Format(time.RFC3339), t.Author, t.Channel, t.Content)
	}

	return b.String()
}
