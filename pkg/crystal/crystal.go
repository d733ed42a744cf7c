// Package crystal maintains the rolling chain of dense period summaries.
//
// A crystal compresses recent turns into a fixed markdown template. Crystals
// form an ordered chain: a fixed-size current window plus an unbounded
// archive. Later crystals reference earlier ones as prior context, so only
// the newest crystal may ever be deleted.
package crystal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/presencelabs/substrate/pkg/utils"
)

// Section headers every crystal carries, in order.
var SectionHeaders = []string{
	"## Field state",
	"## Key events",
	"## Decisions",
	"## Internal arc",
	"## Continuity seeds",
}

// Crystal is one compressed period of activity in the chain.
type Crystal struct {
	Sequence      int       `json:"sequence"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	StartTurnID   int64     `json:"start_turn_id"`
	EndTurnID     int64     `json:"end_turn_id"`
	TokenEstimate int       `json:"token_estimate"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	Archived      bool      `json:"archived"`
}

// Filename is the on-disk name for this crystal, sequence-prefixed so
// lexical order matches chain order.
func (c Crystal) Filename() string {
	return fmt.Sprintf("%04d-crystal.md", c.Sequence)
}

// Render produces the persisted markdown form: a metadata header followed by
// the sectioned content.
func (c Crystal) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Crystal %d\n\n", c.Sequence)
	fmt.Fprintf(&b, "- span: %s .. %s\n", c.Start.UTC().Format(time.RFC3339), c.End.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- turns: %d-%d\n", c.StartTurnID, c.EndTurnID)
	fmt.Fprintf(&b, "- tokens: %d\n", c.TokenEstimate)
	fmt.Fprintf(&b, "- created: %s\n\n", c.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString(strings.TrimSpace(c.Content))
	b.WriteString("\n")

	return b.String()
}

// Parse reads a rendered crystal back. It tolerates hand-edited content as
// long as the metadata header survives.
func Parse(raw string) (Crystal, error) {
	var c Crystal

	lines := strings.Split(raw, "\n")
	bodyStart := 0

	for i, line := range lines {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "# Crystal "):
			seq, err := strconv.Atoi(strings.TrimPrefix(line, "# Crystal "))
			if err != nil {
				return c, fmt.Errorf("parsing crystal sequence: %w", err)
			}
			c.Sequence = seq

		case strings.HasPrefix(line, "- span: "):
			parts := strings.SplitN(strings.TrimPrefix(line, "- span: "), " .. ", 2)
			if len(parts) != 2 {
				return c, fmt.Errorf("malformed span line: %q", line)
			}
			start, err := time.Parse(time.RFC3339, parts[0])
			if err != nil {
				return c, fmt.Errorf("parsing span start: %w", err)
			}
			end, err := time.Parse(time.RFC3339, parts[1])
			if err != nil {
				return c, fmt.Errorf("parsing span end: %w", err)
			}
			c.Start, c.End = start, end

		case strings.HasPrefix(line, "- turns: "):
			parts := strings.SplitN(strings.TrimPrefix(line, "- turns: "), "-", 2)
			if len(parts) != 2 {
				return c, fmt.Errorf("malformed turns line: %q", line)
			}
			startID, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				return c, fmt.Errorf("parsing turn range start: %w", err)
			}
			endID, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return c, fmt.Errorf("parsing turn range end: %w", err)
			}
			c.StartTurnID, c.EndTurnID = startID, endID

		case strings.HasPrefix(line, "- tokens: "):
			tokens, err := strconv.Atoi(strings.TrimPrefix(line, "- tokens: "))
			if err != nil {
				return c, fmt.Errorf("parsing token estimate: %w", err)
			}
			c.TokenEstimate = tokens

		case strings.HasPrefix(line, "- created: "):
			created, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "- created: "))
			if err != nil {
				return c, fmt.Errorf("parsing created timestamp: %w", err)
			}
			c.CreatedAt = created

		case strings.HasPrefix(line, "## "):
			bodyStart = i
		}

		if bodyStart > 0 {
			break
		}
	}

	if bodyStart == 0 {
		return c, fmt.Errorf("crystal has no content sections")
	}

	c.Content = strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	return c, nil
}

// Normalize ensures every fixed section header is present, appending empty
// sections for any the model omitted, and refreshes the token estimate.
func (c *Crystal) Normalize() {
	for _, header := range SectionHeaders {
		if !strings.Contains(c.Content, header) {
			c.Content = strings.TrimSpace(c.Content) + "\n\n" + header + "\n"
		}
	}
	c.TokenEstimate = utils.EstimateTokens(c.Content)
}
