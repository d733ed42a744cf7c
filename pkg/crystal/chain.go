package crystal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/presencelabs/substrate/pkg/substrate"
)

// DefaultWindow is the size of the current window.
const DefaultWindow = 4

const (
	currentDir = "current"
	archiveDir = "archive"
)

// Chain is the disk-backed crystal chain: markdown files under
// crystals/current and crystals/archive with a sequence prefix.
type Chain struct {
	mu     sync.Mutex
	root   string
	window int
}

// NewChain opens (creating if needed) the chain rooted at dir.
func NewChain(dir string, window int) (*Chain, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	for _, sub := range []string{currentDir, archiveDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating crystal dir %s: %w", sub, err)
		}
	}

	return &Chain{root: dir, window: window}, nil
}

// Window returns the configured current-window size.
func (ch *Chain) Window() int { return ch.window }

// List returns every crystal in the chain, oldest first, archived included.
func (ch *Chain) List() ([]Crystal, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.list()
}

func (ch *Chain) list() ([]Crystal, error) {
	var out []Crystal

	for _, sub := range []string{archiveDir, currentDir} {
		dir := filepath.Join(ch.root, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading crystal dir %s: %w", sub, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}

			raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("reading crystal %s: %w", entry.Name(), err)
			}

			c, err := Parse(string(raw))
			if err != nil {
				return nil, fmt.Errorf("parsing crystal %s: %w", entry.Name(), err)
			}
			c.Archived = sub == archiveDir
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// Current returns the newest n crystals from the current window, oldest
// first. n <= 0 returns the whole window.
func (ch *Chain) Current(n int) ([]Crystal, error) {
	all, err := ch.List()
	if err != nil {
		return nil, err
	}

	var current []Crystal
	for _, c := range all {
		if !c.Archived {
			current = append(current, c)
		}
	}

	if n > 0 && len(current) > n {
		current = current[len(current)-n:]
	}
	return current, nil
}

// NextSequence returns the sequence number the next crystal will take.
func (ch *Chain) NextSequence() (int, error) {
	all, err := ch.List()
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 1, nil
	}
	return all[len(all)-1].Sequence + 1, nil
}

// Append writes a new crystal into the current window and archive-rotates
// the oldest current crystal when the window overflows. The new file is
// written before any rotation so a rotation failure never loses the crystal.
func (ch *Chain) Append(c Crystal) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	path := filepath.Join(ch.root, currentDir, c.Filename())
	if err := os.WriteFile(path, []byte(c.Render()), 0o644); err != nil {
		return fmt.Errorf("writing crystal %d: %w", c.Sequence, err)
	}

	return ch.rotate()
}

// rotate moves the oldest current crystals to the archive until the window
// fits. Callers hold ch.mu.
func (ch *Chain) rotate() error {
	all, err := ch.list()
	if err != nil {
		return err
	}

	var current []Crystal
	for _, c := range all {
		if !c.Archived {
			current = append(current, c)
		}
	}

	for len(current) > ch.window {
		oldest := current[0]
		from := filepath.Join(ch.root, currentDir, oldest.Filename())
		to := filepath.Join(ch.root, archiveDir, oldest.Filename())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("archiving crystal %d: %w", oldest.Sequence, err)
		}
		current = current[1:]
	}

	return nil
}

// DeleteLatest removes the newest crystal in the chain. Any other target is
// a chain-integrity violation: later crystals reference earlier ones as
// prior context.
func (ch *Chain) DeleteLatest(sequence int) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	all, err := ch.list()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return fmt.Errorf("%w: chain is empty", substrate.ErrChainIntegrity)
	}

	latest := all[len(all)-1]
	if sequence != latest.Sequence {
		return fmt.Errorf("%w: crystal %d is not the newest (%d is)",
			substrate.ErrChainIntegrity, sequence, latest.Sequence)
	}
	if latest.Archived {
		return fmt.Errorf("%w: crystal %d is archived", substrate.ErrChainIntegrity, sequence)
	}

	return os.Remove(filepath.Join(ch.root, currentDir, latest.Filename()))
}

// Latest returns the newest crystal, or nil when the chain is empty.
func (ch *Chain) Latest() (*Crystal, error) {
	all, err := ch.List()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[len(all)-1], nil
}
