// Package inmemory provides an in-process turn store for tests and local
// development. It mirrors the sqlite driver's semantics without persistence.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/presencelabs/substrate/pkg/turnstore"
)

type lockEntry struct {
	owner     string
	expiresAt time.Time
}

// Store implements turnstore.Store with in-process data structures.
type Store struct {
	mu sync.RWMutex

	turns     []turnstore.Turn
	summaries []turnstore.Summary
	batches   map[string]turnstore.Batch
	locks     map[string]lockEntry

	nextTurnID    int64
	nextSummaryID int64

	// Now is swappable in tests for lock expiry and timestamps.
	Now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		batches: make(map[string]turnstore.Batch),
		locks:   make(map[string]lockEntry),
		Now:     time.Now,
	}
}

func (s *Store) Append(_ context.Context, t turnstore.Turn) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTurnID++
	t.ID = s.nextTurnID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.Now().UTC()
	}
	s.turns = append(s.turns, t)

	return t.ID, nil
}

func (s *Store) Query(_ context.Context, f turnstore.Filter) ([]turnstore.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []turnstore.Turn
	for _, t := range s.turns {
		if f.Channel != "" && t.Channel != f.Channel {
			continue
		}
		if f.Author != "" && t.Author != f.Author {
			continue
		}
		if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && t.CreatedAt.After(f.Until) {
			continue
		}
		if f.Contains != "" && !strings.Contains(t.Content, f.Contains) {
			continue
		}
		if f.AfterID > 0 && t.ID <= f.AfterID {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) LatestID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextTurnID, nil
}

func (s *Store) MarkSummarized(_ context.Context, r turnstore.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.turns {
		if s.turns[i].ID >= r.Start && s.turns[i].ID <= r.End {
			s.turns[i].Summarized = true
		}
	}
	return nil
}

func (s *Store) MarkGraphIngested(_ context.Context, r turnstore.Range, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.turns {
		t := &s.turns[i]
		if t.ID >= r.Start && t.ID <= r.End && !t.IngestedToGraph {
			id := batchID
			t.IngestedToGraph = true
			t.IngestionBatchID = &id
		}
	}
	return nil
}

func (s *Store) Unsummarized(_ context.Context, limit int) ([]turnstore.Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []turnstore.Turn
	for _, t := range s.turns {
		if t.Summarized {
			continue
		}
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UnsummarizedCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.turns {
		if !t.Summarized {
			n++
		}
	}
	return n, nil
}

func (s *Store) OldestUningested(_ context.Context, limit int) ([]turnstore.Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []turnstore.Turn
	for _, t := range s.turns {
		if t.IngestedToGraph {
			continue
		}
		if len(out) > 0 && t.ID != out[len(out)-1].ID+1 {
			break
		}
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UningestedCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.turns {
		if !t.IngestedToGraph {
			n++
		}
	}
	return n, nil
}

func (s *Store) AddSummary(_ context.Context, sum turnstore.Summary) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSummaryID++
	sum.ID = s.nextSummaryID
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = s.Now().UTC()
	}
	s.summaries = append(s.summaries, sum)

	return sum.ID, nil
}

func (s *Store) RecentSummaries(_ context.Context, limit int) ([]turnstore.Summary, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]turnstore.Summary, len(s.summaries))
	copy(out, s.summaries)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SearchSummaries(_ context.Context, query string, limit int) ([]turnstore.Summary, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []turnstore.Summary
	for i := len(s.summaries) - 1; i >= 0; i-- {
		if strings.Contains(s.summaries[i].Text, query) {
			out = append(out, s.summaries[i])
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) SummaryStats(_ context.Context) (turnstore.SummaryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := turnstore.SummaryStats{ByKind: make(map[string]int)}
	for _, sum := range s.summaries {
		stats.ByKind[sum.Kind]++
		stats.Total++
		if sum.CreatedAt.After(stats.LastCreatedAt) {
			stats.LastCreatedAt = sum.CreatedAt
		}
	}
	for _, t := range s.turns {
		if !t.Summarized {
			stats.Backlog++
		}
	}
	return stats, nil
}

func (s *Store) RecordBatch(_ context.Context, b turnstore.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[b.BatchID]; !exists {
		s.batches[b.BatchID] = b
	}
	return nil
}

func (s *Store) BatchCompleted(_ context.Context, batchID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.batches[batchID]
	return ok, nil
}

func (s *Store) AcquireLock(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	entry, held := s.locks[name]
	if held && entry.expiresAt.After(now) && entry.owner != owner {
		return false, nil
	}

	s.locks[name] = lockEntry{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *Store) ReleaseLock(_ context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, held := s.locks[name]; held && entry.owner == owner {
		delete(s.locks, name)
	}
	return nil
}

func (s *Store) IntegrityCheck(context.Context) error { return nil }

func (s *Store) Backup(context.Context, string) error { return nil }

func (s *Store) Close() error { return nil }

// Ensure Store implements turnstore.Store.
var _ turnstore.Store = (*Store)(nil)
