// Package inmemory provides an in-process graph.Adapter for tests and local
// development. Episodes are stored verbatim; no extraction runs.
package inmemory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/presencelabs/substrate/pkg/graph"
)

// Adapter implements graph.Adapter with in-process data structures.
type Adapter struct {
	mu sync.RWMutex

	facts    []graph.Fact
	entities map[string]graph.Entity // keyed by namespace + "/" + name
	episodes []graph.Episode

	// Now is swappable in tests.
	Now func() time.Time
}

// New creates an empty in-memory graph adapter.
func New() *Adapter {
	return &Adapter{
		entities: make(map[string]graph.Entity),
		Now:      time.Now,
	}
}

// AddEpisode stores the episode body without extraction and returns a short
// acknowledgment summary.
func (a *Adapter) AddEpisode(_ context.Context, req graph.EpisodeRequest) (string, error) {
	if req.Namespace == "" {
		return "", graph.ErrNamespaceRequired
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.episodes = append(a.episodes, graph.Episode{
		UUID:          uuid.NewString(),
		Body:          req.Text,
		Namespace:     req.Namespace,
		ReferenceTime: req.ReferenceTime,
		CreatedAt:     a.Now().UTC(),
	})

	return "episode stored", nil
}

// AddTriplet asserts an edge and registers both endpoint entities.
func (a *Adapter) AddTriplet(_ context.Context, t graph.Triplet) error {
	if t.Namespace == "" {
		return graph.ErrNamespaceRequired
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.Now().UTC()
	a.facts = append(a.facts, graph.Fact{
		UUID:         uuid.NewString(),
		SourceEntity: t.SourceEntity,
		Predicate:    t.Predicate,
		TargetEntity: t.TargetEntity,
		FactText:     t.FactText,
		Namespace:    t.Namespace,
		ValidAt:      &now,
	})

	a.register(t.Namespace, t.SourceEntity, t.SourceType)
	a.register(t.Namespace, t.TargetEntity, t.TargetType)

	return nil
}

func (a *Adapter) register(namespace, name string, typ graph.EntityType) {
	key := namespace + "/" + name
	if _, ok := a.entities[key]; ok {
		return
	}
	if typ == "" {
		typ = graph.EntityConcept
	}
	a.entities[key] = graph.Entity{
		UUID:      uuid.NewString(),
		Name:      name,
		Type:      typ,
		Namespace: namespace,
	}
}

// Search matches facts by substring, newest first, scoped to the namespace.
func (a *Adapter) Search(_ context.Context, query, namespace string, limit int) ([]graph.Fact, error) {
	if namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}
	if limit <= 0 {
		limit = 10
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	needle := strings.ToLower(query)

	var out []graph.Fact
	for i := len(a.facts) - 1; i >= 0; i-- {
		f := a.facts[i]
		if f.Namespace != namespace {
			continue
		}
		haystack := strings.ToLower(f.SourceEntity + " " + f.Predicate + " " + f.TargetEntity + " " + f.FactText)
		if needle != "" && !strings.Contains(haystack, needle) {
			continue
		}
		out = append(out, f)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Explore walks edges outward from the named entity up to depth hops.
func (a *Adapter) Explore(_ context.Context, entity string, depth int, namespace string) (*graph.Subgraph, error) {
	if namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}
	if depth <= 0 {
		depth = 1
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	sub := &graph.Subgraph{Root: entity}
	frontier := map[string]bool{entity: true}
	visited := map[string]bool{}
	seenFacts := map[string]bool{}

	for range depth {
		next := map[string]bool{}
		for _, f := range a.facts {
			if f.Namespace != namespace {
				continue
			}
			if !frontier[f.SourceEntity] && !frontier[f.TargetEntity] {
				continue
			}
			if !seenFacts[f.UUID] {
				seenFacts[f.UUID] = true
				sub.Facts = append(sub.Facts, f)
			}
			next[f.SourceEntity] = true
			next[f.TargetEntity] = true
		}

		for name := range frontier {
			visited[name] = true
		}
		for name := range visited {
			delete(next, name)
		}
		frontier = next
	}

	for name := range visited {
		if e, ok := a.entities[namespace+"/"+name]; ok {
			sub.Entities = append(sub.Entities, e)
		}
	}
	for name := range frontier {
		if e, ok := a.entities[namespace+"/"+name]; ok {
			sub.Entities = append(sub.Entities, e)
		}
	}

	return sub, nil
}

// Timeline returns episodes in the window, oldest first.
func (a *Adapter) Timeline(_ context.Context, since, until time.Time, namespace string) ([]graph.Episode, error) {
	if namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []graph.Episode
	for _, e := range a.episodes {
		if e.Namespace != namespace {
			continue
		}
		if !since.IsZero() && e.ReferenceTime.Before(since) {
			continue
		}
		if !until.IsZero() && e.ReferenceTime.After(until) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Delete removes one fact by uuid. Deleting an absent fact is an error so the
// curator can observe races with other curator runs.
func (a *Adapter) Delete(_ context.Context, factUUID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, f := range a.facts {
		if f.UUID == factUUID {
			a.facts = append(a.facts[:i], a.facts[i+1:]...)
			return nil
		}
	}
	return graph.ErrFactNotFound
}

// Ping always succeeds for the in-memory adapter.
func (a *Adapter) Ping(context.Context) error { return nil }

// Close releases adapter resources.
func (a *Adapter) Close() error { return nil }

// Ensure Adapter implements graph.Adapter.
var _ graph.Adapter = (*Adapter)(nil)
