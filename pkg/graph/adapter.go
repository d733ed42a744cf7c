// Package graph defines the typed interface to the knowledge-graph backend:
// episode and triplet ingestion, namespace-scoped queries, and the
// composition of per-call extraction guidance.
//
// Namespaces are a hard isolation boundary. Every operation carries one, it
// is filtered server-side, and an empty namespace is rejected at this
// boundary so cross-namespace leakage is structurally impossible.
package graph

import (
	"context"
	"errors"
	"time"
)

// EntityType classifies graph nodes.
type EntityType string

const (
	EntityPerson            EntityType = "Person"
	EntityPlace             EntityType = "Place"
	EntitySymbol            EntityType = "Symbol"
	EntityConcept           EntityType = "Concept"
	EntityTechnicalArtifact EntityType = "TechnicalArtifact"
)

// DefaultEntityTypes is the schema offered to the extractor when a caller
// doesn't narrow it.
var DefaultEntityTypes = []EntityType{
	EntityPerson,
	EntityPlace,
	EntitySymbol,
	EntityConcept,
	EntityTechnicalArtifact,
}

// Fact is one edge in the graph.
type Fact struct {
	UUID         string     `json:"uuid"`
	SourceEntity string     `json:"source_entity"`
	Predicate    string     `json:"predicate"`
	TargetEntity string     `json:"target_entity"`
	FactText     string     `json:"fact_text"`
	Namespace    string     `json:"namespace"`
	ValidAt      *time.Time `json:"valid_at,omitempty"`
	InvalidAt    *time.Time `json:"invalid_at,omitempty"`
}

// Entity is one node in the graph.
type Entity struct {
	UUID      string     `json:"uuid"`
	Name      string     `json:"name"`
	Type      EntityType `json:"type"`
	Namespace string     `json:"namespace"`
}

// Episode is one unit of free-text ingestion.
type Episode struct {
	UUID          string    `json:"uuid"`
	Body          string    `json:"body"`
	Namespace     string    `json:"namespace"`
	ReferenceTime time.Time `json:"reference_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// Subgraph is the neighborhood returned by Explore.
type Subgraph struct {
	Root     string   `json:"root"`
	Entities []Entity `json:"entities"`
	Facts    []Fact   `json:"facts"`
}

// EpisodeRequest carries one episode into the extractor.
type EpisodeRequest struct {
	Text          string
	ReferenceTime time.Time
	Namespace     string
	EntityTypes   []EntityType
	Instructions  string
}

// Triplet is a direct structured assertion, bypassing extraction.
type Triplet struct {
	SourceEntity string
	Predicate    string
	TargetEntity string
	FactText     string
	SourceType   EntityType
	TargetType   EntityType
	Namespace    string
}

// ErrNamespaceRequired is returned when an operation carries no namespace.
var ErrNamespaceRequired = errors.New("graph namespace is required")

// ErrFactNotFound is returned by Delete when no fact has the given uuid.
var ErrFactNotFound = errors.New("graph fact not found")

// Adapter is the typed interface to the knowledge-graph backend.
type Adapter interface {
	// AddEpisode sends free text through the backend's extractor and
	// returns the extraction summary.
	AddEpisode(ctx context.Context, req EpisodeRequest) (string, error)

	// AddTriplet asserts a source-predicate-target edge directly.
	AddTriplet(ctx context.Context, t Triplet) error

	// Search returns ranked facts scoped to the namespace.
	Search(ctx context.Context, query, namespace string, limit int) ([]Fact, error)

	// Explore returns the subgraph around a named entity.
	Explore(ctx context.Context, entity string, depth int, namespace string) (*Subgraph, error)

	// Timeline returns episodes in a time window, oldest first.
	Timeline(ctx context.Context, since, until time.Time, namespace string) ([]Episode, error)

	// Delete removes one fact by uuid.
	Delete(ctx context.Context, uuid string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases adapter resources.
	Close() error
}
