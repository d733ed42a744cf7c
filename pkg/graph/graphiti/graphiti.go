// Package graphiti provides the graph.Adapter implementation against a
// graphiti-style knowledge-graph service's REST API.
package graphiti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/substrate"
)

// Adapter implements graph.Adapter using the service's REST API.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds configuration for the graphiti adapter.
type Config struct {
	// URL is the graph service URL (e.g., "http://localhost:8000").
	URL string

	// Timeout bounds each request. Episode extraction runs an LLM
	// server-side, so the default is generous (120s).
	Timeout time.Duration
}

// New creates a graphiti-backed graph adapter.
func New(c Config, logger *slog.Logger) (*Adapter, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("graph service URL is required")
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Adapter{
		baseURL:    c.URL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type episodeBody struct {
	Content       string   `json:"content"`
	ReferenceTime string   `json:"reference_time"`
	GroupID       string   `json:"group_id"`
	EntityTypes   []string `json:"entity_types"`
	Instructions  string   `json:"instructions,omitempty"`
}

type episodeResult struct {
	Summary string `json:"summary"`
}

// AddEpisode sends free text through the service's extractor. The namespace
// travels as group_id in the request body so filtering happens server-side.
func (a *Adapter) AddEpisode(ctx context.Context, req graph.EpisodeRequest) (string, error) {
	if req.Namespace == "" {
		return "", graph.ErrNamespaceRequired
	}

	entityTypes := req.EntityTypes
	if len(entityTypes) == 0 {
		entityTypes = graph.DefaultEntityTypes
	}

	names := make([]string, len(entityTypes))
	for i, t := range entityTypes {
		names[i] = string(t)
	}

	body := episodeBody{
		Content:       req.Text,
		ReferenceTime: req.ReferenceTime.UTC().Format(time.RFC3339),
		GroupID:       req.Namespace,
		EntityTypes:   names,
		Instructions:  req.Instructions,
	}

	var result episodeResult
	if err := a.post(ctx, "/episodes", body, &result); err != nil {
		return "", err
	}

	return result.Summary, nil
}

type tripletBody struct {
	SourceEntity string `json:"source_entity"`
	Predicate    string `json:"predicate"`
	TargetEntity string `json:"target_entity"`
	Fact         string `json:"fact"`
	SourceType   string `json:"source_type"`
	TargetType   string `json:"target_type"`
	GroupID      string `json:"group_id"`
}

// AddTriplet asserts a source-predicate-target edge directly.
func (a *Adapter) AddTriplet(ctx context.Context, t graph.Triplet) error {
	if t.Namespace == "" {
		return graph.ErrNamespaceRequired
	}

	body := tripletBody{
		SourceEntity: t.SourceEntity,
		Predicate:    t.Predicate,
		TargetEntity: t.TargetEntity,
		Fact:         t.FactText,
		SourceType:   string(t.SourceType),
		TargetType:   string(t.TargetType),
		GroupID:      t.Namespace,
	}

	return a.post(ctx, "/triplets", body, nil)
}

type searchBody struct {
	Query   string `json:"query"`
	GroupID string `json:"group_id"`
	Limit   int    `json:"limit"`
}

type searchResult struct {
	Facts []graph.Fact `json:"facts"`
}

// Search returns ranked facts scoped to the namespace.
func (a *Adapter) Search(ctx context.Context, query, namespace string, limit int) ([]graph.Fact, error) {
	if namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}
	if limit <= 0 {
		limit = 10
	}

	var result searchResult
	if err := a.post(ctx, "/search", searchBody{Query: query, GroupID: namespace, Limit: limit}, &result); err != nil {
		return nil, err
	}

	// The service filters by group server-side; drop anything that slipped
	// through so isolation never depends on remote behavior alone.
	facts := result.Facts[:0]
	for _, f := range result.Facts {
		if f.Namespace == namespace {
			facts = append(facts, f)
		}
	}
	return facts, nil
}

type exploreBody struct {
	Entity  string `json:"entity"`
	Depth   int    `json:"depth"`
	GroupID string `json:"group_id"`
}

// Explore returns the subgraph around a named entity.
func (a *Adapter) Explore(ctx context.Context, entity string, depth int, namespace string) (*graph.Subgraph, error) {
	if namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}
	if depth <= 0 {
		depth = 1
	}

	var result graph.Subgraph
	if err := a.post(ctx, "/explore", exploreBody{Entity: entity, Depth: depth, GroupID: namespace}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type timelineBody struct {
	Since   string `json:"since"`
	Until   string `json:"until"`
	GroupID string `json:"group_id"`
}

type timelineResult struct {
	Episodes []graph.Episode `json:"episodes"`
}

// Timeline returns episodes in a time window, oldest first.
func (a *Adapter) Timeline(ctx context.Context, since, until time.Time, namespace string) ([]graph.Episode, error) {
	if namespace == "" {
		return nil, graph.ErrNamespaceRequired
	}

	body := timelineBody{
		Since:   since.UTC().Format(time.RFC3339),
		Until:   until.UTC().Format(time.RFC3339),
		GroupID: namespace,
	}

	var result timelineResult
	if err := a.post(ctx, "/timeline", body, &result); err != nil {
		return nil, err
	}
	return result.Episodes, nil
}

// Delete removes one fact by uuid.
func (a *Adapter) Delete(ctx context.Context, uuid string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/facts/"+uuid, nil)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: deleting fact: %v", substrate.ErrStorageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph service returned status %d deleting fact: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Ping verifies the service is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("creating healthcheck request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", substrate.ErrStorageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: graph service returned status %d", substrate.ErrStorageUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return nil
}

// post sends a JSON body and decodes a JSON response into out (when non-nil).
func (a *Adapter) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", substrate.ErrStorageUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph service returned status %d on %s: %s", resp.StatusCode, path, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// Ensure Adapter implements graph.Adapter.
var _ graph.Adapter = (*Adapter)(nil)
