// Package mcp exposes every substrate operation as an MCP (Model Context
// Protocol) tool, served over streamable HTTP.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/presencelabs/substrate/pkg/anchors"
	"github.com/presencelabs/substrate/pkg/crystal"
	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
	"github.com/presencelabs/substrate/pkg/utils"
)

type Config struct {
	// Store is the append-only turn ledger.
	Store turnstore.Store

	// Anchors is the identity anchor index.
	Anchors *anchors.Index

	// Graph is the knowledge-graph backend.
	Graph graph.Adapter

	// Crystals is the crystallization engine.
	Crystals *crystal.Engine

	// Summarizer compresses turn ranges.
	Summarizer *summarizer.Summarizer

	// Ingestor feeds turn batches into the graph.
	Ingestor *summarizer.Ingestor

	// Recall fans queries across the memory layers.
	Recall *recall.Aggregator

	// Namespace is the default graph namespace for texture tools.
	Namespace string

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with the full substrate toolset.
func NewServer(c Config) (*Server, error) {
	if c.Store == nil {
		return nil, errors.New("turn store is required")
	}
	if c.Anchors == nil {
		return nil, errors.New("anchor index is required")
	}
	if c.Graph == nil {
		return nil, errors.New("graph adapter is required")
	}
	if c.Crystals == nil {
		return nil, errors.New("crystal engine is required")
	}
	if c.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if c.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if c.Recall == nil {
		return nil, errors.New("recall aggregator is required")
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "substrate",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ambient_recall",
		Description: "Query every memory layer at once (anchors, graph, crystals, summaries) and get back a merged, layer-tagged context block.",
	}, s.handleAmbientRecall)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "pps_health",
		Description: "Report per-component health of the memory substrate.",
	}, s.handleHealth)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "anchor_save",
		Description: "Save an identity anchor as a markdown file and index it for semantic search.",
	}, s.handleAnchorSave)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "anchor_search",
		Description: "Semantic search over identity anchors.",
	}, s.handleAnchorSearch)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "anchor_delete",
		Description: "Delete an identity anchor from disk and the index.",
	}, s.handleAnchorDelete)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "anchor_list",
		Description: "List every anchor with its disk/index parity state.",
	}, s.handleAnchorList)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "anchor_resync",
		Description: "Rebuild the anchor vector index from the markdown files on disk.",
	}, s.handleAnchorResync)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "texture_add",
		Description: "Send free text through the knowledge graph's entity extractor.",
	}, s.handleTextureAdd)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "texture_search",
		Description: "Search graph facts by text.",
	}, s.handleTextureSearch)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "texture_explore",
		Description: "Walk the graph neighborhood around an entity.",
	}, s.handleTextureExplore)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "texture_timeline",
		Description: "List graph episodes in a time window.",
	}, s.handleTextureTimeline)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "texture_delete",
		Description: "Delete a graph fact by uuid.",
	}, s.handleTextureDelete)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "texture_add_triplet",
		Description: "Assert a structured source-predicate-target fact directly, bypassing extraction.",
	}, s.handleTextureAddTriplet)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "crystallize",
		Description: "Compress the recent ledger into a new crystal at the end of the rolling chain.",
	}, s.handleCrystallize)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "crystal_list",
		Description: "List every crystal, archived ones included.",
	}, s.handleCrystalList)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "get_crystals",
		Description: "Return the current (non-archived) crystals, newest last.",
	}, s.handleGetCrystals)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "crystal_delete",
		Description: "Delete the latest crystal. Only the latest may be deleted.",
	}, s.handleCrystalDelete)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "summarize_messages",
		Description: "Compress the oldest unsummarized turns into a summary without persisting it.",
	}, s.handleSummarizeMessages)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "store_summary",
		Description: "Persist a summary and mark its turn range as summarized.",
	}, s.handleStoreSummary)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "get_recent_summaries",
		Description: "Return the most recent summaries.",
	}, s.handleGetRecentSummaries)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "search_summaries",
		Description: "Search summary text.",
	}, s.handleSearchSummaries)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "summary_stats",
		Description: "Report summary coverage over the ledger.",
	}, s.handleSummaryStats)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "graphiti_ingestion_stats",
		Description: "Report how many turns still await graph ingestion and whether a batch is recommended.",
	}, s.handleIngestionStats)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ingest_batch_to_graphiti",
		Description: "Ingest the oldest uningested turn batch into the knowledge graph. Idempotent per batch.",
	}, s.handleIngestBatch)

	s.mcpServer = mcpServer

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// namespace resolves the graph namespace, preferring a per-call override.
func (s *Server) namespace(override string) string {
	if override != "" {
		return override
	}
	return s.config.Namespace
}

// errResult builds an error tool result in the shape MCP clients expect.
func errResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// okResult serializes the structured output as JSON for the text field.
// Per MCP spec: tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility.
func okResult(output any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return errResult("Failed to serialize result: %v", err), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, nil
}
