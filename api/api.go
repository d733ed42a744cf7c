package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/presencelabs/substrate/pkg/anchors"
	"github.com/presencelabs/substrate/pkg/crystal"
	"github.com/presencelabs/substrate/pkg/curator"
	"github.com/presencelabs/substrate/pkg/eventstream"
	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/scheduler"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// Deps carries every substrate component the server fronts. Components are
// injected so front-ends can share them with an embedded scheduler.
type Deps struct {
	Store      turnstore.Store
	Anchors    *anchors.Index
	Graph      graph.Adapter
	Curator    *curator.Curator
	Crystals   *crystal.Engine
	Summarizer *summarizer.Summarizer
	Ingestor   *summarizer.Ingestor
	Recall     *recall.Aggregator

	// Scheduler receives turn_appended events; optional.
	Scheduler *scheduler.Scheduler

	// Events receives lifecycle events; optional, defaults to Nop.
	Events eventstream.Publisher

	Logger *slog.Logger
}

// Server is the HTTP server for the substrate.
type Server struct {
	config Config
	deps   Deps
	log    *slog.Logger
	app    *fiber.App
}

// NewServer creates the server and registers every route. The MCP handler,
// when given, is mounted at /mcp.
func NewServer(config Config, deps Deps, mcpHandler http.Handler) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	if deps.Events == nil {
		deps.Events = eventstream.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	s := &Server{
		config: config,
		deps:   deps,
		log:    deps.Logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/health", s.handleHealth)
	app.Post("/v1/recall", s.handleRecall)

	app.Post("/v1/turns", s.handleAppendTurn)
	app.Get("/v1/turns", s.handleQueryTurns)

	app.Post("/v1/anchors", s.handleAnchorSave)
	app.Get("/v1/anchors", s.handleAnchorList)
	app.Get("/v1/anchors/search", s.handleAnchorSearch)
	app.Post("/v1/anchors/resync", s.handleAnchorResync)
	app.Delete("/v1/anchors/:filename", s.handleAnchorDelete)

	app.Post("/v1/graph/episodes", s.handleGraphEpisode)
	app.Post("/v1/graph/triplets", s.handleGraphTriplet)
	app.Get("/v1/graph/search", s.handleGraphSearch)
	app.Get("/v1/graph/explore", s.handleGraphExplore)
	app.Get("/v1/graph/timeline", s.handleGraphTimeline)
	app.Delete("/v1/graph/facts/:uuid", s.handleGraphDelete)
	app.Post("/v1/graph/curate", s.handleGraphCurate)

	app.Post("/v1/crystals", s.handleCrystallize)
	app.Get("/v1/crystals", s.handleCrystalList)
	app.Get("/v1/crystals/current", s.handleCrystalCurrent)
	app.Delete("/v1/crystals/:sequence", s.handleCrystalDelete)

	app.Post("/v1/summaries", s.handleSummarize)
	app.Get("/v1/summaries/recent", s.handleRecentSummaries)
	app.Get("/v1/summaries/search", s.handleSearchSummaries)
	app.Get("/v1/summaries/stats", s.handleSummaryStats)

	app.Get("/v1/ingestion/stats", s.handleIngestionStats)
	app.Post("/v1/ingestion/batch", s.handleIngestBatch)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
		app.All("/mcp/*", adaptor.HTTPHandler(mcpHandler))
	}

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.log.Info("starting substrate API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
