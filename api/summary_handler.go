package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/presencelabs/substrate/pkg/eventstream"
	"github.com/presencelabs/substrate/pkg/summarizer"
)

// SummarizeRequest is the summarization request body. Store controls whether
// the result is persisted and the range marked consumed; when false the call
// is a pure compression and leaves the backlog untouched.
type SummarizeRequest struct {
	Limit int    `json:"limit"`
	Kind  string `json:"kind"`
	Store bool   `json:"store"`
}

func (s *Server) handleSummarize(c *fiber.Ctx) error {
	req := SummarizeRequest{Limit: summarizer.DefaultLimit}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid summarize body")
		}
	}
	if req.Limit <= 0 {
		req.Limit = summarizer.DefaultLimit
	}

	summary, err := s.deps.Summarizer.Summarize(c.Context(), req.Limit, req.Kind)
	if err != nil {
		return fail(c, err)
	}
	if summary == nil {
		return c.JSON(fiber.Map{"summary": nil, "backlog": 0})
	}

	if req.Store {
		id, err := s.deps.Summarizer.StoreSummary(c.Context(), *summary)
		if err != nil {
			return fail(c, err)
		}
		summary.ID = id

		if err := s.deps.Events.Publish(c.Context(), eventstream.Event{
			Type: eventstream.TypeSummaryStored,
			At:   time.Now().UTC(),
		}); err != nil {
			s.log.Warn("publishing summary event", "error", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"summary": summary, "stored": req.Store})
}

func (s *Server) handleRecentSummaries(c *fiber.Ctx) error {
	summaries, err := s.deps.Summarizer.RecentSummaries(c.Context(), c.QueryInt("limit", 5))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(summaries), "summaries": summaries})
}

func (s *Server) handleSearchSummaries(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return badRequest(c, "query parameter q is required")
	}

	summaries, err := s.deps.Summarizer.SearchSummaries(c.Context(), query, c.QueryInt("limit", 10))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(summaries), "summaries": summaries})
}

func (s *Server) handleSummaryStats(c *fiber.Ctx) error {
	stats, err := s.deps.Summarizer.Stats(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

func (s *Server) handleIngestionStats(c *fiber.Ctx) error {
	stats, err := s.deps.Ingestor.Stats(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

// IngestRequest is the batch ingestion request body.
type IngestRequest struct {
	BatchSize int `json:"batch_size"`
}

func (s *Server) handleIngestBatch(c *fiber.Ctx) error {
	req := IngestRequest{BatchSize: summarizer.DefaultBatchSize}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid ingest body")
		}
	}
	if req.BatchSize <= 0 {
		req.BatchSize = summarizer.DefaultBatchSize
	}

	batch, err := s.deps.Ingestor.IngestBatch(c.Context(), req.BatchSize)
	if err != nil {
		return fail(c, err)
	}

	if batch.IngestedCount > 0 {
		if err := s.deps.Events.Publish(c.Context(), eventstream.Event{
			Type:    eventstream.TypeBatchIngested,
			At:      time.Now().UTC(),
			BatchID: batch.BatchID,
			Counts:  map[string]int{"ingested": batch.IngestedCount},
		}); err != nil {
			s.log.Warn("publishing batch event", "error", err)
		}
	}

	return c.JSON(batch)
}
