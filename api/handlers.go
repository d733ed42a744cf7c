package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/presencelabs/substrate/pkg/eventstream"
	"github.com/presencelabs/substrate/pkg/scheduler"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// handlePing returns a simple liveness response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth reports per-component status so a caller can distinguish
// "whole substrate down" from "one layer degraded".
func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx := c.Context()

	report := substrate.HealthReport{Status: substrate.StatusHealthy}

	store := substrate.ComponentHealth{Component: "turnstore", Status: substrate.StatusHealthy}
	if err := s.deps.Store.IntegrityCheck(ctx); err != nil {
		store.Status = substrate.StatusCritical
		store.Detail = err.Error()
	} else if latest, err := s.deps.Store.LatestID(ctx); err == nil {
		store.Counts = map[string]int{"latest_turn": int(latest)}
	}
	report.Components = append(report.Components, store)

	report.Components = append(report.Components, s.deps.Anchors.Health(ctx))

	graphHealth := substrate.ComponentHealth{Component: "graph", Status: substrate.StatusHealthy}
	if err := s.deps.Graph.Ping(ctx); err != nil {
		graphHealth.Status = substrate.StatusDegraded
		graphHealth.Detail = err.Error()
	}
	report.Components = append(report.Components, graphHealth)

	crystals := substrate.ComponentHealth{Component: "crystals", Status: substrate.StatusHealthy}
	if current, err := s.deps.Crystals.Current(0); err != nil {
		crystals.Status = substrate.StatusCritical
		crystals.Detail = err.Error()
	} else {
		crystals.Counts = map[string]int{"current": len(current)}
	}
	report.Components = append(report.Components, crystals)

	summaries := substrate.ComponentHealth{Component: "summaries", Status: substrate.StatusHealthy}
	if stats, err := s.deps.Summarizer.Stats(ctx); err != nil {
		summaries.Status = substrate.StatusDegraded
		summaries.Detail = err.Error()
	} else {
		summaries.Counts = map[string]int{"total": stats.Total, "backlog": stats.Backlog}
	}
	report.Components = append(report.Components, summaries)

	for _, component := range report.Components {
		if component.Status == substrate.StatusCritical {
			report.Status = substrate.StatusCritical
			break
		}
		if component.Status == substrate.StatusDegraded {
			report.Status = substrate.StatusDegraded
		}
	}

	return c.JSON(report)
}

// RecallRequest is the ambient recall request body.
type RecallRequest struct {
	Context       string `json:"context"`
	LimitPerLayer int    `json:"limit_per_layer"`
}

func (s *Server) handleRecall(c *fiber.Ctx) error {
	var req RecallRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid recall request body")
	}

	out, err := s.deps.Recall.Recall(c.Context(), req.Context, req.LimitPerLayer)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(out)
}

// AppendTurnRequest is the turn append request body.
type AppendTurnRequest struct {
	Channel string `json:"channel"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

func (s *Server) handleAppendTurn(c *fiber.Ctx) error {
	var req AppendTurnRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid turn body")
	}
	if req.Content == "" {
		return badRequest(c, "turn content is required")
	}

	id, err := s.deps.Store.Append(c.Context(), turnstore.Turn{
		Channel: req.Channel,
		Author:  req.Author,
		Content: req.Content,
	})
	if err != nil {
		return fail(c, err)
	}

	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Notify(scheduler.Event{Type: scheduler.TurnAppended, TurnID: id})
	}
	if err := s.deps.Events.Publish(c.Context(), eventstream.Event{
		Type:    eventstream.TypeTurnAppended,
		At:      time.Now().UTC(),
		Channel: req.Channel,
		TurnID:  id,
	}); err != nil {
		s.log.Warn("publishing turn event", "error", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) handleQueryTurns(c *fiber.Ctx) error {
	filter := turnstore.Filter{
		Channel:  c.Query("channel"),
		Author:   c.Query("author"),
		Contains: c.Query("contains"),
		AfterID:  int64(c.QueryInt("after_id")),
		Limit:    c.QueryInt("limit", 50),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return badRequest(c, "invalid since timestamp")
		}
		filter.Since = t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return badRequest(c, "invalid until timestamp")
		}
		filter.Until = t
	}

	turns, err := s.deps.Store.Query(c.Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(turns), "turns": turns})
}
