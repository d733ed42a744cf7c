package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/presencelabs/substrate/pkg/curator"
	"github.com/presencelabs/substrate/pkg/eventstream"
	"github.com/presencelabs/substrate/pkg/graph"
)

// namespace resolves the graph namespace for a request, preferring an
// explicit override over the server default.
func (s *Server) namespace(override string) string {
	if override != "" {
		return override
	}
	return s.config.Namespace
}

// EpisodeBody is the graph episode ingestion request body.
type EpisodeBody struct {
	Text          string     `json:"text"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	Namespace     string     `json:"namespace,omitempty"`
	Instructions  string     `json:"instructions,omitempty"`
}

func (s *Server) handleGraphEpisode(c *fiber.Ctx) error {
	var req EpisodeBody
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid episode body")
	}
	if req.Text == "" {
		return badRequest(c, "episode text is required")
	}

	ref := time.Now().UTC()
	if req.ReferenceTime != nil {
		ref = *req.ReferenceTime
	}

	summary, err := s.deps.Graph.AddEpisode(c.Context(), graph.EpisodeRequest{
		Text:          req.Text,
		ReferenceTime: ref,
		Namespace:     s.namespace(req.Namespace),
		Instructions:  req.Instructions,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"summary": summary})
}

// TripletBody is the direct fact assertion request body.
type TripletBody struct {
	SourceEntity string `json:"source_entity"`
	Predicate    string `json:"predicate"`
	TargetEntity string `json:"target_entity"`
	FactText     string `json:"fact_text,omitempty"`
	SourceType   string `json:"source_type,omitempty"`
	TargetType   string `json:"target_type,omitempty"`
	Namespace    string `json:"namespace,omitempty"`
}

func (s *Server) handleGraphTriplet(c *fiber.Ctx) error {
	var req TripletBody
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid triplet body")
	}
	if req.SourceEntity == "" || req.Predicate == "" || req.TargetEntity == "" {
		return badRequest(c, "source_entity, predicate and target_entity are required")
	}

	err := s.deps.Graph.AddTriplet(c.Context(), graph.Triplet{
		SourceEntity: req.SourceEntity,
		Predicate:    req.Predicate,
		TargetEntity: req.TargetEntity,
		FactText:     req.FactText,
		SourceType:   graph.EntityType(req.SourceType),
		TargetType:   graph.EntityType(req.TargetType),
		Namespace:    s.namespace(req.Namespace),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleGraphSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return badRequest(c, "query parameter q is required")
	}

	facts, err := s.deps.Graph.Search(c.Context(), query, s.namespace(c.Query("namespace")), c.QueryInt("limit", 10))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(facts), "facts": facts})
}

func (s *Server) handleGraphExplore(c *fiber.Ctx) error {
	entity := c.Query("entity")
	if entity == "" {
		return badRequest(c, "query parameter entity is required")
	}

	sub, err := s.deps.Graph.Explore(c.Context(), entity, c.QueryInt("depth", 1), s.namespace(c.Query("namespace")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(sub)
}

func (s *Server) handleGraphTimeline(c *fiber.Ctx) error {
	var since, until time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "invalid since timestamp")
		}
		since = t
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "invalid until timestamp")
		}
		until = t
	}

	episodes, err := s.deps.Graph.Timeline(c.Context(), since, until, s.namespace(c.Query("namespace")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(episodes), "episodes": episodes})
}

func (s *Server) handleGraphDelete(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if err := s.deps.Graph.Delete(c.Context(), uuid); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": uuid})
}

// CurateRequest is the curation request body.
type CurateRequest struct {
	DryRun bool `json:"dry_run"`
}

func (s *Server) handleGraphCurate(c *fiber.Ctx) error {
	var req CurateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid curate body")
		}
	}

	var (
		report curator.Report
		err    error
	)
	if req.DryRun {
		report, err = s.deps.Curator.Plan(c.Context())
	} else {
		report, err = s.deps.Curator.Run(c.Context())
	}
	if err != nil {
		return fail(c, err)
	}

	if !req.DryRun {
		if err := s.deps.Events.Publish(c.Context(), eventstream.Event{
			Type:   eventstream.TypeCurationFinished,
			At:     time.Now().UTC(),
			Counts: map[string]int{"deleted": report.Deleted, "failed": report.Failed},
		}); err != nil {
			s.log.Warn("publishing curation event", "error", err)
		}
	}

	return c.JSON(report)
}
