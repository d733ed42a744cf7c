package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/presencelabs/substrate/pkg/eventstream"
)

// SaveAnchorRequest is the anchor save request body.
type SaveAnchorRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleAnchorSave(c *fiber.Ctx) error {
	var req SaveAnchorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid anchor body")
	}
	if req.Title == "" {
		return badRequest(c, "anchor title is required")
	}

	filename, err := s.deps.Anchors.Save(c.Context(), req.Title, req.Content)
	if err != nil {
		return fail(c, err)
	}

	if err := s.deps.Events.Publish(c.Context(), eventstream.Event{
		Type:     eventstream.TypeAnchorSaved,
		At:       time.Now().UTC(),
		Filename: filename,
	}); err != nil {
		s.log.Warn("publishing anchor event", "error", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"filename": filename})
}

func (s *Server) handleAnchorList(c *fiber.Ctx) error {
	entries, err := s.deps.Anchors.List(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(entries), "anchors": entries})
}

func (s *Server) handleAnchorSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return badRequest(c, "query parameter q is required")
	}

	results, err := s.deps.Anchors.Search(c.Context(), query, c.QueryInt("limit", 5))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(results), "results": results})
}

func (s *Server) handleAnchorResync(c *fiber.Ctx) error {
	count, err := s.deps.Anchors.Resync(c.Context())
	if err != nil {
		return fail(c, err)
	}

	if err := s.deps.Events.Publish(c.Context(), eventstream.Event{
		Type:   eventstream.TypeResyncCompleted,
		At:     time.Now().UTC(),
		Counts: map[string]int{"reindexed": count},
	}); err != nil {
		s.log.Warn("publishing resync event", "error", err)
	}

	return c.JSON(fiber.Map{"reindexed": count})
}

func (s *Server) handleAnchorDelete(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if err := s.deps.Anchors.Delete(c.Context(), filename); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": filename})
}
