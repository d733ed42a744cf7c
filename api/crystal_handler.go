package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/presencelabs/substrate/pkg/eventstream"
)

func (s *Server) handleCrystallize(c *fiber.Ctx) error {
	crystal, err := s.deps.Crystals.Create(c.Context())
	if err != nil {
		return fail(c, err)
	}

	if err := s.deps.Events.Publish(c.Context(), eventstream.Event{
		Type:     eventstream.TypeCrystalCreated,
		At:       time.Now().UTC(),
		Sequence: crystal.Sequence,
	}); err != nil {
		s.log.Warn("publishing crystal event", "error", err)
	}

	return c.Status(fiber.StatusCreated).JSON(crystal)
}

func (s *Server) handleCrystalList(c *fiber.Ctx) error {
	crystals, err := s.deps.Crystals.List()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(crystals), "crystals": crystals})
}

func (s *Server) handleCrystalCurrent(c *fiber.Ctx) error {
	crystals, err := s.deps.Crystals.Current(c.QueryInt("n"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": len(crystals), "crystals": crystals})
}

func (s *Server) handleCrystalDelete(c *fiber.Ctx) error {
	sequence, err := strconv.Atoi(c.Params("sequence"))
	if err != nil {
		return badRequest(c, "sequence must be an integer")
	}

	if err := s.deps.Crystals.Delete(c.Context(), sequence); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": sequence})
}
