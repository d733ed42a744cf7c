package api

import (
	"errors"
	"io/fs"

	"github.com/gofiber/fiber/v2"

	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// ErrorResponse is the JSON error body for every route.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// fail maps the substrate error taxonomy onto HTTP status codes so callers
// can distinguish "retry me" from "this operation is invalid".
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	kind := ""

	var notFound turnstore.ErrNotFound

	switch {
	case errors.Is(err, substrate.ErrChainIntegrity):
		status, kind = fiber.StatusConflict, "chain_integrity_violation"
	case errors.Is(err, turnstore.ErrLockHeld):
		status, kind = fiber.StatusConflict, "lock_held"
	case errors.Is(err, substrate.ErrStorageUnavailable):
		status, kind = fiber.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, substrate.ErrSyncDrift):
		status, kind = fiber.StatusConflict, "sync_drift"
	case errors.Is(err, substrate.ErrExtraction):
		status, kind = fiber.StatusBadGateway, "extraction_failure"
	case errors.Is(err, graph.ErrNamespaceRequired):
		status, kind = fiber.StatusBadRequest, "namespace_required"
	case errors.Is(err, graph.ErrFactNotFound), errors.Is(err, fs.ErrNotExist), errors.As(err, &notFound):
		status, kind = fiber.StatusNotFound, "not_found"
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
