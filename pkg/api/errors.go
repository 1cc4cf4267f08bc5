package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// mapRegistryError maps registry-layer errors to HTTP responses, matching
// the taxonomy in spec.md §7: lab-not-found and wrong-state are client
// errors that never alter lab state.
func mapRegistryError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrorResponse{Error: "lab not found"})
	case errors.Is(err, registry.ErrInvalidState):
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Error: "lab is not accepting input", Detail: err.Error()})
	case errors.Is(err, registry.ErrQueueFull):
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Error: "message queue is full"})
	default:
		slog.Error("Unexpected registry error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
