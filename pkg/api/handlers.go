package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/labforge/pkg/lab"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// createLabHandler handles POST /api/labs/create. It installs a new lab in
// the registry and launches its pipeline in the background — the registry
// package itself cannot do this without importing the orchestrator package,
// which would create an import cycle (registry is orchestrator's
// dependency, not the reverse).
func (s *Server) createLabHandler(c *echo.Context) error {
	var req CreateLabRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Detail: err.Error()})
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Detail: validationDetail(err)})
	}

	opts := lab.Options{DryRun: req.DryRun, EnableRCA: req.EnableRCA}
	labID := s.reg.Create(req.Prompt, opts)
	if err := s.reg.Mutate(labID, func(l *registry.Lab) {
		l.Conversation = append(l.Conversation, lab.Message{Role: lab.RoleUser, Content: req.Prompt, Timestamp: time.Now()})
	}); err != nil {
		return mapRegistryError(err)
	}

	go s.driver.Run(context.Background(), labID)

	return c.JSON(http.StatusOK, CreateLabResponse{LabID: labID, Status: lab.StatusPlannerRunning})
}

// sendMessageHandler handles POST /api/labs/:id/message.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	id := c.Param("id")

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Detail: err.Error()})
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Detail: validationDetail(err)})
	}

	if err := s.reg.EnqueueMessage(id, req.Content); err != nil {
		return mapRegistryError(err)
	}

	snap, err := s.reg.Get(id)
	if err != nil {
		return mapRegistryError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Status: "message_received", ConversationStatus: snap.Status})
}

// getLabHandler handles both GET /api/labs/:id/status and GET /api/labs/:id.
func (s *Server) getLabHandler(c *echo.Context) error {
	id := c.Param("id")

	snap, err := s.reg.Get(id)
	if err != nil {
		return mapRegistryError(err)
	}

	return c.JSON(http.StatusOK, newLabSnapshotResponse(snap))
}

// listLabsHandler handles GET /api/labs.
func (s *Server) listLabsHandler(c *echo.Context) error {
	summaries := s.reg.List()
	items := make([]LabListItem, len(summaries))
	for i, summary := range summaries {
		items[i] = newLabListItem(summary)
	}
	return c.JSON(http.StatusOK, items)
}
