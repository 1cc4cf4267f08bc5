// Package api exposes the lab-orchestration HTTP surface described in
// spec.md §4.2/§6.1: create a lab, send it follow-up messages, and read
// back its status.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/go-playground/validator/v10"

	"github.com/codeready-toolchain/labforge/pkg/config"
	"github.com/codeready-toolchain/labforge/pkg/orchestrator"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

// Server is the HTTP API server for the lab orchestration core.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config
	reg        *registry.Registry
	driver     *orchestrator.Driver
	validate   *validator.Validate
}

// NewServer builds a Server and registers every route. reg and driver must
// already be wired together (the driver reads/writes labs through reg).
func NewServer(cfg *config.Config, reg *registry.Registry, driver *orchestrator.Driver) *Server {
	e := echo.New()
	e.HTTPErrorHandler = jsonErrorHandler

	s := &Server{
		echo:     e,
		cfg:      cfg,
		reg:      reg,
		driver:   driver,
		validate: validator.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.BodyLimit(1 << 20))
	s.echo.Use(middleware.Logger())
	s.echo.Use(corsMiddleware(s.cfg.CORSOrigins))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler)

	api := s.echo.Group("/api")
	api.POST("/labs/create", s.createLabHandler)
	api.POST("/labs/:id/message", s.sendMessageHandler)
	api.GET("/labs/:id/status", s.getLabHandler)
	api.GET("/labs/:id", s.getLabHandler)
	api.GET("/labs", s.listLabsHandler)
}

// corsMiddleware implements the CORS_ORIGINS policy (§6.2). Hand-rolled
// rather than middleware.CORSWithConfig. The allowed origins are captured
// once, when the middleware is built; a single "*" entry allows any origin.
func corsMiddleware(allowed []string) echo.MiddlewareFunc {
	allowAll := len(allowed) == 1 && allowed[0] == "*"
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin != "" && (allowAll || originAllowed(origin, allowed)) {
				h := c.Response().Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Vary", "Origin")
			}
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, o := range allowed {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// jsonErrorHandler renders every error, echo-internal or handler-returned,
// as the {error, detail?} shape from spec.md §6.1.
func jsonErrorHandler(err error, c *echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	resp, ok := he.Message.(ErrorResponse)
	if !ok {
		msg := http.StatusText(he.Code)
		if s, isStr := he.Message.(string); isStr {
			msg = s
		}
		resp = ErrorResponse{Error: msg}
	}

	if werr := c.JSON(he.Code, resp); werr != nil {
		slog.Error("Failed to write error response", "error", werr)
	}
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener, such as one bound to
// a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// validationDetail extracts a human-readable detail string from a
// validator.ValidationErrors, or from any other bind/validate error.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return first.Field() + " failed " + first.Tag()
	}
	return err.Error()
}
