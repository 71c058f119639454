// Package api provides the HTTP handlers for the CommuGraph backend.
package api

import (
	"log/slog"
	"net/http"

	"github.com/CH-chuan/CommuGraph-sub000/config"
	"github.com/CH-chuan/CommuGraph-sub000/parser"
	"github.com/CH-chuan/CommuGraph-sub000/policy"
	"github.com/CH-chuan/CommuGraph-sub000/store"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests.
type Handler struct {
	store    store.Store
	registry *parser.Registry
	policy   *policy.Engine
	config   *config.Config
	logger   *slog.Logger
}

// NewHandler creates a new handler. A nil logger falls back to the default.
func NewHandler(store store.Store, registry *parser.Registry, policyEngine *policy.Engine, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    store,
		registry: registry,
		policy:   policyEngine,
		config:   cfg,
		logger:   logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)

	e.GET("/v1/sessions/:session_id/graph", h.GetGraph)
	e.GET("/v1/sessions/:session_id/sequence", h.GetSequence)
	e.GET("/v1/sessions/:session_id/metrics", h.GetMetrics)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
