package api

import (
	"net/http"
	"strconv"

	"github.com/CH-chuan/CommuGraph-sub000/commgraph"
	"github.com/CH-chuan/CommuGraph-sub000/store"
	"github.com/labstack/echo/v4"
)

// GetGraph returns the graph built for a session: the workflow DAG for
// execution logs, the communication graph (optionally filtered to a step)
// for conversation logs.
// GET /v1/sessions/:session_id/graph
func (h *Handler) GetGraph(c echo.Context) error {
	snapshot, errResp := h.loadSnapshot(c)
	if snapshot == nil {
		return errResp
	}

	if snapshot.Workflow != nil {
		return c.JSON(http.StatusOK, snapshot.Workflow)
	}

	var maxStep *int
	if raw := c.QueryParam("max_step"); raw != "" {
		step, err := strconv.Atoi(raw)
		if err != nil || step < 0 {
			return errorJSON(c, http.StatusBadRequest, "max_step must be a non-negative integer")
		}
		maxStep = &step
	}

	builder := commgraph.NewBuilder()
	if err := builder.Build(snapshot.Messages); err != nil {
		h.logger.Error("failed to rebuild communication graph", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to build graph")
	}
	comm, err := builder.Snapshot(maxStep)
	if err != nil {
		h.logger.Error("failed to snapshot communication graph", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to build graph")
	}
	return c.JSON(http.StatusOK, comm)
}

// GetSequence returns the causally ordered timeline for annotation tools.
// GET /v1/sessions/:session_id/sequence
func (h *Handler) GetSequence(c echo.Context) error {
	snapshot, errResp := h.loadSnapshot(c)
	if snapshot == nil {
		return errResp
	}
	if snapshot.Sequence == nil {
		return errorJSON(c, http.StatusNotFound, "session has no causal sequence")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": c.Param("session_id"),
		"entries":    snapshot.Sequence,
	})
}

// GetMetrics returns the session's aggregate statistics.
// GET /v1/sessions/:session_id/metrics
func (h *Handler) GetMetrics(c echo.Context) error {
	snapshot, errResp := h.loadSnapshot(c)
	if snapshot == nil {
		return errResp
	}

	if snapshot.Workflow != nil {
		return c.JSON(http.StatusOK, snapshot.Workflow.Aggregates)
	}

	builder := commgraph.NewBuilder()
	if err := builder.Build(snapshot.Messages); err != nil {
		h.logger.Error("failed to rebuild communication graph", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to compute metrics")
	}
	metrics, err := builder.Metrics()
	if err != nil {
		h.logger.Error("failed to compute metrics", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to compute metrics")
	}
	return c.JSON(http.StatusOK, metrics)
}

// loadSnapshot resolves the session and its snapshot, writing the error
// response itself when either is missing. A nil snapshot means the
// response has been sent.
func (h *Handler) loadSnapshot(c echo.Context) (*store.Snapshot, error) {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	session, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		h.logger.Error("failed to get session", "session_id", sessionID, "error", err)
		return nil, errorJSON(c, http.StatusInternalServerError, "failed to get session")
	}
	if session == nil {
		return nil, errorJSON(c, http.StatusNotFound, "session not found")
	}

	snapshot, err := h.store.GetSnapshot(ctx, sessionID)
	if err != nil {
		h.logger.Error("failed to get snapshot", "session_id", sessionID, "error", err)
		return nil, errorJSON(c, http.StatusInternalServerError, "failed to get snapshot")
	}
	if snapshot == nil {
		return nil, errorJSON(c, http.StatusNotFound, "session has no snapshot")
	}
	return snapshot, nil
}
