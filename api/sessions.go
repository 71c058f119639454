package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/commgraph"
	"github.com/CH-chuan/CommuGraph-sub000/dedup"
	"github.com/CH-chuan/CommuGraph-sub000/domain"
	"github.com/CH-chuan/CommuGraph-sub000/order"
	"github.com/CH-chuan/CommuGraph-sub000/parser"
	"github.com/CH-chuan/CommuGraph-sub000/policy"
	"github.com/CH-chuan/CommuGraph-sub000/store"
	"github.com/CH-chuan/CommuGraph-sub000/workflow"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UploadResponse is the response to a session upload.
type UploadResponse struct {
	SessionID  string   `json:"session_id"`
	Framework  string   `json:"framework"`
	EventCount int      `json:"event_count"`
	NodeCount  int      `json:"node_count"`
	Warnings   []string `json:"warnings,omitempty"`
}

// CreateSession ingests uploaded log files and builds their graphs.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "multipart form required")
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		return errorJSON(c, http.StatusBadRequest, "at least one file is required")
	}

	files := make([]parser.File, 0, len(parts))
	var totalBytes int64
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("cannot read %s", part.Filename))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("cannot read %s", part.Filename))
		}
		files = append(files, parser.File{Name: part.Filename, Data: data})
		totalBytes += int64(len(data))
	}

	framework := parser.Framework(c.FormValue("framework"))
	if framework == "" {
		framework = parser.Detect(files[0].Data)
	}

	decision, err := h.policy.Evaluate(ctx, policy.Input{
		Framework:  string(framework),
		FileCount:  len(files),
		TotalBytes: totalBytes,
		MaxFiles:   h.config.MaxUploadFiles,
		MaxBytes:   h.config.MaxUploadBytes,
	})
	if err != nil {
		h.logger.Error("policy evaluation failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "policy evaluation failed")
	}
	if !decision.Allow {
		return errorJSON(c, http.StatusForbidden, decision.Reason)
	}

	p, err := h.registry.Get(framework)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	batch, err := p.Parse(ctx, files)
	if err != nil {
		return errorJSON(c, http.StatusUnprocessableEntity, err.Error())
	}

	sessionID := "sess_" + uuid.New().String()[:8]
	now := time.Now().UTC()
	session := &domain.Session{
		SessionID:    sessionID,
		Framework:    string(framework),
		CreatedAt:    now,
		LastAccessed: now,
		Warnings:     batch.Warnings,
	}

	var snapshot *store.Snapshot
	switch {
	case batch.Events != nil:
		snapshot = h.buildWorkflow(session, batch.Events)
	case batch.Messages != nil:
		var buildErr error
		snapshot, buildErr = h.buildCommGraph(session, batch.Messages)
		if buildErr != nil {
			return errorJSON(c, http.StatusUnprocessableEntity, buildErr.Error())
		}
	default:
		return errorJSON(c, http.StatusUnprocessableEntity, "no parseable records in upload")
	}
	if session.Label == "" {
		session.Label = files[0].Name
	}

	if err := h.store.CreateSession(ctx, session); err != nil {
		h.logger.Error("failed to create session", "session_id", sessionID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to create session")
	}
	if err := h.store.SaveSnapshot(ctx, sessionID, snapshot); err != nil {
		h.logger.Error("failed to save snapshot", "session_id", sessionID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to save snapshot")
	}

	if len(session.Warnings) > 0 {
		h.logger.Warn("session built with warnings",
			"session_id", sessionID, "framework", framework, "warnings", len(session.Warnings))
	}

	return c.JSON(http.StatusOK, UploadResponse{
		SessionID:  sessionID,
		Framework:  string(framework),
		EventCount: session.EventCount,
		NodeCount:  session.NodeCount,
		Warnings:   session.Warnings,
	})
}

// buildWorkflow runs the execution-log pipeline: dedup, turn aggregation,
// DAG build and causal ordering.
func (h *Handler) buildWorkflow(session *domain.Session, events []domain.EventRecord) *store.Snapshot {
	res := dedup.Run(events)
	session.Warnings = append(session.Warnings, res.Warnings...)

	entries := workflow.AggregateTurns(res.Events)
	wf, buildWarnings := workflow.Build(session.SessionID, entries)
	session.Warnings = append(session.Warnings, buildWarnings...)
	wf.GeneratedAt = session.CreatedAt

	sequence, orderWarnings := order.Resolve(entries)
	session.Warnings = append(session.Warnings, orderWarnings...)

	session.EventCount = len(events)
	session.NodeCount = wf.Aggregates.NodeCount
	session.Label = firstUserInputLabel(wf)
	if logID := logSessionID(events); logID != "" {
		meta, _ := json.Marshal(map[string]string{"log_session_id": logID})
		session.Metadata = meta
	}

	return &store.Snapshot{Workflow: wf, Sequence: sequence}
}

// buildCommGraph runs the conversation-log pipeline. Messages are stored
// raw so step-filtered snapshots can be rebuilt on read.
func (h *Handler) buildCommGraph(session *domain.Session, messages []domain.AgentMessage) (*store.Snapshot, error) {
	builder := commgraph.NewBuilder()
	if err := builder.Build(messages); err != nil {
		return nil, err
	}
	metrics, err := builder.Metrics()
	if err != nil {
		return nil, err
	}
	session.EventCount = len(messages)
	session.NodeCount = metrics.NodeCount
	return &store.Snapshot{Messages: messages}, nil
}

// firstUserInputLabel labels a session with its opening user input.
func firstUserInputLabel(wf *domain.WorkflowSnapshot) string {
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if n.Type == domain.NodeUserInput && n.Detail != "" {
			return n.Detail
		}
	}
	return ""
}

// logSessionID returns the session id the log itself declares, if any.
func logSessionID(events []domain.EventRecord) string {
	for i := range events {
		if events[i].SessionID != "" {
			return events[i].SessionID
		}
	}
	return ""
}

// ListSessions lists all stored sessions.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.store.ListSessions(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetSession returns one session's bookkeeping record.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.store.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		h.logger.Error("failed to get session", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get session")
	}
	if session == nil {
		return errorJSON(c, http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession removes a session and its snapshot.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")
	session, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		h.logger.Error("failed to get session", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to delete session")
	}
	if session == nil {
		return errorJSON(c, http.StatusNotFound, "session not found")
	}
	if err := h.store.DeleteSession(ctx, sessionID); err != nil {
		h.logger.Error("failed to delete session", "session_id", sessionID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to delete session")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}
