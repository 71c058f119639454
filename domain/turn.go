package domain

import (
	"encoding/json"
	"time"
)

// Turn is one aggregated assistant response. Streaming emits a single model
// response as several chunk events sharing a request id; a Turn folds those
// chunks back into the one logical step the model actually took.
type Turn struct {
	// ID is the id of the first chunk event, so turn ids stay stable
	// across rebuilds of the same input.
	ID        string    `json:"id"`
	RequestID string    `json:"request_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Thinking  string     `json:"thinking,omitempty"`
	Response  string     `json:"response,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     TokenUsage `json:"usage"`

	// ChunkIDs lists every merged chunk event in timestamp order.
	ChunkIDs []string    `json:"chunk_ids"`
	Sources  []SourceRef `json:"sources,omitempty"`

	IsSideThread bool   `json:"is_side_thread,omitempty"`
	AgentID      string `json:"agent_id,omitempty"`
}

// Lane returns the execution lane this turn belongs to.
func (t *Turn) Lane() string {
	if t.IsSideThread && t.AgentID != "" {
		return LaneForAgent(t.AgentID)
	}
	return LaneMain
}

// HasToolCalls reports whether the turn issued any tool invocations.
func (t *Turn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

// ToolCall is one tool invocation extracted from an assistant turn.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// TimelineEntry is one element of the causally ordered session timeline.
// Exactly one of Turn and Event is set: aggregated assistant turns carry
// Turn, everything else carries the raw event record.
type TimelineEntry struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Turn  *Turn        `json:"turn,omitempty"`
	Event *EventRecord `json:"event,omitempty"`
}

// Lane returns the execution lane of the underlying turn or event.
func (e *TimelineEntry) Lane() string {
	if e.Turn != nil {
		return e.Turn.Lane()
	}
	if e.Event != nil {
		return e.Event.Lane()
	}
	return LaneMain
}

// IsSideThread reports whether the entry runs in a sub-agent lane.
func (e *TimelineEntry) IsSideThread() bool {
	if e.Turn != nil {
		return e.Turn.IsSideThread
	}
	if e.Event != nil {
		return e.Event.IsSideThread
	}
	return false
}

// AgentID returns the sub-agent id of the entry, if any.
func (e *TimelineEntry) AgentID() string {
	if e.Turn != nil {
		return e.Turn.AgentID
	}
	if e.Event != nil {
		return e.Event.AgentID
	}
	return ""
}
