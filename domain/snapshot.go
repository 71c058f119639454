package domain

import "time"

// EdgeKind classifies a workflow edge.
type EdgeKind string

const (
	// EdgeFlow is ordinary sequential progression inside one lane.
	EdgeFlow EdgeKind = "flow"
	// EdgeFork connects a reasoning node to one tool call of a parallel batch.
	EdgeFork EdgeKind = "fork"
	// EdgeJoin connects a parallel batch back to the reasoning node that
	// consumed its results.
	EdgeJoin EdgeKind = "join"
	// EdgeSpawn crosses from a spawn tool call into a sub-agent lane.
	EdgeSpawn EdgeKind = "spawn"
	// EdgeReturn crosses from the last sub-agent node back to the spawn
	// call's result in the parent lane.
	EdgeReturn EdgeKind = "return"
)

// LaneStatus reports whether a sub-agent lane delivered its result.
type LaneStatus string

const (
	LaneCompleted LaneStatus = "completed"
	LaneRunning   LaneStatus = "running"
)

// ParallelGroup marks a node as one member of a concurrently dispatched
// batch of tool calls.
type ParallelGroup struct {
	GroupID string `json:"group_id"`
	Index   int    `json:"index"`
	Count   int    `json:"count"`
}

// WorkflowNode is one step of the reconstructed execution graph.
type WorkflowNode struct {
	ID        string    `json:"id"`
	Type      NodeType  `json:"type"`
	Label     string    `json:"label"`
	Lane      string    `json:"lane_id"`
	Timestamp time.Time `json:"timestamp"`

	// StepIndex is the node's position in the causal order, starting at 0.
	StepIndex int `json:"step_index"`

	// Detail is a short preview of the node's content.
	Detail string `json:"detail,omitempty"`

	ToolName  string `json:"tool_name,omitempty"`
	ToolInput string `json:"tool_input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	AgentType string `json:"agent_type,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Parallel *ParallelGroup `json:"parallel,omitempty"`

	Usage    *TokenUsage `json:"usage,omitempty"`
	ChunkIDs []string    `json:"chunk_ids,omitempty"`

	ParentIDs []string `json:"parent_ids,omitempty"`
	ChildIDs  []string `json:"child_ids,omitempty"`
}

// WorkflowEdge is one causal transition between workflow nodes.
type WorkflowEdge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`

	// StepIndex is the step at which the edge becomes visible: the target
	// node's position in the causal order.
	StepIndex int `json:"step_index"`

	// IsParallel marks fork edges whose source fans out to the calls of a
	// parallel batch.
	IsParallel bool `json:"is_parallel,omitempty"`
	// CrossLane marks edges whose endpoints sit in different lanes.
	CrossLane bool `json:"is_cross_lane,omitempty"`

	DurationMS    int64         `json:"duration_ms"`
	DurationClass DurationClass `json:"duration_class"`
	DurationLabel string        `json:"duration_label"`
}

// WorkflowLane is one execution lane: the main thread or a sub-agent.
type WorkflowLane struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	AgentID   string     `json:"agent_id,omitempty"`
	AgentType string     `json:"agent_type,omitempty"`
	NodeCount int        `json:"node_count"`
	Status    LaneStatus `json:"status,omitempty"`

	// ToolUseID is the spawn call in the parent lane that started this
	// sub-agent, when one could be matched.
	ToolUseID string `json:"tool_use_id,omitempty"`

	DurationMS    int64      `json:"duration_ms,omitempty"`
	Usage         TokenUsage `json:"usage"`
	ToolCallCount int        `json:"tool_call_count"`
}

// WorkflowAggregates summarizes a snapshot for list views and dashboards.
type WorkflowAggregates struct {
	NodeCount          int     `json:"node_count"`
	EdgeCount          int     `json:"edge_count"`
	LaneCount          int     `json:"lane_count"`
	ToolCallCount      int     `json:"tool_call_count"`
	ToolSuccessRate    float64 `json:"tool_success_rate"`
	ParallelGroupCount int     `json:"parallel_group_count"`
	MaxStep            int     `json:"max_step"`

	StartedAt      time.Time  `json:"started_at"`
	EndedAt        time.Time  `json:"ended_at"`
	WallDurationMS int64      `json:"wall_duration_ms"`
	TotalUsage     TokenUsage `json:"total_usage"`
}

// WorkflowSnapshot is the full serialized graph served to clients.
type WorkflowSnapshot struct {
	SessionID   string             `json:"session_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Nodes       []WorkflowNode     `json:"nodes"`
	Edges       []WorkflowEdge     `json:"edges"`
	Lanes       []WorkflowLane     `json:"lanes"`
	Aggregates  WorkflowAggregates `json:"aggregates"`
}
