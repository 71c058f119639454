// Package domain defines the core domain models for CommuGraph: canonical
// session event records, aggregated turns, and the graph snapshot contract
// served to presentation and annotation clients.
package domain

import (
	"fmt"
	"time"
)

// EventKind classifies a canonical event record.
type EventKind string

const (
	KindUserTurn      EventKind = "user_turn"
	KindAssistantTurn EventKind = "assistant_turn"
	KindSystemNotice  EventKind = "system_notice"
	KindToolResult    EventKind = "tool_result"
)

// NodeType classifies a workflow graph node.
type NodeType string

const (
	NodeReasoning    NodeType = "reasoning"
	NodeToolCall     NodeType = "tool_call"
	NodeToolResult   NodeType = "tool_result"
	NodeUserInput    NodeType = "user_input"
	NodeSystemNotice NodeType = "system_notice"
	NodeSessionStart NodeType = "session_start"
)

// DurationClass buckets an edge duration for display.
type DurationClass string

const (
	DurationFast     DurationClass = "fast"
	DurationMedium   DurationClass = "medium"
	DurationSlow     DurationClass = "slow"
	DurationVerySlow DurationClass = "very_slow"
)

// Duration classification thresholds.
const (
	FastThreshold   = 500 * time.Millisecond
	MediumThreshold = 2 * time.Second
	SlowThreshold   = 5 * time.Second
)

// ClassifyDuration maps a duration to its display bucket.
func ClassifyDuration(d time.Duration) DurationClass {
	switch {
	case d < FastThreshold:
		return DurationFast
	case d < MediumThreshold:
		return DurationMedium
	case d < SlowThreshold:
		return DurationSlow
	default:
		return DurationVerySlow
	}
}

// LaneMain is the lane id of the top-level agent thread.
const LaneMain = "main"

// LaneForAgent returns the lane id for a spawned sub-agent.
func LaneForAgent(agentID string) string {
	return "agent-" + agentID
}

// FormatDuration renders a duration as a compact human-readable string,
// e.g. "845ms", "12.4s", "3m 07s", "1h 02m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
