package domain

import "time"

// MessageType classifies one entry of a multi-agent conversation log.
type MessageType string

const (
	MessageThought     MessageType = "thought"
	MessageAction      MessageType = "action"
	MessageObservation MessageType = "observation"
	MessageDelegation  MessageType = "delegation"
	MessageResponse    MessageType = "response"
	MessageSystem      MessageType = "system"
)

// IntentLabel is the semantic label attached to an edge interaction.
type IntentLabel string

const (
	IntentDelegation   IntentLabel = "delegation"
	IntentInfoRequest  IntentLabel = "information_request"
	IntentInfoResponse IntentLabel = "information_response"
	IntentFeedback     IntentLabel = "feedback"
	IntentCoordination IntentLabel = "coordination"
	IntentUnknown      IntentLabel = "unknown"
)

// AgentMessage is one message of an agent-to-agent conversation log
// (AutoGen and similar frameworks). Receiver is empty for broadcasts.
type AgentMessage struct {
	StepIndex int         `json:"step_index"`
	Timestamp time.Time   `json:"timestamp"`
	Sender    string      `json:"sender"`
	Receiver  string      `json:"receiver,omitempty"`
	Type      MessageType `json:"message_type"`
	Content   string      `json:"content"`
}

// Interaction is one traversal of a communication edge at a point in time.
// Edges accumulate interactions so clients can replay the conversation with
// a step slider.
type Interaction struct {
	StepIndex      int         `json:"step_index"`
	Timestamp      time.Time   `json:"timestamp"`
	Intent         IntentLabel `json:"intent"`
	MessageType    MessageType `json:"message_type"`
	ContentPreview string      `json:"content_preview,omitempty"`
}

// CommNode is one agent in the communication graph.
type CommNode struct {
	ID               string    `json:"id"`
	Label            string    `json:"label"`
	MessageCount     int       `json:"message_count"`
	MessagesReceived int       `json:"messages_received"`
	FirstAppearance  time.Time `json:"first_appearance"`
	LastActivity     time.Time `json:"last_activity"`
}

// CommEdge is one sender→receiver channel with its interaction history.
type CommEdge struct {
	Source       string        `json:"source"`
	Target       string        `json:"target"`
	Interactions []Interaction `json:"interactions"`
	Weight       int           `json:"weight"`
}

// CommSnapshot is a communication graph state, optionally filtered to a
// maximum step for time-slider replay.
type CommSnapshot struct {
	Nodes []CommNode `json:"nodes"`
	Edges []CommEdge `json:"edges"`

	// CurrentStep is set when the snapshot was filtered to a step.
	CurrentStep  *int `json:"current_step,omitempty"`
	TotalSteps   int  `json:"total_steps"`
	MessageCount int  `json:"message_count"`
}

// CommMetrics carries basic graph statistics for the metrics endpoint.
type CommMetrics struct {
	NodeCount           int                `json:"node_count"`
	EdgeCount           int                `json:"edge_count"`
	Density             float64            `json:"density"`
	DegreeCentrality    map[string]float64 `json:"degree_centrality,omitempty"`
	InDegreeCentrality  map[string]float64 `json:"in_degree_centrality,omitempty"`
	OutDegreeCentrality map[string]float64 `json:"out_degree_centrality,omitempty"`
}
