package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventRecord is the canonical, vendor-neutral form of one session log event.
// Parsers normalize every supported input format into this record before any
// graph construction happens.
type EventRecord struct {
	ID              string      `json:"id"`
	ParentID        string      `json:"parent_id,omitempty"`
	LogicalParentID string      `json:"logical_parent_id,omitempty"`
	SessionID       string      `json:"session_id,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
	Kind            EventKind   `json:"kind"`
	IsSideThread    bool        `json:"is_side_thread,omitempty"`
	AgentID         string      `json:"agent_id,omitempty"`
	RequestID       string      `json:"request_id,omitempty"`
	MessageID       string      `json:"message_id,omitempty"`
	ToolUseID       string      `json:"tool_use_id,omitempty"`
	Content         ContentList `json:"content,omitempty"`
	Usage           *TokenUsage `json:"usage,omitempty"`
	Source          SourceRef   `json:"source"`
}

// CausalParent returns the id of the event this record causally follows.
// The logical parent takes precedence over the structural parent so that
// chains survive context compaction boundaries.
func (e *EventRecord) CausalParent() string {
	if e.LogicalParentID != "" {
		return e.LogicalParentID
	}
	return e.ParentID
}

// Lane returns the execution lane this event belongs to.
func (e *EventRecord) Lane() string {
	if e.IsSideThread && e.AgentID != "" {
		return LaneForAgent(e.AgentID)
	}
	return LaneMain
}

// SourceRef points back at the raw input an event was parsed from.
type SourceRef struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// TokenUsage carries the model token accounting attached to an event.
type TokenUsage struct {
	Input         int `json:"input_tokens"`
	Output        int `json:"output_tokens"`
	CacheRead     int `json:"cache_read_tokens,omitempty"`
	CacheCreation int `json:"cache_creation_tokens,omitempty"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int {
	return u.Input + u.Output + u.CacheRead + u.CacheCreation
}

// Add accumulates another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
	u.CacheRead += other.CacheRead
	u.CacheCreation += other.CacheCreation
}

// ContentBlock is one typed chunk of event content. The concrete block
// types below form a closed set.
type ContentBlock interface {
	isContentBlock()
}

// TextBlock is a plain response text chunk.
type TextBlock struct {
	Text string `json:"text"`
}

// ThinkingBlock is an extended reasoning chunk. Signature is the opaque
// continuation token some providers attach to reasoning output.
type ThinkingBlock struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

// ToolUseBlock is a tool invocation issued by the model.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResultBlock is the outcome of a prior tool invocation.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Output    string `json:"output,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ImageBlock is an inline image attachment. Only the media type is kept;
// payload bytes are dropped at parse time.
type ImageBlock struct {
	MediaType string `json:"media_type,omitempty"`
}

func (TextBlock) isContentBlock()       {}
func (ThinkingBlock) isContentBlock()   {}
func (ToolUseBlock) isContentBlock()    {}
func (ToolResultBlock) isContentBlock() {}
func (ImageBlock) isContentBlock()      {}

// ContentList is an ordered sequence of content blocks. It marshals each
// block with a "type" discriminator field so records round-trip through
// storage and the API unchanged.
type ContentList []ContentBlock

// Block type discriminators used on the wire.
const (
	blockText       = "text"
	blockThinking   = "thinking"
	blockToolUse    = "tool_use"
	blockToolResult = "tool_result"
	blockImage      = "image"
)

type taggedBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Output    string `json:"output,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	MediaType string `json:"media_type,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c ContentList) MarshalJSON() ([]byte, error) {
	tagged := make([]taggedBlock, 0, len(c))
	for _, block := range c {
		switch b := block.(type) {
		case TextBlock:
			tagged = append(tagged, taggedBlock{Type: blockText, Text: b.Text})
		case ThinkingBlock:
			tagged = append(tagged, taggedBlock{Type: blockThinking, Thinking: b.Thinking, Signature: b.Signature})
		case ToolUseBlock:
			tagged = append(tagged, taggedBlock{Type: blockToolUse, ID: b.ID, Name: b.Name, Input: b.Input})
		case ToolResultBlock:
			tagged = append(tagged, taggedBlock{Type: blockToolResult, ToolUseID: b.ToolUseID, Output: b.Output, IsError: b.IsError})
		case ImageBlock:
			tagged = append(tagged, taggedBlock{Type: blockImage, MediaType: b.MediaType})
		default:
			return nil, fmt.Errorf("marshal content: unknown block type %T", block)
		}
	}
	return json.Marshal(tagged)
}

// UnmarshalJSON implements json.Unmarshaler. Blocks with an unrecognized
// discriminator are dropped rather than failing the whole record.
func (c *ContentList) UnmarshalJSON(data []byte) error {
	var tagged []taggedBlock
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("unmarshal content: %w", err)
	}
	blocks := make(ContentList, 0, len(tagged))
	for _, t := range tagged {
		switch t.Type {
		case blockText:
			blocks = append(blocks, TextBlock{Text: t.Text})
		case blockThinking:
			blocks = append(blocks, ThinkingBlock{Thinking: t.Thinking, Signature: t.Signature})
		case blockToolUse:
			blocks = append(blocks, ToolUseBlock{ID: t.ID, Name: t.Name, Input: t.Input})
		case blockToolResult:
			blocks = append(blocks, ToolResultBlock{ToolUseID: t.ToolUseID, Output: t.Output, IsError: t.IsError})
		case blockImage:
			blocks = append(blocks, ImageBlock{MediaType: t.MediaType})
		}
	}
	*c = blocks
	return nil
}

// Text returns all plain text chunks joined with newlines.
func (c ContentList) Text() string {
	var parts []string
	for _, block := range c {
		if b, ok := block.(TextBlock); ok && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Thinking returns all reasoning chunks joined with newlines.
func (c ContentList) Thinking() string {
	var parts []string
	for _, block := range c {
		if b, ok := block.(ThinkingBlock); ok && b.Thinking != "" {
			parts = append(parts, b.Thinking)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the tool invocation blocks in order.
func (c ContentList) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, block := range c {
		if b, ok := block.(ToolUseBlock); ok {
			uses = append(uses, b)
		}
	}
	return uses
}

// ToolResults returns the tool result blocks in order.
func (c ContentList) ToolResults() []ToolResultBlock {
	var results []ToolResultBlock
	for _, block := range c {
		if b, ok := block.(ToolResultBlock); ok {
			results = append(results, b)
		}
	}
	return results
}
