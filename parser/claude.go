package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

func init() {
	MustRegister(&ClaudeParser{})
}

// Tool outputs can embed whole files or screenshots, so single lines grow
// far past bufio's default token size.
const maxLineBytes = 16 << 20

// ClaudeParser decodes newline-delimited session logs into canonical event
// records. Every field is optional on the wire; lines that cannot identify
// or timestamp themselves are dropped with a warning, bookkeeping lines
// (summaries, progress markers, meta turns) are dropped silently.
type ClaudeParser struct{}

// Framework implements Parser.
func (p *ClaudeParser) Framework() Framework { return FrameworkClaude }

// Parse decodes each file independently and concatenates the results, so
// per-agent log files upload as one batch.
func (p *ClaudeParser) Parse(ctx context.Context, files []File) (*Batch, error) {
	batch := &Batch{Framework: FrameworkClaude}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(bytes.NewReader(f.Data))
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			event, err := parseClaudeLine(line, domain.SourceRef{File: f.Name, Line: lineNo})
			if err != nil {
				batch.Warnings = append(batch.Warnings, fmt.Sprintf("%s line %d: %v", f.Name, lineNo, err))
				continue
			}
			if event != nil {
				batch.Events = append(batch.Events, *event)
			}
		}
		if err := sc.Err(); err != nil {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("%s: stopped reading after line %d: %v", f.Name, lineNo, err))
		}
	}
	if len(batch.Events) == 0 {
		return nil, fmt.Errorf("no valid events found")
	}
	return batch, nil
}

// claudeLine mirrors one raw log line. Unknown fields are ignored so the
// struct survives format additions.
type claudeLine struct {
	UUID              string          `json:"uuid"`
	ParentUUID        string          `json:"parentUuid"`
	LogicalParentUUID string          `json:"logicalParentUuid"`
	SessionID         string          `json:"sessionId"`
	AgentID           string          `json:"agentId"`
	RequestID         string          `json:"requestId"`
	IsSidechain       bool            `json:"isSidechain"`
	IsMeta            bool            `json:"isMeta"`
	Timestamp         string          `json:"timestamp"`
	Type              string          `json:"type"`
	Content           json.RawMessage `json:"content"`
	Message           *claudeMessage  `json:"message"`
	ToolUseResult     json.RawMessage `json:"toolUseResult"`
}

type claudeMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Usage   *claudeUsage    `json:"usage"`
}

type claudeUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// claudeBlock mirrors one raw content block. Tool result payloads arrive
// under "content" as either a string or nested blocks.
type claudeBlock struct {
	Type      string             `json:"type"`
	Text      string             `json:"text"`
	Thinking  string             `json:"thinking"`
	Signature string             `json:"signature"`
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Input     json.RawMessage    `json:"input"`
	ToolUseID string             `json:"tool_use_id"`
	Content   json.RawMessage    `json:"content"`
	IsError   bool               `json:"is_error"`
	Source    *claudeImageSource `json:"source"`
}

type claudeImageSource struct {
	MediaType string `json:"media_type"`
}

// parseClaudeLine maps one line to a canonical event. A nil event with a
// nil error means the line is valid but carries nothing to model.
func parseClaudeLine(data []byte, src domain.SourceRef) (*domain.EventRecord, error) {
	var line claudeLine
	if err := json.Unmarshal(data, &line); err != nil {
		return nil, fmt.Errorf("skipped malformed line: %v", err)
	}

	switch line.Type {
	case "user", "assistant", "system":
	default:
		// Summary, progress and other bookkeeping lines.
		return nil, nil
	}
	if line.IsMeta {
		return nil, nil
	}
	if line.UUID == "" {
		return nil, fmt.Errorf("skipped line without uuid")
	}
	ts, err := time.Parse(time.RFC3339Nano, line.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("skipped line with bad timestamp %q", line.Timestamp)
	}

	rawContent := line.Content
	if line.Message != nil && len(line.Message.Content) > 0 {
		rawContent = line.Message.Content
	}
	content, err := decodeBlocks(rawContent)
	if err != nil {
		return nil, fmt.Errorf("skipped line with bad content: %v", err)
	}

	event := &domain.EventRecord{
		ID:              line.UUID,
		ParentID:        line.ParentUUID,
		LogicalParentID: line.LogicalParentUUID,
		SessionID:       line.SessionID,
		Timestamp:       ts.UTC(),
		IsSideThread:    line.IsSidechain,
		AgentID:         line.AgentID,
		RequestID:       line.RequestID,
		Content:         content,
		Source:          src,
	}
	if line.Message != nil {
		event.MessageID = line.Message.ID
		if line.Message.Usage != nil {
			u := line.Message.Usage
			event.Usage = &domain.TokenUsage{
				Input:         u.InputTokens,
				Output:        u.OutputTokens,
				CacheRead:     u.CacheReadInputTokens,
				CacheCreation: u.CacheCreationInputTokens,
			}
		}
	}

	switch line.Type {
	case "assistant":
		event.Kind = domain.KindAssistantTurn
	case "system":
		event.Kind = domain.KindSystemNotice
	default:
		if results := content.ToolResults(); len(results) > 0 {
			event.Kind = domain.KindToolResult
			event.ToolUseID = results[0].ToolUseID
		} else {
			event.Kind = domain.KindUserTurn
		}
	}
	return event, nil
}

// decodeBlocks normalizes raw message content, which is either a bare
// string or a block array, into canonical content blocks.
func decodeBlocks(raw json.RawMessage) (domain.ContentList, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, err
		}
		if text == "" {
			return nil, nil
		}
		return domain.ContentList{domain.TextBlock{Text: text}}, nil
	}

	var rawBlocks []claudeBlock
	if err := json.Unmarshal(trimmed, &rawBlocks); err != nil {
		return nil, err
	}
	blocks := make(domain.ContentList, 0, len(rawBlocks))
	for _, rb := range rawBlocks {
		switch rb.Type {
		case "text":
			blocks = append(blocks, domain.TextBlock{Text: rb.Text})
		case "thinking":
			blocks = append(blocks, domain.ThinkingBlock{Thinking: rb.Thinking, Signature: rb.Signature})
		case "tool_use":
			blocks = append(blocks, domain.ToolUseBlock{ID: rb.ID, Name: rb.Name, Input: rb.Input})
		case "tool_result":
			blocks = append(blocks, domain.ToolResultBlock{
				ToolUseID: rb.ToolUseID,
				Output:    flattenText(rb.Content),
				IsError:   rb.IsError,
			})
		case "image":
			var mediaType string
			if rb.Source != nil {
				mediaType = rb.Source.MediaType
			}
			blocks = append(blocks, domain.ImageBlock{MediaType: mediaType})
		}
	}
	return blocks, nil
}

// flattenText reduces a string-or-blocks payload to plain text.
func flattenText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '"' {
		var text string
		if json.Unmarshal(trimmed, &text) == nil {
			return text
		}
		return ""
	}
	var rawBlocks []claudeBlock
	if json.Unmarshal(trimmed, &rawBlocks) != nil {
		return ""
	}
	var parts []string
	for _, rb := range rawBlocks {
		if rb.Type == "text" && rb.Text != "" {
			parts = append(parts, rb.Text)
		}
	}
	return strings.Join(parts, "\n")
}
