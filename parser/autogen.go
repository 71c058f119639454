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
	MustRegister(&AutoGenParser{})
}

// Timestamps are frequently absent from conversation logs; entries without
// one get a stable synthetic instant derived from their step index.
var autogenEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var autogenTimestampFields = []string{"timestamp", "time", "created_at", "date"}

var (
	delegationKeywords = []string{"please", "can you", "could you", "implement", "create", "build"}
	thoughtKeywords    = []string{"thinking", "analyzing", "considering", "let me think"}
	actionKeywords     = []string{"executing", "running", "calling", "function_call"}
)

// AutoGenParser decodes agent conversation logs, either newline-delimited
// JSON or a single JSON array, into agent messages. Field names vary across
// AutoGen versions and GroupChat setups, so extraction runs over fallback
// chains rather than a fixed schema.
type AutoGenParser struct{}

// Framework implements Parser.
func (p *AutoGenParser) Framework() Framework { return FrameworkAutoGen }

// Parse decodes each file in turn. The step counter runs across files so a
// multi-file upload keeps one global conversation order.
func (p *AutoGenParser) Parse(ctx context.Context, files []File) (*Batch, error) {
	batch := &Batch{Framework: FrameworkAutoGen}
	step := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step = p.parseFile(f, step, batch)
	}
	if len(batch.Messages) == 0 {
		return nil, fmt.Errorf("no valid messages found")
	}
	return batch, nil
}

func (p *AutoGenParser) parseFile(f File, step int, batch *Batch) int {
	trimmed := bytes.TrimSpace(f.Data)
	if len(trimmed) == 0 {
		return step
	}

	if trimmed[0] == '[' {
		var entries []map[string]any
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("%s: skipped file with bad JSON array: %v", f.Name, err))
			return step
		}
		for _, entry := range entries {
			if msg, ok := parseAutoGenEntry(entry, step); ok {
				batch.Messages = append(batch.Messages, msg)
			}
			step++
		}
		return step
	}

	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("%s line %d: skipped malformed line: %v", f.Name, lineNo, err))
			step++
			continue
		}
		if msg, ok := parseAutoGenEntry(entry, step); ok {
			batch.Messages = append(batch.Messages, msg)
		}
		step++
	}
	if err := sc.Err(); err != nil {
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("%s: stopped reading after line %d: %v", f.Name, lineNo, err))
	}
	return step
}

// parseAutoGenEntry maps one log entry to an agent message. Entries with no
// content are skipped.
func parseAutoGenEntry(entry map[string]any, step int) (domain.AgentMessage, bool) {
	sender := stringField(entry, "sender", "name", "from")
	if sender == "" {
		sender = "unknown"
	}

	receiver := stringField(entry, "recipient", "to")
	if strings.EqualFold(receiver, "all") {
		// Group chat broadcast.
		receiver = ""
	}

	content := entryContent(entry)
	if strings.TrimSpace(content) == "" {
		return domain.AgentMessage{}, false
	}

	return domain.AgentMessage{
		StepIndex: step,
		Timestamp: extractTimestamp(entry, step),
		Sender:    sender,
		Receiver:  receiver,
		Type:      inferMessageType(entry, content),
		Content:   content,
	}, true
}

func entryContent(entry map[string]any) string {
	if raw, ok := entry["message"]; ok {
		switch m := raw.(type) {
		case string:
			return m
		case map[string]any:
			if s := stringField(m, "content", "text"); s != "" {
				return s
			}
		}
		encoded, _ := json.Marshal(raw)
		return string(encoded)
	}
	return stringField(entry, "content", "text")
}

func extractTimestamp(entry map[string]any, step int) time.Time {
	for _, field := range autogenTimestampFields {
		v, ok := entry[field]
		if !ok {
			continue
		}
		switch ts := v.(type) {
		case float64:
			// Unix seconds, possibly fractional.
			sec := int64(ts)
			nsec := int64((ts - float64(sec)) * float64(time.Second))
			return time.Unix(sec, nsec).UTC()
		case string:
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				return t.UTC()
			}
			if t, err := time.Parse("2006-01-02T15:04:05", ts); err == nil {
				return t.UTC()
			}
		}
	}
	return autogenEpoch.Add(time.Duration(step) * time.Millisecond)
}

func inferMessageType(entry map[string]any, content string) domain.MessageType {
	if raw, ok := entry["type"].(string); ok {
		if typ, known := knownMessageType(strings.ToLower(raw)); known {
			return typ
		}
	}
	if strings.EqualFold(stringField(entry, "role"), "system") {
		return domain.MessageSystem
	}

	lower := strings.ToLower(content)
	if containsAny(lower, delegationKeywords) {
		return domain.MessageDelegation
	}
	if containsAny(lower, thoughtKeywords) {
		return domain.MessageThought
	}
	if containsAny(lower, actionKeywords) || hasKey(entry, "function_call") {
		return domain.MessageAction
	}
	return domain.MessageResponse
}

func knownMessageType(s string) (domain.MessageType, bool) {
	switch t := domain.MessageType(s); t {
	case domain.MessageThought, domain.MessageAction, domain.MessageObservation,
		domain.MessageDelegation, domain.MessageResponse, domain.MessageSystem:
		return t, true
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
