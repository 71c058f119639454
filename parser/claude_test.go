package parser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

func parseClaude(t *testing.T, files ...File) *Batch {
	t.Helper()
	batch, err := (&ClaudeParser{}).Parse(context.Background(), files)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return batch
}

func TestParseClaudeSession(t *testing.T) {
	lines := []string{
		`{"type":"user","uuid":"u1","sessionId":"sess-log","timestamp":"2026-01-02T10:00:00Z","message":{"role":"user","content":"hello"}}`,
		`{"type":"assistant","uuid":"a1","parentUuid":"u1","requestId":"req-1","timestamp":"2026-01-02T10:00:01Z","message":{"id":"msg-1","role":"assistant","content":[{"type":"thinking","thinking":"plan"},{"type":"text","text":"on it"},{"type":"tool_use","id":"tu-1","name":"Read","input":{"file_path":"main.go"}}],"usage":{"input_tokens":10,"output_tokens":5,"cache_read_input_tokens":2}}}`,
		`{"type":"user","uuid":"r1","parentUuid":"a1","timestamp":"2026-01-02T10:00:02Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu-1","content":"package main"}]}}`,
		`{"type":"summary","summary":"parsing session","leafUuid":"a1"}`,
		`not json at all`,
		`{"type":"user","uuid":"meta-1","isMeta":true,"timestamp":"2026-01-02T10:00:03Z","message":{"role":"user","content":"<command-output>"}}`,
	}
	batch := parseClaude(t, File{Name: "main.jsonl", Data: []byte(strings.Join(lines, "\n"))})

	if len(batch.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(batch.Events))
	}
	if len(batch.Warnings) != 1 || !strings.Contains(batch.Warnings[0], "line 5") {
		t.Fatalf("expected one warning for line 5, got %v", batch.Warnings)
	}

	user := batch.Events[0]
	if user.Kind != domain.KindUserTurn || user.SessionID != "sess-log" {
		t.Fatalf("unexpected user event: %+v", user)
	}
	if user.Content.Text() != "hello" {
		t.Fatalf("unexpected user text: %q", user.Content.Text())
	}
	if user.Source.File != "main.jsonl" || user.Source.Line != 1 {
		t.Fatalf("unexpected source ref: %+v", user.Source)
	}

	turn := batch.Events[1]
	if turn.Kind != domain.KindAssistantTurn || turn.ParentID != "u1" {
		t.Fatalf("unexpected assistant event: %+v", turn)
	}
	if turn.RequestID != "req-1" || turn.MessageID != "msg-1" {
		t.Fatalf("unexpected turn keys: %+v", turn)
	}
	if turn.Content.Thinking() != "plan" || turn.Content.Text() != "on it" {
		t.Fatalf("unexpected turn content: %+v", turn.Content)
	}
	uses := turn.Content.ToolUses()
	if len(uses) != 1 || uses[0].Name != "Read" || uses[0].ID != "tu-1" {
		t.Fatalf("unexpected tool uses: %+v", uses)
	}
	if turn.Usage == nil || turn.Usage.Input != 10 || turn.Usage.Output != 5 || turn.Usage.CacheRead != 2 {
		t.Fatalf("unexpected usage: %+v", turn.Usage)
	}
	if !turn.Timestamp.Equal(time.Date(2026, 1, 2, 10, 0, 1, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp: %v", turn.Timestamp)
	}

	result := batch.Events[2]
	if result.Kind != domain.KindToolResult || result.ToolUseID != "tu-1" {
		t.Fatalf("unexpected result event: %+v", result)
	}
	results := result.Content.ToolResults()
	if len(results) != 1 || results[0].Output != "package main" {
		t.Fatalf("unexpected result content: %+v", results)
	}
}

func TestParseClaudeNestedResultContent(t *testing.T) {
	line := `{"type":"user","uuid":"r1","timestamp":"2026-01-02T10:00:00Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu-1","is_error":true,"content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]}]}}`
	batch := parseClaude(t, File{Name: "a.jsonl", Data: []byte(line)})

	results := batch.Events[0].Content.ToolResults()
	if len(results) != 1 {
		t.Fatalf("expected 1 result block, got %d", len(results))
	}
	if results[0].Output != "first\nsecond" || !results[0].IsError {
		t.Fatalf("unexpected result block: %+v", results[0])
	}
}

func TestParseClaudeSidechain(t *testing.T) {
	line := `{"type":"assistant","uuid":"s1","isSidechain":true,"agentId":"ag-1","requestId":"req-9","timestamp":"2026-01-02T10:00:00Z","message":{"id":"m9","role":"assistant","content":[{"type":"text","text":"sub work"}]}}`
	batch := parseClaude(t, File{Name: "agent.jsonl", Data: []byte(line)})

	event := batch.Events[0]
	if !event.IsSideThread || event.AgentID != "ag-1" {
		t.Fatalf("unexpected sidechain fields: %+v", event)
	}
	if event.Lane() != "agent-ag-1" {
		t.Fatalf("unexpected lane: %s", event.Lane())
	}
}

func TestParseClaudeBadLines(t *testing.T) {
	lines := []string{
		`{"type":"user","timestamp":"2026-01-02T10:00:00Z","message":{"content":"no uuid"}}`,
		`{"type":"user","uuid":"u1","timestamp":"yesterday","message":{"content":"bad time"}}`,
		`{"type":"user","uuid":"u2","timestamp":"2026-01-02T10:00:01Z","message":{"content":"fine"}}`,
	}
	batch := parseClaude(t, File{Name: "a.jsonl", Data: []byte(strings.Join(lines, "\n"))})

	if len(batch.Events) != 1 || batch.Events[0].ID != "u2" {
		t.Fatalf("expected only u2 to survive, got %+v", batch.Events)
	}
	if len(batch.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", batch.Warnings)
	}
}

func TestParseClaudeMultiFile(t *testing.T) {
	main := `{"type":"user","uuid":"u1","timestamp":"2026-01-02T10:00:00Z","message":{"content":"hi"}}`
	agent := `{"type":"assistant","uuid":"s1","isSidechain":true,"agentId":"ag-1","timestamp":"2026-01-02T10:00:05Z","message":{"id":"m1","content":[{"type":"text","text":"done"}]}}`
	batch := parseClaude(t,
		File{Name: "main.jsonl", Data: []byte(main)},
		File{Name: "agent.jsonl", Data: []byte(agent)},
	)

	if len(batch.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(batch.Events))
	}
	if batch.Events[0].Source.File != "main.jsonl" || batch.Events[1].Source.File != "agent.jsonl" {
		t.Fatalf("unexpected source files: %+v, %+v", batch.Events[0].Source, batch.Events[1].Source)
	}
}

func TestParseClaudeEmpty(t *testing.T) {
	_, err := (&ClaudeParser{}).Parse(context.Background(), []File{{Name: "a.jsonl", Data: []byte("\n\n")}})
	if err == nil {
		t.Fatalf("expected error for input without events")
	}
}
