package parser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

func parseAutoGen(t *testing.T, files ...File) *Batch {
	t.Helper()
	batch, err := (&AutoGenParser{}).Parse(context.Background(), files)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return batch
}

func TestParseAutoGenJSONL(t *testing.T) {
	lines := []string{
		`{"sender":"Manager","recipient":"Coder","message":"Please implement the parser","timestamp":1704196800}`,
		`{"name":"Coder","to":"Manager","content":"all finished"}`,
		`{"from":"Manager","to":"all","text":"good work"}`,
	}
	batch := parseAutoGen(t, File{Name: "chat.jsonl", Data: []byte(strings.Join(lines, "\n"))})

	if len(batch.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(batch.Messages))
	}

	first := batch.Messages[0]
	if first.Sender != "Manager" || first.Receiver != "Coder" {
		t.Fatalf("unexpected endpoints: %+v", first)
	}
	if first.Type != domain.MessageDelegation {
		t.Fatalf("expected delegation, got %s", first.Type)
	}
	if !first.Timestamp.Equal(time.Unix(1704196800, 0).UTC()) {
		t.Fatalf("unexpected timestamp: %v", first.Timestamp)
	}

	second := batch.Messages[1]
	if second.Sender != "Coder" || second.Receiver != "Manager" || second.StepIndex != 1 {
		t.Fatalf("unexpected second message: %+v", second)
	}
	if second.Type != domain.MessageResponse {
		t.Fatalf("expected response, got %s", second.Type)
	}
	if !second.Timestamp.Equal(autogenEpoch.Add(time.Millisecond)) {
		t.Fatalf("expected inferred timestamp, got %v", second.Timestamp)
	}

	broadcast := batch.Messages[2]
	if broadcast.Receiver != "" || broadcast.Content != "good work" {
		t.Fatalf("unexpected broadcast: %+v", broadcast)
	}
}

func TestParseAutoGenArray(t *testing.T) {
	data := `[
		{"sender":"A","recipient":"B","message":{"content":"can you review this"}},
		{"sender":"B","recipient":"A","message":{"text":"reviewed"}}
	]`
	batch := parseAutoGen(t, File{Name: "chat.json", Data: []byte(data)})

	if len(batch.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(batch.Messages))
	}
	if batch.Messages[0].Content != "can you review this" || batch.Messages[1].Content != "reviewed" {
		t.Fatalf("unexpected contents: %+v", batch.Messages)
	}
}

func TestParseAutoGenSkipsEmptyContent(t *testing.T) {
	lines := []string{
		`{"sender":"A","recipient":"B","content":"first"}`,
		`{"sender":"A","recipient":"B","content":"   "}`,
		`{"sender":"A","recipient":"B","content":"third"}`,
	}
	batch := parseAutoGen(t, File{Name: "chat.jsonl", Data: []byte(strings.Join(lines, "\n"))})

	if len(batch.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(batch.Messages))
	}
	// The step counter covers skipped entries too.
	if batch.Messages[0].StepIndex != 0 || batch.Messages[1].StepIndex != 2 {
		t.Fatalf("unexpected step indexes: %+v", batch.Messages)
	}
}

func TestParseAutoGenMalformedLine(t *testing.T) {
	lines := []string{
		`{"sender":"A","recipient":"B","content":"ok"}`,
		`{broken`,
		`{"sender":"B","recipient":"A","content":"ok too"}`,
	}
	batch := parseAutoGen(t, File{Name: "chat.jsonl", Data: []byte(strings.Join(lines, "\n"))})

	if len(batch.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(batch.Messages))
	}
	if len(batch.Warnings) != 1 || !strings.Contains(batch.Warnings[0], "line 2") {
		t.Fatalf("expected warning for line 2, got %v", batch.Warnings)
	}
}

func TestParseAutoGenEmpty(t *testing.T) {
	_, err := (&AutoGenParser{}).Parse(context.Background(), []File{{Name: "chat.jsonl", Data: []byte("")}})
	if err == nil {
		t.Fatalf("expected error for input without messages")
	}
}

func TestInferMessageType(t *testing.T) {
	cases := []struct {
		name    string
		entry   map[string]any
		content string
		want    domain.MessageType
	}{
		{"explicit type", map[string]any{"type": "observation"}, "whatever", domain.MessageObservation},
		{"unknown type falls through", map[string]any{"type": "chatter"}, "plain reply", domain.MessageResponse},
		{"system role", map[string]any{"role": "system"}, "rules", domain.MessageSystem},
		{"delegation keyword", map[string]any{}, "Could you build the index?", domain.MessageDelegation},
		{"thought keyword", map[string]any{}, "let me think about this", domain.MessageThought},
		{"action keyword", map[string]any{}, "executing test suite", domain.MessageAction},
		{"function call key", map[string]any{"function_call": map[string]any{}}, "tool time", domain.MessageAction},
		{"default", map[string]any{}, "the answer is 42", domain.MessageResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := inferMessageType(tc.entry, tc.content); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestExtractTimestamp(t *testing.T) {
	iso := extractTimestamp(map[string]any{"time": "2026-01-02T10:00:00+02:00"}, 0)
	if !iso.Equal(time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected iso timestamp: %v", iso)
	}
	bare := extractTimestamp(map[string]any{"created_at": "2026-01-02T10:00:00"}, 0)
	if !bare.Equal(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bare timestamp: %v", bare)
	}
	inferred := extractTimestamp(map[string]any{"date": "not a date"}, 7)
	if !inferred.Equal(autogenEpoch.Add(7 * time.Millisecond)) {
		t.Fatalf("unexpected inferred timestamp: %v", inferred)
	}
}
