package dedup

import (
	"testing"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

var base = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func userEvent(id, parent string, ts time.Time, content ...domain.ContentBlock) domain.EventRecord {
	return domain.EventRecord{
		ID:        id,
		ParentID:  parent,
		Timestamp: ts,
		Kind:      domain.KindUserTurn,
		Content:   content,
	}
}

func assistantChunk(id, msgID, reqID string, ts time.Time, sig string) domain.EventRecord {
	return domain.EventRecord{
		ID:        id,
		Timestamp: ts,
		Kind:      domain.KindAssistantTurn,
		MessageID: msgID,
		RequestID: reqID,
		Content:   domain.ContentList{domain.ThinkingBlock{Thinking: "t", Signature: sig}},
	}
}

func survivorIDs(r Result) map[string]bool {
	ids := make(map[string]bool, len(r.Events))
	for _, e := range r.Events {
		ids[e.ID] = true
	}
	return ids
}

func TestNoDuplicatesPassthrough(t *testing.T) {
	events := []domain.EventRecord{
		userEvent("u1", "", base, domain.TextBlock{Text: "hello"}),
		assistantChunk("a1", "m1", "r1", base.Add(time.Second), "sig-a"),
		userEvent("u2", "a1", base.Add(2*time.Second), domain.TextBlock{Text: "more"}),
	}

	result := Run(events)
	if result.Dropped != 0 {
		t.Fatalf("expected 0 dropped, got %d", result.Dropped)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
	if len(result.Events) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(result.Events))
	}
	for i, e := range result.Events {
		if e.ID != events[i].ID {
			t.Fatalf("expected original order, got %v", result.Events)
		}
	}
}

func TestAssistantChunkDuplicates(t *testing.T) {
	ts := base.Add(time.Second)
	events := []domain.EventRecord{
		assistantChunk("a1", "m1", "r1", ts, "signature-token"),
		assistantChunk("a2", "m1", "r1", ts, "signature-token"),
		assistantChunk("a3", "m1", "r1", ts.Add(time.Millisecond), "signature-token"),
	}

	result := Run(events)
	ids := survivorIDs(result)
	if !ids["a1"] || ids["a2"] {
		t.Fatalf("expected a1 kept and a2 dropped, got %v", ids)
	}
	// Different timestamp means a different chunk, not a re-emission.
	if !ids["a3"] {
		t.Fatalf("expected a3 kept, got %v", ids)
	}
	if result.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", result.Dropped)
	}
}

func TestBareAssistantChunksSurvive(t *testing.T) {
	// Chunks carrying no signature, message id, or request id have nothing
	// to key a re-emission on; identical ones at one timestamp are kept.
	ts := base.Add(time.Second)
	bare := func(id string) domain.EventRecord {
		return domain.EventRecord{
			ID:        id,
			Timestamp: ts,
			Kind:      domain.KindAssistantTurn,
			Content:   domain.ContentList{domain.TextBlock{Text: "partial"}},
		}
	}

	result := Run([]domain.EventRecord{bare("a1"), bare("a2")})
	if result.Dropped != 0 {
		t.Fatalf("expected 0 dropped, got %d", result.Dropped)
	}
	ids := survivorIDs(result)
	if !ids["a1"] || !ids["a2"] {
		t.Fatalf("expected both bare chunks kept, got %v", ids)
	}
}

func TestPhantomUserTurnAndDescendants(t *testing.T) {
	child := assistantChunk("child", "m1", "r1", base.Add(time.Second), "sig")
	child.ParentID = "thin"
	events := []domain.EventRecord{
		userEvent("thin", "", base, domain.TextBlock{Text: "prompt"}),
		userEvent("rich", "", base,
			domain.TextBlock{Text: "prompt"},
			domain.ImageBlock{MediaType: "image/png"},
			domain.TextBlock{Text: ""},
		),
		child,
		{
			ID:        "grandchild",
			ParentID:  "child",
			Timestamp: base.Add(2 * time.Second),
			Kind:      domain.KindToolResult,
		},
	}

	result := Run(events)
	ids := survivorIDs(result)
	if !ids["rich"] {
		t.Fatalf("expected richest record kept, got %v", ids)
	}
	if ids["thin"] || ids["child"] || ids["grandchild"] {
		t.Fatalf("expected phantom branch dropped, got %v", ids)
	}
	if result.Dropped != 3 {
		t.Fatalf("expected 3 dropped, got %d", result.Dropped)
	}
}

func TestDistinctTextIsNotPhantom(t *testing.T) {
	events := []domain.EventRecord{
		userEvent("first", "", base,
			domain.TextBlock{Text: "run the tests"},
			domain.ImageBlock{MediaType: "image/png"},
		),
		userEvent("second", "", base, domain.TextBlock{Text: "check the logs"}),
	}

	result := Run(events)
	if result.Dropped != 0 {
		t.Fatalf("expected parallel branches kept, dropped %d", result.Dropped)
	}
}

func TestToolResultsShareTimestamps(t *testing.T) {
	ts := base.Add(time.Second)
	events := []domain.EventRecord{
		{ID: "res1", Timestamp: ts, Kind: domain.KindToolResult},
		{ID: "res2", Timestamp: ts, Kind: domain.KindToolResult},
		userEvent("u1", "", ts,
			domain.ToolResultBlock{ToolUseID: "tool1", Output: "ok"},
		),
		userEvent("u2", "", ts,
			domain.ToolResultBlock{ToolUseID: "tool2", Output: "ok"},
		),
	}

	result := Run(events)
	if result.Dropped != 0 {
		t.Fatalf("expected all tool results kept, dropped %d", result.Dropped)
	}
}
