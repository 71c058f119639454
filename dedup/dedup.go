// Package dedup removes phantom events from a session batch. An upstream
// logging defect re-emits image and text bearing user turns (and the
// assistant chunks that follow them) under fresh ids, which would otherwise
// show up as duplicate branches in the reconstructed graph.
package dedup

import (
	"fmt"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

// sigPrefixLen bounds how much of the reasoning signature token enters the
// duplicate key. Tokens are long and a prefix identifies a chunk reliably.
const sigPrefixLen = 32

// Result is the outcome of one dedup pass.
type Result struct {
	// Events holds the surviving records in their original relative order.
	Events []domain.EventRecord
	// Dropped is the number of removed records.
	Dropped int
	// Warnings describes what was removed and why.
	Warnings []string
}

// Run removes duplicate assistant chunks and phantom user turns, then drops
// every event reachable from a removed one through parent references.
// A batch without duplicates passes through untouched.
func Run(events []domain.EventRecord) Result {
	dropped := make(map[string]bool)
	var warnings []string

	warnings = append(warnings, dropAssistantDuplicates(events, dropped)...)
	warnings = append(warnings, dropUserPhantoms(events, dropped)...)
	dropDescendants(events, dropped)

	survivors := make([]domain.EventRecord, 0, len(events))
	for _, e := range events {
		if !dropped[e.ID] {
			survivors = append(survivors, e)
		}
	}
	return Result{
		Events:   survivors,
		Dropped:  len(events) - len(survivors),
		Warnings: warnings,
	}
}

type chunkKey struct {
	signature string
	messageID string
	requestID string
	unixNano  int64
}

// dropAssistantDuplicates removes the second and later assistant chunks
// sharing a (signature, message id, request id, timestamp) key. Chunks
// without any identifying component are never candidates.
func dropAssistantDuplicates(events []domain.EventRecord, dropped map[string]bool) []string {
	seen := make(map[chunkKey]string)
	count := 0
	for _, e := range events {
		if e.Kind != domain.KindAssistantTurn {
			continue
		}
		sig := firstSignature(e.Content)
		if sig == "" && e.MessageID == "" && e.RequestID == "" {
			continue
		}
		key := chunkKey{
			signature: sig,
			messageID: e.MessageID,
			requestID: e.RequestID,
			unixNano:  e.Timestamp.UnixNano(),
		}
		if _, ok := seen[key]; ok {
			dropped[e.ID] = true
			count++
			continue
		}
		seen[key] = e.ID
	}
	if count == 0 {
		return nil
	}
	return []string{fmt.Sprintf("dropped %d duplicate assistant chunks", count)}
}

func firstSignature(content domain.ContentList) string {
	for _, block := range content {
		if b, ok := block.(domain.ThinkingBlock); ok && b.Signature != "" {
			if len(b.Signature) > sigPrefixLen {
				return b.Signature[:sigPrefixLen]
			}
			return b.Signature
		}
	}
	return ""
}

// dropUserPhantoms groups user turns by exact timestamp and keeps the
// richest record of each group. Poorer records survive only when their
// text is non-empty and differs from the canonical record's text, which
// marks a legitimate parallel branch rather than a re-emission.
func dropUserPhantoms(events []domain.EventRecord, dropped map[string]bool) []string {
	groups := make(map[int64][]int)
	var order []int64
	for i, e := range events {
		if e.Kind != domain.KindUserTurn || dropped[e.ID] {
			continue
		}
		if len(e.Content.ToolResults()) > 0 {
			// Tool results legitimately share timestamps with user turns.
			continue
		}
		ts := e.Timestamp.UnixNano()
		if _, ok := groups[ts]; !ok {
			order = append(order, ts)
		}
		groups[ts] = append(groups[ts], i)
	}

	var warnings []string
	for _, ts := range order {
		group := groups[ts]
		if len(group) < 2 {
			continue
		}
		canonical := group[0]
		for _, i := range group[1:] {
			if len(events[i].Content) > len(events[canonical].Content) {
				canonical = i
			}
		}
		canonicalText := events[canonical].Content.Text()
		for _, i := range group {
			if i == canonical {
				continue
			}
			text := events[i].Content.Text()
			if text != "" && text != canonicalText {
				continue
			}
			dropped[events[i].ID] = true
			warnings = append(warnings, fmt.Sprintf(
				"phantom user turn %s dropped (duplicate of %s)", events[i].ID, events[canonical].ID))
		}
	}
	return warnings
}

// dropDescendants walks the parent adjacency breadth-first from every
// dropped event and drops everything reachable. Iterative on purpose:
// logs reach tens of thousands of events.
func dropDescendants(events []domain.EventRecord, dropped map[string]bool) {
	children := make(map[string][]string)
	for _, e := range events {
		if e.ParentID != "" {
			children[e.ParentID] = append(children[e.ParentID], e.ID)
		}
	}

	queue := make([]string, 0, len(dropped))
	for _, e := range events {
		if dropped[e.ID] {
			queue = append(queue, e.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if !dropped[child] {
				dropped[child] = true
				queue = append(queue, child)
			}
		}
	}
}
