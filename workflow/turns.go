// Package workflow reconstructs the execution DAG of one agent session:
// it folds streamed chunks into turns, detects parallel tool-call forks and
// their joins, links sub-agent lanes to their spawn points, reconciles
// orphaned nodes and emits an immutable snapshot for presentation clients.
package workflow

import (
	"sort"
	"strings"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

type turnKey struct {
	requestID string
	messageID string
}

// AggregateTurns folds assistant chunks sharing a (request id, message id)
// pair into single turns and wraps every other event as-is. The returned
// timeline is sorted by timestamp with id as the tie-break.
func AggregateTurns(events []domain.EventRecord) []domain.TimelineEntry {
	groups := make(map[turnKey][]int)
	var groupOrder []turnKey
	var singles []int

	for i, e := range events {
		if e.Kind == domain.KindAssistantTurn && (e.RequestID != "" || e.MessageID != "") {
			key := turnKey{requestID: e.RequestID, messageID: e.MessageID}
			if _, ok := groups[key]; !ok {
				groupOrder = append(groupOrder, key)
			}
			groups[key] = append(groups[key], i)
			continue
		}
		singles = append(singles, i)
	}

	entries := make([]domain.TimelineEntry, 0, len(singles)+len(groupOrder))
	for _, key := range groupOrder {
		turn, parent := mergeChunks(events, groups[key])
		entries = append(entries, domain.TimelineEntry{
			ID:        turn.ID,
			ParentID:  parent,
			Timestamp: turn.Timestamp,
			Turn:      turn,
		})
	}
	for _, i := range singles {
		e := events[i]
		entries = append(entries, domain.TimelineEntry{
			ID:        e.ID,
			ParentID:  e.CausalParent(),
			Timestamp: e.Timestamp,
			Event:     &events[i],
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// mergeChunks builds one turn from the chunk events at the given indices
// and returns it with its causal parent. Chunks merge in timestamp order,
// stable over input order; the turn takes the earliest chunk's id and
// timestamp. The parent is the first causal reference pointing outside the
// chunk group, so intra-turn chunk chaining never leaks into the timeline.
func mergeChunks(events []domain.EventRecord, indices []int) (*domain.Turn, string) {
	ordered := append([]int(nil), indices...)
	sort.SliceStable(ordered, func(a, b int) bool {
		return events[ordered[a]].Timestamp.Before(events[ordered[b]].Timestamp)
	})
	inGroup := make(map[string]bool, len(ordered))
	for _, i := range ordered {
		inGroup[events[i].ID] = true
	}

	first := events[ordered[0]]
	turn := &domain.Turn{
		ID:           first.ID,
		RequestID:    first.RequestID,
		MessageID:    first.MessageID,
		Timestamp:    first.Timestamp,
		IsSideThread: first.IsSideThread,
		AgentID:      first.AgentID,
	}
	parent := ""
	var thinking, response []string
	for _, i := range ordered {
		e := events[i]
		if parent == "" && !inGroup[e.CausalParent()] {
			parent = e.CausalParent()
		}
		if t := e.Content.Thinking(); t != "" {
			thinking = append(thinking, t)
		}
		if txt := e.Content.Text(); txt != "" {
			response = append(response, txt)
		}
		for _, use := range e.Content.ToolUses() {
			turn.ToolCalls = append(turn.ToolCalls, domain.ToolCall{
				ID:    use.ID,
				Name:  use.Name,
				Input: use.Input,
			})
		}
		if e.Usage != nil {
			turn.Usage.Add(*e.Usage)
		}
		turn.ChunkIDs = append(turn.ChunkIDs, e.ID)
		turn.Sources = append(turn.Sources, e.Source)
		if e.MessageID != "" && turn.MessageID == "" {
			turn.MessageID = e.MessageID
		}
	}
	turn.Thinking = strings.Join(thinking, "\n")
	turn.Response = strings.Join(response, "\n")
	return turn, parent
}
