// Package order linearizes a session timeline for sequential annotation.
// The resulting sequence never places an entry before its causal parent and
// breaks ties among unrelated branches by timestamp, so the same input
// always yields the same order.
package order

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

// Resolve returns the entries in causal order. An entry is ready once its
// parent is emitted; entries whose parent is empty or missing from the set
// are ready immediately. Entries stuck behind unresolvable references
// (cycles) are appended in timestamp order with a warning. Every input
// entry appears in the output exactly once.
func Resolve(entries []domain.TimelineEntry) ([]domain.TimelineEntry, []string) {
	if len(entries) == 0 {
		return nil, nil
	}

	present := make(map[string]bool, len(entries))
	for i := range entries {
		present[entries[i].ID] = true
	}

	children := make(map[string][]int)
	ready := &entryHeap{}
	for i := range entries {
		parent := entries[i].ParentID
		if parent == "" || !present[parent] {
			heap.Push(ready, &entries[i])
			continue
		}
		children[parent] = append(children[parent], i)
	}

	out := make([]domain.TimelineEntry, 0, len(entries))
	emitted := make(map[string]bool, len(entries))
	for ready.Len() > 0 {
		e := heap.Pop(ready).(*domain.TimelineEntry)
		out = append(out, *e)
		emitted[e.ID] = true
		for _, ci := range children[e.ID] {
			heap.Push(ready, &entries[ci])
		}
	}

	if len(out) == len(entries) {
		return out, nil
	}

	// Cycles or references between unemitted entries. Fall back to
	// timestamp order for whatever is left rather than losing records.
	var leftovers []domain.TimelineEntry
	for i := range entries {
		if !emitted[entries[i].ID] {
			leftovers = append(leftovers, entries[i])
		}
	}
	sort.Slice(leftovers, func(i, j int) bool {
		if !leftovers[i].Timestamp.Equal(leftovers[j].Timestamp) {
			return leftovers[i].Timestamp.Before(leftovers[j].Timestamp)
		}
		return leftovers[i].ID < leftovers[j].ID
	})
	out = append(out, leftovers...)
	warning := fmt.Sprintf("%d entries could not be causally ordered and were appended in timestamp order", len(leftovers))
	return out, []string{warning}
}

// entryHeap is a min-heap over (timestamp, id). The id tie-break keeps
// equal-timestamp pops deterministic.
type entryHeap []*domain.TimelineEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].Timestamp.Equal(h[j].Timestamp) {
		return h[i].Timestamp.Before(h[j].Timestamp)
	}
	return h[i].ID < h[j].ID
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*domain.TimelineEntry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
