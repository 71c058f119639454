// Package commgraph builds temporal communication graphs from multi-agent
// conversation logs. Nodes are agents; edges accumulate time-stamped
// interactions so clients can replay the conversation with a step slider.
package commgraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
	"github.com/CH-chuan/CommuGraph-sub000/graph"
)

// ErrNotBuilt is returned by queries issued before Build.
var ErrNotBuilt = errors.New("communication graph not built")

const contentPreviewLen = 100

// Builder constructs and serves one communication graph. It is not safe
// for concurrent use; build once, then query.
type Builder struct {
	g        *graph.DiGraph
	messages []domain.AgentMessage
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build constructs the graph from messages, ordered by step index.
func (b *Builder) Build(messages []domain.AgentMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("cannot build graph from empty message list")
	}
	msgs := append([]domain.AgentMessage(nil), messages...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].StepIndex < msgs[j].StepIndex
	})
	b.messages = msgs
	b.g = graph.New()

	meta := make(map[string]*domain.CommNode)
	for _, m := range msgs {
		sender := b.touchNode(meta, m.Sender, m)
		sender.MessageCount++
		if m.Timestamp.After(sender.LastActivity) {
			sender.LastActivity = m.Timestamp
		}
		if m.Receiver == "" {
			// Broadcast: the sender spoke but no edge is drawn.
			continue
		}
		receiver := b.touchNode(meta, m.Receiver, m)
		receiver.MessagesReceived++
		b.addInteraction(m)
	}
	for _, id := range b.g.Nodes() {
		b.g.AddNode(id, graph.Attrs{"data": *meta[id]})
	}
	return nil
}

func (b *Builder) touchNode(meta map[string]*domain.CommNode, id string, m domain.AgentMessage) *domain.CommNode {
	if node, ok := meta[id]; ok {
		return node
	}
	node := &domain.CommNode{
		ID:              id,
		Label:           id,
		FirstAppearance: m.Timestamp,
		LastActivity:    m.Timestamp,
	}
	meta[id] = node
	b.g.AddNode(id, nil)
	return node
}

func (b *Builder) addInteraction(m domain.AgentMessage) {
	interaction := domain.Interaction{
		StepIndex:      m.StepIndex,
		Timestamp:      m.Timestamp,
		Intent:         inferIntent(m.Type),
		MessageType:    m.Type,
		ContentPreview: truncate(m.Content, contentPreviewLen),
	}
	if data := b.g.EdgeData(m.Sender, m.Receiver); data != nil {
		data["interactions"] = append(data["interactions"].([]domain.Interaction), interaction)
		data["weight"] = data["weight"].(int) + 1
		return
	}
	b.g.AddEdge(m.Sender, m.Receiver, graph.Attrs{
		"interactions": []domain.Interaction{interaction},
		"weight":       1,
	})
}

// inferIntent maps message types to edge intents. Rule based for now; an
// abstraction layer can replace it without touching the graph model.
func inferIntent(t domain.MessageType) domain.IntentLabel {
	switch t {
	case domain.MessageDelegation:
		return domain.IntentDelegation
	case domain.MessageAction:
		return domain.IntentCoordination
	case domain.MessageResponse:
		return domain.IntentInfoResponse
	default:
		return domain.IntentUnknown
	}
}

// FilterByStep returns an independent copy of the graph containing only
// interactions up to maxStep. Edges left without interactions disappear,
// and so do nodes left without edges.
func (b *Builder) FilterByStep(maxStep int) (*graph.DiGraph, error) {
	if b.g == nil {
		return nil, ErrNotBuilt
	}
	filtered := b.g.Copy()
	for _, e := range filtered.Edges() {
		data := filtered.EdgeData(e.Source, e.Target)
		all := data["interactions"].([]domain.Interaction)
		var kept []domain.Interaction
		for _, i := range all {
			if i.StepIndex <= maxStep {
				kept = append(kept, i)
			}
		}
		if len(kept) == 0 {
			filtered.RemoveEdge(e.Source, e.Target)
			continue
		}
		data["interactions"] = kept
		data["weight"] = len(kept)
	}
	filtered.RemoveNodes(filtered.Isolates())
	return filtered, nil
}

// Snapshot serializes the graph for API responses, optionally filtered to
// maxStep.
func (b *Builder) Snapshot(maxStep *int) (*domain.CommSnapshot, error) {
	if b.g == nil {
		return nil, ErrNotBuilt
	}
	g := b.g
	if maxStep != nil {
		filtered, err := b.FilterByStep(*maxStep)
		if err != nil {
			return nil, err
		}
		g = filtered
	}

	snap := &domain.CommSnapshot{
		CurrentStep:  maxStep,
		MessageCount: len(b.messages),
	}
	for _, m := range b.messages {
		if m.StepIndex > snap.TotalSteps {
			snap.TotalSteps = m.StepIndex
		}
	}
	for _, id := range g.Nodes() {
		snap.Nodes = append(snap.Nodes, g.NodeData(id)["data"].(domain.CommNode))
	}
	for _, e := range g.Edges() {
		data := g.EdgeData(e.Source, e.Target)
		snap.Edges = append(snap.Edges, domain.CommEdge{
			Source:       e.Source,
			Target:       e.Target,
			Interactions: data["interactions"].([]domain.Interaction),
			Weight:       data["weight"].(int),
		})
	}
	return snap, nil
}

// Metrics reports basic statistics over the unfiltered graph.
func (b *Builder) Metrics() (*domain.CommMetrics, error) {
	if b.g == nil {
		return nil, ErrNotBuilt
	}
	return &domain.CommMetrics{
		NodeCount:           b.g.NodeCount(),
		EdgeCount:           b.g.EdgeCount(),
		Density:             b.g.Density(),
		DegreeCentrality:    b.g.DegreeCentrality(),
		InDegreeCentrality:  b.g.InDegreeCentrality(),
		OutDegreeCentrality: b.g.OutDegreeCentrality(),
	}, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
