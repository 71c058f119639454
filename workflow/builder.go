package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
	"github.com/CH-chuan/CommuGraph-sub000/graph"
)

// SpawnToolName is the reserved tool that starts a sub-agent lane.
const SpawnToolName = "Task"

// SessionStartID is the id of the synthetic root node.
const SessionStartID = "session-start"

const previewLen = 120

// Build reconstructs the workflow DAG for one session timeline. Stages run
// in a fixed sequence: lanes, nodes, session-start synthesis, parallel
// group tagging, sub-agent linking, edges. The result is deterministic:
// identical input yields an identical snapshot. Missing correlations
// (a call without a result, a lane without a spawn point) leave metadata
// absent instead of failing the build.
func Build(sessionID string, entries []domain.TimelineEntry) (*domain.WorkflowSnapshot, []string) {
	b := &builder{
		sessionID:   sessionID,
		entries:     sortedEntries(entries),
		g:           graph.New(),
		nodes:       make(map[string]*domain.WorkflowNode),
		created:     make(map[string]int),
		lanes:       make(map[string]*laneState),
		chunkToNode: make(map[string]string),
		callOwner:   make(map[string]string),
		callsByReq:  make(map[string][]string),
		resultFor:   make(map[string]string),
	}
	b.createLanes()
	b.createNodes()
	b.synthesizeSessionStart()
	b.tagParallelGroups()
	b.linkSubAgents()
	b.createEdges()
	return b.snapshot(), b.warnings
}

type builder struct {
	sessionID string
	entries   []domain.TimelineEntry

	g         *graph.DiGraph
	nodes     map[string]*domain.WorkflowNode
	nodeOrder []string
	created   map[string]int
	ordered   []string

	laneOrder []string
	lanes     map[string]*laneState

	chunkToNode map[string]string
	callOwner   map[string]string
	callsByReq  map[string][]string
	reqOrder    []string
	resultFor   map[string]string

	spawnLinks  []link
	returnLinks []link

	warnings []string
}

type link struct {
	src string
	dst string
}

type laneState struct {
	id        string
	agentID   string
	agentType string
	toolUseID string
	status    domain.LaneStatus
	seq       []string
}

// spawnInput is the subset of the spawn tool's input the builder reads.
type spawnInput struct {
	SubagentType string `json:"subagent_type"`
	Description  string `json:"description"`
}

func sortedEntries(entries []domain.TimelineEntry) []domain.TimelineEntry {
	out := append([]domain.TimelineEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *builder) createLanes() {
	b.addLane(domain.LaneMain, "")
	for i := range b.entries {
		e := &b.entries[i]
		if e.IsSideThread() && e.AgentID() != "" {
			b.addLane(e.Lane(), e.AgentID())
		}
	}
}

func (b *builder) addLane(id, agentID string) {
	if _, ok := b.lanes[id]; ok {
		return
	}
	b.lanes[id] = &laneState{id: id, agentID: agentID}
	b.laneOrder = append(b.laneOrder, id)
}

func (b *builder) createNodes() {
	for i := range b.entries {
		entry := &b.entries[i]
		switch {
		case entry.Turn != nil:
			b.addTurnNodes(entry.Turn)
		case entry.Event != nil:
			b.addEventNode(entry.Event)
		}
	}
}

// addTurnNodes creates the reasoning node for a turn plus one tool_call
// node per invocation it issued.
func (b *builder) addTurnNodes(turn *domain.Turn) {
	lane := turn.Lane()
	node := &domain.WorkflowNode{
		ID:        turn.ID,
		Type:      domain.NodeReasoning,
		Label:     "Reasoning",
		Lane:      lane,
		Timestamp: turn.Timestamp,
		Detail:    preview(firstNonEmpty(turn.Response, turn.Thinking)),
		AgentID:   turn.AgentID,
		RequestID: turn.RequestID,
		ChunkIDs:  turn.ChunkIDs,
	}
	if turn.Usage.Total() > 0 {
		usage := turn.Usage
		node.Usage = &usage
	}
	b.addNode(node)
	for _, chunk := range turn.ChunkIDs {
		b.chunkToNode[chunk] = turn.ID
	}

	for i, call := range turn.ToolCalls {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("%s-tool-%d", turn.ID, i)
		}
		callNode := &domain.WorkflowNode{
			ID:        id,
			Type:      domain.NodeToolCall,
			Label:     firstNonEmpty(call.Name, "Tool call"),
			Lane:      lane,
			Timestamp: turn.Timestamp,
			Detail:    preview(string(call.Input)),
			ToolName:  call.Name,
			ToolInput: preview(string(call.Input)),
			ToolUseID: call.ID,
			AgentID:   turn.AgentID,
			RequestID: turn.RequestID,
		}
		if call.Name == SpawnToolName {
			var in spawnInput
			if err := json.Unmarshal(call.Input, &in); err == nil {
				callNode.AgentType = in.SubagentType
				if in.Description != "" {
					callNode.Detail = preview(in.Description)
				}
			}
		}
		b.addNode(callNode)
		b.callOwner[id] = turn.ID
		if turn.RequestID != "" {
			if _, ok := b.callsByReq[turn.RequestID]; !ok {
				b.reqOrder = append(b.reqOrder, turn.RequestID)
			}
			b.callsByReq[turn.RequestID] = append(b.callsByReq[turn.RequestID], id)
		}
	}
}

func (b *builder) addEventNode(e *domain.EventRecord) {
	node := &domain.WorkflowNode{
		ID:        e.ID,
		Lane:      e.Lane(),
		Timestamp: e.Timestamp,
		AgentID:   e.AgentID,
		RequestID: e.RequestID,
	}
	if e.Usage != nil {
		usage := *e.Usage
		node.Usage = &usage
	}
	switch e.Kind {
	case domain.KindToolResult:
		node.Type = domain.NodeToolResult
		node.Label = "Tool result"
		node.ToolUseID = e.ToolUseID
		if results := e.Content.ToolResults(); len(results) > 0 {
			r := results[0]
			if node.ToolUseID == "" {
				node.ToolUseID = r.ToolUseID
			}
			node.IsError = r.IsError
			node.Detail = preview(r.Output)
		}
	case domain.KindSystemNotice:
		node.Type = domain.NodeSystemNotice
		node.Label = "System notice"
		node.Detail = preview(e.Content.Text())
	case domain.KindAssistantTurn:
		// Chunks that carried no grouping keys stay single reasoning nodes.
		node.Type = domain.NodeReasoning
		node.Label = "Reasoning"
		node.Detail = preview(firstNonEmpty(e.Content.Text(), e.Content.Thinking()))
	default:
		node.Type = domain.NodeUserInput
		node.Label = "User input"
		node.Detail = preview(e.Content.Text())
	}
	b.addNode(node)
	if node.Type == domain.NodeToolResult && node.ToolUseID != "" {
		if _, ok := b.resultFor[node.ToolUseID]; !ok {
			b.resultFor[node.ToolUseID] = node.ID
		}
	}
}

// addNode registers a node. Duplicate ids collapse to the first occurrence.
func (b *builder) addNode(node *domain.WorkflowNode) {
	if _, ok := b.nodes[node.ID]; ok {
		return
	}
	b.nodes[node.ID] = node
	b.created[node.ID] = len(b.nodeOrder)
	b.nodeOrder = append(b.nodeOrder, node.ID)
	b.g.AddNode(node.ID, nil)
}

// synthesizeSessionStart creates the root node carrying session totals.
func (b *builder) synthesizeSessionStart() {
	var earliest, latest time.Time
	tokens := 0
	for i, id := range b.nodeOrder {
		n := b.nodes[id]
		if i == 0 || n.Timestamp.Before(earliest) {
			earliest = n.Timestamp
		}
		if i == 0 || n.Timestamp.After(latest) {
			latest = n.Timestamp
		}
		if n.Usage != nil {
			tokens += n.Usage.Total()
		}
	}
	b.addNode(&domain.WorkflowNode{
		ID:        SessionStartID,
		Type:      domain.NodeSessionStart,
		Label:     "Session start",
		Lane:      domain.LaneMain,
		Timestamp: earliest,
		Detail: fmt.Sprintf("%d nodes, %s, %d tokens",
			len(b.nodeOrder), domain.FormatDuration(latest.Sub(earliest)), tokens),
	})
}

func (b *builder) tagParallelGroups() {
	for _, req := range b.reqOrder {
		ids := b.callsByReq[req]
		if len(ids) < 2 {
			continue
		}
		for i, id := range ids {
			b.nodes[id].Parallel = &domain.ParallelGroup{
				GroupID: req,
				Index:   i,
				Count:   len(ids),
			}
		}
	}
}

// linkSubAgents claims one spawn call per sub-agent lane and records the
// pending cross-lane edges. The lane inherits the call's sub-agent type
// and tool_use id; a lane whose spawn call has a result is completed.
func (b *builder) linkSubAgents() {
	b.sortNodes()
	claimed := make(map[string]bool)
	for _, laneID := range b.laneOrder {
		lane := b.lanes[laneID]
		if laneID == domain.LaneMain || len(lane.seq) == 0 {
			continue
		}
		first := b.nodes[lane.seq[0]]
		last := b.nodes[lane.seq[len(lane.seq)-1]]
		lane.status = domain.LaneRunning
		call := b.findSpawnCall(first, claimed)
		if call == nil {
			b.warnings = append(b.warnings, fmt.Sprintf("lane %s has no resolvable spawn call", laneID))
			continue
		}
		claimed[call.ID] = true
		call.AgentID = lane.agentID
		lane.toolUseID = call.ToolUseID
		lane.agentType = call.AgentType
		b.spawnLinks = append(b.spawnLinks, link{src: call.ID, dst: first.ID})
		if resID, ok := b.resultFor[call.ToolUseID]; ok {
			lane.status = domain.LaneCompleted
			b.returnLinks = append(b.returnLinks, link{src: last.ID, dst: resID})
		}
	}
}

// findSpawnCall picks the latest unclaimed spawn call at or before the
// lane's first node. A call whose result returned before the lane started
// cannot be its spawn point.
func (b *builder) findSpawnCall(first *domain.WorkflowNode, claimed map[string]bool) *domain.WorkflowNode {
	var best *domain.WorkflowNode
	for _, id := range b.ordered {
		n := b.nodes[id]
		if n.Type != domain.NodeToolCall || n.ToolName != SpawnToolName || claimed[n.ID] {
			continue
		}
		if n.Lane == first.Lane || n.Timestamp.After(first.Timestamp) {
			continue
		}
		if resID, ok := b.resultFor[n.ToolUseID]; ok {
			if b.nodes[resID].Timestamp.Before(first.Timestamp) {
				continue
			}
		}
		if best == nil || n.Timestamp.After(best.Timestamp) {
			best = n
		}
	}
	return best
}

// sortNodes fixes the total node order: the synthetic root first, then
// timestamp, then creation sequence. Lane sequences are slices of it.
func (b *builder) sortNodes() {
	b.ordered = append([]string(nil), b.nodeOrder...)
	sort.SliceStable(b.ordered, func(i, j int) bool {
		return b.precedes(b.nodes[b.ordered[i]], b.nodes[b.ordered[j]])
	})
	for _, id := range b.ordered {
		if lane, ok := b.lanes[b.nodes[id].Lane]; ok {
			lane.seq = append(lane.seq, id)
		}
	}
}

// precedes reports whether a comes before c in the node order. Every edge
// goes forward in this order, which keeps the graph acyclic for any input.
func (b *builder) precedes(a, c *domain.WorkflowNode) bool {
	if a.ID == SessionStartID {
		return c.ID != SessionStartID
	}
	if c.ID == SessionStartID {
		return false
	}
	if !a.Timestamp.Equal(c.Timestamp) {
		return a.Timestamp.Before(c.Timestamp)
	}
	return b.created[a.ID] < b.created[c.ID]
}

func (b *builder) createEdges() {
	// Reasoning node to each tool call it issued.
	for _, id := range b.ordered {
		n := b.nodes[id]
		if n.Type != domain.NodeToolCall {
			continue
		}
		kind := domain.EdgeFlow
		if n.Parallel != nil {
			kind = domain.EdgeFork
		}
		b.addEdge(b.callOwner[id], id, kind, n.Parallel != nil)
	}

	// Tool call to its result, matched by tool_use id. The result node
	// inherits the tool name for display.
	for _, id := range b.ordered {
		n := b.nodes[id]
		if n.Type != domain.NodeToolCall || n.ToolUseID == "" {
			continue
		}
		resID, ok := b.resultFor[n.ToolUseID]
		if !ok {
			continue
		}
		res := b.nodes[resID]
		res.ToolName = n.ToolName
		if n.ToolName != "" {
			res.Label = n.ToolName + " result"
		}
		b.addEdge(id, resID, domain.EdgeFlow, false)
	}

	b.createJoins()

	for _, l := range b.spawnLinks {
		b.addCrossEdge(l.src, l.dst, domain.EdgeSpawn)
	}
	for _, l := range b.returnLinks {
		b.addCrossEdge(l.src, l.dst, domain.EdgeReturn)
	}

	// Declared causality: an entry's parent reference becomes a flow edge.
	// Tool results are connected by the tool_use correlation above instead.
	for i := range b.entries {
		entry := &b.entries[i]
		if entry.Event != nil && entry.Event.Kind == domain.KindToolResult {
			continue
		}
		src := b.resolveNode(entry.ParentID)
		if src == "" {
			continue
		}
		b.addEdge(src, entry.ID, domain.EdgeFlow, false)
	}

	b.wireSessionStart()
	b.reconcileOrphans()
}

// createJoins connects every result of a parallel group to the first
// main-lane reasoning node after the group's slowest result.
func (b *builder) createJoins() {
	for _, req := range b.reqOrder {
		calls := b.callsByReq[req]
		if len(calls) < 2 {
			continue
		}
		var results []*domain.WorkflowNode
		for _, callID := range calls {
			if resID, ok := b.resultFor[b.nodes[callID].ToolUseID]; ok {
				results = append(results, b.nodes[resID])
			}
		}
		if len(results) == 0 {
			continue
		}
		latest := results[0].Timestamp
		for _, res := range results[1:] {
			if res.Timestamp.After(latest) {
				latest = res.Timestamp
			}
		}
		join := b.firstReasoningAfter(latest)
		if join == "" {
			continue
		}
		for _, res := range results {
			// A join edge has a single source and target; only the fork
			// edges fanning out of the batch carry the parallel flag.
			b.addEdge(res.ID, join, domain.EdgeJoin, false)
		}
	}
}

func (b *builder) firstReasoningAfter(ts time.Time) string {
	for _, id := range b.ordered {
		n := b.nodes[id]
		if n.Type == domain.NodeReasoning && n.Lane == domain.LaneMain && n.Timestamp.After(ts) {
			return id
		}
	}
	return ""
}

// resolveNode maps an event id to its node: either directly or through the
// turn that absorbed the chunk.
func (b *builder) resolveNode(id string) string {
	if id == "" {
		return ""
	}
	if _, ok := b.nodes[id]; ok {
		return id
	}
	return b.chunkToNode[id]
}

// addEdge inserts src→dst once. Repeated pairs, missing endpoints and
// edges that would go backward in the node order are all ignored.
func (b *builder) addEdge(src, dst string, kind domain.EdgeKind, parallel bool) {
	if src == "" || dst == "" || src == dst {
		return
	}
	sn, dn := b.nodes[src], b.nodes[dst]
	if sn == nil || dn == nil {
		return
	}
	if !b.precedes(sn, dn) {
		return
	}
	if b.g.HasEdge(src, dst) {
		return
	}
	b.g.AddEdge(src, dst, graph.Attrs{
		"kind":     kind,
		"parallel": parallel,
		"cross":    sn.Lane != dn.Lane,
	})
}

// addCrossEdge inserts a claimed spawn or return link between lanes. A
// spawn call can share its timestamp with the lane's first node and sort
// after it, so the forward-order guard of addEdge does not apply here. The
// sub-lane has no edge back into its spawning call, so the graph stays
// acyclic.
func (b *builder) addCrossEdge(src, dst string, kind domain.EdgeKind) {
	if src == "" || dst == "" || src == dst {
		return
	}
	if b.nodes[src] == nil || b.nodes[dst] == nil {
		return
	}
	if b.g.HasEdge(src, dst) {
		return
	}
	b.g.AddEdge(src, dst, graph.Attrs{
		"kind":     kind,
		"parallel": false,
		"cross":    true,
	})
}

// wireSessionStart connects the root to the first main-lane node that has
// no parent yet, or to the first main-lane node when all are connected.
func (b *builder) wireSessionStart() {
	target := ""
	fallback := ""
	for _, id := range b.ordered {
		if id == SessionStartID || b.nodes[id].Lane != domain.LaneMain {
			continue
		}
		if fallback == "" {
			fallback = id
		}
		if b.g.InDegree(id) == 0 {
			target = id
			break
		}
	}
	if target == "" {
		target = fallback
	}
	if target != "" {
		b.addEdge(SessionStartID, target, domain.EdgeFlow, false)
	}
}

// reconcileOrphans gives every remaining rootless node an edge from the
// nearest earlier node in its own lane.
func (b *builder) reconcileOrphans() {
	for _, laneID := range b.laneOrder {
		seq := b.lanes[laneID].seq
		for i, id := range seq {
			if id == SessionStartID || b.g.InDegree(id) > 0 {
				continue
			}
			if i == 0 {
				if laneID != domain.LaneMain {
					b.warnings = append(b.warnings, fmt.Sprintf("lane %s starts without a spawn point", laneID))
				}
				continue
			}
			b.addEdge(seq[i-1], id, domain.EdgeFlow, false)
		}
	}
}

func (b *builder) snapshot() *domain.WorkflowSnapshot {
	steps := make(map[string]int, len(b.ordered))
	for i, id := range b.ordered {
		b.nodes[id].StepIndex = i
		steps[id] = i
	}

	nodes := make([]domain.WorkflowNode, 0, len(b.ordered))
	for _, id := range b.ordered {
		n := b.nodes[id]
		n.ParentIDs = b.g.Predecessors(id)
		n.ChildIDs = b.g.Successors(id)
		nodes = append(nodes, *n)
	}

	edges := make([]domain.WorkflowEdge, 0, b.g.EdgeCount())
	for _, e := range b.g.Edges() {
		attrs := b.g.EdgeData(e.Source, e.Target)
		d := b.nodes[e.Target].Timestamp.Sub(b.nodes[e.Source].Timestamp)
		if d < 0 {
			d = 0
		}
		edges = append(edges, domain.WorkflowEdge{
			ID:            "e-" + e.Source + "-" + e.Target,
			Source:        e.Source,
			Target:        e.Target,
			Kind:          attrs["kind"].(domain.EdgeKind),
			StepIndex:     steps[e.Target],
			IsParallel:    attrs["parallel"].(bool),
			CrossLane:     attrs["cross"].(bool),
			DurationMS:    d.Milliseconds(),
			DurationClass: domain.ClassifyDuration(d),
			DurationLabel: domain.FormatDuration(d),
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].StepIndex != edges[j].StepIndex {
			return edges[i].StepIndex < edges[j].StepIndex
		}
		return edges[i].ID < edges[j].ID
	})

	lanes := make([]domain.WorkflowLane, 0, len(b.laneOrder))
	for _, laneID := range b.laneOrder {
		lanes = append(lanes, b.laneSummary(laneID))
	}

	return &domain.WorkflowSnapshot{
		SessionID:  b.sessionID,
		Nodes:      nodes,
		Edges:      edges,
		Lanes:      lanes,
		Aggregates: b.aggregates(nodes, edges, lanes),
	}
}

func (b *builder) laneSummary(laneID string) domain.WorkflowLane {
	state := b.lanes[laneID]
	lane := domain.WorkflowLane{
		ID:        laneID,
		Label:     "Main",
		AgentID:   state.agentID,
		AgentType: state.agentType,
		Status:    state.status,
		ToolUseID: state.toolUseID,
		NodeCount: len(state.seq),
	}
	if laneID != domain.LaneMain {
		lane.Label = laneLabel(state)
	}
	var first, last time.Time
	for i, id := range state.seq {
		n := b.nodes[id]
		if i == 0 {
			first, last = n.Timestamp, n.Timestamp
		}
		if n.Timestamp.Before(first) {
			first = n.Timestamp
		}
		if n.Timestamp.After(last) {
			last = n.Timestamp
		}
		if n.Usage != nil {
			lane.Usage.Add(*n.Usage)
		}
		if n.Type == domain.NodeToolCall {
			lane.ToolCallCount++
		}
	}
	if len(state.seq) > 0 {
		lane.DurationMS = last.Sub(first).Milliseconds()
	}
	return lane
}

func laneLabel(state *laneState) string {
	if state.agentType != "" {
		return state.agentType
	}
	id := state.agentID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Agent " + id
}

func (b *builder) aggregates(nodes []domain.WorkflowNode, edges []domain.WorkflowEdge, lanes []domain.WorkflowLane) domain.WorkflowAggregates {
	agg := domain.WorkflowAggregates{
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		LaneCount: len(lanes),
		MaxStep:   len(nodes) - 1,
	}
	results, failures := 0, 0
	var started, ended time.Time
	for i := range nodes {
		n := &nodes[i]
		if i == 0 || n.Timestamp.Before(started) {
			started = n.Timestamp
		}
		if i == 0 || n.Timestamp.After(ended) {
			ended = n.Timestamp
		}
		if n.Usage != nil {
			agg.TotalUsage.Add(*n.Usage)
		}
		switch n.Type {
		case domain.NodeToolCall:
			agg.ToolCallCount++
		case domain.NodeToolResult:
			results++
			if n.IsError {
				failures++
			}
		}
		if n.Parallel != nil && n.Parallel.Index == 0 {
			agg.ParallelGroupCount++
		}
	}
	agg.ToolSuccessRate = 1
	if results > 0 {
		agg.ToolSuccessRate = float64(results-failures) / float64(results)
	}
	agg.StartedAt = started
	agg.EndedAt = ended
	agg.WallDurationMS = ended.Sub(started).Milliseconds()
	return agg
}

// preview flattens whitespace and truncates s for display fields.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= previewLen {
		return s
	}
	return string(runes[:previewLen]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
