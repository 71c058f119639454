// Package parser decodes vendor session logs into canonical records. Each
// supported framework registers a Parser in the default registry; uploads
// either name their framework explicitly or go through Detect.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

// Framework names a supported log format family.
type Framework string

const (
	// FrameworkClaude covers newline-delimited session logs written by
	// Claude Code and compatible agents.
	FrameworkClaude Framework = "claude"
	// FrameworkAutoGen covers agent-to-agent conversation logs (AutoGen
	// and similar frameworks).
	FrameworkAutoGen Framework = "autogen"
)

// File is one uploaded log file held in memory.
type File struct {
	Name string
	Data []byte
}

// Batch is the decoded form of one upload. Exactly one of Events or
// Messages is populated, matching the framework family: execution logs
// decode to event records, conversation logs to agent messages.
type Batch struct {
	Framework Framework
	Events    []domain.EventRecord
	Messages  []domain.AgentMessage
	Warnings  []string
}

// Parser decodes one framework's log files into a Batch.
type Parser interface {
	Framework() Framework
	Parse(ctx context.Context, files []File) (*Batch, error)
}

// Registry stores parsers keyed by framework name.
type Registry struct {
	mu      sync.RWMutex
	parsers map[Framework]Parser
}

// DefaultRegistry is the shared registry all built-in parsers register into.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[Framework]Parser),
	}
}

// Register adds a parser for its framework name.
func (r *Registry) Register(p Parser) error {
	if p == nil {
		return fmt.Errorf("parser is required")
	}
	name := p.Framework()
	if name == "" {
		return fmt.Errorf("framework name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[name]; exists {
		return fmt.Errorf("parser already registered for %s", name)
	}
	r.parsers[name] = p
	return nil
}

// Get returns the parser for a framework name.
func (r *Registry) Get(name Framework) (Parser, error) {
	r.mu.RLock()
	p := r.parsers[name]
	r.mu.RUnlock()
	if p == nil {
		return nil, fmt.Errorf("unsupported framework %q (available: %s)", name, strings.Join(r.Available(), ", "))
	}
	return p, nil
}

// Available lists registered framework names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// MustRegister adds a parser to the default registry or panics.
func MustRegister(p Parser) {
	if err := DefaultRegistry.Register(p); err != nil {
		panic(err)
	}
}

// Number of leading entries probed when sniffing a format.
const detectProbeLimit = 10

// Detect sniffs the log family from a sample of an upload. Session logs
// identify every line with uuid/type fields; conversation logs identify a
// sender. The first recognizable entry decides; unrecognizable input
// defaults to autogen.
func Detect(sample []byte) Framework {
	for _, entry := range probeEntries(sample) {
		if hasKey(entry, "parentUuid") || hasKey(entry, "sessionId") || hasKey(entry, "isSidechain") {
			return FrameworkClaude
		}
		if hasKey(entry, "uuid") && hasKey(entry, "type") {
			return FrameworkClaude
		}
		if hasKey(entry, "sender") || hasKey(entry, "name") || hasKey(entry, "from") || hasKey(entry, "recipient") {
			return FrameworkAutoGen
		}
	}
	return FrameworkAutoGen
}

func probeEntries(sample []byte) []map[string]any {
	trimmed := bytes.TrimSpace(sample)
	if len(trimmed) == 0 {
		return nil
	}

	var entries []map[string]any
	if trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil
		}
		for _, item := range raw {
			var m map[string]any
			if json.Unmarshal(item, &m) == nil {
				entries = append(entries, m)
			}
			if len(entries) == detectProbeLimit {
				break
			}
		}
		return entries
	}

	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if json.Unmarshal(line, &m) == nil {
			entries = append(entries, m)
		}
		if len(entries) == detectProbeLimit {
			break
		}
	}
	return entries
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
