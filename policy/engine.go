// Package policy gates uploads with an OPA rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// Input describes one upload for the ingest policy.
type Input struct {
	Framework  string `json:"framework"`
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
	MaxFiles   int    `json:"max_files"`
	MaxBytes   int64  `json:"max_bytes"`
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.ingest.decision"),
		rego.Module("ingest.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the ingest policy for one upload.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default; no result means it was removed.
		return Decision{}, fmt.Errorf("policy produced no decision")
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected decision type %T", results[0].Expressions[0].Value)
	}
	decision := Decision{}
	if allow, ok := obj["allow"].(bool); ok {
		decision.Allow = allow
	}
	if reason, ok := obj["reason"].(string); ok {
		decision.Reason = reason
	}
	return decision, nil
}

// DefaultPolicy is the default ingest policy content.
const DefaultPolicy = `
package ingest

import rego.v1

default decision := {"allow": true, "reason": ""}

decision := {"allow": false, "reason": "unsupported framework"} if {
	not input.framework in {"claude", "autogen"}
} else := {"allow": false, "reason": "too many files"} if {
	input.file_count > input.max_files
} else := {"allow": false, "reason": "upload exceeds size budget"} if {
	input.total_bytes > input.max_bytes
}
`
