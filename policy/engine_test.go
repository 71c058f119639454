package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  Input
		allow  bool
		reason string
	}{
		{
			name:  "allows known framework within budget",
			input: Input{Framework: "claude", FileCount: 3, TotalBytes: 1024, MaxFiles: 64, MaxBytes: 1 << 20},
			allow: true,
		},
		{
			name:   "blocks unknown framework",
			input:  Input{Framework: "langgraph", FileCount: 1, TotalBytes: 10, MaxFiles: 64, MaxBytes: 1 << 20},
			allow:  false,
			reason: "unsupported framework",
		},
		{
			name:   "blocks too many files",
			input:  Input{Framework: "autogen", FileCount: 100, TotalBytes: 10, MaxFiles: 64, MaxBytes: 1 << 20},
			allow:  false,
			reason: "too many files",
		},
		{
			name:   "blocks oversized upload",
			input:  Input{Framework: "claude", FileCount: 1, TotalBytes: 2 << 20, MaxFiles: 64, MaxBytes: 1 << 20},
			allow:  false,
			reason: "upload exceeds size budget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.Evaluate(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.allow, decision.Allow)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, decision.Reason)
			}
		})
	}
}

func TestNewEngineRejectsBrokenPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package ingest\n\ndecision := {")
	assert.Error(t, err)
}
