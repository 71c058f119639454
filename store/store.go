// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/CH-chuan/CommuGraph-sub000/domain"
)

// Store defines the interface for session and snapshot persistence.
// Snapshots are immutable build outputs; sessions carry the bookkeeping
// around them.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Snapshot operations
	SaveSnapshot(ctx context.Context, sessionID string, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, sessionID string) (*Snapshot, error)

	// CleanupExpired removes sessions not accessed within maxAge and
	// returns how many were removed.
	CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error)

	// Lifecycle
	Close() error
}

// Snapshot bundles the build outputs persisted for one session. Execution
// logs fill Workflow and Sequence; conversation logs fill Messages, from
// which communication graphs are rebuilt on demand so step filtering stays
// available after upload.
type Snapshot struct {
	Workflow *domain.WorkflowSnapshot `json:"workflow,omitempty"`
	Sequence []domain.TimelineEntry   `json:"sequence,omitempty"`
	Messages []domain.AgentMessage    `json:"messages,omitempty"`
}
