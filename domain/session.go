package domain

import (
	"encoding/json"
	"time"
)

// Session is one uploaded and analyzed log, addressable by its server-minted
// id. The id declared inside the log, if any, is kept in Metadata only.
type Session struct {
	SessionID    string          `json:"session_id"`
	Framework    string          `json:"framework"`
	Label        string          `json:"label,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	LastAccessed time.Time       `json:"last_accessed"`
	EventCount   int             `json:"event_count"`
	NodeCount    int             `json:"node_count"`
	Warnings     []string        `json:"warnings,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}
