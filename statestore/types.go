package statestore

import (
	"encoding/json"
	"time"
)

// Execution status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// defaultTTLHours is the default TTL for session records (24 hours).
const defaultTTLHours = 24

// ExecutionRecord is an append-only record of a single tool dispatch.
type ExecutionRecord struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Tool        string          `json:"tool"`
	CallID      string          `json:"call_id,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	DurationMs  int64           `json:"duration_ms"`
}

// TurnRecord is an append-only record of one finalized conversation turn.
type TurnRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Speaker   string    `json:"speaker"`
	ItemID    string    `json:"item_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
