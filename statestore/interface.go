// Package statestore provides append-only persistence for session activity:
// tool execution records and finalized conversation turns.
package statestore

import (
	"context"
	"errors"
)

// Store defines the interface for append-only session record storage.
// Writers never update or delete records; sessions are read back only
// after the fact (debugging, auditing), never mid-session.
type Store interface {
	// AppendExecution appends a tool execution record to the session's log.
	AppendExecution(ctx context.Context, rec *ExecutionRecord) error

	// AppendTurn appends a finalized conversation turn to the session's log.
	AppendTurn(ctx context.Context, rec *TurnRecord) error

	// Executions returns all execution records for a session in append order.
	Executions(ctx context.Context, sessionID string) ([]ExecutionRecord, error)

	// Turns returns all turn records for a session in append order.
	Turns(ctx context.Context, sessionID string) ([]TurnRecord, error)
}

// ErrInvalidSession is returned when an empty session ID is provided.
var ErrInvalidSession = errors.New("invalid session ID")

// ErrInvalidRecord is returned when a nil or incomplete record is provided.
var ErrInvalidRecord = errors.New("invalid record")
