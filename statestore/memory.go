package statestore

import (
	"context"
	"sync"
)

// MemoryStore provides an in-memory implementation of the Store interface.
// It is thread-safe and suitable for development, testing, and single-instance
// deployments. For distributed systems, use RedisStore.
type MemoryStore struct {
	mu         sync.RWMutex
	executions map[string][]ExecutionRecord
	turns      map[string][]TurnRecord
}

// NewMemoryStore creates a new in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string][]ExecutionRecord),
		turns:      make(map[string][]TurnRecord),
	}
}

// AppendExecution appends a tool execution record to the session's log.
func (s *MemoryStore) AppendExecution(ctx context.Context, rec *ExecutionRecord) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	if rec.SessionID == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions[rec.SessionID] = append(s.executions[rec.SessionID], *rec)
	return nil
}

// AppendTurn appends a finalized conversation turn to the session's log.
func (s *MemoryStore) AppendTurn(ctx context.Context, rec *TurnRecord) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	if rec.SessionID == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[rec.SessionID] = append(s.turns[rec.SessionID], *rec)
	return nil
}

// Executions returns all execution records for a session in append order.
// Returns a copy to prevent external mutation.
func (s *MemoryStore) Executions(ctx context.Context, sessionID string) ([]ExecutionRecord, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.executions[sessionID]
	out := make([]ExecutionRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// Turns returns all turn records for a session in append order.
// Returns a copy to prevent external mutation.
func (s *MemoryStore) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.turns[sessionID]
	out := make([]TurnRecord, len(recs))
	copy(out, recs)
	return out, nil
}
