package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendAndReadExecutions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &ExecutionRecord{
		ID:         "exec-1",
		SessionID:  "sess-1",
		Tool:       "send_email",
		CallID:     "call-1",
		Input:      json.RawMessage(`{"recipient_email":"a@x.com"}`),
		Output:     json.RawMessage(`{"delivered":true}`),
		Status:     StatusOK,
		StartedAt:  time.Now(),
		DurationMs: 12,
	}
	second := &ExecutionRecord{
		ID:        "exec-2",
		SessionID: "sess-1",
		Tool:      "lookup_order",
		Status:    StatusError,
		Error:     "upstream timeout",
	}

	require.NoError(t, store.AppendExecution(ctx, first))
	require.NoError(t, store.AppendExecution(ctx, second))

	recs, err := store.Executions(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "exec-1", recs[0].ID)
	assert.Equal(t, "exec-2", recs[1].ID)
	assert.Equal(t, StatusError, recs[1].Status)
	assert.Equal(t, "upstream timeout", recs[1].Error)
}

func TestMemoryStore_AppendAndReadTurns(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, &TurnRecord{
		ID: "turn-1", SessionID: "sess-1", Speaker: "user", Text: "hello",
	}))
	require.NoError(t, store.AppendTurn(ctx, &TurnRecord{
		ID: "turn-2", SessionID: "sess-1", Speaker: "assistant", Text: "hi there",
	}))

	turns, err := store.Turns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Speaker)
	assert.Equal(t, "assistant", turns[1].Speaker)
}

func TestMemoryStore_SessionIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AppendExecution(ctx, &ExecutionRecord{ID: "a", SessionID: "sess-a", Tool: "t"}))
	require.NoError(t, store.AppendExecution(ctx, &ExecutionRecord{ID: "b", SessionID: "sess-b", Tool: "t"}))

	recs, err := store.Executions(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID)
}

func TestMemoryStore_InvalidInputs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.AppendExecution(ctx, nil), ErrInvalidRecord)
	assert.ErrorIs(t, store.AppendExecution(ctx, &ExecutionRecord{ID: "x"}), ErrInvalidSession)
	assert.ErrorIs(t, store.AppendTurn(ctx, nil), ErrInvalidRecord)
	assert.ErrorIs(t, store.AppendTurn(ctx, &TurnRecord{ID: "x"}), ErrInvalidSession)

	_, err := store.Executions(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = store.Turns(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestMemoryStore_EmptySessionReturnsEmpty(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	recs, err := store.Executions(ctx, "never-seen")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = store.AppendExecution(ctx, &ExecutionRecord{
					ID:        fmt.Sprintf("exec-%d-%d", n, j),
					SessionID: "sess-1",
					Tool:      "t",
				})
			}
		}(i)
	}
	wg.Wait()

	recs, err := store.Executions(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, recs, 200)
}
