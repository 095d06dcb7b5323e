package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voicebridge-ai/voicebridge/events"
	"github.com/voicebridge-ai/voicebridge/logger"
	"github.com/voicebridge-ai/voicebridge/realtime"
	"github.com/voicebridge-ai/voicebridge/statestore"
)

// Mediator reconciles a tool call's raw arguments against the selected
// executor's schema, dispatches it, and records the outcome. Failures are
// contained per call: the session engine receives a structured error
// result, never a fatal session error.
type Mediator struct {
	registry   *Registry
	reconciler *Reconciler
	store      statestore.Store
	bus        *events.EventBus
	tracer     trace.Tracer
}

var _ realtime.ToolDispatcher = (*Mediator)(nil)

// MediatorOption configures a Mediator.
type MediatorOption func(*Mediator)

// WithStore sets the execution record store.
func WithStore(store statestore.Store) MediatorOption {
	return func(m *Mediator) {
		m.store = store
	}
}

// WithBus sets the event bus that dispatch lifecycle events publish to.
func WithBus(bus *events.EventBus) MediatorOption {
	return func(m *Mediator) {
		m.bus = bus
	}
}

// NewMediator creates a mediator over the given registry.
func NewMediator(registry *Registry, opts ...MediatorOption) *Mediator {
	m := &Mediator{
		registry: registry,
		tracer:   otel.Tracer("voicebridge/tools"),
	}
	m.reconciler = NewReconciler(func(name string) (*ToolDescriptor, bool) {
		descriptor, err := registry.GetTool(name)
		if err != nil {
			return nil, false
		}
		return descriptor, true
	})
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dispatch implements the session engine's tool dispatcher. It reconciles
// the call's arguments, executes the tool, and returns the serialized
// result payload.
func (m *Mediator) Dispatch(ctx context.Context, call realtime.ToolCall) (string, error) {
	ctx, span := m.tracer.Start(ctx, "voicebridge.tool.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.CallID),
		),
	)
	defer span.End()

	logger.ToolDispatch(call.Name, call.CallID)
	m.publish(events.EventToolCallStarted, call.SessionID, &events.ToolCallData{
		Tool:   call.Name,
		CallID: call.CallID,
	})

	start := time.Now()
	result, err := m.dispatch(ctx, call)
	duration := time.Since(start)

	logger.ToolOutcome(call.Name, call.CallID, duration, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.publish(events.EventToolCallFailed, call.SessionID, &events.ToolCallData{
			Tool:     call.Name,
			CallID:   call.CallID,
			Duration: duration,
			Error:    err.Error(),
		})
		return "", err
	}

	m.publish(events.EventToolCallCompleted, call.SessionID, &events.ToolCallData{
		Tool:     call.Name,
		CallID:   call.CallID,
		Duration: duration,
	})
	return string(result), nil
}

func (m *Mediator) dispatch(ctx context.Context, call realtime.ToolCall) (json.RawMessage, error) {
	start := time.Now()

	descriptor, err := m.registry.GetTool(call.Name)
	if err != nil {
		m.record(ctx, call, nil, nil, start, err)
		return nil, err
	}

	reconciled, err := m.reconciler.Reconcile(call.Name, descriptor.InputSchema, json.RawMessage(call.Arguments))
	if err != nil {
		m.record(ctx, call, nil, nil, start, err)
		return nil, err
	}

	// Post-reconciliation validation is advisory: required fields are
	// already enforced, so residual mismatches degrade to best effort.
	if err := m.registry.Validator().ValidateArgs(descriptor, reconciled); err != nil {
		logger.Warn("reconciled arguments failed schema validation",
			"tool", call.Name,
			"error", err)
	}

	executor, err := m.registry.ExecutorFor(descriptor)
	if err != nil {
		m.record(ctx, call, reconciled, nil, start, err)
		return nil, err
	}

	execCtx := ctx
	if descriptor.TimeoutMs > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(descriptor.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	result, err := executor.Execute(execCtx, descriptor, reconciled)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrExecutorFailure, call.Name, err)
		m.record(ctx, call, reconciled, nil, start, wrapped)
		return nil, wrapped
	}

	if err := m.registry.Validator().ValidateResult(descriptor, result); err != nil {
		logger.Warn("tool result failed output schema validation, passing through",
			"tool", call.Name,
			"error", err)
	}

	m.record(ctx, call, reconciled, result, start, nil)
	return result, nil
}

// record persists one execution record. Persistence failures are logged,
// never propagated into the call result.
func (m *Mediator) record(ctx context.Context, call realtime.ToolCall, input, output json.RawMessage, start time.Time, execErr error) {
	if m.store == nil {
		return
	}

	now := time.Now()
	rec := &statestore.ExecutionRecord{
		ID:          uuid.NewString(),
		SessionID:   call.SessionID,
		Tool:        call.Name,
		CallID:      call.CallID,
		Input:       input,
		Output:      output,
		Status:      statestore.StatusOK,
		StartedAt:   start,
		CompletedAt: now,
		DurationMs:  now.Sub(start).Milliseconds(),
	}
	if execErr != nil {
		rec.Status = statestore.StatusError
		rec.Error = execErr.Error()
	}

	if err := m.store.AppendExecution(ctx, rec); err != nil {
		logger.Warn("failed to persist execution record",
			"tool", call.Name,
			"error", err)
	}
}

func (m *Mediator) publish(eventType events.EventType, sessionID string, data *events.ToolCallData) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(&events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	})
}

// Definitions converts the registry's current tools into the wire format
// declared to the model in the session configuration.
func (m *Mediator) Definitions() []realtime.ToolDef {
	tools := m.registry.GetTools()
	defs := make([]realtime.ToolDef, 0, len(tools))
	for _, descriptor := range tools {
		var params map[string]interface{}
		if err := json.Unmarshal(descriptor.InputSchema, &params); err != nil {
			logger.Warn("skipping tool with unparseable input schema",
				"tool", descriptor.Name,
				"error", err)
			continue
		}
		defs = append(defs, realtime.ToolDef{
			Type:        "function",
			Name:        descriptor.Name,
			Description: descriptor.Description,
			Parameters:  params,
		})
	}
	return defs
}
