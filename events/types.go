package events

import "time"

// EventType identifies the type of event published on the bus.
type EventType string

const (
	// EventConnected marks a session connection being established.
	EventConnected EventType = "connected"
	// EventDisconnected marks a session connection ending.
	EventDisconnected EventType = "disconnected"
	// EventAgentState marks a conversational state transition.
	EventAgentState EventType = "agent_state"

	// EventAudioDelta marks one chunk of inbound response audio.
	EventAudioDelta EventType = "audio.delta"
	// EventAudioDone marks the end of a response's audio stream.
	EventAudioDone EventType = "audio.done"

	// EventTranscriptDelta marks incremental transcript text.
	EventTranscriptDelta EventType = "transcript.delta"
	// EventTranscriptDone marks a finalized utterance transcript.
	EventTranscriptDone EventType = "transcript.done"
	// EventTranscriptReset marks a transcript buffer discarded by barge-in.
	EventTranscriptReset EventType = "transcript.reset"

	// EventResponseCreated marks the model starting a response.
	EventResponseCreated EventType = "response.created"
	// EventResponseDone marks a response completing or being cancelled.
	EventResponseDone EventType = "response.done"
	// EventInterruption marks a barge-in cancelling the active response.
	EventInterruption EventType = "interruption"

	// EventFunctionCall marks a model-issued tool invocation request.
	EventFunctionCall EventType = "function_call"
	// EventError marks a normalized upstream or engine error.
	EventError EventType = "error"

	// EventReconnecting marks one reconnection attempt.
	EventReconnecting EventType = "connection.reconnecting"

	// EventToolCallStarted marks tool dispatch start.
	EventToolCallStarted EventType = "tool.call.started"
	// EventToolCallCompleted marks successful tool dispatch.
	EventToolCallCompleted EventType = "tool.call.completed"
	// EventToolCallFailed marks failed tool dispatch.
	EventToolCallFailed EventType = "tool.call.failed"
)

// Event is a single bus event. Data holds a type-specific payload struct
// (or nil for events that carry no payload).
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      interface{}
}

// AgentStateData is the payload for EventAgentState.
type AgentStateData struct {
	State string
}

// AudioDeltaData is the payload for EventAudioDelta.
type AudioDeltaData struct {
	ItemID string
	Bytes  int
}

// TranscriptData is the payload for transcript events.
type TranscriptData struct {
	Speaker string
	ItemID  string
	Text    string
}

// ResponseData is the payload for response lifecycle events.
type ResponseData struct {
	ResponseID string
	Status     string
}

// FunctionCallData is the payload for EventFunctionCall.
type FunctionCallData struct {
	CallID string
	Name   string
}

// ErrorData is the payload for EventError.
type ErrorData struct {
	Message string
}

// DisconnectedData is the payload for EventDisconnected.
type DisconnectedData struct {
	Intentional bool
	Error       string
}

// ReconnectData is the payload for EventReconnecting.
type ReconnectData struct {
	Attempt     int
	MaxAttempts int
}

// ToolCallData is the payload for tool dispatch events.
type ToolCallData struct {
	Tool     string
	CallID   string
	Duration time.Duration
	Error    string
}
