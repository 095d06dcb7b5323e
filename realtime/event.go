package realtime

import "time"

// AgentState is the conversational turn phase.
type AgentState int

const (
	// StateIdle means no turn is in progress.
	StateIdle AgentState = iota
	// StateListening means user speech is being captured.
	StateListening
	// StateThinking means the user finished and a response is pending.
	StateThinking
	// StateSpeaking means response audio is streaming.
	StateSpeaking
	// StateInterrupted means the user barged in on a response.
	StateInterrupted
)

// String returns the state name used in events and logs.
func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// EventType discriminates the normalized engine event feed.
type EventType int

const (
	// EventConnected fires once the session is established and configured.
	EventConnected EventType = iota
	// EventDisconnected fires when the connection ends, intentionally or not.
	EventDisconnected
	// EventAgentState fires on every AgentState transition.
	EventAgentState
	// EventAudioDelta carries one decoded chunk of response audio.
	EventAudioDelta
	// EventAudioDone fires when response audio streaming completes.
	EventAudioDone
	// EventTranscriptDelta carries incremental transcript text.
	EventTranscriptDelta
	// EventTranscriptDone carries a finalized per-utterance transcript.
	EventTranscriptDone
	// EventTranscriptReset fires when a barge-in discards an active buffer.
	EventTranscriptReset
	// EventResponseCreated fires when the model starts a response.
	EventResponseCreated
	// EventResponseDone fires when a response completes or is cancelled.
	EventResponseDone
	// EventInterruption fires when a barge-in cancels the active response.
	EventInterruption
	// EventFunctionCall fires when the model requests a tool invocation.
	EventFunctionCall
	// EventError carries a normalized upstream or engine error.
	EventError
	// EventReconnecting fires on each bounded reconnection attempt.
	EventReconnecting
)

// String returns the event name exposed to UI consumers.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventAgentState:
		return "agent_state"
	case EventAudioDelta:
		return "audio.delta"
	case EventAudioDone:
		return "audio.done"
	case EventTranscriptDelta:
		return "transcript.delta"
	case EventTranscriptDone:
		return "transcript.done"
	case EventTranscriptReset:
		return "transcript.reset"
	case EventResponseCreated:
		return "response.created"
	case EventResponseDone:
		return "response.done"
	case EventInterruption:
		return "interruption"
	case EventFunctionCall:
		return "function_call"
	case EventError:
		return "error"
	case EventReconnecting:
		return "connection.reconnecting"
	default:
		return "unknown"
	}
}

// Speaker identifies which side of the conversation a transcript belongs to.
type Speaker string

const (
	// SpeakerUser is the human side.
	SpeakerUser Speaker = "user"
	// SpeakerAssistant is the model side.
	SpeakerAssistant Speaker = "assistant"
)

// Event is one entry in the normalized engine event feed. Only the fields
// relevant to Type are populated.
type Event struct {
	Type      EventType
	Timestamp time.Time

	// EventAgentState
	State AgentState

	// EventAudioDelta: decoded PCM16 at the session's output rate.
	Audio []byte

	// Transcript events.
	Speaker Speaker
	ItemID  string
	Text    string

	// Response lifecycle.
	ResponseID string
	Status     string

	// EventReconnecting.
	Attempt int

	// EventFunctionCall.
	Call *ToolCall

	// EventError and terminal EventDisconnected.
	Err error
}

// ToolCall is a normalized model-issued function call handed to the tool
// dispatch layer. It exists only between receipt of the upstream event
// and dispatch of its result.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
	SessionID string
}
