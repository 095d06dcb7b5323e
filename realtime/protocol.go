// Package realtime implements the client side of the upstream realtime
// voice protocol: a typed event vocabulary over a persistent WebSocket,
// a connection transport, and the session engine that owns turn state.
package realtime

import "encoding/json"

// Client event types sent to the upstream service.
const (
	TypeSessionUpdate          = "session.update"
	TypeInputAudioAppend       = "input_audio_buffer.append"
	TypeInputAudioCommit       = "input_audio_buffer.commit"
	TypeInputAudioClear        = "input_audio_buffer.clear"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeResponseCancel         = "response.cancel"
)

// ClientEvent is the base structure for all outbound events.
type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// SessionUpdateEvent configures the session after connect.
type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfig `json:"session"`
}

// SessionConfig is the session configuration carried by session.update.
// TurnDetection deliberately has no omitempty: an explicit null disables
// upstream voice activity detection, while omitting the field selects the
// upstream default.
type SessionConfig struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection       `json:"turn_detection"`
	Tools                   []ToolDef            `json:"tools,omitempty"`
	ToolChoice              interface{}          `json:"tool_choice,omitempty"`
	Temperature             float64              `json:"temperature,omitempty"`
	MaxResponseOutputTokens interface{}          `json:"max_response_output_tokens,omitempty"`
}

// TranscriptionConfig selects the input transcription model.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetection configures upstream voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response"`
}

// ToolDef is the wire format for a tool declared to the model.
type ToolDef struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// InputAudioAppendEvent appends base64 PCM16 audio to the input buffer.
type InputAudioAppendEvent struct {
	ClientEvent
	Audio string `json:"audio"`
}

// InputAudioCommitEvent commits the input buffer for processing.
type InputAudioCommitEvent struct {
	ClientEvent
}

// InputAudioClearEvent clears the input buffer.
type InputAudioClearEvent struct {
	ClientEvent
}

// ConversationItemCreateEvent adds an item to the conversation.
type ConversationItemCreateEvent struct {
	ClientEvent
	PreviousItemID string           `json:"previous_item_id,omitempty"`
	Item           ConversationItem `json:"item"`
}

// ConversationItem is a message, function_call, or function_call_output
// entry in the conversation.
type ConversationItem struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Status    string        `json:"status,omitempty"`
	Role      string        `json:"role,omitempty"`
	Content   []ItemContent `json:"content,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Output    string        `json:"output,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
}

// ItemContent is one content part within a conversation item.
type ItemContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ResponseCreateEvent asks the model to produce the next response.
type ResponseCreateEvent struct {
	ClientEvent
	Response *ResponseConfig `json:"response,omitempty"`
}

// ResponseConfig overrides session settings for one response.
type ResponseConfig struct {
	Modalities   []string    `json:"modalities,omitempty"`
	Instructions string      `json:"instructions,omitempty"`
	Tools        []ToolDef   `json:"tools,omitempty"`
	ToolChoice   interface{} `json:"tool_choice,omitempty"`
}

// ResponseCancelEvent cancels the in-progress response.
type ResponseCancelEvent struct {
	ClientEvent
}

// ServerEvent is the base structure for all inbound events.
type ServerEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// ErrorEvent reports an upstream error. It does not by itself close the
// connection.
type ErrorEvent struct {
	ServerEvent
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the structured error payload.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// SessionCreatedEvent is the first event after a successful connect.
type SessionCreatedEvent struct {
	ServerEvent
	Session SessionInfo `json:"session"`
}

// SessionUpdatedEvent acknowledges a session.update.
type SessionUpdatedEvent struct {
	ServerEvent
	Session SessionInfo `json:"session"`
}

// SessionInfo describes the negotiated session.
type SessionInfo struct {
	ID                      string               `json:"id"`
	Model                   string               `json:"model"`
	Modalities              []string             `json:"modalities"`
	Instructions            string               `json:"instructions"`
	Voice                   string               `json:"voice"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription"`
	TurnDetection           *TurnDetection       `json:"turn_detection"`
	Tools                   []ToolDef            `json:"tools"`
	Temperature             float64              `json:"temperature"`
}

// InputAudioCommittedEvent acknowledges a commit.
type InputAudioCommittedEvent struct {
	ServerEvent
	PreviousItemID string `json:"previous_item_id"`
	ItemID         string `json:"item_id"`
}

// InputAudioClearedEvent acknowledges a clear.
type InputAudioClearedEvent struct {
	ServerEvent
}

// SpeechStartedEvent signals detected user speech.
type SpeechStartedEvent struct {
	ServerEvent
	AudioStartMs int    `json:"audio_start_ms"`
	ItemID       string `json:"item_id"`
}

// SpeechStoppedEvent signals the end of a user utterance.
type SpeechStoppedEvent struct {
	ServerEvent
	AudioEndMs int    `json:"audio_end_ms"`
	ItemID     string `json:"item_id"`
}

// ConversationItemCreatedEvent acknowledges an item creation.
type ConversationItemCreatedEvent struct {
	ServerEvent
	PreviousItemID string           `json:"previous_item_id"`
	Item           ConversationItem `json:"item"`
}

// InputTranscriptionCompletedEvent carries the finalized transcript of a
// user utterance.
type InputTranscriptionCompletedEvent struct {
	ServerEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

// InputTranscriptionFailedEvent signals a failed user transcription.
type InputTranscriptionFailedEvent struct {
	ServerEvent
	ItemID       string      `json:"item_id"`
	ContentIndex int         `json:"content_index"`
	Error        ErrorDetail `json:"error"`
}

// ResponseCreatedEvent signals a response is starting.
type ResponseCreatedEvent struct {
	ServerEvent
	Response ResponseInfo `json:"response"`
}

// ResponseDoneEvent signals a response finished, completed or cancelled.
type ResponseDoneEvent struct {
	ServerEvent
	Response ResponseInfo `json:"response"`
}

// ResponseInfo describes a response's terminal or current state.
type ResponseInfo struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	StatusDetails interface{}        `json:"status_details"`
	Output        []ConversationItem `json:"output"`
	Usage         *UsageInfo         `json:"usage"`
}

// UsageInfo carries token accounting for a completed response.
type UsageInfo struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ResponseOutputItemDoneEvent signals one output item completed.
type ResponseOutputItemDoneEvent struct {
	ServerEvent
	ResponseID  string           `json:"response_id"`
	OutputIndex int              `json:"output_index"`
	Item        ConversationItem `json:"item"`
}

// AudioDeltaEvent carries one base64 chunk of response audio.
type AudioDeltaEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// AudioDoneEvent signals response audio streaming completed.
type AudioDoneEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
}

// TextDeltaEvent carries streaming response text.
type TextDeltaEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// TextDoneEvent carries the finalized response text.
type TextDoneEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

// TranscriptDeltaEvent carries streaming transcript of response audio.
type TranscriptDeltaEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// TranscriptDoneEvent carries the finalized transcript of response audio.
type TranscriptDoneEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

// FunctionCallArgumentsDoneEvent signals a completed function call with
// its full argument payload.
type FunctionCallArgumentsDoneEvent struct {
	ServerEvent
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
}

// ParseServerEvent decodes one raw inbound message into its typed event.
// Unknown event types return the bare ServerEvent so callers can log and
// skip them without failing the session.
func ParseServerEvent(data []byte) (interface{}, error) {
	var base ServerEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case "error":
		var e ErrorEvent
		return &e, json.Unmarshal(data, &e)
	case "session.created":
		var e SessionCreatedEvent
		return &e, json.Unmarshal(data, &e)
	case "session.updated":
		var e SessionUpdatedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.committed":
		var e InputAudioCommittedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.cleared":
		var e InputAudioClearedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.speech_started":
		var e SpeechStartedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.speech_stopped":
		var e SpeechStoppedEvent
		return &e, json.Unmarshal(data, &e)
	case "conversation.item.created":
		var e ConversationItemCreatedEvent
		return &e, json.Unmarshal(data, &e)
	case "conversation.item.input_audio_transcription.completed":
		var e InputTranscriptionCompletedEvent
		return &e, json.Unmarshal(data, &e)
	case "conversation.item.input_audio_transcription.failed":
		var e InputTranscriptionFailedEvent
		return &e, json.Unmarshal(data, &e)
	case "response.created":
		var e ResponseCreatedEvent
		return &e, json.Unmarshal(data, &e)
	case "response.done":
		var e ResponseDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.output_item.done":
		var e ResponseOutputItemDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio.delta":
		var e AudioDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio.done":
		var e AudioDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.text.delta":
		var e TextDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case "response.text.done":
		var e TextDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio_transcript.delta":
		var e TranscriptDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio_transcript.done":
		var e TranscriptDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.function_call_arguments.done":
		var e FunctionCallArgumentsDoneEvent
		return &e, json.Unmarshal(data, &e)
	default:
		return &base, nil
	}
}
