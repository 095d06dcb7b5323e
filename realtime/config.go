package realtime

import (
	"context"
	"net/http"

	"github.com/voicebridge-ai/voicebridge/events"
)

// Default endpoint and session parameters.
const (
	DefaultEndpoint = "wss://api.openai.com/v1/realtime"
	DefaultModel    = "gpt-4o-realtime-preview"
	DefaultVoice    = "alloy"

	defaultTemperature       = 0.8
	defaultVADThreshold      = 0.5
	defaultPrefixPaddingMs   = 300
	defaultSilenceDurationMs = 500
	defaultEventBufferSize   = 64
)

// betaHeader is required by the upstream realtime endpoint.
const betaHeader = "realtime=v1"

// Instruction directives appended deterministically to the configured
// instructions. The language directive is always present; the fallback
// directive only in guardrail mode.
const (
	languageDirective = "Always respond in the same language the user is speaking. " +
		"Do not switch languages unless the user does."
	guardrailDirective = "If the user asks for something outside your configured " +
		"capabilities, briefly decline and offer what you can help with instead."
)

// AudioSink receives decoded response audio for playback. Stop discards
// all queued audio immediately; the engine calls it on interruption.
type AudioSink interface {
	Play(pcm []byte) <-chan struct{}
	Stop()
}

// ToolDispatcher executes a model-issued tool call and returns the
// serialized result to report upstream. A returned error is contained:
// the engine reports it as a tool error result, never as a session error.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, call ToolCall) (string, error)
}

// Config configures an Engine. The zero value plus a credential is
// usable: defaults select the standard endpoint, model, and voice with
// upstream turn detection enabled.
type Config struct {
	// URL is the WebSocket endpoint. The model is appended as a query
	// parameter when the URL carries none.
	URL string
	// Credential is the ephemeral bearer token from the session broker.
	Credential string
	// Headers are merged into the connection handshake.
	Headers http.Header

	Model        string
	Voice        string
	Instructions string
	Temperature  float64

	// GuardrailMode appends the fallback-refusal directive to the
	// instructions.
	GuardrailMode bool
	// DisableInterruptions records barge-in detections without cancelling
	// the active response.
	DisableInterruptions bool
	// DisableTurnDetection sends an explicit null turn-detection policy so
	// the caller drives commits manually (local turn detection).
	DisableTurnDetection bool

	Transcription *TranscriptionConfig
	TurnDetection *TurnDetection
	Tools         []ToolDef

	// Sink, when set, receives decoded response audio for playback.
	Sink AudioSink
	// Dispatcher, when set, executes model-issued tool calls.
	Dispatcher ToolDispatcher
	// Bus, when set, republishes the normalized event feed.
	Bus *events.EventBus

	// EventBufferSize bounds the Events channel.
	EventBufferSize int
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = defaultEventBufferSize
	}
	if c.Headers == nil {
		c.Headers = http.Header{}
	}
	if c.Headers.Get("OpenAI-Beta") == "" {
		c.Headers.Set("OpenAI-Beta", betaHeader)
	}
	if c.Transcription == nil {
		c.Transcription = &TranscriptionConfig{Model: "whisper-1"}
	}
	if c.TurnDetection == nil && !c.DisableTurnDetection {
		c.TurnDetection = &TurnDetection{
			Type:              "server_vad",
			Threshold:         defaultVADThreshold,
			PrefixPaddingMs:   defaultPrefixPaddingMs,
			SilenceDurationMs: defaultSilenceDurationMs,
			CreateResponse:    true,
		}
	}
}

// instructions returns the configured instructions with the fixed
// directives appended.
func (c *Config) instructions() string {
	out := c.Instructions
	if out != "" {
		out += "\n\n"
	}
	out += languageDirective
	if c.GuardrailMode {
		out += "\n" + guardrailDirective
	}
	return out
}
