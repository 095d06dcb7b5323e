package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerEvent_TypedEvents(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want interface{}
	}{
		{
			"session created",
			`{"type": "session.created", "session": {"id": "sess_1", "model": "gpt-4o-realtime-preview"}}`,
			&SessionCreatedEvent{},
		},
		{
			"speech started",
			`{"type": "input_audio_buffer.speech_started", "audio_start_ms": 120, "item_id": "item_1"}`,
			&SpeechStartedEvent{},
		},
		{
			"response done",
			`{"type": "response.done", "response": {"id": "resp_1", "status": "cancelled"}}`,
			&ResponseDoneEvent{},
		},
		{
			"audio delta",
			`{"type": "response.audio.delta", "response_id": "resp_1", "item_id": "item_1", "delta": "AAAA"}`,
			&AudioDeltaEvent{},
		},
		{
			"function call arguments done",
			`{"type": "response.function_call_arguments.done", "call_id": "call_1", "name": "send_email", "arguments": "{}"}`,
			&FunctionCallArgumentsDoneEvent{},
		},
		{
			"error",
			`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`,
			&ErrorEvent{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseServerEvent([]byte(tc.raw))
			require.NoError(t, err)
			assert.IsType(t, tc.want, event)
		})
	}
}

func TestParseServerEvent_FieldDecoding(t *testing.T) {
	event, err := ParseServerEvent([]byte(
		`{"type": "response.function_call_arguments.done", "call_id": "call_9", "name": "send_email", "arguments": "{\"to\":\"a@x.com\"}"}`))
	require.NoError(t, err)

	fc, ok := event.(*FunctionCallArgumentsDoneEvent)
	require.True(t, ok)
	assert.Equal(t, "call_9", fc.CallID)
	assert.Equal(t, "send_email", fc.Name)
	assert.Equal(t, `{"to":"a@x.com"}`, fc.Arguments)
}

func TestParseServerEvent_UnknownTypeReturnsBase(t *testing.T) {
	event, err := ParseServerEvent([]byte(`{"type": "rate_limits.updated", "event_id": "evt_1"}`))
	require.NoError(t, err)

	base, ok := event.(*ServerEvent)
	require.True(t, ok)
	assert.Equal(t, "rate_limits.updated", base.Type)
}

func TestParseServerEvent_InvalidJSON(t *testing.T) {
	_, err := ParseServerEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestSessionConfig_NullTurnDetectionSerialized(t *testing.T) {
	// An explicit null disables upstream VAD; the field must never be
	// omitted.
	data, err := json.Marshal(SessionConfig{Voice: "alloy"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"turn_detection":null`)
}

func TestSessionConfig_TurnDetectionValue(t *testing.T) {
	data, err := json.Marshal(SessionConfig{
		TurnDetection: &TurnDetection{Type: "server_vad", Threshold: 0.5, CreateResponse: true},
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	td := decoded["turn_detection"].(map[string]interface{})
	assert.Equal(t, "server_vad", td["type"])
	assert.Equal(t, true, td["create_response"])
}

func TestConfigInstructions_Directives(t *testing.T) {
	cfg := Config{Instructions: "You are a support agent."}
	got := cfg.instructions()
	assert.Contains(t, got, "You are a support agent.")
	assert.Contains(t, got, languageDirective)
	assert.NotContains(t, got, guardrailDirective)

	cfg.GuardrailMode = true
	assert.Contains(t, cfg.instructions(), guardrailDirective)

	// Deterministic: same input, same output.
	assert.Equal(t, cfg.instructions(), cfg.instructions())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.defaults()

	assert.Equal(t, DefaultEndpoint, cfg.URL)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultVoice, cfg.Voice)
	assert.Equal(t, betaHeader, cfg.Headers.Get("OpenAI-Beta"))
	require.NotNil(t, cfg.TurnDetection)
	assert.Equal(t, "server_vad", cfg.TurnDetection.Type)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
}

func TestConfigDefaults_DisableTurnDetection(t *testing.T) {
	cfg := Config{DisableTurnDetection: true}
	cfg.defaults()
	assert.Nil(t, cfg.TurnDetection)
}
