package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weatherManifest = `apiVersion: voicebridge.ai/v1
kind: Tool
metadata:
  name: get_weather
  labels:
    team: assistants
spec:
  description: Look up the current weather for a city
  mode: mock
  input_schema:
    type: object
    properties:
      city:
        type: string
    required:
      - city
  output_schema:
    type: object
    properties:
      temperature:
        type: number
  mock_response:
    temperature: 21.5
`

func validDescriptor(name string) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        name,
		Description: "test tool",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
		Mode:        ModeMock,
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(validDescriptor("lookup_order")))

	tool, err := r.GetTool("lookup_order")
	require.NoError(t, err)
	assert.Equal(t, "lookup_order", tool.Name)
	assert.Equal(t, defaultTimeoutMs, tool.TimeoutMs)
}

func TestRegistry_GetUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.GetTool("nope")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_ValidateDescriptor(t *testing.T) {
	r := NewRegistry()

	d := validDescriptor("")
	assert.ErrorIs(t, r.Register(d), ErrToolNameRequired)

	d = validDescriptor("x")
	d.Description = ""
	assert.ErrorIs(t, r.Register(d), ErrToolDescriptionRequired)

	d = validDescriptor("x")
	d.InputSchema = nil
	assert.ErrorIs(t, r.Register(d), ErrInputSchemaRequired)

	d = validDescriptor("x")
	d.Mode = "bogus"
	assert.ErrorIs(t, r.Register(d), ErrInvalidToolMode)

	d = validDescriptor("x")
	d.Mode = ModeWebhook
	assert.Error(t, r.Register(d))

	d = validDescriptor("x")
	d.InputSchema = json.RawMessage(`{"type": 42}`)
	assert.Error(t, r.Register(d))
}

func TestRegistry_DefaultsModeToMock(t *testing.T) {
	r := NewRegistry()
	d := validDescriptor("x")
	d.Mode = ""

	require.NoError(t, r.Register(d))
	tool, err := r.GetTool("x")
	require.NoError(t, err)
	assert.Equal(t, ModeMock, tool.Mode)
}

func TestRegistry_ReplaceIsAtomic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(validDescriptor("old_tool")))
	v := r.Version()

	// A bad batch leaves the current set untouched.
	err := r.Replace([]*ToolDescriptor{validDescriptor("new_tool"), validDescriptor("")})
	require.Error(t, err)
	_, err = r.GetTool("old_tool")
	assert.NoError(t, err)
	assert.Equal(t, v, r.Version())

	// A good batch swaps wholesale.
	require.NoError(t, r.Replace([]*ToolDescriptor{validDescriptor("new_tool")}))
	_, err = r.GetTool("old_tool")
	assert.ErrorIs(t, err, ErrToolNotFound)
	_, err = r.GetTool("new_tool")
	assert.NoError(t, err)
	assert.Equal(t, v+1, r.Version())
}

func TestRegistry_LoadToolFromBytes(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.LoadToolFromBytes("weather.yaml", []byte(weatherManifest)))

	tool, err := r.GetTool("get_weather")
	require.NoError(t, err)
	assert.Equal(t, "Look up the current weather for a city", tool.Description)
	assert.Equal(t, ModeMock, tool.Mode)
	assert.JSONEq(t, `{"temperature": 21.5}`, string(tool.MockResponse))
}

func TestRegistry_LoadToolFromBytesWrongKind(t *testing.T) {
	r := NewRegistry()

	err := r.LoadToolFromBytes("bad.yaml", []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: x\n"))
	assert.ErrorContains(t, err, "expected kind Tool")
}

func TestRegistry_ExecutorSelection(t *testing.T) {
	r := NewRegistry()
	r.RegisterExecutor(NewMockStaticExecutor())
	r.RegisterExecutor(NewMockScriptedExecutor())
	r.RegisterExecutor(NewHTTPExecutor())
	r.RegisterExecutor(NewRPCExecutor())

	cases := []struct {
		name       string
		descriptor *ToolDescriptor
		executor   string
	}{
		{"mock static", &ToolDescriptor{Mode: ModeMock}, "mock-static"},
		{"mock scripted", &ToolDescriptor{Mode: ModeMock, MockTemplate: `{"ok": true}`}, "mock-scripted"},
		{"webhook", &ToolDescriptor{Mode: ModeWebhook}, "http"},
		{"rpc", &ToolDescriptor{Mode: ModeRPC}, "rpc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			executor, err := r.ExecutorFor(tc.descriptor)
			require.NoError(t, err)
			assert.Equal(t, tc.executor, executor.Name())
		})
	}
}

func TestRegistry_ExecutorMissing(t *testing.T) {
	r := NewRegistry()

	_, err := r.ExecutorFor(&ToolDescriptor{Mode: ModeMock})
	assert.ErrorContains(t, err, "not available")
}
