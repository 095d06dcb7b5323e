// Package tools provides the tool registry, schema-driven argument
// reconciliation, and dispatch to concrete execution backends.
package tools

import (
	"context"
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Tool modes select the execution backend.
const (
	ModeMock    = "mock"
	ModeWebhook = "webhook"
	ModeRPC     = "rpc"
)

// ToolConfig represents a Kubernetes-style tool manifest.
type ToolConfig struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata" yaml:"metadata"`
	Spec       ToolSpec          `json:"spec" yaml:"spec"`
}

// ToolSpec holds the tool specification within a manifest.
type ToolSpec struct {
	Description  string          `json:"description" yaml:"description"`
	InputSchema  json.RawMessage `json:"input_schema" yaml:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty" yaml:"output_schema,omitempty"`
	Mode         string          `json:"mode" yaml:"mode"`
	TimeoutMs    int             `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	MockResponse json.RawMessage `json:"mock_response,omitempty" yaml:"mock_response,omitempty"`
	MockTemplate string          `json:"mock_template,omitempty" yaml:"mock_template,omitempty"`
	HTTP         *HTTPConfig     `json:"http,omitempty" yaml:"http,omitempty"`
	RPC          *RPCConfig      `json:"rpc,omitempty" yaml:"rpc,omitempty"`
}

// HTTPConfig holds webhook trigger configuration for live tools.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	HeadersFromEnv map[string]string `json:"headers_from_env,omitempty" yaml:"headers_from_env,omitempty"`
}

// RPCConfig holds remote-procedure connector configuration.
type RPCConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Method   string `json:"method" yaml:"method"`
}

// ToolDescriptor describes a registered tool: its schemas, mode, and
// backend configuration. Descriptors are immutable once registered.
type ToolDescriptor struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
	Mode         string          `json:"mode"`
	TimeoutMs    int             `json:"timeout_ms"`
	MockResponse json.RawMessage `json:"mock_response,omitempty"`
	MockTemplate string          `json:"mock_template,omitempty"`
	HTTP         *HTTPConfig     `json:"http,omitempty"`
	RPC          *RPCConfig      `json:"rpc,omitempty"`
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Name      string          `json:"name"`
	CallID    string          `json:"call_id,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// Executor executes tools of a particular backend kind.
type Executor interface {
	// Execute runs the tool with reconciled arguments and returns the raw result.
	Execute(ctx context.Context, descriptor *ToolDescriptor, args json.RawMessage) (json.RawMessage, error)

	// Name returns the executor's registration name.
	Name() string
}
