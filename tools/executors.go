package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/template"
	"time"
)

// MockStaticExecutor returns the descriptor's canned mock response.
type MockStaticExecutor struct{}

// NewMockStaticExecutor creates a static mock executor.
func NewMockStaticExecutor() *MockStaticExecutor {
	return &MockStaticExecutor{}
}

func (e *MockStaticExecutor) Name() string {
	return "mock-static"
}

func (e *MockStaticExecutor) Execute(ctx context.Context, descriptor *ToolDescriptor, args json.RawMessage) (json.RawMessage, error) {
	if len(descriptor.MockResponse) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return descriptor.MockResponse, nil
}

// MockScriptedExecutor renders the descriptor's mock template against the
// call arguments, so mock responses can echo inputs.
type MockScriptedExecutor struct{}

// NewMockScriptedExecutor creates a scripted mock executor.
func NewMockScriptedExecutor() *MockScriptedExecutor {
	return &MockScriptedExecutor{}
}

func (e *MockScriptedExecutor) Name() string {
	return "mock-scripted"
}

func (e *MockScriptedExecutor) Execute(ctx context.Context, descriptor *ToolDescriptor, args json.RawMessage) (json.RawMessage, error) {
	tmpl, err := template.New(descriptor.Name).Option("missingkey=zero").Parse(descriptor.MockTemplate)
	if err != nil {
		return nil, fmt.Errorf("tool %s: invalid mock template: %w", descriptor.Name, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(args, &data); err != nil {
		return nil, fmt.Errorf("tool %s: cannot parse arguments: %w", descriptor.Name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("tool %s: mock template execution failed: %w", descriptor.Name, err)
	}

	result := buf.Bytes()
	if !json.Valid(result) {
		return nil, fmt.Errorf("tool %s: mock template produced invalid JSON", descriptor.Name)
	}
	return result, nil
}

// HTTPExecutor triggers webhook-style tools by posting the reconciled
// arguments as a JSON body.
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor creates a webhook executor.
func NewHTTPExecutor() *HTTPExecutor {
	return &HTTPExecutor{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPExecutor) Name() string {
	return "http"
}

func (e *HTTPExecutor) Execute(ctx context.Context, descriptor *ToolDescriptor, args json.RawMessage) (json.RawMessage, error) {
	if descriptor.HTTP == nil || descriptor.HTTP.URL == "" {
		return nil, fmt.Errorf("tool %s: no webhook URL configured", descriptor.Name)
	}

	method := descriptor.HTTP.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, descriptor.HTTP.URL, bytes.NewReader(args))
	if err != nil {
		return nil, fmt.Errorf("tool %s: cannot build request: %w", descriptor.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range descriptor.HTTP.Headers {
		req.Header.Set(key, value)
	}
	for key, envVar := range descriptor.HTTP.HeadersFromEnv {
		if value := os.Getenv(envVar); value != "" {
			req.Header.Set(key, value)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool %s: webhook request failed: %w", descriptor.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tool %s: cannot read webhook response: %w", descriptor.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tool %s: webhook returned status %d", descriptor.Name, resp.StatusCode)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage(`{"status":"ok"}`), nil
	}
	if !json.Valid(body) {
		wrapped, err := json.Marshal(map[string]string{"result": string(body)})
		if err != nil {
			return nil, err
		}
		return wrapped, nil
	}
	return body, nil
}

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCExecutor invokes remote-procedure connector tools over JSON-RPC.
type RPCExecutor struct {
	client *http.Client
}

// NewRPCExecutor creates a remote-procedure executor.
func NewRPCExecutor() *RPCExecutor {
	return &RPCExecutor{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *RPCExecutor) Name() string {
	return "rpc"
}

func (e *RPCExecutor) Execute(ctx context.Context, descriptor *ToolDescriptor, args json.RawMessage) (json.RawMessage, error) {
	if descriptor.RPC == nil || descriptor.RPC.Endpoint == "" {
		return nil, fmt.Errorf("tool %s: no rpc endpoint configured", descriptor.Name)
	}

	method := descriptor.RPC.Method
	if method == "" {
		method = descriptor.Name
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  args,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, descriptor.RPC.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tool %s: cannot build request: %w", descriptor.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool %s: rpc request failed: %w", descriptor.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tool %s: cannot read rpc response: %w", descriptor.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool %s: rpc returned status %d", descriptor.Name, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("tool %s: invalid rpc response: %w", descriptor.Name, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("tool %s: rpc error %d: %s", descriptor.Name, decoded.Error.Code, decoded.Error.Message)
	}
	if len(decoded.Result) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return decoded.Result, nil
}
