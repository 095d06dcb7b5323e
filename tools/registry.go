package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

const defaultTimeoutMs = 3000

// Registry holds the available tool descriptors and execution backends.
// The descriptor set is replaced wholesale on reconfiguration; readers
// always observe a consistent snapshot identified by a version number.
type Registry struct {
	mu        sync.RWMutex
	version   uint64
	tools     map[string]*ToolDescriptor
	validator *SchemaValidator
	executors map[string]Executor
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]*ToolDescriptor),
		validator: NewSchemaValidator(),
		executors: make(map[string]Executor),
	}
}

// Register adds a single tool descriptor to the current set.
func (r *Registry) Register(descriptor *ToolDescriptor) error {
	if err := r.validateDescriptor(descriptor); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[descriptor.Name] = descriptor
	r.version++
	return nil
}

// Replace swaps the entire descriptor set atomically. All descriptors are
// validated before any of them become visible; on error the current set
// is unchanged.
func (r *Registry) Replace(descriptors []*ToolDescriptor) error {
	next := make(map[string]*ToolDescriptor, len(descriptors))
	for _, descriptor := range descriptors {
		if err := r.validateDescriptor(descriptor); err != nil {
			return err
		}
		next[descriptor.Name] = descriptor
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = next
	r.version++
	return nil
}

// Version returns the current descriptor set version. It increments on
// every Register or Replace.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// GetTool returns the descriptor for a tool name.
func (r *Registry) GetTool(name string) (*ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// GetTools returns all registered tool descriptors.
func (r *Registry) GetTools() map[string]*ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ToolDescriptor, len(r.tools))
	for name, tool := range r.tools {
		result[name] = tool
	}
	return result
}

// RegisterExecutor registers a tool executor under its name.
func (r *Registry) RegisterExecutor(executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[executor.Name()] = executor
}

// ExecutorFor selects the execution backend for a descriptor based on its
// mode and mock configuration.
func (r *Registry) ExecutorFor(descriptor *ToolDescriptor) (Executor, error) {
	executorName := "mock-static"
	switch {
	case descriptor.Mode == ModeWebhook:
		executorName = "http"
	case descriptor.Mode == ModeRPC:
		executorName = "rpc"
	case descriptor.MockTemplate != "":
		executorName = "mock-scripted"
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, exists := r.executors[executorName]
	if !exists {
		return nil, fmt.Errorf("executor %s not available", executorName)
	}
	return executor, nil
}

// Validator returns the registry's schema validator.
func (r *Registry) Validator() *SchemaValidator {
	return r.validator
}

// LoadToolFromBytes loads a tool descriptor from manifest bytes. Manifests
// are Kubernetes-style YAML documents with kind Tool.
func (r *Registry) LoadToolFromBytes(source string, data []byte) error {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", source, err)
	}

	if kind, _ := generic["kind"].(string); kind != "Tool" {
		return fmt.Errorf("manifest %s: expected kind Tool, got %q", source, generic["kind"])
	}

	jsonData, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("failed to convert manifest %s: %w", source, err)
	}

	var config ToolConfig
	if err := json.Unmarshal(jsonData, &config); err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", source, err)
	}

	descriptor := &ToolDescriptor{
		Name:         config.Metadata.Name,
		Description:  config.Spec.Description,
		InputSchema:  config.Spec.InputSchema,
		OutputSchema: config.Spec.OutputSchema,
		Mode:         config.Spec.Mode,
		TimeoutMs:    config.Spec.TimeoutMs,
		MockResponse: config.Spec.MockResponse,
		MockTemplate: config.Spec.MockTemplate,
		HTTP:         config.Spec.HTTP,
		RPC:          config.Spec.RPC,
	}

	return r.Register(descriptor)
}

// ToolData holds raw manifest bytes with their source path.
type ToolData struct {
	FilePath string
	Data     []byte
}

// LoadToolsFromData loads tool descriptors from a slice of manifests.
// Returns on the first failure.
func (r *Registry) LoadToolsFromData(manifests []ToolData) error {
	for _, manifest := range manifests {
		if err := r.LoadToolFromBytes(manifest.FilePath, manifest.Data); err != nil {
			return fmt.Errorf("failed to load tool %s: %w", manifest.FilePath, err)
		}
	}
	return nil
}

func (r *Registry) validateDescriptor(descriptor *ToolDescriptor) error {
	if descriptor.Name == "" {
		return ErrToolNameRequired
	}
	if descriptor.Description == "" {
		return ErrToolDescriptionRequired
	}
	if len(descriptor.InputSchema) == 0 {
		return ErrInputSchemaRequired
	}

	if descriptor.Mode == "" {
		descriptor.Mode = ModeMock
	}
	if descriptor.Mode != ModeMock && descriptor.Mode != ModeWebhook && descriptor.Mode != ModeRPC {
		return ErrInvalidToolMode
	}
	if descriptor.Mode == ModeWebhook && (descriptor.HTTP == nil || descriptor.HTTP.URL == "") {
		return fmt.Errorf("tool %s: webhook mode requires http.url", descriptor.Name)
	}
	if descriptor.Mode == ModeRPC && (descriptor.RPC == nil || descriptor.RPC.Endpoint == "") {
		return fmt.Errorf("tool %s: rpc mode requires rpc.endpoint", descriptor.Name)
	}

	if descriptor.TimeoutMs <= 0 {
		descriptor.TimeoutMs = defaultTimeoutMs
	}

	if _, err := r.validator.getSchema(string(descriptor.InputSchema)); err != nil {
		return fmt.Errorf("tool %s: invalid input schema: %w", descriptor.Name, err)
	}
	if len(descriptor.OutputSchema) > 0 {
		if _, err := r.validator.getSchema(string(descriptor.OutputSchema)); err != nil {
			return fmt.Errorf("tool %s: invalid output schema: %w", descriptor.Name, err)
		}
	}

	return nil
}
