package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator handles JSON schema validation for tool inputs and outputs.
// Compiled schemas are cached; safe for concurrent use.
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// ValidateArgs validates tool arguments against the input schema.
func (sv *SchemaValidator) ValidateArgs(descriptor *ToolDescriptor, args json.RawMessage) error {
	return sv.validate(descriptor.Name, descriptor.InputSchema, args, "args_invalid")
}

// ValidateResult validates a tool result against the output schema.
// Tools without an output schema accept any result.
func (sv *SchemaValidator) ValidateResult(descriptor *ToolDescriptor, result json.RawMessage) error {
	if len(descriptor.OutputSchema) == 0 {
		return nil
	}
	return sv.validate(descriptor.Name, descriptor.OutputSchema, result, "result_invalid")
}

func (sv *SchemaValidator) validate(tool string, schemaJSON, doc json.RawMessage, kind string) error {
	schema, err := sv.getSchema(string(schemaJSON))
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", tool, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error for tool %s: %w", tool, err)
	}

	if !result.Valid() {
		details := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			details[i] = desc.String()
		}
		return &ValidationError{
			Type:   kind,
			Tool:   tool,
			Detail: fmt.Sprintf("validation failed: %v", details),
		}
	}

	return nil
}

// getSchema retrieves or compiles a JSON schema.
func (sv *SchemaValidator) getSchema(schemaJSON string) (*gojsonschema.Schema, error) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if schema, exists := sv.cache[schemaJSON]; exists {
		return schema, nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}

	sv.cache[schemaJSON] = schema
	return schema, nil
}
