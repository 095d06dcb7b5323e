package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registry and dispatch operations.
var (
	ErrToolNotFound            = errors.New("tool not found")
	ErrToolNameRequired        = errors.New("tool name is required")
	ErrToolDescriptionRequired = errors.New("tool description is required")
	ErrInputSchemaRequired     = errors.New("input schema is required")
	ErrInvalidToolMode         = errors.New("mode must be 'mock', 'webhook', or 'rpc'")
	ErrSchemaUnavailable       = errors.New("schema unavailable")
	ErrExecutorFailure         = errors.New("executor failure")
)

// MissingRequiredFieldsError reports schema-required fields that argument
// reconciliation could not populate. Dispatch must not proceed.
type MissingRequiredFieldsError struct {
	Tool   string
	Fields []string
}

func (e *MissingRequiredFieldsError) Error() string {
	return fmt.Sprintf("tool %s: missing required fields: %s", e.Tool, strings.Join(e.Fields, ", "))
}

// ValidationError reports a schema validation failure for tool arguments
// or results.
type ValidationError struct {
	Type   string
	Tool   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s for tool %s: %s", e.Type, e.Tool, e.Detail)
}
