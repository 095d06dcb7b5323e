package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var emailSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"recipient_email": {"type": "string"},
		"subject": {"type": "string"},
		"body": {"type": "string"}
	},
	"required": ["recipient_email", "body"]
}`)

func reconcileMap(t *testing.T, r *Reconciler, schema json.RawMessage, raw string) map[string]interface{} {
	t.Helper()
	out, err := r.Reconcile("test_tool", schema, json.RawMessage(raw))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	return decoded
}

func TestReconcile_SynonymAndCaseMatching(t *testing.T) {
	r := NewReconciler(nil)

	got := reconcileMap(t, r, emailSchema, `{"to": "a@x.com", "Subject": "Hi", "message": "Hello"}`)

	assert.Equal(t, map[string]interface{}{
		"recipient_email": "a@x.com",
		"subject":         "Hi",
		"body":            "Hello",
	}, got)
}

func TestReconcile_MissingRequiredFields(t *testing.T) {
	r := NewReconciler(nil)

	_, err := r.Reconcile("test_tool", emailSchema, json.RawMessage(`{"subject": "Hi"}`))
	require.Error(t, err)

	var missing *MissingRequiredFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"recipient_email", "body"}, missing.Fields)
	assert.Equal(t, "test_tool", missing.Tool)
}

func TestReconcile_Deterministic(t *testing.T) {
	r := NewReconciler(nil)
	raw := `{"mail_to": "B@X.com", "title": "greetings", "content": "hey there"}`

	first, err := r.Reconcile("test_tool", emailSchema, json.RawMessage(raw))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Reconcile("test_tool", emailSchema, json.RawMessage(raw))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestReconcile_NoSchemaPassthroughDropsEmpties(t *testing.T) {
	r := NewReconciler(nil)

	got := reconcileMap(t, r, nil, `{"kept": "value", "blank": "  ", "null_field": null, "empty_list": [], "n": 3}`)

	assert.Equal(t, map[string]interface{}{
		"kept": "value",
		"n":    float64(3),
	}, got)
}

func TestReconcile_NestedPathMatching(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"recipient_email": {"type": "string"},
			"body": {"type": "string"}
		},
		"required": ["recipient_email"]
	}`)

	got := reconcileMap(t, r, schema, `{"email": {"to": "A@X.com "}, "text": "hi"}`)

	assert.Equal(t, "a@x.com", got["recipient_email"])
	assert.Equal(t, "hi", got["body"])
}

func TestReconcile_JaccardFuzzyMatch(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"order_id": {"type": "string"}
		},
		"required": ["order_id"]
	}`)

	// {order, id, number} vs {order, id}: similarity 2/3, above threshold.
	got := reconcileMap(t, r, schema, `{"order_id_number": "ORD-77"}`)
	assert.Equal(t, "ORD-77", got["order_id"])
}

func TestReconcile_JaccardBelowThresholdRejected(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"shipping_address_line": {"type": "string"}
		}
	}`)

	// {shipping, address, line} vs {address}: similarity 1/3, rejected.
	got := reconcileMap(t, r, schema, `{"address": "1 Main St"}`)
	assert.Empty(t, got)
}

func TestReconcile_BooleanCoercion(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"urgent": {"type": "boolean"},
			"confirmed": {"type": "boolean"},
			"draft": {"type": "boolean"}
		}
	}`)

	got := reconcileMap(t, r, schema, `{"urgent": "yes", "confirmed": "1", "draft": "false"}`)

	assert.Equal(t, true, got["urgent"])
	assert.Equal(t, true, got["confirmed"])
	assert.Equal(t, false, got["draft"])
}

func TestReconcile_NumberCoercion(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"quantity": {"type": "integer"},
			"price": {"type": "number"}
		}
	}`)

	got := reconcileMap(t, r, schema, `{"quantity": "3", "price": "19.99"}`)

	assert.Equal(t, float64(3), got["quantity"])
	assert.Equal(t, 19.99, got["price"])
}

func TestReconcile_RecipientArrayForm(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"recipients": {"type": "array", "items": {"type": "string"}}
		}
	}`)

	got := reconcileMap(t, r, schema, `{"to": "A@X.com, b@y.com ; C@Z.com"}`)

	assert.Equal(t, []interface{}{"a@x.com", "b@y.com", "c@z.com"}, got["recipients"])
}

func TestReconcile_RecipientCommaJoin(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"recipient_email": {"type": "string"}
		}
	}`)

	got := reconcileMap(t, r, schema, `{"to": [" A@X.com", "B@Y.com "]}`)

	assert.Equal(t, "a@x.com,b@y.com", got["recipient_email"])
}

func TestReconcile_EnumSnapping(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"priority": {"type": "string", "enum": ["low", "medium", "HIGH"]}
		}
	}`)

	got := reconcileMap(t, r, schema, `{"priority": "High"}`)
	assert.Equal(t, "HIGH", got["priority"])

	got = reconcileMap(t, r, schema, `{"priority": "MEDIUM"}`)
	assert.Equal(t, "medium", got["priority"])
}

func TestReconcile_RawKeyMergeSchemaPrecedence(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"subject": {"type": "string"},
			"body": {"type": "string"}
		}
	}`)

	// "subject" matches by schema first; the textual merge must not
	// overwrite it, while "body" fills in from the raw key.
	got := reconcileMap(t, r, schema, `{"subject": "From schema match", "body": "raw body"}`)

	assert.Equal(t, "From schema match", got["subject"])
	assert.Equal(t, "raw body", got["body"])
}

func TestReconcile_EmptyValuesDropped(t *testing.T) {
	r := NewReconciler(nil)
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"subject": {"type": "string"},
			"body": {"type": "string"}
		}
	}`)

	got := reconcileMap(t, r, schema, `{"subject": "  ", "body": "hi"}`)

	_, hasSubject := got["subject"]
	assert.False(t, hasSubject)
	assert.Equal(t, "hi", got["body"])
}

func TestReconcile_FanOut(t *testing.T) {
	sendEmail := &ToolDescriptor{
		Name:        "send_email",
		InputSchema: emailSchema,
	}
	r := NewReconciler(func(name string) (*ToolDescriptor, bool) {
		if name == "send_email" {
			return sendEmail, true
		}
		return nil, false
	})
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"batch_name": {"type": "string"}
		}
	}`)

	raw := `{
		"batch_name": "weekly",
		"tool_calls": [
			{"name": "send_email", "arguments": {"to": "A@X.com", "message": "Hello"}}
		]
	}`
	got := reconcileMap(t, r, schema, raw)

	assert.Equal(t, "weekly", got["batch_name"])
	calls, ok := got["tool_calls"].([]interface{})
	require.True(t, ok)
	require.Len(t, calls, 1)

	call := calls[0].(map[string]interface{})
	assert.Equal(t, "send_email", call["name"])
	args := call["arguments"].(map[string]interface{})
	assert.Equal(t, "a@x.com", args["recipient_email"])
	assert.Equal(t, "Hello", args["body"])
}

func TestReconcile_FanOutMissingRequiredFails(t *testing.T) {
	sendEmail := &ToolDescriptor{
		Name:        "send_email",
		InputSchema: emailSchema,
	}
	r := NewReconciler(func(name string) (*ToolDescriptor, bool) {
		return sendEmail, name == "send_email"
	})
	schema := json.RawMessage(`{"type": "object", "properties": {}}`)

	raw := `{"tool_calls": [{"name": "send_email", "arguments": {"subject": "Hi"}}]}`
	_, err := r.Reconcile("batch", schema, json.RawMessage(raw))

	var missing *MissingRequiredFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "send_email", missing.Tool)
}

func TestReconcile_InvalidArgumentsJSON(t *testing.T) {
	r := NewReconciler(nil)

	_, err := r.Reconcile("test_tool", emailSchema, json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "recipientemail", normalizeKey("Recipient_Email"))
	assert.Equal(t, "mailto", normalizeKey("mail.to"))
	assert.Equal(t, "abc123", normalizeKey("a-b_c 123"))
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("recipientEmail_address")
	assert.Equal(t, map[string]bool{"recipient": true, "email": true, "address": true}, tokens)
}

func TestJaccard(t *testing.T) {
	a := tokenize("order_id")
	b := tokenize("order_id_number")
	assert.InDelta(t, 2.0/3.0, jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, jaccard(a, a))
	assert.Equal(t, 0.0, jaccard(a, map[string]bool{}))
}
