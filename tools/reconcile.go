package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// jaccardThreshold is the minimum token-set similarity accepted when
// matching a raw argument key against a schema field by fuzzy comparison.
const jaccardThreshold = 0.6

// Keys that carry a nested list of further tool invocations. Each nested
// invocation is reconciled against its own target schema, never the parent's.
var fanOutKeys = map[string]bool{
	"tool_calls":  true,
	"calls":       true,
	"invocations": true,
}

// conceptSynonyms groups normalized key names that refer to the same
// argument concept. A schema field belonging to a concept matches any raw
// key in the same group.
var conceptSynonyms = map[string][]string{
	"recipient": {"to", "recipient", "recipients", "recipientemail", "mailto", "toaddress", "email", "emailaddress", "addressee"},
	"subject":   {"subject", "title", "topic", "re"},
	"body":      {"body", "message", "content", "text", "messagebody"},
	"phone":     {"phone", "phonenumber", "telephone", "tel", "mobile"},
	"url":       {"url", "link", "href", "website"},
	"query":     {"query", "q", "search", "searchterm", "keywords"},
}

var conceptOf = map[string]string{}

func init() {
	for concept, members := range conceptSynonyms {
		for _, m := range members {
			conceptOf[m] = concept
		}
	}
}

// Reconciler maps loosely-typed tool-call arguments onto a target
// executor's declared schema. Given the same raw payload and schema it
// always produces the same output and the same missing-fields set.
type Reconciler struct {
	resolve func(name string) (*ToolDescriptor, bool)
}

// NewReconciler creates a reconciler. resolve looks up the descriptor for
// nested fan-out invocations; it may be nil when fan-out is not used.
func NewReconciler(resolve func(name string) (*ToolDescriptor, bool)) *Reconciler {
	return &Reconciler{resolve: resolve}
}

// Reconcile maps raw arguments onto the given input schema. A nil or empty
// schema passes the payload through with empty fields dropped. Returns
// MissingRequiredFieldsError when a schema-required field cannot be
// populated.
func (r *Reconciler) Reconcile(toolName string, schema, raw json.RawMessage) (json.RawMessage, error) {
	rawObj, err := decodeOrderedObject(raw)
	if err != nil {
		return nil, fmt.Errorf("tool %s: cannot parse arguments: %w", toolName, err)
	}

	if isEmptySchema(schema) {
		return marshalResult(passthrough(rawObj))
	}

	parsed, err := parseSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w: %v", toolName, ErrSchemaUnavailable, err)
	}

	fanOutKey, fanOut := extractFanOut(rawObj)
	candidates := flattenCandidates(rawObj, fanOutKey)

	result := make(map[string]interface{})
	consumed := make([]bool, len(candidates))

	for _, field := range parsed.fields {
		idx := matchField(field, candidates, consumed)
		if idx < 0 {
			continue
		}
		consumed[idx] = true

		value := coerceValue(candidates[idx].value, field)
		if isEmptyValue(value) {
			continue
		}
		result[field.name] = value
	}

	// Raw keys that textually match a schema field merge in directly, with
	// schema-derived values taking precedence.
	for _, key := range rawObj.keys {
		if key == fanOutKey {
			continue
		}
		norm := normalizeKey(key)
		for _, field := range parsed.fields {
			if field.norm != norm {
				continue
			}
			if _, exists := result[field.name]; exists {
				break
			}
			value := plainValue(rawObj.values[key])
			if !isEmptyValue(value) {
				result[field.name] = value
			}
			break
		}
	}

	var missing []string
	for _, name := range parsed.required {
		if _, ok := result[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredFieldsError{Tool: toolName, Fields: missing}
	}

	if fanOut != nil {
		nested, err := r.reconcileFanOut(fanOut)
		if err != nil {
			return nil, err
		}
		result[fanOutKey] = nested
	}

	return marshalResult(result)
}

// reconcileFanOut reconciles each nested invocation against its own target
// schema. Invocations naming an unknown tool pass through with empty
// fields dropped.
func (r *Reconciler) reconcileFanOut(invocations []*orderedMap) ([]interface{}, error) {
	out := make([]interface{}, 0, len(invocations))
	for _, inv := range invocations {
		name := invocationName(inv)
		args := invocationArgs(inv)

		var schema json.RawMessage
		if r.resolve != nil {
			if desc, ok := r.resolve(name); ok {
				schema = desc.InputSchema
			}
		}

		rawArgs, err := marshalResult(plainValue(args).(map[string]interface{}))
		if err != nil {
			return nil, err
		}
		reconciled, err := r.Reconcile(name, schema, rawArgs)
		if err != nil {
			return nil, err
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(reconciled, &decoded); err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"name":      name,
			"arguments": decoded,
		})
	}
	return out, nil
}

// schemaField describes one property of a parsed input schema.
type schemaField struct {
	name     string
	norm     string
	typ      string
	itemType string
	enum     []string
}

type toolSchema struct {
	fields   []schemaField
	required []string
}

// parseSchema extracts properties in declaration order plus the required
// set from a JSON schema document.
func parseSchema(schema json.RawMessage) (*toolSchema, error) {
	root, err := decodeOrderedObject(schema)
	if err != nil {
		return nil, err
	}

	parsed := &toolSchema{}

	if req, ok := root.values["required"].([]interface{}); ok {
		for _, v := range req {
			if s, ok := v.(string); ok {
				parsed.required = append(parsed.required, s)
			}
		}
	}

	props, ok := root.values["properties"].(*orderedMap)
	if !ok {
		return parsed, nil
	}

	for _, name := range props.keys {
		prop, ok := props.values[name].(*orderedMap)
		if !ok {
			parsed.fields = append(parsed.fields, schemaField{name: name, norm: normalizeKey(name)})
			continue
		}

		field := schemaField{name: name, norm: normalizeKey(name)}
		if t, ok := prop.values["type"].(string); ok {
			field.typ = t
		}
		if items, ok := prop.values["items"].(*orderedMap); ok {
			if t, ok := items.values["type"].(string); ok {
				field.itemType = t
			}
		}
		if enum, ok := prop.values["enum"].([]interface{}); ok {
			for _, v := range enum {
				if s, ok := v.(string); ok {
					field.enum = append(field.enum, s)
				}
			}
		}
		parsed.fields = append(parsed.fields, field)
	}

	return parsed, nil
}

// candidate is one flattened raw key path available for matching.
type candidate struct {
	path     string
	normPath string
	normLeaf string
	value    interface{}
}

// flattenCandidates indexes every key path of the raw payload in document
// order. Both the full dotted path and its final segment are matchable.
func flattenCandidates(obj *orderedMap, skipKey string) []candidate {
	var out []candidate
	var walk func(m *orderedMap, prefix string)
	walk = func(m *orderedMap, prefix string) {
		for _, key := range m.keys {
			if prefix == "" && key == skipKey {
				continue
			}
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			value := m.values[key]
			out = append(out, candidate{
				path:     path,
				normPath: normalizeKey(path),
				normLeaf: normalizeKey(key),
				value:    value,
			})
			if child, ok := value.(*orderedMap); ok {
				walk(child, path)
			}
		}
	}
	walk(obj, "")
	return out
}

// matchField finds the candidate for a schema field. Priority order is
// strict: exact normalized key, then concept synonym, then token-set
// similarity at or above the threshold with ties broken by first
// encounter. Returns -1 when nothing matches.
func matchField(field schemaField, candidates []candidate, consumed []bool) int {
	// Object-valued candidates only match object-typed fields; their
	// leaves are indexed separately.
	eligible := func(i int) bool {
		if consumed[i] {
			return false
		}
		if _, isObj := candidates[i].value.(*orderedMap); isObj {
			return field.typ == "object" || field.typ == ""
		}
		return true
	}

	for i, c := range candidates {
		if !eligible(i) {
			continue
		}
		if c.normPath == field.norm || c.normLeaf == field.norm {
			return i
		}
	}

	if concept, ok := conceptOf[field.norm]; ok {
		for i, c := range candidates {
			if !eligible(i) {
				continue
			}
			if conceptOf[c.normLeaf] == concept || conceptOf[c.normPath] == concept {
				return i
			}
		}
	}

	fieldTokens := tokenize(field.name)
	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		if !eligible(i) {
			continue
		}
		score := jaccard(fieldTokens, tokenize(c.path))
		if leaf := jaccard(fieldTokens, tokenize(lastSegment(c.path))); leaf > score {
			score = leaf
		}
		if score >= jaccardThreshold && score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// coerceValue converts a matched value to the schema's declared primitive
// type using permissive rules.
func coerceValue(value interface{}, field schemaField) interface{} {
	value = plainValue(value)
	if value == nil {
		return nil
	}

	recipientLike := conceptOf[field.norm] == "recipient"

	var out interface{}
	switch field.typ {
	case "string":
		out = toString(value)
	case "boolean":
		out = toBool(value)
	case "number":
		out = toNumber(value)
	case "integer":
		if n := toNumber(value); n != nil {
			out = math.Trunc(n.(float64))
		}
	case "array":
		out = toArray(value, field.itemType)
	case "object":
		if m, ok := value.(map[string]interface{}); ok {
			out = m
		} else if s, ok := value.(string); ok {
			var decoded map[string]interface{}
			if json.Unmarshal([]byte(s), &decoded) == nil {
				out = decoded
			}
		}
	default:
		out = value
	}

	if recipientLike && out != nil {
		out = normalizeRecipients(out, field.typ == "array")
	}
	if len(field.enum) > 0 {
		if s, ok := out.(string); ok {
			out = snapToEnum(s, field.enum)
		}
	}
	return out
}

// normalizeRecipients lowercases and trims each address, producing either
// a comma-joined string or an array depending on the schema's shape.
func normalizeRecipients(value interface{}, wantArray bool) interface{} {
	var parts []string
	switch v := value.(type) {
	case string:
		parts = splitRecipients(v)
	case []interface{}:
		for _, item := range v {
			parts = append(parts, splitRecipients(toString(item).(string))...)
		}
	default:
		return value
	}

	if len(parts) == 0 {
		return nil
	}
	if wantArray {
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	}
	return strings.Join(parts, ",")
}

func splitRecipients(s string) []string {
	var parts []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// snapToEnum returns the enum member matching the value under key
// normalization, or the value unchanged when nothing matches.
func snapToEnum(value string, enum []string) string {
	for _, member := range enum {
		if member == value {
			return member
		}
	}
	norm := normalizeKey(value)
	for _, member := range enum {
		if normalizeKey(member) == norm {
			return member
		}
	}
	return value
}

func toString(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := toString(item).(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(data)
	}
	return nil
}

func toBool(value interface{}) interface{} {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1", "on":
			return true
		case "false", "no", "0", "off":
			return false
		}
	case float64:
		return v != 0
	}
	return nil
}

func toNumber(value interface{}) interface{} {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return n
		}
	case bool:
		if v {
			return float64(1)
		}
		return float64(0)
	}
	return nil
}

func toArray(value interface{}, itemType string) interface{} {
	item := schemaField{typ: itemType}
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, elem := range v {
			if itemType == "" {
				out = append(out, plainValue(elem))
				continue
			}
			if coerced := coerceValue(elem, item); coerced != nil {
				out = append(out, coerced)
			}
		}
		return out
	case string:
		if strings.Contains(v, ",") {
			var out []interface{}
			for _, part := range strings.Split(v, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					out = append(out, part)
				}
			}
			return out
		}
		return []interface{}{v}
	default:
		if itemType != "" {
			if coerced := coerceValue(value, item); coerced != nil {
				return []interface{}{coerced}
			}
			return nil
		}
		return []interface{}{value}
	}
}

// passthrough drops empty fields from a payload with no schema to map onto.
func passthrough(obj *orderedMap) map[string]interface{} {
	out := make(map[string]interface{})
	for _, key := range obj.keys {
		value := plainValue(obj.values[key])
		if isEmptyValue(value) {
			continue
		}
		out[key] = value
	}
	return out
}

func isEmptySchema(schema json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(schema))
	return trimmed == "" || trimmed == "null" || trimmed == "{}"
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	case *orderedMap:
		return len(v.keys) == 0
	}
	return false
}

// normalizeKey lowercases a key path and strips every non-alphanumeric
// character.
func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// tokenize splits a key into lowercase tokens on separator characters and
// camelCase boundaries.
func tokenize(key string) map[string]bool {
	tokens := make(map[string]bool)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens[strings.ToLower(current.String())] = true
			current.Reset()
		}
	}
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

// extractFanOut returns the first raw key carrying a nested invocation
// list, with its parsed entries.
func extractFanOut(obj *orderedMap) (string, []*orderedMap) {
	for _, key := range obj.keys {
		if !fanOutKeys[key] {
			continue
		}
		list, ok := obj.values[key].([]interface{})
		if !ok {
			continue
		}
		var invocations []*orderedMap
		for _, item := range list {
			if m, ok := item.(*orderedMap); ok {
				invocations = append(invocations, m)
			}
		}
		if len(invocations) > 0 {
			return key, invocations
		}
	}
	return "", nil
}

func invocationName(inv *orderedMap) string {
	for _, key := range []string{"name", "tool", "tool_name"} {
		if s, ok := inv.values[key].(string); ok {
			return s
		}
	}
	return ""
}

func invocationArgs(inv *orderedMap) *orderedMap {
	for _, key := range []string{"arguments", "args", "parameters"} {
		if m, ok := inv.values[key].(*orderedMap); ok {
			return m
		}
	}
	return &orderedMap{values: map[string]interface{}{}}
}

func marshalResult(result map[string]interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return data, nil
}
