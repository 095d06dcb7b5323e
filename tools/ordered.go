package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedMap is a JSON object that remembers its key declaration order.
// Plain map decoding loses it, and reconciliation needs document order
// for deterministic first-encounter matching.
type orderedMap struct {
	keys   []string
	values map[string]interface{}
}

// decodeOrderedObject decodes a JSON document as an order-preserving
// object. Empty input decodes as an empty object.
func decodeOrderedObject(raw json.RawMessage) (*orderedMap, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &orderedMap{values: map[string]interface{}{}}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	value, err := decodeOrderedValue(dec)
	if err != nil {
		return nil, err
	}
	obj, ok := value.(*orderedMap)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", value)
	}
	return obj, nil
}

func decodeOrderedValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := &orderedMap{values: map[string]interface{}{}}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key := keyTok.(string)
			value, err := decodeOrderedValue(dec)
			if err != nil {
				return nil, err
			}
			if _, exists := obj.values[key]; !exists {
				obj.keys = append(obj.keys, key)
			}
			obj.values[key] = value
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		var list []interface{}
		for dec.More() {
			value, err := decodeOrderedValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// plainValue converts ordered structures back to plain Go values for
// marshaling.
func plainValue(value interface{}) interface{} {
	switch v := value.(type) {
	case *orderedMap:
		out := make(map[string]interface{}, len(v.keys))
		for _, key := range v.keys {
			out[key] = plainValue(v.values[key])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}
