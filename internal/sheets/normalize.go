package sheets

import (
	"fmt"
	"sort"
)

// KeyValue is one entry of the key-value sheet
type KeyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Records extracts the array of records from a data store body.
// The body may be the array itself or an object wrapping it in "data".
// ok is false when the body has neither shape.
func Records(body any) (records []any, ok bool) {
	switch v := body.(type) {
	case []any:
		return v, true
	case map[string]any:
		if data, isArray := v["data"].([]any); isArray {
			return data, true
		}
	}
	return nil, false
}

// KeyValues normalizes a key-value listing to a slice of entries.
//
// Accepted shapes:
//   - [{"key": "k1", "value": v1}, ...] or rows of the form ["k1", v1]
//   - {"data": [...]} wrapping either of the above
//   - {"k1": v1, "k2": v2} (entries come back sorted by key)
//
// An object carrying an "error" member is an upstream failure, not a map.
func KeyValues(body any) ([]KeyValue, bool) {
	if records, ok := Records(body); ok {
		out := make([]KeyValue, 0, len(records))
		for _, rec := range records {
			kv, ok := keyValueFromRecord(rec)
			if !ok {
				return nil, false
			}
			out = append(out, kv)
		}
		return out, true
	}

	m, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, failed := m["error"]; failed {
		return nil, false
	}
	if data, wrapped := m["data"].(map[string]any); wrapped {
		m = data
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyValue{Key: k, Value: m[k]})
	}
	return out, true
}

func keyValueFromRecord(rec any) (KeyValue, bool) {
	switch v := rec.(type) {
	case map[string]any:
		key, ok := v["key"]
		if !ok || key == nil {
			return KeyValue{}, false
		}
		return KeyValue{Key: stringify(key), Value: v["value"]}, true
	case []any:
		if len(v) < 2 || v[0] == nil {
			return KeyValue{}, false
		}
		return KeyValue{Key: stringify(v[0]), Value: v[1]}, true
	}
	return KeyValue{}, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}
