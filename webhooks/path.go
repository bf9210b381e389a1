package webhooks

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ResolvePath walks a dotted path through nested maps and arrays. Numeric
// segments index arrays. A missing segment, an out of range index or a
// scalar in the middle of the path reports false.
func ResolvePath(data any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	current := data
	for _, segment := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(typed) {
				return nil, false
			}
			current = typed[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// normalizeData converts arbitrary event data to the generic JSON shape
// (maps, slices, json.Number, string, bool, nil) so paths resolve the same
// way for structs and maps. Numbers keep their literal text and marshal back
// unchanged.
func normalizeData(data any) (any, error) {
	switch data.(type) {
	case nil:
		return nil, nil
	case string, bool, json.Number:
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// lookupString returns the first path that resolves to a non-empty scalar.
func lookupString(data any, paths ...string) (string, bool) {
	for _, path := range paths {
		value, ok := ResolvePath(data, path)
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			if strings.TrimSpace(typed) != "" {
				return strings.TrimSpace(typed), true
			}
		case json.Number:
			return typed.String(), true
		case float64:
			return strconv.FormatFloat(typed, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(typed), true
		}
	}
	return "", false
}
