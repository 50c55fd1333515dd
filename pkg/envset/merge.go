package envset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned when an update is not a flat string map.
var ErrInvalidPayload = errors.New("envset: invalid payload")

// Merge returns existing overlaid with update. Keys of existing that
// update does not mention are kept unchanged. Neither input is modified.
func Merge(existing, update Set) Set {
	out := make(Set, len(existing)+len(update))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

// ValidKey reports whether key is usable as a variable name in a dotenv
// file: a letter or underscore followed by letters, digits or underscores.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// DecodeUpdate parses a JSON object of string values into a Set.
// Nested objects, arrays, numbers, booleans, null and keys that are not
// valid variable names are rejected with ErrInvalidPayload.
func DecodeUpdate(raw []byte) (Set, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	out := make(Set, len(fields))
	for key, value := range fields {
		if !ValidKey(key) {
			return nil, fmt.Errorf("%w: invalid variable name %q", ErrInvalidPayload, key)
		}
		v := bytes.TrimSpace(value)
		if len(v) == 0 || v[0] != '"' {
			return nil, fmt.Errorf("%w: value of %s must be a string", ErrInvalidPayload, key)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("%w: value of %s: %v", ErrInvalidPayload, key, err)
		}
		out[key] = s
	}
	return out, nil
}
