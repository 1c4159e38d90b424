package xjson

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// Repair tries to recover a JSON value from a provider-emitted string.
// Strategy:
// 1) If already valid JSON, return it as-is.
// 2) Try jsonrepair; if the repaired text is valid JSON, return it.
// 3) Report failure so the caller can fall back to the raw string.
func Repair(s string) (json.RawMessage, bool) {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), true
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err == nil && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired), true
	}

	return nil, false
}

// SafeJSONRawMessage converts a string into a valid JSON RawMessage, falling
// back to an empty object when repair fails.
func SafeJSONRawMessage(s string) json.RawMessage {
	if len(s) == 0 {
		return json.RawMessage("{}")
	}

	if repaired, ok := Repair(s); ok {
		return repaired
	}

	return json.RawMessage("{}")
}
