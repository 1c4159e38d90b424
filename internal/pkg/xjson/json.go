package xjson

import (
	"bytes"
	"encoding/json"
)

var NullJSON = json.RawMessage("null")

func MustMarshalString(v any) string {
	return string(MustMarshal(v))
}

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return b
}

func MustTo[T any](v []byte) T {
	t, err := To[T](v)
	if err != nil {
		panic(err)
	}

	return t
}

func To[T any](v []byte) (T, error) {
	var t T

	err := json.Unmarshal(v, &t)
	if err != nil {
		return t, err
	}

	return t, nil
}

func IsNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(v, NullJSON)
}

func IsObject(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)

	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

func IsArray(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)

	return len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed)
}

// Canonicalize re-encodes a JSON value with object keys sorted recursively.
// encoding/json sorts map keys on output, so one decode/encode round trip is
// enough. Invalid input is returned unchanged.
func Canonicalize(v json.RawMessage) json.RawMessage {
	var decoded any
	if err := json.Unmarshal(v, &decoded); err != nil {
		return v
	}

	return MustMarshal(decoded)
}

// CanonicalString renders a JSON value with sorted object keys.
func CanonicalString(v json.RawMessage) string {
	return string(Canonicalize(v))
}
