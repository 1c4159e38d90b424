// Package xmap holds typed accessors for loosely-typed JSON objects
// (map[string]any), as produced by decoding provider payloads whose shapes
// are not fully known up front.
package xmap

import (
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// GetString returns the string at key, or "" when absent or not a string.
func GetString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}

	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

// GetStringPtr returns the string at key as a pointer, or nil when absent.
func GetStringPtr(m map[string]any, key string) *string {
	if m == nil {
		return nil
	}

	if v, ok := m[key].(string); ok {
		return lo.ToPtr(v)
	}

	return nil
}

// GetInt64Ptr coerces the numeric value at key into *int64. JSON numbers
// decode as float64, so the coercion goes through cast. Negative and
// non-numeric values yield nil.
func GetInt64Ptr(m map[string]any, key string) *int64 {
	if m == nil {
		return nil
	}

	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}

	n, err := cast.ToInt64E(v)
	if err != nil || n < 0 {
		return nil
	}

	return lo.ToPtr(n)
}

// GetMap returns the object at key, or nil when absent or not an object.
func GetMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}

	if v, ok := m[key].(map[string]any); ok {
		return v
	}

	return nil
}

// GetSlice returns the array at key, or nil when absent or not an array.
func GetSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}

	if v, ok := m[key].([]any); ok {
		return v
	}

	return nil
}
