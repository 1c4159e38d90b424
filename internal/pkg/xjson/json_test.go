package xjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(json.RawMessage("")))
	assert.True(t, IsNull(json.RawMessage("null")))

	assert.False(t, IsNull(json.RawMessage("{}")))
	assert.False(t, IsNull(json.RawMessage(`"null"`)))
}

func TestIsObjectAndIsArray(t *testing.T) {
	assert.True(t, IsObject(json.RawMessage(`{"a": 1}`)))
	assert.True(t, IsObject(json.RawMessage("  {}  ")))
	assert.False(t, IsObject(json.RawMessage(`[1]`)))
	assert.False(t, IsObject(json.RawMessage(`{"a":`)))

	assert.True(t, IsArray(json.RawMessage(`[1, 2]`)))
	assert.False(t, IsArray(json.RawMessage(`{}`)))
	assert.False(t, IsArray(json.RawMessage(`[1,`)))
}

func TestCanonicalize(t *testing.T) {
	canonical := Canonicalize(json.RawMessage(`{"b": {"d": 4, "c": 3}, "a": [2, 1]}`))
	assert.Equal(t, `{"a":[2,1],"b":{"c":3,"d":4}}`, string(canonical))

	// Invalid input passes through unchanged.
	broken := json.RawMessage(`{"a":`)
	assert.Equal(t, broken, Canonicalize(broken))

	assert.Equal(t, `"text"`, CanonicalString(json.RawMessage(`"text"`)))
}

func TestRepair(t *testing.T) {
	valid, ok := Repair(`{"a": 1}`)
	require.True(t, ok)
	assert.Equal(t, `{"a": 1}`, string(valid))

	repaired, ok := Repair(`{"q": "weather",`)
	require.True(t, ok)
	assert.True(t, json.Valid(repaired))
	assert.True(t, IsObject(repaired))

	_, ok = Repair("")
	assert.False(t, ok)
}

func TestSafeJSONRawMessage(t *testing.T) {
	assert.Equal(t, json.RawMessage("{}"), SafeJSONRawMessage(""))
	assert.Equal(t, json.RawMessage(`{"a": 1}`), SafeJSONRawMessage(`{"a": 1}`))
}
