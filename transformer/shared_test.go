package transformer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/modelrelay/llm"
)

func TestIsValidToolName(t *testing.T) {
	assert.True(t, IsValidToolName("lookup"))
	assert.True(t, IsValidToolName("get_weather-v2"))
	assert.True(t, IsValidToolName(strings.Repeat("a", 64)))

	assert.False(t, IsValidToolName(""))
	assert.False(t, IsValidToolName(strings.Repeat("a", 65)))
	assert.False(t, IsValidToolName("bad name"))
	assert.False(t, IsValidToolName("weiß"))
}

func TestJoinTextParts(t *testing.T) {
	joined, err := JoinTextParts([]llm.ContentPart{
		llm.TextPart("first"),
		llm.TextPart("second"),
	}, "system", false)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", joined)

	_, err = JoinTextParts([]llm.ContentPart{
		llm.ThinkingPart("hmm", nil),
	}, "system", false)
	require.EqualError(t, err, "system content must contain only text parts")

	_, err = JoinTextParts(nil, "user", false)
	require.EqualError(t, err, "user content must contain at least one text part")

	joined, err = JoinTextParts(nil, "user", true)
	require.NoError(t, err)
	assert.Empty(t, joined)
}

func TestValidateMetadata(t *testing.T) {
	metadata := map[string]string{}
	for i := 0; i < 17; i++ {
		metadata[strings.Repeat("k", i+1)] = "v"
	}

	require.EqualError(t, ValidateMetadata(metadata, 16, 64, 512), "metadata supports at most 16 entries")

	require.EqualError(
		t,
		ValidateMetadata(map[string]string{strings.Repeat("k", 65): "v"}, 16, 64, 512),
		"metadata key exceeds 64 characters: "+strings.Repeat("k", 65),
	)

	require.EqualError(
		t,
		ValidateMetadata(map[string]string{"trace": strings.Repeat("v", 513)}, 16, 64, 512),
		"metadata value exceeds 512 characters for key: trace",
	)

	require.NoError(t, ValidateMetadata(map[string]string{"trace": "abc"}, 16, 64, 512))
}

func TestValidateSamplingControls(t *testing.T) {
	base := func() *llm.Request {
		return &llm.Request{Model: llm.ModelRef{ModelID: "m"}}
	}

	req := base()
	req.Temperature = lo.ToPtr(2.5)
	require.EqualError(t, ValidateSamplingControls(req, 0.0, 2.0), "temperature must be in [0.0, 2.0], got 2.5")

	req = base()
	req.TopP = lo.ToPtr(1.5)
	require.EqualError(t, ValidateSamplingControls(req, 0.0, 2.0), "top_p must be in [0.0, 1.0], got 1.5")

	req = base()
	req.MaxOutputTokens = lo.ToPtr(int64(0))
	require.EqualError(t, ValidateSamplingControls(req, 0.0, 2.0), "max_output_tokens must be at least 1")

	req = base()
	req.Temperature = lo.ToPtr(1.0)
	req.TopP = lo.ToPtr(0.9)
	req.MaxOutputTokens = lo.ToPtr(int64(256))
	require.NoError(t, ValidateSamplingControls(req, 0.0, 2.0))
}

func TestDecodeStructuredOutput(t *testing.T) {
	schemaFormat := llm.JSONSchemaFormat("result", json.RawMessage(`{"type":"object"}`))

	t.Run("text format decodes nothing", func(t *testing.T) {
		value, warning := DecodeStructuredOutput(llm.ResponseFormat{}, []string{`{"a":1}`}, "m")
		assert.Nil(t, value)
		assert.Nil(t, warning)
	})

	t.Run("canonicalizes parsed JSON", func(t *testing.T) {
		value, warning := DecodeStructuredOutput(schemaFormat, []string{`{"b": 2, "a": 1}`}, "m")
		require.Nil(t, warning)
		assert.Equal(t, `{"a":1,"b":2}`, string(value))
	})

	t.Run("joins blocks before parsing", func(t *testing.T) {
		value, warning := DecodeStructuredOutput(schemaFormat, []string{`{"a":`, `1}`}, "m")
		require.Nil(t, warning)
		assert.Equal(t, `{"a":1}`, string(value))
	})

	t.Run("parse failure warns", func(t *testing.T) {
		value, warning := DecodeStructuredOutput(schemaFormat, []string{"not json ]["}, "gpt-5-mini")
		assert.Nil(t, value)
		require.NotNil(t, warning)
		assert.Equal(t, WarnStructuredOutputParseFailed, warning.Code)
		assert.Contains(t, warning.Message, "for model gpt-5-mini")
	})

	t.Run("json_object requires an object", func(t *testing.T) {
		format := llm.ResponseFormat{Type: llm.ResponseFormatJSONObject}

		value, warning := DecodeStructuredOutput(format, []string{`[1, 2]`}, "m")
		assert.Nil(t, value)
		require.NotNil(t, warning)
		assert.Equal(t, "structured output was valid JSON but not an object", warning.Message)
	})

	t.Run("empty text decodes nothing", func(t *testing.T) {
		value, warning := DecodeStructuredOutput(schemaFormat, nil, "m")
		assert.Nil(t, value)
		assert.Nil(t, warning)
	})
}
