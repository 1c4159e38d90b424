package transformer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/looplj/modelrelay/internal/pkg/xjson"
	"github.com/looplj/modelrelay/llm"
)

// WarnStructuredOutputParseFailed is emitted when a non-text response format
// was requested but the output text did not parse as JSON.
const WarnStructuredOutputParseFailed = "structured_output_parse_failed"

// IsValidToolName reports whether name matches ^[A-Za-z0-9_-]{1,64}$.
func IsValidToolName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}

	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '_' || ch == '-':
		default:
			return false
		}
	}

	return true
}

// JoinTextParts concatenates text parts with newlines. Non-text parts are an
// error; an empty result is an error unless allowEmpty is set. The context
// string names the position for error messages ("system", "tool_result", ...).
func JoinTextParts(parts []llm.ContentPart, context string, allowEmpty bool) (string, error) {
	var texts []string

	for _, part := range parts {
		if part.Type != llm.ContentTypeText {
			return "", fmt.Errorf("%s content must contain only text parts", context)
		}

		texts = append(texts, part.Text)
	}

	if !allowEmpty && len(texts) == 0 {
		return "", fmt.Errorf("%s content must contain at least one text part", context)
	}

	joined := ""
	for i, text := range texts {
		if i > 0 {
			joined += "\n"
		}

		joined += text
	}

	return joined, nil
}

// ValidateMetadata enforces the OpenAI-style metadata limits shared by the
// chat-completions family: at most maxEntries pairs, keys up to maxKeyLen and
// values up to maxValueLen characters.
func ValidateMetadata(metadata map[string]string, maxEntries, maxKeyLen, maxValueLen int) error {
	if len(metadata) > maxEntries {
		return fmt.Errorf("metadata supports at most %d entries", maxEntries)
	}

	for key, value := range metadata {
		if len([]rune(key)) > maxKeyLen {
			return fmt.Errorf("metadata key exceeds %d characters: %s", maxKeyLen, key)
		}

		if len([]rune(value)) > maxValueLen {
			return fmt.Errorf("metadata value exceeds %d characters for key: %s", maxValueLen, key)
		}
	}

	return nil
}

// ValidateSamplingControls bounds temperature and top_p and rejects a zero
// max_output_tokens. Temperature ranges differ per provider.
func ValidateSamplingControls(req *llm.Request, tempMin, tempMax float64) error {
	if req.Temperature != nil {
		if *req.Temperature < tempMin || *req.Temperature > tempMax {
			return fmt.Errorf(
				"temperature must be in [%.1f, %.1f], got %v", tempMin, tempMax, *req.Temperature,
			)
		}
	}

	if req.TopP != nil {
		if *req.TopP < 0 || *req.TopP > 1 {
			return fmt.Errorf("top_p must be in [0.0, 1.0], got %v", *req.TopP)
		}
	}

	if req.MaxOutputTokens != nil && *req.MaxOutputTokens < 1 {
		return fmt.Errorf("max_output_tokens must be at least 1")
	}

	return nil
}

// CanonicalJSONString renders a JSON value with object keys sorted so tool
// arguments serialize deterministically across providers.
func CanonicalJSONString(value json.RawMessage) string {
	return xjson.CanonicalString(value)
}

// DecodeStructuredOutput parses the joined text blocks as JSON when a
// non-text response format was requested. A parse failure yields a warning
// instead of an error; json_object additionally requires the parsed value to
// be an object.
func DecodeStructuredOutput(format llm.ResponseFormat, textBlocks []string, model string) (json.RawMessage, *llm.Warning) {
	if format.IsText() {
		return nil, nil
	}

	joined := ""
	for i, block := range textBlocks {
		if i > 0 {
			joined += "\n"
		}

		joined += block
	}

	if strings.TrimSpace(joined) == "" {
		return nil, nil
	}

	var value json.RawMessage
	if err := json.Unmarshal([]byte(joined), &value); err != nil {
		return nil, &llm.Warning{
			Code:    WarnStructuredOutputParseFailed,
			Message: fmt.Sprintf("failed to parse structured output JSON%s: %v", formatModelContext(model), err),
		}
	}

	if format.NormalizedType() == llm.ResponseFormatJSONObject && !xjson.IsObject(value) {
		return nil, &llm.Warning{
			Code:    WarnStructuredOutputParseFailed,
			Message: "structured output was valid JSON but not an object",
		}
	}

	return xjson.Canonicalize(value), nil
}

func formatModelContext(model string) string {
	if model == "" {
		return ""
	}

	return fmt.Sprintf(" for model %s", model)
}
