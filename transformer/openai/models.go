package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/looplj/modelrelay/internal/pkg/xmap"
	"github.com/looplj/modelrelay/llm"
)

// DecodeModelsList converts a models listing payload into canonical records.
// Duplicate ids keep the first occurrence. The listing carries no capability
// detail, so every entry inherits the adapter capabilities.
func DecodeModelsList(body []byte, capabilities llm.Capabilities) ([]llm.ModelInfo, *llm.ProviderError) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, protocolError("", "openai models payload must be a JSON object")
	}

	data, ok := root["data"].([]any)
	if !ok {
		return nil, protocolError("", "openai models payload missing data array")
	}

	var discovered []llm.ModelInfo

	seen := make(map[string]bool)

	for index, entry := range data {
		modelObj, ok := entry.(map[string]any)
		if !ok {
			return nil, protocolError("", fmt.Sprintf("openai models payload contains non-object entry at index %d", index))
		}

		rawID, ok := modelObj["id"].(string)
		if !ok {
			return nil, protocolError("", fmt.Sprintf("openai models payload entry missing id at index %d", index))
		}

		modelID := strings.TrimSpace(rawID)
		if modelID == "" {
			return nil, protocolError("", fmt.Sprintf("openai models payload entry has empty id at index %d", index))
		}

		if seen[modelID] {
			continue
		}

		seen[modelID] = true

		discovered = append(discovered, llm.ModelInfo{
			Provider:                 llm.ProviderOpenAI,
			ModelID:                  modelID,
			DisplayName:              xmap.GetStringPtr(modelObj, "display_name"),
			SupportsTools:            capabilities.SupportsTools,
			SupportsStructuredOutput: capabilities.SupportsStructuredOutput,
		})
	}

	return discovered, nil
}
