package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/looplj/modelrelay/internal/pkg/xmap"
	"github.com/looplj/modelrelay/llm"
)

// DecodeModelsList converts the aggregator's models listing into canonical
// records. Duplicate ids keep the first occurrence. Context and output limits
// prefer the top_provider block; capability flags come from the
// supported_parameters array when present and default to permissive when the
// listing omits it.
func DecodeModelsList(body []byte) ([]llm.ModelInfo, *llm.ProviderError) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, protocolError("", "openrouter models payload must be a JSON object")
	}

	data, ok := root["data"].([]any)
	if !ok {
		return nil, protocolError("", "openrouter models payload missing data array")
	}

	var discovered []llm.ModelInfo

	seen := make(map[string]bool)

	for index, entry := range data {
		modelObj, ok := entry.(map[string]any)
		if !ok {
			return nil, protocolError("", fmt.Sprintf("openrouter models payload contains non-object entry at index %d", index))
		}

		rawID, ok := modelObj["id"].(string)
		if !ok {
			return nil, protocolError("", fmt.Sprintf("openrouter models payload entry missing id at index %d", index))
		}

		modelID := strings.TrimSpace(rawID)
		if modelID == "" {
			return nil, protocolError("", fmt.Sprintf("openrouter models payload entry has empty id at index %d", index))
		}

		if seen[modelID] {
			continue
		}

		seen[modelID] = true

		topProvider := xmap.GetMap(modelObj, "top_provider")

		contextWindow := xmap.GetInt64Ptr(topProvider, "context_length")
		if contextWindow == nil {
			contextWindow = xmap.GetInt64Ptr(modelObj, "context_length")
		}

		supportsTools, supportsStructured := decodeSupportedParameters(modelObj)

		discovered = append(discovered, llm.ModelInfo{
			Provider:                 llm.ProviderOpenRouter,
			ModelID:                  modelID,
			DisplayName:              xmap.GetStringPtr(modelObj, "name"),
			ContextWindow:            contextWindow,
			MaxOutputTokens:          xmap.GetInt64Ptr(topProvider, "max_completion_tokens"),
			SupportsTools:            supportsTools,
			SupportsStructuredOutput: supportsStructured,
		})
	}

	return discovered, nil
}

func decodeSupportedParameters(modelObj map[string]any) (supportsTools, supportsStructured bool) {
	parameters, ok := modelObj["supported_parameters"].([]any)
	if !ok {
		return true, true
	}

	for _, parameter := range parameters {
		name, ok := parameter.(string)
		if !ok {
			continue
		}

		switch name {
		case "tools":
			supportsTools = true
		case "response_format", "structured_outputs":
			supportsStructured = true
		}
	}

	return supportsTools, supportsStructured
}
