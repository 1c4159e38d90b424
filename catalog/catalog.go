// Package catalog merges, routes against, and exports model catalogs.
package catalog

import (
	"encoding/json"
	"sort"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/looplj/modelrelay/llm"
)

type modelKey struct {
	provider llm.ProviderID
	modelID  string
}

// Merge combines a static catalog with remotely discovered models. Static
// entries win on (provider, model_id) identity, but optional metadata missing
// from the static entry is back-filled from the remote one. Duplicates within
// either input keep the first occurrence. The result is sorted by provider
// order, then model id.
func Merge(static, remote llm.Catalog) llm.Catalog {
	var merged []llm.ModelInfo

	index := make(map[modelKey]int)

	for _, model := range static.Models {
		key := modelKey{provider: model.Provider, modelID: model.ModelID}
		if _, exists := index[key]; exists {
			continue
		}

		index[key] = len(merged)
		merged = append(merged, model)
	}

	seenRemote := make(map[modelKey]bool)

	for _, model := range remote.Models {
		key := modelKey{provider: model.Provider, modelID: model.ModelID}
		if seenRemote[key] {
			continue
		}

		seenRemote[key] = true

		if at, exists := index[key]; exists {
			fillMissingMetadata(&merged[at], model)

			continue
		}

		index[key] = len(merged)
		merged = append(merged, model)
	}

	SortModels(merged)

	return llm.Catalog{Models: merged}
}

func fillMissingMetadata(target *llm.ModelInfo, source llm.ModelInfo) {
	if target.DisplayName == nil {
		target.DisplayName = source.DisplayName
	}

	if target.ContextWindow == nil {
		target.ContextWindow = source.ContextWindow
	}

	if target.MaxOutputTokens == nil {
		target.MaxOutputTokens = source.MaxOutputTokens
	}
}

// SortModels orders models by provider order, then model id ascending.
func SortModels(models []llm.ModelInfo) {
	sort.SliceStable(models, func(i, j int) bool {
		left, right := models[i], models[j]
		if left.Provider.Order() != right.Provider.Order() {
			return left.Provider.Order() < right.Provider.Order()
		}

		return left.ModelID < right.ModelID
	})
}

// ResolveModelProvider routes a model id onto the single provider that lists
// it. A hint that appears among the candidates wins; a hint that contradicts
// the sole candidate is a mismatch. Multiple candidates are ambiguous either
// way.
func ResolveModelProvider(catalog llm.Catalog, modelID string, hint *llm.ProviderID) (llm.ProviderID, *llm.RoutingError) {
	candidates := providersForModel(catalog, modelID)
	if len(candidates) == 0 {
		return "", llm.NewModelNotFoundError(modelID)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Order() < candidates[j].Order()
	})

	if hint != nil {
		if lo.Contains(candidates, *hint) {
			return *hint, nil
		}

		if len(candidates) == 1 {
			return "", llm.NewProviderHintMismatchError(modelID, *hint, candidates[0])
		}

		return "", llm.NewAmbiguousModelRouteError(modelID, candidates)
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}

	return "", llm.NewAmbiguousModelRouteError(modelID, candidates)
}

func providersForModel(catalog llm.Catalog, modelID string) []llm.ProviderID {
	var providers []llm.ProviderID

	for _, model := range catalog.Models {
		if model.ModelID != modelID {
			continue
		}

		if !lo.Contains(providers, model.Provider) {
			providers = append(providers, model.Provider)
		}
	}

	return providers
}

// ExportJSON renders a catalog as indented JSON with models sorted by
// provider order, then model id. Two catalogs with the same entries export
// byte-identically regardless of input ordering.
func ExportJSON(catalog llm.Catalog) (string, *llm.RuntimeError) {
	normalized := append([]llm.ModelInfo(nil), catalog.Models...)
	SortModels(normalized)

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return "", &llm.RuntimeError{Kind: llm.RuntimeErrSerialization, Message: err.Error()}
	}

	shaped, err := sjson.SetRawBytes([]byte(`{}`), "models", encoded)
	if err != nil {
		return "", &llm.RuntimeError{Kind: llm.RuntimeErrSerialization, Message: err.Error()}
	}

	return gjson.GetBytes(shaped, "@pretty").String(), nil
}

// Builtin is the static catalog compiled into the library: one routable
// model per first-party provider.
func Builtin() llm.Catalog {
	return llm.Catalog{
		Models: []llm.ModelInfo{
			{
				Provider:                 llm.ProviderOpenAI,
				ModelID:                  "gpt-5-mini",
				DisplayName:              lo.ToPtr("GPT-5 Mini"),
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
			{
				Provider:                 llm.ProviderAnthropic,
				ModelID:                  "claude-sonnet-4-5-20250929",
				DisplayName:              lo.ToPtr("Claude Sonnet 4.5"),
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
			{
				Provider:                 llm.ProviderOpenRouter,
				ModelID:                  "openrouter/auto",
				DisplayName:              lo.ToPtr("OpenRouter Auto"),
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
		},
	}
}
