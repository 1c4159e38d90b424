// Package handoff rewrites conversation history when it moves to a different
// provider mid-session.
package handoff

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/looplj/modelrelay/llm"
)

// Normalize prepares messages produced under one provider for replay against
// target. Assistant thinking content survives only within the same API
// family; across families it is rewritten as a text block wrapped in
// <thinking> tags so no provider-native reasoning payload crosses the
// boundary. Everything else passes through unchanged. Normalizing twice with
// the same target is a no-op.
func Normalize(messages []llm.Message, target llm.ProviderID) []llm.Message {
	return lo.Map(messages, func(message llm.Message, _ int) llm.Message {
		if message.Role != llm.RoleAssistant {
			return message
		}

		return llm.Message{
			Role:    message.Role,
			Content: normalizeAssistantContent(message.Content, target),
		}
	})
}

func normalizeAssistantContent(parts []llm.ContentPart, target llm.ProviderID) []llm.ContentPart {
	return lo.Map(parts, func(part llm.ContentPart, _ int) llm.ContentPart {
		if part.Type != llm.ContentTypeThinking || part.Thinking == nil {
			return part
		}

		if part.Thinking.Provider != nil && sameAPIFamily(*part.Thinking.Provider, target) {
			return part
		}

		return llm.TextPart(fmt.Sprintf("<thinking>%s</thinking>", part.Thinking.Text))
	})
}

type apiFamily int

const (
	familyOpenAICompatible apiFamily = iota
	familyAnthropic
	familyOther
)

func sameAPIFamily(source, target llm.ProviderID) bool {
	return providerFamily(source) == providerFamily(target)
}

// providerFamily groups providers that share a wire-compatible reasoning
// representation. OpenRouter fronts OpenAI-compatible chat completions, so
// the two count as one family.
func providerFamily(provider llm.ProviderID) apiFamily {
	switch provider {
	case llm.ProviderOpenAI, llm.ProviderOpenRouter:
		return familyOpenAICompatible
	case llm.ProviderAnthropic:
		return familyAnthropic
	default:
		return familyOther
	}
}
