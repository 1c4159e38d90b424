package handoff

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/modelrelay/llm"
)

func TestNormalize_CrossFamilyThinkingBecomesText(t *testing.T) {
	anthropicID := llm.ProviderAnthropic

	messages := []llm.Message{
		{
			Role: llm.RoleAssistant,
			Content: []llm.ContentPart{
				llm.ThinkingPart("x", &anthropicID),
				llm.TextPart("y"),
			},
		},
	}

	once := Normalize(messages, llm.ProviderOpenAI)
	require.Len(t, once, 1)
	require.Len(t, once[0].Content, 2)

	assert.Equal(t, llm.TextPart("<thinking>x</thinking>"), once[0].Content[0])
	assert.Equal(t, llm.TextPart("y"), once[0].Content[1])

	twice := Normalize(once, llm.ProviderOpenAI)
	assert.Equal(t, once, twice)
}

func TestNormalize_SameFamilyKeepsThinking(t *testing.T) {
	openaiID := llm.ProviderOpenAI

	messages := []llm.Message{
		{
			Role:    llm.RoleAssistant,
			Content: []llm.ContentPart{llm.ThinkingPart("plan", &openaiID)},
		},
	}

	// OpenAI and OpenRouter share an API family.
	normalized := Normalize(messages, llm.ProviderOpenRouter)
	require.Len(t, normalized, 1)
	assert.Equal(t, llm.ContentTypeThinking, normalized[0].Content[0].Type)

	normalized = Normalize(messages, llm.ProviderAnthropic)
	assert.Equal(t, llm.ContentTypeText, normalized[0].Content[0].Type)
}

func TestNormalize_UnattributedThinkingBecomesText(t *testing.T) {
	messages := []llm.Message{
		{
			Role:    llm.RoleAssistant,
			Content: []llm.ContentPart{llm.ThinkingPart("hmm", nil)},
		},
	}

	normalized := Normalize(messages, llm.ProviderOpenAI)
	assert.Equal(t, llm.TextPart("<thinking>hmm</thinking>"), normalized[0].Content[0])
}

func TestNormalize_NonAssistantAndToolPartsPassThrough(t *testing.T) {
	anthropicID := llm.ProviderAnthropic

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: []llm.ContentPart{llm.TextPart("be terse")}},
		{Role: llm.RoleUser, Content: []llm.ContentPart{llm.TextPart("hi")}},
		{
			Role: llm.RoleAssistant,
			Content: []llm.ContentPart{
				llm.ToolCallPart(llm.ToolCall{ID: "c1", Name: "lookup", ArgumentsJSON: []byte(`{}`)}),
				llm.ThinkingPart("x", &anthropicID),
			},
		},
		{
			Role: llm.RoleTool,
			Content: []llm.ContentPart{
				llm.ToolResultPart(llm.ToolResult{ToolCallID: "c1", Content: llm.ToolResultContentText("ok")}),
			},
		},
	}

	normalized := Normalize(messages, llm.ProviderOpenAI)

	assert.Equal(t, messages[0], normalized[0])
	assert.Equal(t, messages[1], normalized[1])
	assert.Equal(t, messages[3], normalized[3])
	assert.Equal(t, llm.ContentTypeToolCall, normalized[2].Content[0].Type)
	assert.Equal(t, llm.ContentTypeText, normalized[2].Content[1].Type)
}

func TestNormalize_Properties(t *testing.T) {
	genProvider := gen.OneConstOf(
		llm.ProviderOpenAI,
		llm.ProviderAnthropic,
		llm.ProviderOpenRouter,
		llm.ProviderCustom,
	)

	genPart := gen.OneGenOf(
		gen.AlphaString().Map(func(text string) llm.ContentPart {
			return llm.TextPart(text)
		}),
		gopter.CombineGens(gen.AlphaString(), gen.PtrOf(genProvider)).Map(func(values []interface{}) llm.ContentPart {
			provider, _ := values[1].(*llm.ProviderID)
			return llm.ThinkingPart(values[0].(string), provider)
		}),
	)

	genMessage := gopter.CombineGens(
		gen.OneConstOf(llm.RoleSystem, llm.RoleUser, llm.RoleAssistant),
		gen.SliceOf(genPart),
	).Map(func(values []interface{}) llm.Message {
		return llm.Message{
			Role:    values[0].(llm.MessageRole),
			Content: values[1].([]llm.ContentPart),
		}
	})

	properties := gopter.NewProperties(nil)

	properties.Property("idempotent per target", prop.ForAll(
		func(messages []llm.Message, target llm.ProviderID) bool {
			once := Normalize(messages, target)
			twice := Normalize(once, target)

			return reflect.DeepEqual(once, twice)
		},
		gen.SliceOf(genMessage),
		genProvider,
	))

	properties.Property("never emits thinking for a foreign family", prop.ForAll(
		func(messages []llm.Message, target llm.ProviderID) bool {
			for _, message := range Normalize(messages, target) {
				if message.Role != llm.RoleAssistant {
					continue
				}

				for _, part := range message.Content {
					if part.Type != llm.ContentTypeThinking {
						continue
					}

					if part.Thinking.Provider == nil || !sameAPIFamily(*part.Thinking.Provider, target) {
						return false
					}
				}
			}

			return true
		},
		gen.SliceOf(genMessage),
		genProvider,
	))

	properties.TestingRun(t)
}
