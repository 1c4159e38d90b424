package llm

import (
	"encoding/json"
)

// ModelRef names the target model, optionally pinned to a provider.
type ModelRef struct {
	ProviderHint *ProviderID `json:"provider_hint,omitempty"`
	ModelID      string      `json:"model_id"`
}

// Request is the provider-neutral chat request. Translators turn it into a
// concrete provider wire request without leaking provider types upward.
type Request struct {
	Model           ModelRef          `json:"model"`
	Messages        []Message         `json:"messages"`
	Tools           []ToolDefinition  `json:"tools,omitempty"`
	ToolChoice      ToolChoice        `json:"tool_choice,omitempty"`
	ResponseFormat  ResponseFormat    `json:"response_format,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	TopP            *float64          `json:"top_p,omitempty"`
	MaxOutputTokens *int64            `json:"max_output_tokens,omitempty"`
	Stop            []string          `json:"stop,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one turn of conversation history.
type Message struct {
	Role    MessageRole   `json:"role"`
	Content []ContentPart `json:"content"`
}

// ToolDefinition advertises a callable tool to the model. ParametersSchema is
// a JSON Schema object; translators validate it per provider rules.
type ToolDefinition struct {
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	ParametersSchema json.RawMessage `json:"parameters_schema"`
}

type ToolChoiceMode string

const (
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

// ToolChoice selects how the model may use tools. The zero value means auto.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode,omitempty"`
	// Name is set only for specific.
	Name string `json:"name,omitempty"`
}

// NormalizedMode maps the zero value to auto.
func (tc ToolChoice) NormalizedMode() ToolChoiceMode {
	if tc.Mode == "" {
		return ToolChoiceAuto
	}

	return tc.Mode
}

func SpecificTool(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceSpecific, Name: name}
}

type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONObject ResponseFormatType = "json_object"
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

// ResponseFormat requests plain text, free-form JSON, or schema-constrained
// JSON output. The zero value means text.
type ResponseFormat struct {
	Type ResponseFormatType `json:"type,omitempty"`
	// Name and Schema are set only for json_schema.
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// NormalizedType maps the zero value to text.
func (rf ResponseFormat) NormalizedType() ResponseFormatType {
	if rf.Type == "" {
		return ResponseFormatText
	}

	return rf.Type
}

func (rf ResponseFormat) IsText() bool {
	return rf.NormalizedType() == ResponseFormatText
}

func JSONSchemaFormat(name string, schema json.RawMessage) ResponseFormat {
	return ResponseFormat{Type: ResponseFormatJSONSchema, Name: name, Schema: schema}
}
