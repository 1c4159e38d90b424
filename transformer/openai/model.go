package openai

import (
	"encoding/json"
)

// Request is the OpenAI Responses API request body.
type Request struct {
	Model           string            `json:"model"`
	Store           bool              `json:"store"`
	Input           []InputItem       `json:"input"`
	Text            TextOptions       `json:"text"`
	Tools           []Tool            `json:"tools,omitempty"`
	ToolChoice      json.RawMessage   `json:"tool_choice"`
	Temperature     *float64          `json:"temperature,omitempty"`
	TopP            *float64          `json:"top_p,omitempty"`
	MaxOutputTokens *int64            `json:"max_output_tokens,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// InputItem is one entry of the Responses input array: a message, a prior
// function_call, or a function_call_output.
type InputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []MessagePart `json:"content,omitempty"`

	// function_call / function_call_output fields.
	CallID    string  `json:"call_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Arguments string  `json:"arguments,omitempty"`
	Output    *string `json:"output,omitempty"`
}

// MessagePart is an input_text or output_text block inside a message item.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextOptions selects the response format on the Responses API.
type TextOptions struct {
	Format TextFormat `json:"format"`
}

type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict *bool           `json:"strict,omitempty"`
}

// Tool is a function tool declaration. Strict is disabled when the parameter
// schema is not strict-compatible.
type Tool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	Strict      bool            `json:"strict"`
}

// ErrorEnvelope is the parsed OpenAI error payload.
type ErrorEnvelope struct {
	Message string
	Code    string
	Type    string
	Param   string
}
