package openrouter

import (
	"encoding/json"
)

// Request is the OpenRouter chat-completions request body. Model and Models
// are mutually exclusive: fallback routing replaces the single model with a
// models array led by the primary id.
type Request struct {
	Model               string            `json:"model,omitempty"`
	Models              []string          `json:"models,omitempty"`
	Messages            []WireMessage     `json:"messages"`
	Stream              bool              `json:"stream"`
	Tools               []Tool            `json:"tools,omitempty"`
	ToolChoice          json.RawMessage   `json:"tool_choice,omitempty"`
	ResponseFormat      *ResponseFormat   `json:"response_format,omitempty"`
	Temperature         *float64          `json:"temperature,omitempty"`
	TopP                *float64          `json:"top_p,omitempty"`
	FrequencyPenalty    *float64          `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64          `json:"presence_penalty,omitempty"`
	LogitBias           json.RawMessage   `json:"logit_bias,omitempty"`
	Logprobs            *bool             `json:"logprobs,omitempty"`
	TopLogprobs         *int              `json:"top_logprobs,omitempty"`
	Reasoning           json.RawMessage   `json:"reasoning,omitempty"`
	MaxCompletionTokens *int64            `json:"max_completion_tokens,omitempty"`
	MaxTokens           *int64            `json:"max_tokens,omitempty"`
	Seed                *int64            `json:"seed,omitempty"`
	Stop                []string          `json:"stop,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	ParallelToolCalls   *bool             `json:"parallel_tool_calls,omitempty"`
	Provider            json.RawMessage   `json:"provider,omitempty"`
	User                string            `json:"user,omitempty"`
	SessionID           string            `json:"session_id,omitempty"`
	Trace               json.RawMessage   `json:"trace,omitempty"`
	Route               string            `json:"route,omitempty"`
	Modalities          []string          `json:"modalities,omitempty"`
	Plugins             []json.RawMessage `json:"plugins,omitempty"`
}

// WireMessage is one chat-completions turn. Content is a pointer so an
// assistant turn carrying only tool calls serializes an explicit null.
type WireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []WireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type WireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function WireFunctionCall `json:"function"`
}

type WireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool wraps a function declaration in the chat-completions envelope.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ResponseFormat requests free-form or schema-constrained JSON output.
type ResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

type JSONSchemaFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

// ErrorEnvelope is the parsed OpenRouter error payload.
type ErrorEnvelope struct {
	Code    *int
	Message string
}
