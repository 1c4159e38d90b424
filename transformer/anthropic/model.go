package anthropic

import (
	"encoding/json"
)

// Request is the Anthropic Messages API request body.
type Request struct {
	Model         string        `json:"model"`
	MaxTokens     int64         `json:"max_tokens"`
	Messages      []WireMessage `json:"messages"`
	System        []Block       `json:"system,omitempty"`
	Tools         []Tool        `json:"tools,omitempty"`
	ToolChoice    *ToolChoice   `json:"tool_choice"`
	OutputConfig  *OutputConfig `json:"output_config,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	Metadata      *Metadata     `json:"metadata,omitempty"`
}

// WireMessage is one merged conversation turn.
type WireMessage struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// Block is a content block: text, tool_use, or tool_result. Content holds
// the nested tool_result payload, which may be a provider-native array.
type Block struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	// tool_use fields.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result fields.
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Tool is a tool declaration on the Messages API.
type Tool struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoice selects tool usage: none, auto, any, or a specific tool.
type ToolChoice struct {
	Type                   string `json:"type"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

// OutputConfig requests schema-constrained output.
type OutputConfig struct {
	Format OutputFormat `json:"format"`
}

type OutputFormat struct {
	Type   string          `json:"type"`
	Schema json.RawMessage `json:"schema"`
}

// Metadata forwards the caller identity. Anthropic accepts only user_id.
type Metadata struct {
	UserID string `json:"user_id"`
}

// ErrorEnvelope is the parsed Anthropic error payload.
type ErrorEnvelope struct {
	Type      string
	Message   string
	RequestID string
}
