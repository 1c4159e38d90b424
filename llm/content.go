package llm

import (
	"encoding/json"
	"fmt"
)

type ContentPartType string

const (
	ContentTypeText       ContentPartType = "text"
	ContentTypeThinking   ContentPartType = "thinking"
	ContentTypeToolCall   ContentPartType = "tool_call"
	ContentTypeToolResult ContentPartType = "tool_result"
)

// ContentPart is the tagged union of message content blocks. Exactly one of
// the payload fields is populated, selected by Type.
type ContentPart struct {
	Type       ContentPartType `json:"type"`
	Text       string          `json:"text,omitempty"`
	Thinking   *Thinking       `json:"thinking,omitempty"`
	ToolCall   *ToolCall       `json:"tool_call,omitempty"`
	ToolResult *ToolResult     `json:"tool_result,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

func ThinkingPart(text string, provider *ProviderID) ContentPart {
	return ContentPart{Type: ContentTypeThinking, Thinking: &Thinking{Text: text, Provider: provider}}
}

func ToolCallPart(call ToolCall) ContentPart {
	return ContentPart{Type: ContentTypeToolCall, ToolCall: &call}
}

func ToolResultPart(result ToolResult) ContentPart {
	return ContentPart{Type: ContentTypeToolResult, ToolResult: &result}
}

// Thinking is provider-produced reasoning content. Provider records which
// family emitted it so handoff can decide whether it survives a transfer.
type Thinking struct {
	Text     string      `json:"text"`
	Provider *ProviderID `json:"provider,omitempty"`
}

// ToolCall is an assistant request to invoke a tool. ArgumentsJSON holds the
// parsed argument value; when the provider emitted invalid JSON it holds the
// raw string and a warning accompanies the response.
type ToolCall struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ArgumentsJSON json.RawMessage `json:"arguments_json"`
}

// ToolResult carries the application's answer to a tool call back to the
// model. RawProviderContent optionally preserves a provider-native payload.
type ToolResult struct {
	ToolCallID         string            `json:"tool_call_id"`
	Content            ToolResultContent `json:"content"`
	RawProviderContent json.RawMessage   `json:"raw_provider_content,omitempty"`
}

type ToolResultContentKind string

const (
	ToolResultText  ToolResultContentKind = "text"
	ToolResultJSON  ToolResultContentKind = "json"
	ToolResultParts ToolResultContentKind = "parts"
)

// ToolResultContent is text, a JSON value, or a list of content parts.
type ToolResultContent struct {
	Kind  ToolResultContentKind `json:"kind"`
	Text  string                `json:"text,omitempty"`
	JSON  json.RawMessage       `json:"json,omitempty"`
	Parts []ContentPart         `json:"parts,omitempty"`
}

func ToolResultContentText(text string) ToolResultContent {
	return ToolResultContent{Kind: ToolResultText, Text: text}
}

func ToolResultContentJSON(value json.RawMessage) ToolResultContent {
	return ToolResultContent{Kind: ToolResultJSON, JSON: value}
}

func ToolResultContentParts(parts []ContentPart) ToolResultContent {
	return ToolResultContent{Kind: ToolResultParts, Parts: parts}
}

func (c ToolResultContent) validate() error {
	switch c.Kind {
	case ToolResultText, ToolResultJSON, ToolResultParts:
		return nil
	default:
		return fmt.Errorf("llm: unknown tool result content kind %q", c.Kind)
	}
}

func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	type alias ToolResultContent

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = ToolResultContent(raw)

	return c.validate()
}
