package llm

import "encoding/json"

type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
)

// Warning is a non-fatal diagnostic attached to a response. Codes are stable
// identifiers; messages are human-readable.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AssistantOutput is the decoded assistant turn. StructuredOutput is set when
// a non-text response format was requested and the output parsed as JSON.
type AssistantOutput struct {
	Content          []ContentPart   `json:"content"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
}

// Response is the provider-neutral result of a single chat call.
type Response struct {
	Output       AssistantOutput `json:"output"`
	Usage        Usage           `json:"usage"`
	Cost         *Cost           `json:"cost,omitempty"`
	Provider     ProviderID      `json:"provider"`
	Model        string          `json:"model"`
	FinishReason FinishReason    `json:"finish_reason"`
	Warnings     []Warning       `json:"warnings,omitempty"`
}

// TextContent joins all plain text parts of the output with newlines.
func (r *Response) TextContent() string {
	var joined string

	for _, part := range r.Output.Content {
		if part.Type != ContentTypeText {
			continue
		}

		if joined != "" {
			joined += "\n"
		}

		joined += part.Text
	}

	return joined
}

// ToolCalls returns the tool call parts of the output in order.
func (r *Response) ToolCalls() []ToolCall {
	var calls []ToolCall

	for _, part := range r.Output.Content {
		if part.Type == ContentTypeToolCall && part.ToolCall != nil {
			calls = append(calls, *part.ToolCall)
		}
	}

	return calls
}
