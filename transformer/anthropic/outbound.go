// Package anthropic implements the outbound transformer and adapter for the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/looplj/modelrelay/httpclient"
	"github.com/looplj/modelrelay/internal/pkg/xjson"
	"github.com/looplj/modelrelay/internal/pkg/xmap"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/transformer"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"

	messagesPath = "/v1/messages"
	modelsPath   = "/v1/models"

	// APIVersion is sent as the anthropic-version header on every call.
	APIVersion = "2023-06-01"

	// DefaultMaxTokens is applied when the caller leaves max_output_tokens
	// unset; the Messages API requires the field.
	DefaultMaxTokens = 1024
)

// Warning codes emitted by the Anthropic transformer.
const (
	WarnBothTemperatureAndTopPSet      = "both_temperature_and_top_p_set"
	WarnDroppedUnsupportedMetadataKeys = "dropped_unsupported_metadata_keys"
	WarnDefaultMaxTokensApplied        = "default_max_tokens_applied"
	WarnUnknownContentBlock            = "unknown_content_block_mapped_to_text"
	WarnUnknownStopReason              = "unknown_stop_reason"
	WarnUsageMissing                   = "usage_missing"
	WarnUsagePartial                   = "usage_partial"
	WarnEmptyOutput                    = "empty_output"
	WarnToolResultCoerced              = "tool_result_coerced"
	WarnToolResultRawContentIgnored    = "tool_result_raw_provider_content_ignored"
)

// Config holds the configuration for the Anthropic outbound transformer.
type Config struct {
	// BaseURL overrides the API origin; empty means the public endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is attached as an x-api-key credential when set. When empty the
	// adapter resolves a key from context metadata or the environment.
	APIKey string `json:"api_key,omitempty"`
}

// OutboundTransformer implements transformer.Outbound for the Messages API.
type OutboundTransformer struct {
	config *Config
}

var _ transformer.Outbound = (*OutboundTransformer)(nil)

// NewOutboundTransformer creates an Anthropic OutboundTransformer.
func NewOutboundTransformer(baseURL, apiKey string) *OutboundTransformer {
	return NewOutboundTransformerWithConfig(&Config{BaseURL: baseURL, APIKey: apiKey})
}

// NewOutboundTransformerWithConfig creates an Anthropic OutboundTransformer
// with the given configuration.
func NewOutboundTransformerWithConfig(config *Config) *OutboundTransformer {
	if config == nil {
		config = &Config{}
	}

	config.BaseURL = normalizeBaseURL(config.BaseURL)
	config.APIKey = strings.TrimSpace(config.APIKey)

	return &OutboundTransformer{config: config}
}

func normalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return DefaultBaseURL
	}

	return strings.TrimRight(trimmed, "/")
}

// TransformRequest encodes the canonical request as a Messages API call.
func (t *OutboundTransformer) TransformRequest(ctx context.Context, req *llm.Request) (*httpclient.Request, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", transformer.ErrInvalidRequest)
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var warnings []llm.Warning
	if req.Temperature != nil && req.TopP != nil {
		warnings = append(warnings, llm.Warning{
			Code:    WarnBothTemperatureAndTopPSet,
			Message: "Anthropic recommends setting temperature or top_p, but not both",
		})
	}

	system, rest, err := splitSystemPrefix(req)
	if err != nil {
		return nil, err
	}

	messages, err := convertMessages(req, rest, &warnings)
	if err != nil {
		return nil, err
	}

	merged := mergeConsecutiveMessages(messages)

	if err := validateToolOrdering(req.Model.ModelID, merged); err != nil {
		return nil, err
	}

	if len(merged) == 0 {
		return nil, protocolError(req.Model.ModelID, "empty messages")
	}

	outputConfig, err := convertResponseFormat(req, merged)
	if err != nil {
		return nil, err
	}

	tools, err := convertTools(req)
	if err != nil {
		return nil, err
	}

	toolChoice, err := convertToolChoice(req)
	if err != nil {
		return nil, err
	}

	maxTokens := int64(DefaultMaxTokens)
	if req.MaxOutputTokens != nil {
		maxTokens = *req.MaxOutputTokens
	} else {
		warnings = append(warnings, llm.Warning{
			Code:    WarnDefaultMaxTokensApplied,
			Message: fmt.Sprintf("max_output_tokens not set; defaulting to %d for Anthropic", DefaultMaxTokens),
		})
	}

	metadata, err := convertMetadata(req, &warnings)
	if err != nil {
		return nil, err
	}

	antReq := &Request{
		Model:         req.Model.ModelID,
		MaxTokens:     maxTokens,
		Messages:      merged,
		System:        system,
		Tools:         tools,
		ToolChoice:    toolChoice,
		OutputConfig:  outputConfig,
		StopSequences: req.Stop,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Metadata:      metadata,
	}

	body, merr := json.Marshal(antReq)
	if merr != nil {
		return nil, llm.NewSerializationError(llm.ProviderAnthropic, req.Model.ModelID, merr.Error())
	}

	headers := make(http.Header)
	headers.Set("Accept", "application/json")
	headers.Set("anthropic-version", APIVersion)

	httpReq := &httpclient.Request{
		Method:      http.MethodPost,
		URL:         t.config.BaseURL + messagesPath,
		Headers:     headers,
		ContentType: "application/json",
		Body:        body,
	}

	if t.config.APIKey != "" {
		httpReq.Auth = &httpclient.AuthConfig{
			Type:      httpclient.AuthTypeAPIKey,
			HeaderKey: "x-api-key",
			APIKey:    t.config.APIKey,
		}
	}

	transformer.AttachRequestState(httpReq, req.ResponseFormat, warnings)

	return httpReq, nil
}

// TransformResponse decodes a Messages API payload into the canonical form.
func (t *OutboundTransformer) TransformResponse(ctx context.Context, httpResp *httpclient.Response) (*llm.Response, error) {
	if httpResp == nil {
		return nil, fmt.Errorf("%w: http response is nil", transformer.ErrInvalidResponse)
	}

	var root map[string]any
	if err := json.Unmarshal(httpResp.Body, &root); err != nil {
		return nil, protocolError("", "anthropic response payload must be a JSON object")
	}

	model := xmap.GetString(root, "model")
	if model == "" {
		model = "<unknown-model>"
	}

	role, ok := root["role"].(string)
	if !ok {
		return nil, protocolError(model, "anthropic response missing role")
	}

	if role != "assistant" {
		return nil, protocolError(model, fmt.Sprintf("anthropic response role must be assistant, got %s", role))
	}

	stopReason, ok := root["stop_reason"].(string)
	if !ok {
		return nil, protocolError(model, "anthropic response missing stop_reason")
	}

	blocks, ok := root["content"].([]any)
	if !ok {
		return nil, protocolError(model, "anthropic response missing content array")
	}

	warnings := transformer.RequestWarnings(httpResp)

	var (
		content    []llm.ContentPart
		textBlocks []string
	)

	for _, block := range blocks {
		if err := decodeContentBlock(model, block, &content, &textBlocks, &warnings); err != nil {
			return nil, err
		}
	}

	if len(content) == 0 {
		warnings = append(warnings, llm.Warning{
			Code:    WarnEmptyOutput,
			Message: "anthropic response contained no content blocks",
		})
	}

	finishReason, perr := mapStopReason(model, stopReason, &warnings)
	if perr != nil {
		return nil, perr
	}

	usage, perr := decodeUsage(model, root, &warnings)
	if perr != nil {
		return nil, perr
	}

	structured := decodeStructuredOutput(httpResp, textBlocks, model, &warnings)

	return &llm.Response{
		Output: llm.AssistantOutput{
			Content:          content,
			StructuredOutput: structured,
		},
		Usage:        usage,
		Provider:     llm.ProviderAnthropic,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

// TransformError maps a transport-level failure onto the provider error
// taxonomy, re-rendering the Anthropic error envelope when the body carries
// one. Unauthorized statuses collapse into credentials rejection.
func (t *OutboundTransformer) TransformError(ctx context.Context, herr *httpclient.Error) *llm.ProviderError {
	if herr == nil {
		return llm.NewTransportProviderError(llm.ProviderAnthropic, "", "unknown transport failure")
	}

	if herr.IsTransportFailure() {
		return llm.NewTransportProviderError(llm.ProviderAnthropic, herr.RequestID, herr.Message)
	}

	message := herr.Message
	requestID := herr.RequestID

	if envelope := parseErrorBody(herr.Body); envelope != nil {
		message = formatErrorMessage(envelope)

		if requestID == "" {
			requestID = envelope.RequestID
		}
	}

	if herr.StatusCode == http.StatusUnauthorized {
		return llm.NewCredentialsRejectedError(llm.ProviderAnthropic, requestID, message)
	}

	return llm.NewStatusError(llm.ProviderAnthropic, "", herr.StatusCode, requestID, message)
}

func parseErrorBody(body []byte) *ErrorEnvelope {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}

	return parseErrorValue(root)
}

func parseErrorValue(root map[string]any) *ErrorEnvelope {
	errorObj, ok := root["error"].(map[string]any)
	if !ok {
		return nil
	}

	message, ok := errorObj["message"].(string)
	if !ok {
		return nil
	}

	return &ErrorEnvelope{
		Type:      xmap.GetString(errorObj, "type"),
		Message:   message,
		RequestID: xmap.GetString(root, "request_id"),
	}
}

func formatErrorMessage(envelope *ErrorEnvelope) string {
	if envelope.Type != "" {
		return fmt.Sprintf("anthropic error: %s [type=%s]", envelope.Message, envelope.Type)
	}

	return fmt.Sprintf("anthropic error: %s", envelope.Message)
}

func protocolError(model, message string) *llm.ProviderError {
	return llm.NewProtocolError(llm.ProviderAnthropic, model, message)
}

func validateRequest(req *llm.Request) *llm.ProviderError {
	if req.Model.ProviderHint != nil && *req.Model.ProviderHint != llm.ProviderAnthropic {
		return protocolError(
			req.Model.ModelID,
			fmt.Sprintf("provider_hint must be anthropic, got %s", *req.Model.ProviderHint),
		)
	}

	if strings.TrimSpace(req.Model.ModelID) == "" {
		return protocolError("", "missing model_id")
	}

	if req.MaxOutputTokens != nil && *req.MaxOutputTokens < 1 {
		return protocolError(req.Model.ModelID, "max_output_tokens must be at least 1 for Anthropic")
	}

	if err := transformer.ValidateSamplingControls(req, 0.0, 1.0); err != nil {
		return protocolError(req.Model.ModelID, err.Error())
	}

	for _, stop := range req.Stop {
		if strings.TrimSpace(stop) == "" {
			return protocolError(req.Model.ModelID, "stop sequences must not contain empty strings")
		}
	}

	return nil
}

// splitSystemPrefix lifts the leading run of system messages into system
// blocks. System messages after the first non-system turn are rejected.
func splitSystemPrefix(req *llm.Request) ([]Block, []llm.Message, *llm.ProviderError) {
	prefixEnd := 0
	for prefixEnd < len(req.Messages) && req.Messages[prefixEnd].Role == llm.RoleSystem {
		prefixEnd++
	}

	for _, message := range req.Messages[prefixEnd:] {
		if message.Role == llm.RoleSystem {
			return nil, nil, protocolError(req.Model.ModelID, "system messages must form a contiguous prefix for Anthropic")
		}
	}

	var system []Block

	for _, message := range req.Messages[:prefixEnd] {
		for _, part := range message.Content {
			if part.Type != llm.ContentTypeText {
				return nil, nil, protocolError(req.Model.ModelID, "system messages only support text content")
			}

			system = append(system, Block{Type: "text", Text: part.Text})
		}
	}

	return system, req.Messages[prefixEnd:], nil
}

func convertMessages(req *llm.Request, messages []llm.Message, warnings *[]llm.Warning) ([]WireMessage, *llm.ProviderError) {
	var wire []WireMessage

	seenToolCallIDs := make(map[string]bool)

	for _, message := range messages {
		wireRole := "user"
		if message.Role == llm.RoleAssistant {
			wireRole = "assistant"
		}

		var blocks []Block

		for _, part := range message.Content {
			switch part.Type {
			case llm.ContentTypeText:
				if message.Role == llm.RoleTool {
					return nil, protocolError(req.Model.ModelID, "tool messages must contain tool_result content only")
				}

				blocks = append(blocks, Block{Type: "text", Text: part.Text})
			case llm.ContentTypeThinking:
				// Reasoning content does not replay into the Messages input.
			case llm.ContentTypeToolCall:
				if message.Role != llm.RoleAssistant {
					return nil, protocolError(req.Model.ModelID, "tool_call content is only valid in assistant messages")
				}

				call := part.ToolCall
				if !xjson.IsObject(call.ArgumentsJSON) {
					return nil, protocolError(
						req.Model.ModelID,
						fmt.Sprintf("tool_call '%s' arguments_json must be a JSON object", call.Name),
					)
				}

				seenToolCallIDs[call.ID] = true
				blocks = append(blocks, Block{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  call.Name,
					Input: xjson.Canonicalize(call.ArgumentsJSON),
				})
			case llm.ContentTypeToolResult:
				if message.Role != llm.RoleTool {
					return nil, protocolError(req.Model.ModelID, "tool_result content is only valid in tool messages")
				}

				result := part.ToolResult
				if !seenToolCallIDs[result.ToolCallID] {
					return nil, protocolError(
						req.Model.ModelID,
						fmt.Sprintf("tool_result references unknown tool_call_id: %s", result.ToolCallID),
					)
				}

				resultContent, err := convertToolResultContent(result, req, warnings)
				if err != nil {
					return nil, err
				}

				blocks = append(blocks, Block{
					Type:      "tool_result",
					ToolUseID: result.ToolCallID,
					Content:   resultContent,
				})
			default:
				return nil, protocolError(
					req.Model.ModelID,
					fmt.Sprintf("unsupported content part type: %s", part.Type),
				)
			}
		}

		if len(blocks) == 0 {
			return nil, protocolError(req.Model.ModelID, "message content must contain at least one encodable part")
		}

		wire = append(wire, WireMessage{Role: wireRole, Content: blocks})
	}

	return wire, nil
}

func convertToolResultContent(
	result *llm.ToolResult,
	req *llm.Request,
	warnings *[]llm.Warning,
) (json.RawMessage, *llm.ProviderError) {
	if !xjson.IsNull(result.RawProviderContent) {
		if xjson.IsArray(result.RawProviderContent) {
			return result.RawProviderContent, nil
		}

		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultRawContentIgnored,
			Message: "tool_result raw_provider_content ignored for Anthropic because it is not an array",
		})
	}

	switch result.Content.Kind {
	case llm.ToolResultText:
		return xjson.MustMarshal([]Block{{Type: "text", Text: result.Content.Text}}), nil
	case llm.ToolResultJSON:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultCoerced,
			Message: "tool_result JSON content coerced to Anthropic text block",
		})

		return xjson.MustMarshal([]Block{{Type: "text", Text: xjson.CanonicalString(result.Content.JSON)}}), nil
	case llm.ToolResultParts:
		blocks := []Block{}

		for _, part := range result.Content.Parts {
			if part.Type != llm.ContentTypeText {
				return nil, protocolError(req.Model.ModelID, "tool_result parts content must contain only text parts")
			}

			blocks = append(blocks, Block{Type: "text", Text: part.Text})
		}

		return xjson.MustMarshal(blocks), nil
	default:
		return nil, protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported tool_result content kind: %s", result.Content.Kind),
		)
	}
}

// mergeConsecutiveMessages collapses adjacent same-role turns into one wire
// message and moves tool_result blocks to the front of user turns, which the
// Messages API requires after an assistant tool_use.
func mergeConsecutiveMessages(messages []WireMessage) []WireMessage {
	var merged []WireMessage

	for _, message := range messages {
		if len(merged) > 0 && merged[len(merged)-1].Role == message.Role {
			last := &merged[len(merged)-1]
			last.Content = append(last.Content, message.Content...)

			continue
		}

		merged = append(merged, message)
	}

	for i := range merged {
		if merged[i].Role == "user" {
			merged[i].Content = reorderToolResultsFirst(merged[i].Content)
		}
	}

	return merged
}

func reorderToolResultsFirst(blocks []Block) []Block {
	var results, others []Block

	for _, block := range blocks {
		if block.Type == "tool_result" {
			results = append(results, block)
		} else {
			others = append(others, block)
		}
	}

	if len(results) == 0 {
		return blocks
	}

	return append(results, others...)
}

// validateToolOrdering checks that every assistant tool_use is answered by
// tool_result blocks at the start of the immediately following user message.
func validateToolOrdering(model string, messages []WireMessage) *llm.ProviderError {
	for index, message := range messages {
		if message.Role != "assistant" {
			continue
		}

		var pending []string

		for _, block := range message.Content {
			if block.Type == "tool_use" {
				pending = append(pending, block.ID)
			}
		}

		if len(pending) == 0 {
			continue
		}

		if index+1 >= len(messages) {
			return protocolError(model, "assistant tool_use requires a following user tool_result message")
		}

		next := messages[index+1]
		if next.Role != "user" {
			return protocolError(model, "assistant tool_use must be followed by a user message containing tool_result blocks")
		}

		answered := make(map[string]bool)

		for _, block := range next.Content {
			if block.Type != "tool_result" {
				break
			}

			answered[block.ToolUseID] = true
		}

		if len(answered) == 0 {
			return protocolError(model, "assistant tool_use requires tool_result blocks at the start of the next user message")
		}

		for _, id := range pending {
			if !answered[id] {
				return protocolError(
					model,
					fmt.Sprintf("missing tool_result for assistant tool_use id '%s' in following user message", id),
				)
			}
		}
	}

	return nil
}

func convertResponseFormat(req *llm.Request, merged []WireMessage) (*OutputConfig, *llm.ProviderError) {
	format := req.ResponseFormat

	switch format.NormalizedType() {
	case llm.ResponseFormatText:
		return nil, nil
	case llm.ResponseFormatJSONObject:
		if err := validateNoAssistantPrefill(req, merged); err != nil {
			return nil, err
		}

		return &OutputConfig{Format: OutputFormat{
			Type:   "json_schema",
			Schema: json.RawMessage(`{"type":"object","additionalProperties":true}`),
		}}, nil
	case llm.ResponseFormatJSONSchema:
		if err := validateNoAssistantPrefill(req, merged); err != nil {
			return nil, err
		}

		return &OutputConfig{Format: OutputFormat{
			Type:   "json_schema",
			Schema: format.Schema,
		}}, nil
	default:
		return nil, protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported response format: %s", format.Type),
		)
	}
}

// validateNoAssistantPrefill rejects JSON response formats when the final turn
// is an assistant prefill, which would conflict with constrained output.
func validateNoAssistantPrefill(req *llm.Request, merged []WireMessage) *llm.ProviderError {
	if len(merged) > 0 && merged[len(merged)-1].Role == "assistant" {
		return protocolError(
			req.Model.ModelID,
			"json response formats are incompatible with assistant-prefill final messages",
		)
	}

	return nil
}

func convertTools(req *llm.Request) ([]Tool, *llm.ProviderError) {
	var tools []Tool

	for _, tool := range req.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return nil, protocolError(req.Model.ModelID, "tool definitions require non-empty names")
		}

		if len([]rune(tool.Name)) > 128 {
			return nil, protocolError(
				req.Model.ModelID,
				fmt.Sprintf("tool '%s' name exceeds 128 characters", tool.Name),
			)
		}

		if !xjson.IsObject(tool.ParametersSchema) {
			return nil, protocolError(
				req.Model.ModelID,
				fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name),
			)
		}

		tools = append(tools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.ParametersSchema,
		})
	}

	return tools, nil
}

func convertToolChoice(req *llm.Request) (*ToolChoice, *llm.ProviderError) {
	mode := req.ToolChoice.NormalizedMode()

	if len(req.Tools) == 0 && (mode == llm.ToolChoiceRequired || mode == llm.ToolChoiceSpecific) {
		return nil, protocolError(req.Model.ModelID, "tool_choice requires at least one tool definition")
	}

	switch mode {
	case llm.ToolChoiceNone:
		return &ToolChoice{Type: "none"}, nil
	case llm.ToolChoiceAuto:
		return &ToolChoice{Type: "auto"}, nil
	case llm.ToolChoiceRequired:
		return &ToolChoice{Type: "any"}, nil
	case llm.ToolChoiceSpecific:
		name := req.ToolChoice.Name
		if strings.TrimSpace(name) == "" {
			return nil, protocolError(req.Model.ModelID, "tool_choice specific requires a non-empty tool name")
		}

		found := false

		for _, tool := range req.Tools {
			if tool.Name == name {
				found = true

				break
			}
		}

		if !found {
			return nil, protocolError(
				req.Model.ModelID,
				fmt.Sprintf("tool_choice specific references unknown tool: %s", name),
			)
		}

		return &ToolChoice{Type: "tool", Name: name, DisableParallelToolUse: true}, nil
	default:
		return nil, protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported tool choice: %s", req.ToolChoice.Mode),
		)
	}
}

func convertMetadata(req *llm.Request, warnings *[]llm.Warning) (*Metadata, *llm.ProviderError) {
	if len(req.Metadata) == 0 {
		return nil, nil
	}

	for key := range req.Metadata {
		if key != "user_id" {
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnDroppedUnsupportedMetadataKeys,
				Message: "anthropic metadata only supports user_id; unsupported keys dropped",
			})

			break
		}
	}

	userID, ok := req.Metadata["user_id"]
	if !ok {
		return nil, nil
	}

	if len([]rune(userID)) > 256 {
		return nil, protocolError(req.Model.ModelID, "metadata.user_id exceeds 256 characters")
	}

	return &Metadata{UserID: userID}, nil
}

func decodeContentBlock(
	model string,
	block any,
	content *[]llm.ContentPart,
	textBlocks *[]string,
	warnings *[]llm.Warning,
) *llm.ProviderError {
	blockObj, ok := block.(map[string]any)
	if !ok {
		return protocolError(model, "anthropic content block must be object")
	}

	blockType := xmap.GetString(blockObj, "type")
	if blockType == "" {
		return protocolError(model, "anthropic content block missing type")
	}

	switch blockType {
	case "text":
		text, ok := blockObj["text"].(string)
		if !ok {
			return protocolError(model, "text content block missing text")
		}

		*content = append(*content, llm.TextPart(text))
		*textBlocks = append(*textBlocks, text)
	case "tool_use":
		id, ok := blockObj["id"].(string)
		if !ok {
			return protocolError(model, "tool_use block missing id")
		}

		name, ok := blockObj["name"].(string)
		if !ok {
			return protocolError(model, "tool_use block missing name")
		}

		input, present := blockObj["input"]
		if !present {
			return protocolError(model, "tool_use block missing input")
		}

		if _, ok := input.(map[string]any); !ok {
			return protocolError(model, "tool_use input must be a JSON object")
		}

		*content = append(*content, llm.ToolCallPart(llm.ToolCall{
			ID:            id,
			Name:          name,
			ArgumentsJSON: xjson.MustMarshal(input),
		}))
	case "thinking", "redacted_thinking":
		// Reasoning blocks carry no replayable canonical content.
	default:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUnknownContentBlock,
			Message: fmt.Sprintf("anthropic content block type '%s' mapped to canonical text via JSON", blockType),
		})
		*content = append(*content, llm.TextPart(xjson.MustMarshalString(blockObj)))
	}

	return nil
}

func mapStopReason(model, stopReason string, warnings *[]llm.Warning) (llm.FinishReason, *llm.ProviderError) {
	switch stopReason {
	case "":
		return "", protocolError(model, "anthropic stop_reason must not be empty")
	case "end_turn", "stop_sequence":
		return llm.FinishStop, nil
	case "max_tokens":
		return llm.FinishLength, nil
	case "tool_use":
		return llm.FinishToolCalls, nil
	case "refusal":
		return llm.FinishContentFilter, nil
	case "pause_turn":
		return llm.FinishOther, nil
	default:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUnknownStopReason,
			Message: fmt.Sprintf("unknown anthropic stop_reason '%s' mapped to Other", stopReason),
		})

		return llm.FinishOther, nil
	}
}

// decodeUsage folds cache token counts into the billed input total: billed
// input is input_tokens plus cache creation and cache read tokens.
func decodeUsage(model string, root map[string]any, warnings *[]llm.Warning) (llm.Usage, *llm.ProviderError) {
	usageValue, present := root["usage"]
	if !present {
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUsageMissing,
			Message: "anthropic response missing usage object",
		})

		return llm.Usage{}, nil
	}

	usageObj, ok := usageValue.(map[string]any)
	if !ok {
		return llm.Usage{}, protocolError(model, "anthropic usage must be a JSON object")
	}

	input, perr := usageTokenField(model, usageObj, "input_tokens")
	if perr != nil {
		return llm.Usage{}, perr
	}

	output, perr := usageTokenField(model, usageObj, "output_tokens")
	if perr != nil {
		return llm.Usage{}, perr
	}

	cacheCreation, perr := usageTokenField(model, usageObj, "cache_creation_input_tokens")
	if perr != nil {
		return llm.Usage{}, perr
	}

	cacheRead, perr := usageTokenField(model, usageObj, "cache_read_input_tokens")
	if perr != nil {
		return llm.Usage{}, perr
	}

	if input == nil || output == nil {
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUsagePartial,
			Message: "anthropic usage object missing required token fields",
		})
	}

	usage := llm.Usage{
		OutputTokens:      output,
		CachedInputTokens: cacheRead,
	}

	if input != nil {
		billed := *input
		if cacheCreation != nil {
			billed += *cacheCreation
		}

		if cacheRead != nil {
			billed += *cacheRead
		}

		usage.InputTokens = &billed
	}

	if usage.InputTokens != nil && output != nil {
		total := *usage.InputTokens + *output
		usage.TotalTokens = &total
	}

	return usage, nil
}

func usageTokenField(model string, usageObj map[string]any, field string) (*int64, *llm.ProviderError) {
	value, present := usageObj[field]
	if !present {
		return nil, nil
	}

	number, ok := value.(float64)
	if !ok {
		return nil, protocolError(model, fmt.Sprintf("anthropic usage field '%s' must be numeric", field))
	}

	if number < 0 || number != math.Trunc(number) {
		return nil, protocolError(model, fmt.Sprintf("anthropic usage field '%s' must be an unsigned integer", field))
	}

	count := int64(number)

	return &count, nil
}

// decodeStructuredOutput recovers structured output from text blocks. The
// json_schema format expects the first text block to be the JSON document;
// json_object additionally scans for an embedded object when no block parses
// on its own.
func decodeStructuredOutput(
	httpResp *httpclient.Response,
	textBlocks []string,
	model string,
	warnings *[]llm.Warning,
) json.RawMessage {
	format := transformer.RequestedResponseFormat(httpResp)

	switch format.NormalizedType() {
	case llm.ResponseFormatJSONSchema:
		if len(textBlocks) == 0 {
			return nil
		}

		return parseJSONWithWarning(textBlocks[0], model, warnings)
	case llm.ResponseFormatJSONObject:
		if len(textBlocks) == 0 {
			*warnings = append(*warnings, llm.Warning{
				Code:    transformer.WarnStructuredOutputParseFailed,
				Message: "json_object requested but response contained no text blocks",
			})

			return nil
		}

		for _, text := range textBlocks {
			var value json.RawMessage
			if err := json.Unmarshal([]byte(text), &value); err == nil && xjson.IsObject(value) {
				return xjson.Canonicalize(value)
			}
		}

		combined := strings.Join(textBlocks, "\n")
		if objectText := extractFirstJSONObject(combined); objectText != "" {
			if parsed := parseJSONWithWarning(objectText, model, warnings); parsed != nil {
				return parsed
			}
		}

		*warnings = append(*warnings, llm.Warning{
			Code:    transformer.WarnStructuredOutputParseFailed,
			Message: "failed to parse json_object structured output from anthropic text blocks",
		})

		return nil
	default:
		return nil
	}
}

func parseJSONWithWarning(text, model string, warnings *[]llm.Warning) json.RawMessage {
	var value json.RawMessage
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		*warnings = append(*warnings, llm.Warning{
			Code:    transformer.WarnStructuredOutputParseFailed,
			Message: fmt.Sprintf("failed to parse structured output JSON for model %s: %v", model, err),
		})

		return nil
	}

	return xjson.Canonicalize(value)
}

// extractFirstJSONObject returns the first balanced top-level {...} span in
// text, respecting string literals and escapes.
func extractFirstJSONObject(text string) string {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}

			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}

			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return ""
}
