// Package openai implements the outbound transformer and adapter for the
// OpenAI Responses API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"github.com/looplj/modelrelay/httpclient"
	"github.com/looplj/modelrelay/internal/pkg/xjson"
	"github.com/looplj/modelrelay/internal/pkg/xmap"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/transformer"
)

const (
	DefaultBaseURL = "https://api.openai.com"

	responsesPath = "/v1/responses"
	modelsPath    = "/v1/models"
)

// Warning codes emitted by the OpenAI transformer.
const (
	WarnBothTemperatureAndTopPSet     = "both_temperature_and_top_p_set"
	WarnToolSchemaNotStrictCompatible = "tool_schema_not_strict_compatible_strict_disabled"
	WarnToolArgumentsInvalidJSON      = "tool_arguments_invalid_json"
	WarnUsageMissing                  = "usage_missing"
	WarnModelRefusal                  = "model_refusal"
	WarnIncompleteMaxOutputTokens     = "openai_incomplete_max_output_tokens"
	WarnIncompleteContentFilter       = "openai_incomplete_content_filter"
	WarnIncompleteUnknownReason       = "openai_incomplete_unknown_reason"
	WarnIncompleteMissingReason       = "openai_incomplete_missing_reason"
	WarnEmptyOutput                   = "empty_output"
	WarnToolResultCoerced             = "tool_result_coerced"
	WarnToolResultRawContentIgnored   = "tool_result_raw_provider_content_ignored"
)

// Config holds the configuration for the OpenAI outbound transformer.
type Config struct {
	// BaseURL overrides the API origin; empty means the public endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is attached as a bearer credential when set. When empty the
	// adapter resolves a key from context metadata or the environment.
	APIKey string `json:"api_key,omitempty"`
}

// OutboundTransformer implements transformer.Outbound for the Responses API.
type OutboundTransformer struct {
	config *Config
}

var _ transformer.Outbound = (*OutboundTransformer)(nil)

// NewOutboundTransformer creates an OpenAI OutboundTransformer.
func NewOutboundTransformer(baseURL, apiKey string) *OutboundTransformer {
	return NewOutboundTransformerWithConfig(&Config{BaseURL: baseURL, APIKey: apiKey})
}

// NewOutboundTransformerWithConfig creates an OpenAI OutboundTransformer with
// the given configuration.
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

// TransformRequest encodes the canonical request as a Responses API call.
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
			Message: "OpenAI recommends setting temperature or top_p, but not both",
		})
	}

	textFormat, err := convertResponseFormat(req)
	if err != nil {
		return nil, err
	}

	toolChoice, err := convertToolChoice(req)
	if err != nil {
		return nil, err
	}

	tools, err := convertTools(req, &warnings)
	if err != nil {
		return nil, err
	}

	input, err := convertInput(req, &warnings)
	if err != nil {
		return nil, err
	}

	if len(input) == 0 {
		return nil, protocolError(req.Model.ModelID, "empty input")
	}

	oaiReq := &Request{
		Model:           req.Model.ModelID,
		Store:           false,
		Input:           input,
		Text:            TextOptions{Format: textFormat},
		Tools:           tools,
		ToolChoice:      toolChoice,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxOutputTokens,
		Metadata:        req.Metadata,
	}

	body, merr := json.Marshal(oaiReq)
	if merr != nil {
		return nil, llm.NewSerializationError(llm.ProviderOpenAI, req.Model.ModelID, merr.Error())
	}

	headers := make(http.Header)
	headers.Set("Accept", "application/json")

	httpReq := &httpclient.Request{
		Method:      http.MethodPost,
		URL:         t.config.BaseURL + responsesPath,
		Headers:     headers,
		ContentType: "application/json",
		Body:        body,
	}

	if t.config.APIKey != "" {
		httpReq.Auth = &httpclient.AuthConfig{
			Type:   httpclient.AuthTypeBearer,
			APIKey: t.config.APIKey,
		}
	}

	transformer.AttachRequestState(httpReq, req.ResponseFormat, warnings)

	return httpReq, nil
}

// TransformResponse decodes a Responses API payload into the canonical form.
func (t *OutboundTransformer) TransformResponse(ctx context.Context, httpResp *httpclient.Response) (*llm.Response, error) {
	if httpResp == nil {
		return nil, fmt.Errorf("%w: http response is nil", transformer.ErrInvalidResponse)
	}

	var root map[string]any
	if err := json.Unmarshal(httpResp.Body, &root); err != nil {
		return nil, protocolError("", "openai response payload must be a JSON object")
	}

	if envelope := parseErrorValue(root); envelope != nil {
		return nil, protocolError("", formatErrorMessage(envelope))
	}

	status, ok := root["status"].(string)
	if !ok {
		return nil, protocolError("", "openai response missing status")
	}

	if status == "failed" {
		return nil, protocolError("", "openai response status is failed")
	}

	if status == "queued" || status == "in_progress" {
		return nil, protocolError("", fmt.Sprintf("openai response status is non-terminal: %s", status))
	}

	model := xmap.GetString(root, "model")
	if model == "" {
		model = "<unknown-model>"
	}

	warnings := transformer.RequestWarnings(httpResp)

	var content []llm.ContentPart

	for _, item := range xmap.GetSlice(root, "output") {
		if err := decodeOutputItem(item, &content, &warnings); err != nil {
			return nil, err
		}
	}

	if len(content) == 0 {
		warnings = append(warnings, llm.Warning{
			Code:    WarnEmptyOutput,
			Message: "openai response contained no decodable output content",
		})
	}

	structured, warning := decodeStructuredOutput(httpResp, content, model)
	if warning != nil {
		warnings = append(warnings, *warning)
	}

	usage := decodeUsage(root, &warnings)

	incompleteReason := xmap.GetString(xmap.GetMap(root, "incomplete_details"), "reason")

	finishReason, err := mapFinishReason(status, incompleteReason, content, &warnings)
	if err != nil {
		return nil, err
	}

	return &llm.Response{
		Output: llm.AssistantOutput{
			Content:          content,
			StructuredOutput: structured,
		},
		Usage:        usage,
		Provider:     llm.ProviderOpenAI,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

// TransformError maps a transport-level failure onto the provider error
// taxonomy, re-rendering the OpenAI error envelope when the body carries one.
// Authentication statuses collapse into credentials rejection.
func (t *OutboundTransformer) TransformError(ctx context.Context, herr *httpclient.Error) *llm.ProviderError {
	if herr == nil {
		return llm.NewTransportProviderError(llm.ProviderOpenAI, "", "unknown transport failure")
	}

	if herr.IsTransportFailure() {
		return llm.NewTransportProviderError(llm.ProviderOpenAI, herr.RequestID, herr.Message)
	}

	message := herr.Message
	if envelope := parseErrorBody(herr.Body); envelope != nil {
		message = formatErrorMessage(envelope)
	}

	if herr.StatusCode == http.StatusUnauthorized || herr.StatusCode == http.StatusForbidden {
		return llm.NewCredentialsRejectedError(llm.ProviderOpenAI, herr.RequestID, message)
	}

	return llm.NewStatusError(llm.ProviderOpenAI, "", herr.StatusCode, herr.RequestID, message)
}

func parseErrorBody(body []byte) *ErrorEnvelope {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}

	return parseErrorValue(root)
}

func protocolError(model, message string) *llm.ProviderError {
	return llm.NewProtocolError(llm.ProviderOpenAI, model, message)
}

func validateRequest(req *llm.Request) *llm.ProviderError {
	if req.Model.ProviderHint != nil && *req.Model.ProviderHint != llm.ProviderOpenAI {
		return protocolError(
			req.Model.ModelID,
			fmt.Sprintf("provider_hint must be openai, got %s", *req.Model.ProviderHint),
		)
	}

	if strings.TrimSpace(req.Model.ModelID) == "" {
		return protocolError("", "missing model_id")
	}

	if len(req.Stop) > 0 {
		return protocolError(req.Model.ModelID, "stop sequences are unsupported by OpenAI Responses API")
	}

	if err := transformer.ValidateMetadata(req.Metadata, 16, 64, 512); err != nil {
		return protocolError(req.Model.ModelID, err.Error())
	}

	if err := transformer.ValidateSamplingControls(req, 0.0, 2.0); err != nil {
		return protocolError(req.Model.ModelID, err.Error())
	}

	return nil
}

func convertResponseFormat(req *llm.Request) (TextFormat, *llm.ProviderError) {
	format := req.ResponseFormat

	switch format.NormalizedType() {
	case llm.ResponseFormatText:
		return TextFormat{Type: "text"}, nil
	case llm.ResponseFormatJSONObject:
		if !containsJSONKeyword(req.Messages) {
			return TextFormat{}, protocolError(
				req.Model.ModelID,
				"json_object response format requires the string 'JSON' in message text",
			)
		}

		return TextFormat{Type: "json_object"}, nil
	case llm.ResponseFormatJSONSchema:
		if strings.TrimSpace(format.Name) == "" {
			return TextFormat{}, protocolError(
				req.Model.ModelID,
				"json_schema response format requires a non-empty name",
			)
		}

		// Draft metadata keywords confuse the structured-output validator
		// when the schema is embedded in the request envelope.
		schema := format.Schema
		if cleaned, err := xjson.StripSchemaMetadata(schema); err == nil {
			schema = cleaned
		}

		strict := true

		return TextFormat{
			Type:   "json_schema",
			Name:   format.Name,
			Schema: schema,
			Strict: &strict,
		}, nil
	default:
		return TextFormat{}, protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported response format: %s", format.Type),
		)
	}
}

func containsJSONKeyword(messages []llm.Message) bool {
	for _, message := range messages {
		for _, part := range message.Content {
			if part.Type == llm.ContentTypeText && strings.Contains(part.Text, "JSON") {
				return true
			}
		}
	}

	return false
}

func convertToolChoice(req *llm.Request) (json.RawMessage, *llm.ProviderError) {
	switch req.ToolChoice.NormalizedMode() {
	case llm.ToolChoiceNone:
		return xjson.MustMarshal("none"), nil
	case llm.ToolChoiceAuto:
		return xjson.MustMarshal("auto"), nil
	case llm.ToolChoiceRequired:
		return xjson.MustMarshal("required"), nil
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

		return xjson.MustMarshal(map[string]string{"type": "function", "name": name}), nil
	default:
		return nil, protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported tool choice: %s", req.ToolChoice.Mode),
		)
	}
}

func convertTools(req *llm.Request, warnings *[]llm.Warning) ([]Tool, *llm.ProviderError) {
	var tools []Tool

	for _, tool := range req.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return nil, protocolError(req.Model.ModelID, "tool definitions require non-empty names")
		}

		if !xjson.IsObject(tool.ParametersSchema) {
			return nil, protocolError(
				req.Model.ModelID,
				fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name),
			)
		}

		var schema any
		if err := json.Unmarshal(tool.ParametersSchema, &schema); err != nil {
			return nil, protocolError(
				req.Model.ModelID,
				fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name),
			)
		}

		strict := isStrictCompatibleSchema(schema)
		if !strict {
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnToolSchemaNotStrictCompatible,
				Message: fmt.Sprintf("tool '%s' schema is not strict-compatible; strict disabled", tool.Name),
			})
		}

		tools = append(tools, Tool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.ParametersSchema,
			Strict:      strict,
		})
	}

	return tools, nil
}

// isStrictCompatibleSchema reports whether a tool schema satisfies the strict
// mode contract: object schemas must close additionalProperties and require
// every declared property, and union keywords are not allowed.
func isStrictCompatibleSchema(schema any) bool {
	obj, ok := schema.(map[string]any)
	if !ok {
		return false
	}

	for _, keyword := range []string{"anyOf", "oneOf", "allOf"} {
		if _, present := obj[keyword]; present {
			return false
		}
	}

	if !isObjectType(obj["type"]) {
		if items, present := obj["items"]; present {
			return isStrictCompatibleSchema(items)
		}

		return true
	}

	if additional, ok := obj["additionalProperties"].(bool); !ok || additional {
		return false
	}

	properties := xmap.GetMap(obj, "properties")
	required := xmap.GetSlice(obj, "required")

	if len(properties) != len(required) {
		return false
	}

	for key := range properties {
		found := false

		for _, entry := range required {
			if name, ok := entry.(string); ok && name == key {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	for _, property := range properties {
		if !isStrictCompatibleSchema(property) {
			return false
		}
	}

	return true
}

func isObjectType(value any) bool {
	switch typed := value.(type) {
	case string:
		return typed == "object"
	case []any:
		for _, entry := range typed {
			if name, ok := entry.(string); ok && name == "object" {
				return true
			}
		}
	}

	return false
}

func convertInput(req *llm.Request, warnings *[]llm.Warning) ([]InputItem, *llm.ProviderError) {
	var (
		items           []InputItem
		seenToolCallIDs []string
	)

	for _, message := range req.Messages {
		var parts []MessagePart

		flush := func() {
			if len(parts) == 0 || message.Role == llm.RoleTool {
				parts = nil

				return
			}

			items = append(items, InputItem{
				Type:    "message",
				Role:    string(message.Role),
				Content: parts,
			})
			parts = nil
		}

		for _, part := range message.Content {
			switch part.Type {
			case llm.ContentTypeText:
				if message.Role == llm.RoleTool {
					return nil, protocolError(req.Model.ModelID, "tool role messages cannot contain plain text content")
				}

				partType := "input_text"
				if message.Role == llm.RoleAssistant {
					partType = "output_text"
				}

				parts = append(parts, MessagePart{Type: partType, Text: part.Text})
			case llm.ContentTypeThinking:
				// Provider-specific reasoning content does not replay into
				// the Responses input.
			case llm.ContentTypeToolCall:
				if message.Role != llm.RoleAssistant {
					return nil, protocolError(req.Model.ModelID, "tool_call content is only valid for assistant role messages")
				}

				flush()

				call := part.ToolCall
				seenToolCallIDs = append(seenToolCallIDs, call.ID)
				items = append(items, InputItem{
					Type:      "function_call",
					CallID:    call.ID,
					Name:      call.Name,
					Arguments: argumentsString(call.ArgumentsJSON),
				})
			case llm.ContentTypeToolResult:
				if message.Role != llm.RoleTool {
					return nil, protocolError(req.Model.ModelID, "tool_result content is only valid for tool role messages")
				}

				flush()

				result := part.ToolResult
				if !seen(seenToolCallIDs, result.ToolCallID) {
					return nil, protocolError(
						req.Model.ModelID,
						fmt.Sprintf("tool_result_without_matching_tool_call: %s", result.ToolCallID),
					)
				}

				output, err := serializeToolResultOutput(result, req, warnings)
				if err != nil {
					return nil, err
				}

				items = append(items, InputItem{
					Type:   "function_call_output",
					CallID: result.ToolCallID,
					Output: &output,
				})
			default:
				return nil, protocolError(
					req.Model.ModelID,
					fmt.Sprintf("unsupported content part type: %s", part.Type),
				)
			}
		}

		flush()
	}

	return items, nil
}

func seen(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}

	return false
}

func argumentsString(args json.RawMessage) string {
	if xjson.IsNull(args) {
		return "null"
	}

	return xjson.CanonicalString(args)
}

func serializeToolResultOutput(
	result *llm.ToolResult,
	req *llm.Request,
	warnings *[]llm.Warning,
) (string, *llm.ProviderError) {
	if !xjson.IsNull(result.RawProviderContent) {
		var raw string
		if err := json.Unmarshal(result.RawProviderContent, &raw); err == nil {
			return raw, nil
		}

		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultRawContentIgnored,
			Message: "tool_result raw_provider_content ignored for OpenAI because it is not a string",
		})
	}

	switch result.Content.Kind {
	case llm.ToolResultText:
		return result.Content.Text, nil
	case llm.ToolResultJSON:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultCoerced,
			Message: "tool_result JSON content coerced to string for OpenAI function_call_output",
		})

		return xjson.CanonicalString(result.Content.JSON), nil
	case llm.ToolResultParts:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultCoerced,
			Message: "tool_result parts content coerced to newline-delimited string for OpenAI function_call_output",
		})

		joined, err := transformer.JoinTextParts(result.Content.Parts, "tool_result parts", true)
		if err != nil {
			return "", protocolError(
				req.Model.ModelID,
				"tool_result parts content for OpenAI must contain only text parts",
			)
		}

		return joined, nil
	default:
		return "", protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported tool_result content kind: %s", result.Content.Kind),
		)
	}
}

func decodeOutputItem(item any, content *[]llm.ContentPart, warnings *[]llm.Warning) *llm.ProviderError {
	itemObj, ok := item.(map[string]any)
	if !ok {
		return protocolError("", "output item must be an object")
	}

	itemType := xmap.GetString(itemObj, "type")
	if itemType == "" {
		return protocolError("", "output item missing type")
	}

	switch itemType {
	case "message":
		return decodeOutputMessage(itemObj, content, warnings)
	case "function_call":
		return decodeOutputToolCall(itemObj, content, warnings)
	case "reasoning":
		return nil
	case "refusal":
		if text := extractRefusalText(itemObj); text != "" {
			*content = append(*content, llm.TextPart(text))
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnModelRefusal,
				Message: "OpenAI refusal content mapped to canonical text",
			})
		}

		return nil
	default:
		return protocolError("", fmt.Sprintf("unsupported output item type: %s", itemType))
	}
}

func decodeOutputMessage(itemObj map[string]any, content *[]llm.ContentPart, warnings *[]llm.Warning) *llm.ProviderError {
	for _, part := range xmap.GetSlice(itemObj, "content") {
		partObj, ok := part.(map[string]any)
		if !ok {
			return protocolError("", "output message content part must be an object")
		}

		partType := xmap.GetString(partObj, "type")
		if partType == "" {
			return protocolError("", "output message content part missing type")
		}

		switch partType {
		case "output_text":
			if text := xmap.GetString(partObj, "text"); text != "" {
				*content = append(*content, llm.TextPart(text))
			}
		case "reasoning":
		case "refusal":
			if text := extractRefusalText(partObj); text != "" {
				*content = append(*content, llm.TextPart(text))
				*warnings = append(*warnings, llm.Warning{
					Code:    WarnModelRefusal,
					Message: "OpenAI refusal content mapped to canonical text",
				})
			}
		default:
			return protocolError("", fmt.Sprintf("unsupported output message content part type: %s", partType))
		}
	}

	return nil
}

func decodeOutputToolCall(itemObj map[string]any, content *[]llm.ContentPart, warnings *[]llm.Warning) *llm.ProviderError {
	callID := xmap.GetString(itemObj, "call_id")
	if callID == "" {
		return protocolError("", "function_call output item missing call_id")
	}

	name := xmap.GetString(itemObj, "name")
	if name == "" {
		return protocolError("", "function_call output item missing name")
	}

	arguments, ok := itemObj["arguments"].(string)
	if !ok {
		return protocolError("", "function_call output item missing arguments")
	}

	argumentsJSON, ok := xjson.Repair(arguments)
	if !ok {
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolArgumentsInvalidJSON,
			Message: "OpenAI tool call arguments were not valid JSON; stored raw string",
		})

		argumentsJSON = xjson.MustMarshal(arguments)
	}

	*content = append(*content, llm.ToolCallPart(llm.ToolCall{
		ID:            callID,
		Name:          name,
		ArgumentsJSON: argumentsJSON,
	}))

	return nil
}

func extractRefusalText(obj map[string]any) string {
	if text := xmap.GetString(obj, "text"); text != "" {
		return text
	}

	return xmap.GetString(obj, "refusal")
}

func decodeStructuredOutput(httpResp *httpclient.Response, content []llm.ContentPart, model string) (json.RawMessage, *llm.Warning) {
	format := transformer.RequestedResponseFormat(httpResp)

	var textBlocks []string

	for _, part := range content {
		if part.Type == llm.ContentTypeText {
			textBlocks = append(textBlocks, part.Text)
		}
	}

	return transformer.DecodeStructuredOutput(format, textBlocks, model)
}

func decodeUsage(root map[string]any, warnings *[]llm.Warning) llm.Usage {
	usageObj, ok := root["usage"].(map[string]any)
	if !ok {
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUsageMissing,
			Message: "openai response missing usage details",
		})

		return llm.Usage{}
	}

	return llm.Usage{
		InputTokens:       xmap.GetInt64Ptr(usageObj, "input_tokens"),
		OutputTokens:      xmap.GetInt64Ptr(usageObj, "output_tokens"),
		ReasoningTokens:   xmap.GetInt64Ptr(xmap.GetMap(usageObj, "output_tokens_details"), "reasoning_tokens"),
		CachedInputTokens: xmap.GetInt64Ptr(xmap.GetMap(usageObj, "input_tokens_details"), "cached_tokens"),
		TotalTokens:       xmap.GetInt64Ptr(usageObj, "total_tokens"),
	}
}

func mapFinishReason(
	status string,
	incompleteReason string,
	content []llm.ContentPart,
	warnings *[]llm.Warning,
) (llm.FinishReason, *llm.ProviderError) {
	switch status {
	case "completed":
		if shouldFinishWithToolCalls(content) {
			return llm.FinishToolCalls, nil
		}

		return llm.FinishStop, nil
	case "incomplete":
		switch incompleteReason {
		case "max_output_tokens", "max_tokens":
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnIncompleteMaxOutputTokens,
				Message: "openai response incomplete because max_output_tokens was reached",
			})

			return llm.FinishLength, nil
		case "content_filter":
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnIncompleteContentFilter,
				Message: "openai response incomplete because of content filtering",
			})

			return llm.FinishContentFilter, nil
		case "":
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnIncompleteMissingReason,
				Message: "openai response incomplete with no reason",
			})

			return llm.FinishOther, nil
		default:
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnIncompleteUnknownReason,
				Message: fmt.Sprintf("openai response incomplete for reason: %s", incompleteReason),
			})

			return llm.FinishOther, nil
		}
	case "cancelled":
		return "", protocolError("", "openai response status is cancelled")
	case "failed":
		return "", protocolError("", "openai response status is failed")
	case "in_progress", "queued":
		return "", protocolError("", fmt.Sprintf("openai response status is non-terminal: %s", status))
	default:
		return "", protocolError("", fmt.Sprintf("unknown openai response status: %s", status))
	}
}

// shouldFinishWithToolCalls resolves the finish reason for completed
// responses that mix tool calls and text: trailing non-empty text after the
// last tool call means the turn ended with prose, not a call.
func shouldFinishWithToolCalls(content []llm.ContentPart) bool {
	sawToolCall := false
	sawTextAfterToolCall := false

	for _, part := range content {
		switch {
		case part.Type == llm.ContentTypeToolCall:
			sawToolCall = true
		case part.Type == llm.ContentTypeText && sawToolCall && strings.TrimSpace(part.Text) != "":
			sawTextAfterToolCall = true
		}
	}

	return sawToolCall && !sawTextAfterToolCall
}

func parseErrorValue(root map[string]any) *ErrorEnvelope {
	errorObj, ok := root["error"].(map[string]any)
	if !ok {
		return nil
	}

	message := envelopeField(errorObj, "message")
	if message == "" {
		message = "openai response reported an error"
	}

	return &ErrorEnvelope{
		Message: message,
		Code:    envelopeField(errorObj, "code"),
		Type:    envelopeField(errorObj, "type"),
		Param:   envelopeField(errorObj, "param"),
	}
}

func envelopeField(obj map[string]any, key string) string {
	switch value := obj[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case float64, bool, json.Number:
		return cast.ToString(value)
	default:
		return ""
	}
}

func formatErrorMessage(envelope *ErrorEnvelope) string {
	var context []string

	if envelope.Code != "" {
		context = append(context, fmt.Sprintf("code=%s", envelope.Code))
	}

	if envelope.Type != "" {
		context = append(context, fmt.Sprintf("type=%s", envelope.Type))
	}

	if envelope.Param != "" {
		context = append(context, fmt.Sprintf("param=%s", envelope.Param))
	}

	if len(context) == 0 {
		return fmt.Sprintf("openai error: %s", envelope.Message)
	}

	return fmt.Sprintf("openai error: %s [%s]", envelope.Message, strings.Join(context, ", "))
}
