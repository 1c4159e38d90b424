// Package openrouter implements the outbound transformer and adapter for the
// OpenRouter chat-completions aggregator.
package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/looplj/modelrelay/httpclient"
	"github.com/looplj/modelrelay/internal/pkg/xjson"
	"github.com/looplj/modelrelay/internal/pkg/xmap"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/transformer"
)

const (
	DefaultBaseURL = "https://openrouter.ai"

	chatCompletionsPath = "/api/v1/chat/completions"
	modelsPath          = "/api/v1/models"
)

// Warning codes emitted by the OpenRouter transformer.
const (
	WarnBothTemperatureAndTopPSet   = "both_temperature_and_top_p_set"
	WarnToolArgumentsInvalidJSON    = "tool_arguments_invalid_json"
	WarnUsageMissing                = "usage_missing"
	WarnUsagePartial                = "usage_partial"
	WarnUnknownFinishReason         = "unknown_finish_reason"
	WarnEmptyOutput                 = "empty_output"
	WarnToolResultCoerced           = "tool_result_coerced"
	WarnToolResultRawContentIgnored = "tool_result_raw_provider_content_ignored"
)

// Config holds the configuration for the OpenRouter outbound transformer.
type Config struct {
	// BaseURL overrides the API origin; empty means the public endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is attached as a bearer credential when set. When empty the
	// adapter resolves a key from context metadata or the environment.
	APIKey string `json:"api_key,omitempty"`

	// Options carries the aggregator request controls. Callers are expected
	// to validate them first; the adapter constructors do.
	Options Options `json:"options,omitempty"`
}

// OutboundTransformer implements transformer.Outbound for the
// chat-completions API.
type OutboundTransformer struct {
	config *Config
}

var _ transformer.Outbound = (*OutboundTransformer)(nil)

// NewOutboundTransformer creates an OpenRouter OutboundTransformer with
// default options.
func NewOutboundTransformer(baseURL, apiKey string) *OutboundTransformer {
	return NewOutboundTransformerWithConfig(&Config{BaseURL: baseURL, APIKey: apiKey})
}

// NewOutboundTransformerWithConfig creates an OpenRouter OutboundTransformer
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

// TransformRequest encodes the canonical request as a chat-completions call.
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
			Message: "OpenRouter recommends setting temperature or top_p, but not both",
		})
	}

	tools, err := convertTools(req)
	if err != nil {
		return nil, err
	}

	toolChoice, err := convertToolChoice(req, len(tools) > 0)
	if err != nil {
		return nil, err
	}

	messages, err := convertMessages(req, len(tools) > 0, &warnings)
	if err != nil {
		return nil, err
	}

	responseFormat, err := convertResponseFormat(req)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return nil, protocolError(req.Model.ModelID, "empty messages")
	}

	opts := t.config.Options

	orReq := &Request{
		Model:               req.Model.ModelID,
		Messages:            messages,
		Stream:              false,
		Tools:               tools,
		ToolChoice:          toolChoice,
		ResponseFormat:      responseFormat,
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		FrequencyPenalty:    opts.FrequencyPenalty,
		PresencePenalty:     opts.PresencePenalty,
		LogitBias:           opts.LogitBias,
		Logprobs:            opts.Logprobs,
		TopLogprobs:         opts.TopLogprobs,
		Reasoning:           opts.Reasoning,
		MaxCompletionTokens: req.MaxOutputTokens,
		MaxTokens:           opts.MaxTokens,
		Seed:                opts.Seed,
		Stop:                req.Stop,
		Metadata:            req.Metadata,
		ParallelToolCalls:   opts.ParallelToolCalls,
		Provider:            opts.ProviderPreferences,
		User:                opts.User,
		SessionID:           opts.SessionID,
		Trace:               opts.Trace,
		Route:               opts.Route,
		Modalities:          opts.Modalities,
		Plugins:             opts.Plugins,
	}

	// Fallback routing replaces the single model with a models array led by
	// the primary id.
	if len(opts.FallbackModels) > 0 {
		orReq.Model = ""
		orReq.Models = append([]string{req.Model.ModelID}, opts.FallbackModels...)
	}

	body, merr := json.Marshal(orReq)
	if merr != nil {
		return nil, llm.NewSerializationError(llm.ProviderOpenRouter, req.Model.ModelID, merr.Error())
	}

	headers := make(http.Header)
	headers.Set("Accept", "application/json")

	httpReq := &httpclient.Request{
		Method:      http.MethodPost,
		URL:         t.config.BaseURL + chatCompletionsPath,
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

// TransformResponse decodes a chat-completions payload into the canonical
// form.
func (t *OutboundTransformer) TransformResponse(ctx context.Context, httpResp *httpclient.Response) (*llm.Response, error) {
	if httpResp == nil {
		return nil, fmt.Errorf("%w: http response is nil", transformer.ErrInvalidResponse)
	}

	var root map[string]any
	if err := json.Unmarshal(httpResp.Body, &root); err != nil {
		return nil, protocolError("", "openrouter response payload must be a JSON object")
	}

	if envelope := parseErrorValue(root); envelope != nil {
		return nil, protocolError("", formatErrorMessage(envelope))
	}

	model := xmap.GetString(root, "model")
	if model == "" {
		model = "<unknown-model>"
	}

	choices, ok := root["choices"].([]any)
	if !ok {
		return nil, protocolError(model, "openrouter response missing choices array")
	}

	if len(choices) == 0 {
		return nil, protocolError(model, "openrouter response choices array must not be empty")
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return nil, protocolError(model, "openrouter response choices[0] must be a JSON object")
	}

	if choiceErr, present := choice["error"]; present {
		return nil, protocolError(model, fmt.Sprintf(
			"openrouter response choice contained error: %s", xjson.MustMarshalString(choiceErr),
		))
	}

	finishRaw, finishPresent := choice["finish_reason"].(string)
	if finishPresent && finishRaw == "error" {
		return nil, protocolError(model, "openrouter response finish_reason was error")
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return nil, protocolError(model, "openrouter response missing choice message")
	}

	if role, present := message["role"].(string); present && role != "assistant" {
		return nil, protocolError(model, fmt.Sprintf(
			"openrouter response message role must be assistant, got %s", role,
		))
	}

	warnings := transformer.RequestWarnings(httpResp)

	var (
		content    []llm.ContentPart
		textBlocks []string
	)

	if err := decodeMessageContent(message["content"], &content, &textBlocks); err != nil {
		return nil, err
	}

	decodeReasoning(message["reasoning"], &content)

	if err := decodeRefusal(message["refusal"], &content, &textBlocks); err != nil {
		return nil, err
	}

	if err := decodeToolCalls(message["tool_calls"], model, &content, &warnings); err != nil {
		return nil, err
	}

	if len(content) == 0 {
		warnings = append(warnings, llm.Warning{
			Code:    WarnEmptyOutput,
			Message: "openrouter response contained no decodable output content",
		})
	}

	finishReason := mapFinishReason(finishRaw, finishPresent, &warnings)

	usage, perr := decodeUsage(root, model, &warnings)
	if perr != nil {
		return nil, perr
	}

	structured, warning := transformer.DecodeStructuredOutput(
		transformer.RequestedResponseFormat(httpResp),
		textBlocks,
		model,
	)
	if warning != nil {
		warnings = append(warnings, *warning)
	}

	return &llm.Response{
		Output: llm.AssistantOutput{
			Content:          content,
			StructuredOutput: structured,
		},
		Usage:        usage,
		Provider:     llm.ProviderOpenRouter,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

// TransformError maps a transport-level failure onto the provider error
// taxonomy, re-rendering the OpenRouter error envelope when the body carries
// one. Authentication statuses collapse into credentials rejection.
func (t *OutboundTransformer) TransformError(ctx context.Context, herr *httpclient.Error) *llm.ProviderError {
	if herr == nil {
		return llm.NewTransportProviderError(llm.ProviderOpenRouter, "", "unknown transport failure")
	}

	if herr.IsTransportFailure() {
		return llm.NewTransportProviderError(llm.ProviderOpenRouter, herr.RequestID, herr.Message)
	}

	message := herr.Message
	if envelope := parseErrorBody(herr.Body); envelope != nil {
		message = formatErrorMessage(envelope)
	}

	if herr.StatusCode == http.StatusUnauthorized || herr.StatusCode == http.StatusForbidden {
		return llm.NewCredentialsRejectedError(llm.ProviderOpenRouter, herr.RequestID, message)
	}

	return llm.NewStatusError(llm.ProviderOpenRouter, "", herr.StatusCode, herr.RequestID, message)
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

	envelope := &ErrorEnvelope{Message: message}

	if code := xmap.GetInt64Ptr(errorObj, "code"); code != nil {
		value := int(*code)
		envelope.Code = &value
	}

	return envelope
}

func formatErrorMessage(envelope *ErrorEnvelope) string {
	if envelope.Code != nil {
		return fmt.Sprintf("openrouter error: %s [code=%d]", envelope.Message, *envelope.Code)
	}

	return fmt.Sprintf("openrouter error: %s", envelope.Message)
}

func protocolError(model, message string) *llm.ProviderError {
	return llm.NewProtocolError(llm.ProviderOpenRouter, model, message)
}

func validateRequest(req *llm.Request) *llm.ProviderError {
	if req.Model.ProviderHint != nil && *req.Model.ProviderHint != llm.ProviderOpenRouter {
		return protocolError(
			req.Model.ModelID,
			fmt.Sprintf("provider_hint must be openrouter, got %s", *req.Model.ProviderHint),
		)
	}

	if strings.TrimSpace(req.Model.ModelID) == "" {
		return protocolError("", "missing model_id")
	}

	if len(req.Stop) > 4 {
		return protocolError(req.Model.ModelID, "stop supports at most 4 entries")
	}

	if err := transformer.ValidateMetadata(req.Metadata, 16, 64, 512); err != nil {
		return protocolError(req.Model.ModelID, err.Error())
	}

	if err := transformer.ValidateSamplingControls(req, 0.0, 2.0); err != nil {
		return protocolError(req.Model.ModelID, err.Error())
	}

	return nil
}

func convertTools(req *llm.Request) ([]Tool, *llm.ProviderError) {
	var tools []Tool

	for _, tool := range req.Tools {
		if !transformer.IsValidToolName(tool.Name) {
			return nil, protocolError(
				req.Model.ModelID,
				fmt.Sprintf("tool '%s' name must match ^[A-Za-z0-9_-]{1,64}$", tool.Name),
			)
		}

		if !xjson.IsObject(tool.ParametersSchema) {
			return nil, protocolError(
				req.Model.ModelID,
				fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name),
			)
		}

		tools = append(tools, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.ParametersSchema,
			},
		})
	}

	return tools, nil
}

func convertToolChoice(req *llm.Request, hasTools bool) (json.RawMessage, *llm.ProviderError) {
	mode := req.ToolChoice.NormalizedMode()

	if !hasTools {
		switch mode {
		case llm.ToolChoiceRequired:
			return nil, protocolError(req.Model.ModelID, "tool_choice required requires at least one tool definition")
		case llm.ToolChoiceSpecific:
			return nil, protocolError(req.Model.ModelID, "tool_choice specific requires at least one tool definition")
		default:
			return nil, nil
		}
	}

	switch mode {
	case llm.ToolChoiceNone:
		return xjson.MustMarshal("none"), nil
	case llm.ToolChoiceAuto:
		return xjson.MustMarshal("auto"), nil
	case llm.ToolChoiceRequired:
		return xjson.MustMarshal("required"), nil
	case llm.ToolChoiceSpecific:
		name := req.ToolChoice.Name
		if strings.TrimSpace(name) == "" {
			return nil, protocolError(req.Model.ModelID, "tool_choice specific requires non-empty name")
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

		return xjson.MustMarshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": name},
		}), nil
	default:
		return nil, protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported tool choice: %s", req.ToolChoice.Mode),
		)
	}
}

func convertResponseFormat(req *llm.Request) (*ResponseFormat, *llm.ProviderError) {
	format := req.ResponseFormat

	switch format.NormalizedType() {
	case llm.ResponseFormatText:
		return nil, nil
	case llm.ResponseFormatJSONObject:
		return &ResponseFormat{Type: "json_object"}, nil
	case llm.ResponseFormatJSONSchema:
		if strings.TrimSpace(format.Name) == "" {
			return nil, protocolError(req.Model.ModelID, "json_schema response format requires non-empty name")
		}

		if len([]rune(format.Name)) > 64 {
			return nil, protocolError(req.Model.ModelID, "json_schema name exceeds 64 characters")
		}

		if !xjson.IsObject(format.Schema) {
			return nil, protocolError(req.Model.ModelID, "json_schema schema must be a JSON object")
		}

		return &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchemaFormat{
				Name:   format.Name,
				Schema: format.Schema,
				Strict: true,
			},
		}, nil
	default:
		return nil, protocolError(
			req.Model.ModelID,
			fmt.Sprintf("unsupported response format: %s", format.Type),
		)
	}
}

func convertMessages(req *llm.Request, hasTools bool, warnings *[]llm.Warning) ([]WireMessage, *llm.ProviderError) {
	var messages []WireMessage

	sawToolRole := false

	for _, message := range req.Messages {
		wire, err := convertMessage(message, req.Model.ModelID, warnings)
		if err != nil {
			return nil, err
		}

		messages = append(messages, wire)

		if message.Role == llm.RoleTool {
			sawToolRole = true
		}
	}

	if sawToolRole && !hasTools {
		return nil, protocolError(req.Model.ModelID, "tool messages require at least one tool definition")
	}

	return messages, nil
}

func convertMessage(message llm.Message, modelID string, warnings *[]llm.Warning) (WireMessage, *llm.ProviderError) {
	switch message.Role {
	case llm.RoleSystem, llm.RoleUser:
		return convertTextMessage(string(message.Role), message.Content, modelID)
	case llm.RoleAssistant:
		return convertAssistantMessage(message.Content, modelID)
	case llm.RoleTool:
		return convertToolMessage(message.Content, modelID, warnings)
	default:
		return WireMessage{}, protocolError(modelID, fmt.Sprintf("unsupported message role: %s", message.Role))
	}
}

func convertTextMessage(role string, content []llm.ContentPart, modelID string) (WireMessage, *llm.ProviderError) {
	text, err := transformer.JoinTextParts(content, role, true)
	if err != nil {
		return WireMessage{}, protocolError(modelID, err.Error())
	}

	return WireMessage{Role: role, Content: &text}, nil
}

func convertAssistantMessage(content []llm.ContentPart, modelID string) (WireMessage, *llm.ProviderError) {
	var (
		textParts []string
		toolCalls []WireToolCall
	)

	for _, part := range content {
		switch part.Type {
		case llm.ContentTypeText:
			textParts = append(textParts, part.Text)
		case llm.ContentTypeThinking:
			// The aggregator has no portable representation for reasoning
			// content, so replaying it is rejected outright.
			return WireMessage{}, protocolError(modelID, "thinking content cannot be encoded for OpenRouter")
		case llm.ContentTypeToolCall:
			call := part.ToolCall
			if strings.TrimSpace(call.ID) == "" {
				return WireMessage{}, protocolError(modelID, "assistant tool_call id must be non-empty")
			}

			if strings.TrimSpace(call.Name) == "" {
				return WireMessage{}, protocolError(modelID, "assistant tool_call name must be non-empty")
			}

			if !transformer.IsValidToolName(call.Name) {
				return WireMessage{}, protocolError(
					modelID,
					fmt.Sprintf("assistant tool_call '%s' name must match ^[A-Za-z0-9_-]{1,64}$", call.Name),
				)
			}

			toolCalls = append(toolCalls, WireToolCall{
				ID:   call.ID,
				Type: "function",
				Function: WireFunctionCall{
					Name:      call.Name,
					Arguments: argumentsString(call.ArgumentsJSON),
				},
			})
		case llm.ContentTypeToolResult:
			return WireMessage{}, protocolError(modelID, "tool_result content is only valid for tool role messages")
		default:
			return WireMessage{}, protocolError(
				modelID,
				fmt.Sprintf("unsupported content part type: %s", part.Type),
			)
		}
	}

	if len(textParts) == 0 && len(toolCalls) == 0 {
		return WireMessage{}, protocolError(modelID, "assistant messages must contain text or tool_calls")
	}

	wire := WireMessage{Role: "assistant", ToolCalls: toolCalls}

	if len(textParts) > 0 {
		text := strings.Join(textParts, "\n")
		wire.Content = &text
	}

	return wire, nil
}

func argumentsString(args json.RawMessage) string {
	if xjson.IsNull(args) {
		return "null"
	}

	return xjson.CanonicalString(args)
}

func convertToolMessage(content []llm.ContentPart, modelID string, warnings *[]llm.Warning) (WireMessage, *llm.ProviderError) {
	if len(content) != 1 {
		return WireMessage{}, protocolError(modelID, "tool role messages must contain exactly one tool_result part")
	}

	if content[0].Type != llm.ContentTypeToolResult {
		return WireMessage{}, protocolError(modelID, "tool role messages must contain tool_result content")
	}

	result := content[0].ToolResult
	if strings.TrimSpace(result.ToolCallID) == "" {
		return WireMessage{}, protocolError(modelID, "tool_result tool_call_id must be non-empty")
	}

	output, err := coerceToolResultOutput(result, modelID, warnings)
	if err != nil {
		return WireMessage{}, err
	}

	return WireMessage{
		Role:       "tool",
		ToolCallID: result.ToolCallID,
		Content:    &output,
	}, nil
}

func coerceToolResultOutput(
	result *llm.ToolResult,
	modelID string,
	warnings *[]llm.Warning,
) (string, *llm.ProviderError) {
	if !xjson.IsNull(result.RawProviderContent) {
		var raw string
		if err := json.Unmarshal(result.RawProviderContent, &raw); err == nil {
			return raw, nil
		}

		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultRawContentIgnored,
			Message: "tool_result raw_provider_content ignored for OpenRouter because it is not a string",
		})
	}

	switch result.Content.Kind {
	case llm.ToolResultText:
		return result.Content.Text, nil
	case llm.ToolResultJSON:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultCoerced,
			Message: "tool_result JSON content coerced to string for OpenRouter tool message",
		})

		return xjson.CanonicalString(result.Content.JSON), nil
	case llm.ToolResultParts:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnToolResultCoerced,
			Message: "tool_result parts content coerced to newline-delimited string for OpenRouter tool message",
		})

		joined, err := transformer.JoinTextParts(result.Content.Parts, "tool_result", false)
		if err != nil {
			return "", protocolError(modelID, err.Error())
		}

		return joined, nil
	default:
		return "", protocolError(
			modelID,
			fmt.Sprintf("unsupported tool_result content kind: %s", result.Content.Kind),
		)
	}
}

func decodeMessageContent(value any, content *[]llm.ContentPart, textBlocks *[]string) *llm.ProviderError {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		if typed != "" {
			*textBlocks = append(*textBlocks, typed)
			*content = append(*content, llm.TextPart(typed))
		}

		return nil
	case []any:
		for _, item := range typed {
			itemObj, ok := item.(map[string]any)
			if !ok {
				return protocolError("", "assistant content array item must be an object")
			}

			itemType := xmap.GetString(itemObj, "type")
			if itemType == "" {
				itemType = "unknown"
			}

			if itemType != "text" {
				return protocolError("", fmt.Sprintf(
					"assistant content item type '%s' is unsupported in canonical text mode", itemType,
				))
			}

			text, ok := itemObj["text"].(string)
			if !ok {
				return protocolError("", "text content item missing text")
			}

			*textBlocks = append(*textBlocks, text)
			*content = append(*content, llm.TextPart(text))
		}

		return nil
	default:
		return protocolError("", "assistant content must be string, array, or null")
	}
}

// decodeReasoning surfaces upstream reasoning text as canonical thinking
// content. It never joins the structured-output text blocks.
func decodeReasoning(value any, content *[]llm.ContentPart) {
	text, ok := value.(string)
	if !ok || text == "" {
		return
	}

	provider := llm.ProviderOpenRouter
	*content = append(*content, llm.ThinkingPart(text, &provider))
}

func decodeRefusal(value any, content *[]llm.ContentPart, textBlocks *[]string) *llm.ProviderError {
	if value == nil {
		return nil
	}

	refusal, ok := value.(string)
	if !ok {
		return protocolError("", "assistant refusal must be a string or null")
	}

	if refusal == "" {
		return nil
	}

	*textBlocks = append(*textBlocks, refusal)
	*content = append(*content, llm.TextPart(refusal))

	return nil
}

func decodeToolCalls(value any, model string, content *[]llm.ContentPart, warnings *[]llm.Warning) *llm.ProviderError {
	if value == nil {
		return nil
	}

	calls, ok := value.([]any)
	if !ok {
		return protocolError(model, "tool_calls must be an array")
	}

	for _, call := range calls {
		callObj, ok := call.(map[string]any)
		if !ok {
			return protocolError(model, "tool_call entry must be an object")
		}

		id, ok := callObj["id"].(string)
		if !ok {
			return protocolError(model, "tool_call missing id")
		}

		if strings.TrimSpace(id) == "" {
			return protocolError(model, "tool_call id must be non-empty")
		}

		callType, ok := callObj["type"].(string)
		if !ok {
			return protocolError(model, "tool_call missing type")
		}

		if callType != "function" {
			return protocolError(model, fmt.Sprintf("tool_call type must be function, got %s", callType))
		}

		function, ok := callObj["function"].(map[string]any)
		if !ok {
			return protocolError(model, "tool_call missing function object")
		}

		name, ok := function["name"].(string)
		if !ok {
			return protocolError(model, "tool_call function missing name")
		}

		arguments, ok := function["arguments"].(string)
		if !ok {
			return protocolError(model, "tool_call function missing arguments")
		}

		argumentsJSON, ok := xjson.Repair(arguments)
		if !ok {
			*warnings = append(*warnings, llm.Warning{
				Code:    WarnToolArgumentsInvalidJSON,
				Message: fmt.Sprintf("openrouter tool_call arguments were not valid JSON for call_id=%s", id),
			})

			argumentsJSON = xjson.MustMarshal(arguments)
		}

		*content = append(*content, llm.ToolCallPart(llm.ToolCall{
			ID:            id,
			Name:          name,
			ArgumentsJSON: argumentsJSON,
		}))
	}

	return nil
}

func mapFinishReason(raw string, present bool, warnings *[]llm.Warning) llm.FinishReason {
	if !present {
		return llm.FinishOther
	}

	switch raw {
	case "stop":
		return llm.FinishStop
	case "length":
		return llm.FinishLength
	case "tool_calls":
		return llm.FinishToolCalls
	case "content_filter":
		return llm.FinishContentFilter
	default:
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUnknownFinishReason,
			Message: fmt.Sprintf("openrouter finish_reason '%s' mapped to Other", raw),
		})

		return llm.FinishOther
	}
}

func decodeUsage(root map[string]any, model string, warnings *[]llm.Warning) (llm.Usage, *llm.ProviderError) {
	usageValue, present := root["usage"]
	if !present {
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUsageMissing,
			Message: "openrouter response usage was missing",
		})

		return llm.Usage{}, nil
	}

	if usageValue == nil {
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUsageMissing,
			Message: "openrouter response usage was null",
		})

		return llm.Usage{}, nil
	}

	usageObj, ok := usageValue.(map[string]any)
	if !ok {
		return llm.Usage{}, protocolError(model, "usage must be an object or null")
	}

	usage := llm.Usage{
		InputTokens:       xmap.GetInt64Ptr(usageObj, "prompt_tokens"),
		OutputTokens:      xmap.GetInt64Ptr(usageObj, "completion_tokens"),
		ReasoningTokens:   xmap.GetInt64Ptr(xmap.GetMap(usageObj, "completion_tokens_details"), "reasoning_tokens"),
		CachedInputTokens: xmap.GetInt64Ptr(xmap.GetMap(usageObj, "prompt_tokens_details"), "cached_tokens"),
		TotalTokens:       xmap.GetInt64Ptr(usageObj, "total_tokens"),
	}

	if usage.InputTokens == nil || usage.OutputTokens == nil || usage.TotalTokens == nil {
		*warnings = append(*warnings, llm.Warning{
			Code:    WarnUsagePartial,
			Message: "openrouter response usage was partial",
		})
	}

	return usage, nil
}
