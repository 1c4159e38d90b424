package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/looplj/modelrelay/internal/pkg/xjson"
	"github.com/looplj/modelrelay/llm"
)

// Options carries the aggregator-specific request controls OpenRouter layers
// on top of the chat-completions surface. The zero value disables all of
// them. String fields treat empty as unset; pointer fields distinguish unset
// from a zero value.
type Options struct {
	// FallbackModels are tried in order after the primary model. When set,
	// the wire body carries a models array instead of a single model.
	FallbackModels []string `json:"fallback_models,omitempty"`

	// ProviderPreferences is forwarded verbatim as the provider object.
	ProviderPreferences json.RawMessage `json:"provider_preferences,omitempty"`

	// Plugins are forwarded verbatim as the plugins array.
	Plugins []json.RawMessage `json:"plugins,omitempty"`

	ParallelToolCalls *bool    `json:"parallel_tool_calls,omitempty"`
	FrequencyPenalty  *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty"`

	LogitBias   json.RawMessage `json:"logit_bias,omitempty"`
	Logprobs    *bool           `json:"logprobs,omitempty"`
	TopLogprobs *int            `json:"top_logprobs,omitempty"`

	// Reasoning configures upstream reasoning effort, forwarded verbatim.
	Reasoning json.RawMessage `json:"reasoning,omitempty"`

	Seed      *int64 `json:"seed,omitempty"`
	User      string `json:"user,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Trace json.RawMessage `json:"trace,omitempty"`

	// Route selects the fallback strategy: "fallback" or "sort".
	Route string `json:"route,omitempty"`

	// MaxTokens is the legacy completion cap, sent alongside
	// max_completion_tokens when both are configured.
	MaxTokens *int64 `json:"max_tokens,omitempty"`

	Modalities []string `json:"modalities,omitempty"`

	// ImageConfig, Debug, and StreamOptions exist on the wire protocol but
	// are unsupported in non-streaming canonical mode; setting them is a
	// configuration error.
	ImageConfig   json.RawMessage `json:"image_config,omitempty"`
	Debug         json.RawMessage `json:"debug,omitempty"`
	StreamOptions json.RawMessage `json:"stream_options,omitempty"`

	// HTTPReferer and XTitle become the optional attribution headers.
	HTTPReferer string `json:"http_referer,omitempty"`
	XTitle      string `json:"x_title,omitempty"`
}

// Validate reports the first invalid option as a provider configuration
// error. Called by the adapter constructors before any request is built.
func (o *Options) Validate() *llm.ConfigError {
	for _, model := range o.FallbackModels {
		if strings.TrimSpace(model) == "" {
			return invalidConfig("fallback_models must not include empty model ids")
		}
	}

	if len(o.ProviderPreferences) > 0 && !xjson.IsObject(o.ProviderPreferences) {
		return invalidConfig("provider_preferences must be a JSON object")
	}

	for index, plugin := range o.Plugins {
		if !xjson.IsObject(plugin) {
			return invalidConfig(fmt.Sprintf("plugins[%d] must be a JSON object", index))
		}
	}

	if o.FrequencyPenalty != nil && (*o.FrequencyPenalty < -2.0 || *o.FrequencyPenalty > 2.0) {
		return invalidConfig(fmt.Sprintf("frequency_penalty must be in [-2.0, 2.0], got %v", *o.FrequencyPenalty))
	}

	if o.PresencePenalty != nil && (*o.PresencePenalty < -2.0 || *o.PresencePenalty > 2.0) {
		return invalidConfig(fmt.Sprintf("presence_penalty must be in [-2.0, 2.0], got %v", *o.PresencePenalty))
	}

	if o.TopLogprobs != nil && (*o.TopLogprobs < 0 || *o.TopLogprobs > 20) {
		return invalidConfig(fmt.Sprintf("top_logprobs must be in [0, 20], got %d", *o.TopLogprobs))
	}

	if err := validateLogitBias(o.LogitBias); err != "" {
		return invalidConfig(err)
	}

	if len(o.Reasoning) > 0 && !xjson.IsObject(o.Reasoning) {
		return invalidConfig("reasoning must be a JSON object")
	}

	if len(o.Trace) > 0 && !xjson.IsObject(o.Trace) {
		return invalidConfig("trace must be a JSON object")
	}

	if o.User != "" && strings.TrimSpace(o.User) == "" {
		return invalidConfig("user must be non-empty when provided")
	}

	if o.SessionID != "" {
		if strings.TrimSpace(o.SessionID) == "" {
			return invalidConfig("session_id must be non-empty when provided")
		}

		if len([]rune(o.SessionID)) > 128 {
			return invalidConfig("session_id must be 128 characters or fewer")
		}
	}

	if o.Route != "" && o.Route != "fallback" && o.Route != "sort" {
		return invalidConfig("route must be 'fallback' or 'sort' when provided")
	}

	if o.MaxTokens != nil && *o.MaxTokens < 1 {
		return invalidConfig("max_tokens must be at least 1")
	}

	for _, modality := range o.Modalities {
		if modality != "text" {
			return invalidConfig(fmt.Sprintf(
				"modalities only supports 'text' in non-streaming canonical mode; got '%s'", modality,
			))
		}
	}

	if len(o.ImageConfig) > 0 {
		return invalidConfig("image_config is unsupported in non-streaming canonical mode")
	}

	if len(o.Debug) > 0 {
		return invalidConfig("debug is unsupported in non-streaming canonical mode")
	}

	if len(o.StreamOptions) > 0 {
		return invalidConfig("stream_options is unsupported in non-streaming canonical mode")
	}

	if o.HTTPReferer != "" && strings.TrimSpace(o.HTTPReferer) == "" {
		return invalidConfig("http_referer must be non-empty when provided")
	}

	if o.XTitle != "" && strings.TrimSpace(o.XTitle) == "" {
		return invalidConfig("x_title must be non-empty when provided")
	}

	return nil
}

func validateLogitBias(bias json.RawMessage) string {
	if len(bias) == 0 {
		return ""
	}

	var entries map[string]any
	if err := json.Unmarshal(bias, &entries); err != nil {
		return "logit_bias must be a JSON object"
	}

	for token, value := range entries {
		if _, ok := value.(float64); !ok {
			return fmt.Sprintf("logit_bias value for token '%s' must be numeric", token)
		}
	}

	return ""
}

func invalidConfig(reason string) *llm.ConfigError {
	return llm.NewInvalidProviderConfigError(llm.ProviderOpenRouter, reason)
}
