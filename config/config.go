// Package config loads runtime configuration from a YAML file and the
// MODELRELAY_* environment, and assembles a runtime from it.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/looplj/modelrelay/catalog"
	"github.com/looplj/modelrelay/httpclient"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/pricing"
	"github.com/looplj/modelrelay/runtime"
	"github.com/looplj/modelrelay/transformer/anthropic"
	"github.com/looplj/modelrelay/transformer/openai"
	"github.com/looplj/modelrelay/transformer/openrouter"
)

const envPrefix = "MODELRELAY_"

// Config is the full runtime configuration. Zero values fall back to
// defaults during Load, so a missing file yields a working setup that
// resolves credentials from provider environment variables.
type Config struct {
	DefaultProvider string          `koanf:"default_provider"`
	TimeoutMS       int64           `koanf:"timeout_ms"`
	Retry           RetryConfig     `koanf:"retry"`
	Providers       ProvidersConfig `koanf:"providers"`
	Pricing         []PricingRule   `koanf:"pricing"`
	Catalog         []CatalogModel  `koanf:"catalog"`
	RefreshCron     string          `koanf:"refresh_cron"`
}

type RetryConfig struct {
	MaxAttempts          int   `koanf:"max_attempts"`
	InitialBackoffMS     int64 `koanf:"initial_backoff_ms"`
	MaxBackoffMS         int64 `koanf:"max_backoff_ms"`
	RetryableStatusCodes []int `koanf:"retryable_status_codes"`
}

type ProvidersConfig struct {
	OpenAI     ProviderSettings   `koanf:"openai"`
	Anthropic  ProviderSettings   `koanf:"anthropic"`
	OpenRouter OpenRouterSettings `koanf:"openrouter"`
}

type ProviderSettings struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type OpenRouterSettings struct {
	APIKey         string   `koanf:"api_key"`
	BaseURL        string   `koanf:"base_url"`
	HTTPReferer    string   `koanf:"http_referer"`
	XTitle         string   `koanf:"x_title"`
	FallbackModels []string `koanf:"fallback_models"`
}

// PricingRule mirrors pricing.Rule with koanf tags.
type PricingRule struct {
	Provider              string   `koanf:"provider"`
	ModelPattern          string   `koanf:"model_pattern"`
	InputCostPerToken     float64  `koanf:"input_cost_per_token"`
	OutputCostPerToken    float64  `koanf:"output_cost_per_token"`
	ReasoningCostPerToken *float64 `koanf:"reasoning_cost_per_token"`
}

// CatalogModel is a static catalog addition. Configured entries take
// precedence over the builtin catalog and over remote discovery.
type CatalogModel struct {
	Provider                 string `koanf:"provider"`
	ModelID                  string `koanf:"model_id"`
	DisplayName              string `koanf:"display_name"`
	ContextWindow            *int64 `koanf:"context_window"`
	MaxOutputTokens          *int64 `koanf:"max_output_tokens"`
	SupportsTools            bool   `koanf:"supports_tools"`
	SupportsStructuredOutput bool   `koanf:"supports_structured_output"`
}

// Load reads the YAML file at path (skipped when empty or absent), then
// overlays MODELRELAY_* environment variables. Nested keys use a double
// underscore: MODELRELAY_PROVIDERS__OPENAI__API_KEY maps to
// providers.openai.api_key.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cerr := cfg.Validate(); cerr != nil {
		return nil, cerr
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 30_000
	}

	defaults := httpclient.DefaultRetryPolicy()

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.MaxAttempts
	}

	if c.Retry.InitialBackoffMS == 0 {
		c.Retry.InitialBackoffMS = defaults.InitialBackoff.Milliseconds()
	}

	if c.Retry.MaxBackoffMS == 0 {
		c.Retry.MaxBackoffMS = defaults.MaxBackoff.Milliseconds()
	}

	if len(c.Retry.RetryableStatusCodes) == 0 {
		c.Retry.RetryableStatusCodes = defaults.RetryableStatusCodes
	}
}

// Validate checks everything that would otherwise surface as a late failure
// inside the runtime.
func (c *Config) Validate() *llm.ConfigError {
	if c.TimeoutMS <= 0 {
		return llm.NewInvalidTimeoutError(c.TimeoutMS)
	}

	if err := c.retryPolicy().Validate(); err != nil {
		return llm.NewInvalidRetryPolicyError(err.Error())
	}

	if c.DefaultProvider != "" {
		if _, ok := ParseProvider(c.DefaultProvider); !ok {
			return llm.NewInvalidProviderConfigError(
				llm.ProviderID(c.DefaultProvider), "unknown default provider",
			)
		}
	}

	for _, rule := range c.Pricing {
		if _, ok := ParseProvider(rule.Provider); !ok {
			return llm.NewInvalidPricingConfigError("unknown provider: " + rule.Provider)
		}

		if strings.TrimSpace(rule.ModelPattern) == "" {
			return llm.NewInvalidPricingConfigError("model_pattern must be non-empty")
		}
	}

	for _, model := range c.Catalog {
		provider, ok := ParseProvider(model.Provider)
		if !ok {
			return llm.NewInvalidProviderConfigError(
				llm.ProviderID(model.Provider), "unknown catalog provider",
			)
		}

		if strings.TrimSpace(model.ModelID) == "" {
			return llm.NewInvalidProviderConfigError(provider, "catalog model_id must be non-empty")
		}
	}

	return nil
}

func (c *Config) retryPolicy() httpclient.RetryPolicy {
	return httpclient.RetryPolicy{
		MaxAttempts:          c.Retry.MaxAttempts,
		InitialBackoff:       time.Duration(c.Retry.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:           time.Duration(c.Retry.MaxBackoffMS) * time.Millisecond,
		RetryableStatusCodes: c.Retry.RetryableStatusCodes,
	}
}

// BuildRuntime assembles a runtime with all three provider adapters over one
// shared HTTP client. Adapters with no configured key still register;
// credentials then resolve from context metadata or the environment per call.
func (c *Config) BuildRuntime() (*runtime.Runtime, error) {
	client, err := httpclient.New(time.Duration(c.TimeoutMS)*time.Millisecond, c.retryPolicy())
	if err != nil {
		return nil, err
	}

	openrouterAdapter, err := openrouter.NewAdapterWithClient(
		c.Providers.OpenRouter.APIKey,
		c.Providers.OpenRouter.BaseURL,
		openrouter.Options{
			HTTPReferer:    c.Providers.OpenRouter.HTTPReferer,
			XTitle:         c.Providers.OpenRouter.XTitle,
			FallbackModels: c.Providers.OpenRouter.FallbackModels,
		},
		client,
	)
	if err != nil {
		return nil, err
	}

	builder := runtime.NewBuilder().
		WithAdapter(openai.NewAdapterWithClient(c.Providers.OpenAI.APIKey, c.Providers.OpenAI.BaseURL, client)).
		WithAdapter(anthropic.NewAdapterWithClient(c.Providers.Anthropic.APIKey, c.Providers.Anthropic.BaseURL, client)).
		WithAdapter(openrouterAdapter).
		WithModelCatalog(c.staticCatalog())

	if c.DefaultProvider != "" {
		provider, _ := ParseProvider(c.DefaultProvider)
		builder = builder.WithDefaultProvider(provider)
	}

	if len(c.Pricing) > 0 {
		builder = builder.WithPricingTable(pricing.NewTable(c.pricingRules()))
	}

	return builder.Build(), nil
}

func (c *Config) pricingRules() []pricing.Rule {
	rules := make([]pricing.Rule, 0, len(c.Pricing))

	for _, rule := range c.Pricing {
		provider, _ := ParseProvider(rule.Provider)

		rules = append(rules, pricing.Rule{
			Provider:              provider,
			ModelPattern:          rule.ModelPattern,
			InputCostPerToken:     rule.InputCostPerToken,
			OutputCostPerToken:    rule.OutputCostPerToken,
			ReasoningCostPerToken: rule.ReasoningCostPerToken,
		})
	}

	return rules
}

// staticCatalog layers configured models over the builtin catalog; the
// configured entry wins on conflict.
func (c *Config) staticCatalog() llm.Catalog {
	if len(c.Catalog) == 0 {
		return catalog.Builtin()
	}

	models := make([]llm.ModelInfo, 0, len(c.Catalog))

	for _, entry := range c.Catalog {
		provider, _ := ParseProvider(entry.Provider)

		info := llm.ModelInfo{
			Provider:                 provider,
			ModelID:                  entry.ModelID,
			ContextWindow:            entry.ContextWindow,
			MaxOutputTokens:          entry.MaxOutputTokens,
			SupportsTools:            entry.SupportsTools,
			SupportsStructuredOutput: entry.SupportsStructuredOutput,
		}
		if entry.DisplayName != "" {
			name := entry.DisplayName
			info.DisplayName = &name
		}

		models = append(models, info)
	}

	return catalog.Merge(llm.Catalog{Models: models}, catalog.Builtin())
}

func ParseProvider(raw string) (llm.ProviderID, bool) {
	switch llm.ProviderID(strings.ToLower(strings.TrimSpace(raw))) {
	case llm.ProviderOpenAI:
		return llm.ProviderOpenAI, true
	case llm.ProviderAnthropic:
		return llm.ProviderAnthropic, true
	case llm.ProviderOpenRouter:
		return llm.ProviderOpenRouter, true
	case llm.ProviderCustom:
		return llm.ProviderCustom, true
	default:
		return "", false
	}
}
