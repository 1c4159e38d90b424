package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// formatContext renders the diagnostic suffix shared by provider and runtime
// errors: " [provider=..., model=..., request_id=..., status_code=...]" with
// absent fields omitted, or "" when nothing is known.
func formatContext(provider *ProviderID, model, requestID string, statusCode int) string {
	var parts []string

	if provider != nil {
		parts = append(parts, fmt.Sprintf("provider=%s", *provider))
	}

	if model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", model))
	}

	if requestID != "" {
		parts = append(parts, fmt.Sprintf("request_id=%s", requestID))
	}

	if statusCode != 0 {
		parts = append(parts, fmt.Sprintf("status_code=%d", statusCode))
	}

	if len(parts) == 0 {
		return ""
	}

	return " [" + strings.Join(parts, ", ") + "]"
}

type ConfigErrorKind string

const (
	ConfigMissingDefaultProvider ConfigErrorKind = "missing_default_provider"
	ConfigInvalidProviderConfig  ConfigErrorKind = "invalid_provider_config"
	ConfigInvalidTimeout         ConfigErrorKind = "invalid_timeout"
	ConfigInvalidRetryPolicy     ConfigErrorKind = "invalid_retry_policy"
	ConfigInvalidPricingConfig   ConfigErrorKind = "invalid_pricing_config"
)

// ConfigError reports invalid runtime or provider configuration.
type ConfigError struct {
	Kind      ConfigErrorKind
	Provider  ProviderID
	TimeoutMS int64
	Reason    string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ConfigMissingDefaultProvider:
		return "missing default provider configuration"
	case ConfigInvalidProviderConfig:
		return fmt.Sprintf("invalid provider config for %s: %s", e.Provider, e.Reason)
	case ConfigInvalidTimeout:
		return fmt.Sprintf("invalid timeout: %d ms", e.TimeoutMS)
	case ConfigInvalidRetryPolicy:
		return fmt.Sprintf("invalid retry policy: %s", e.Reason)
	case ConfigInvalidPricingConfig:
		return fmt.Sprintf("invalid pricing config: %s", e.Reason)
	default:
		return fmt.Sprintf("config error: %s", e.Reason)
	}
}

func NewMissingDefaultProviderError() *ConfigError {
	return &ConfigError{Kind: ConfigMissingDefaultProvider}
}

func NewInvalidProviderConfigError(provider ProviderID, reason string) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidProviderConfig, Provider: provider, Reason: reason}
}

func NewInvalidTimeoutError(timeoutMS int64) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidTimeout, TimeoutMS: timeoutMS}
}

func NewInvalidRetryPolicyError(reason string) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidRetryPolicy, Reason: reason}
}

func NewInvalidPricingConfigError(reason string) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidPricingConfig, Reason: reason}
}

type RoutingErrorKind string

const (
	RoutingProviderNotRegistered RoutingErrorKind = "provider_not_registered"
	RoutingModelNotFound         RoutingErrorKind = "model_not_found"
	RoutingAmbiguousModelRoute   RoutingErrorKind = "ambiguous_model_route"
	RoutingProviderHintMismatch  RoutingErrorKind = "provider_hint_mismatch"
)

// RoutingError reports a failure to map a model reference onto a registered
// provider adapter.
type RoutingError struct {
	Kind         RoutingErrorKind
	Provider     ProviderID
	Model        string
	Candidates   []ProviderID
	ProviderHint ProviderID
	Resolved     ProviderID
}

func (e *RoutingError) Error() string {
	switch e.Kind {
	case RoutingProviderNotRegistered:
		return fmt.Sprintf("provider not registered: %s", e.Provider)
	case RoutingModelNotFound:
		return fmt.Sprintf("model route not found: %s", e.Model)
	case RoutingAmbiguousModelRoute:
		rendered := lo.Map(e.Candidates, func(p ProviderID, _ int) string { return string(p) })
		sort.Strings(rendered)

		return fmt.Sprintf("ambiguous model route for %s: %s", e.Model, strings.Join(rendered, ", "))
	case RoutingProviderHintMismatch:
		return fmt.Sprintf(
			"provider hint mismatch for model %s: hint=%s resolved=%s",
			e.Model, e.ProviderHint, e.Resolved,
		)
	default:
		return fmt.Sprintf("routing error for model %s", e.Model)
	}
}

func NewProviderNotRegisteredError(provider ProviderID) *RoutingError {
	return &RoutingError{Kind: RoutingProviderNotRegistered, Provider: provider}
}

func NewModelNotFoundError(model string) *RoutingError {
	return &RoutingError{Kind: RoutingModelNotFound, Model: model}
}

func NewAmbiguousModelRouteError(model string, candidates []ProviderID) *RoutingError {
	return &RoutingError{Kind: RoutingAmbiguousModelRoute, Model: model, Candidates: candidates}
}

func NewProviderHintMismatchError(model string, hint, resolved ProviderID) *RoutingError {
	return &RoutingError{
		Kind:         RoutingProviderHintMismatch,
		Model:        model,
		ProviderHint: hint,
		Resolved:     resolved,
	}
}

type ProviderErrorKind string

const (
	ProviderErrCredentialsRejected ProviderErrorKind = "credentials_rejected"
	ProviderErrTransport           ProviderErrorKind = "transport"
	ProviderErrStatus              ProviderErrorKind = "status"
	ProviderErrProtocol            ProviderErrorKind = "protocol"
	ProviderErrSerialization       ProviderErrorKind = "serialization"
)

// ProviderError is the adapter-level failure taxonomy. Model, RequestID and
// StatusCode are populated when known; absent values render as omitted
// context fields.
type ProviderError struct {
	Kind       ProviderErrorKind
	Provider   ProviderID
	Model      string
	StatusCode int
	RequestID  string
	Message    string
}

func (e *ProviderError) Error() string {
	provider := e.Provider

	switch e.Kind {
	case ProviderErrCredentialsRejected:
		return fmt.Sprintf(
			"provider credentials rejected%s: %s",
			formatContext(&provider, "", e.RequestID, 0), e.Message,
		)
	case ProviderErrTransport:
		return fmt.Sprintf(
			"provider transport error%s: %s",
			formatContext(&provider, "", e.RequestID, 0), e.Message,
		)
	case ProviderErrStatus:
		return fmt.Sprintf(
			"provider status error%s: %s",
			formatContext(&provider, e.Model, e.RequestID, e.StatusCode), e.Message,
		)
	case ProviderErrSerialization:
		return fmt.Sprintf(
			"provider serialization error%s: %s",
			formatContext(&provider, e.Model, e.RequestID, 0), e.Message,
		)
	default:
		return fmt.Sprintf(
			"provider protocol error%s: %s",
			formatContext(&provider, e.Model, e.RequestID, 0), e.Message,
		)
	}
}

func NewCredentialsRejectedError(provider ProviderID, requestID, message string) *ProviderError {
	return &ProviderError{
		Kind:      ProviderErrCredentialsRejected,
		Provider:  provider,
		RequestID: requestID,
		Message:   message,
	}
}

func NewTransportProviderError(provider ProviderID, requestID, message string) *ProviderError {
	return &ProviderError{
		Kind:      ProviderErrTransport,
		Provider:  provider,
		RequestID: requestID,
		Message:   message,
	}
}

func NewStatusError(provider ProviderID, model string, statusCode int, requestID, message string) *ProviderError {
	return &ProviderError{
		Kind:       ProviderErrStatus,
		Provider:   provider,
		Model:      model,
		StatusCode: statusCode,
		RequestID:  requestID,
		Message:    message,
	}
}

func NewProtocolError(provider ProviderID, model, message string) *ProviderError {
	return &ProviderError{
		Kind:     ProviderErrProtocol,
		Provider: provider,
		Model:    model,
		Message:  message,
	}
}

func NewSerializationError(provider ProviderID, model, message string) *ProviderError {
	return &ProviderError{
		Kind:     ProviderErrSerialization,
		Provider: provider,
		Model:    model,
		Message:  message,
	}
}

type RuntimeErrorKind string

const (
	RuntimeErrConfig            RuntimeErrorKind = "config"
	RuntimeErrCredentialMissing RuntimeErrorKind = "credential_missing"
	RuntimeErrRouting           RuntimeErrorKind = "routing"
	RuntimeErrCapability        RuntimeErrorKind = "capability_mismatch"
	RuntimeErrTransport         RuntimeErrorKind = "transport"
	RuntimeErrProviderProtocol  RuntimeErrorKind = "provider_protocol"
	RuntimeErrSerialization     RuntimeErrorKind = "serialization"
	RuntimeErrCostCalculation   RuntimeErrorKind = "cost_calculation"
)

// RuntimeError is the single error surface of the runtime facade. Config and
// routing failures wrap their underlying typed errors and unwrap cleanly.
type RuntimeError struct {
	Kind          RuntimeErrorKind
	Provider      *ProviderID
	Model         string
	RequestID     string
	StatusCode    int
	Capability    string
	EnvCandidates []string
	Message       string

	wrapped error
}

func (e *RuntimeError) Error() string {
	switch e.Kind {
	case RuntimeErrConfig, RuntimeErrRouting:
		if e.wrapped != nil {
			return e.wrapped.Error()
		}

		return e.Message
	case RuntimeErrCredentialMissing:
		suffix := ""
		if len(e.EnvCandidates) > 0 {
			suffix = fmt.Sprintf(", env_candidates=%s", strings.Join(e.EnvCandidates, ", "))
		}

		provider := ProviderID("")
		if e.Provider != nil {
			provider = *e.Provider
		}

		return fmt.Sprintf("credential missing [provider=%s%s]", provider, suffix)
	case RuntimeErrCapability:
		provider := ProviderID("")
		if e.Provider != nil {
			provider = *e.Provider
		}

		return fmt.Sprintf(
			"capability mismatch [provider=%s, model=%s, capability=%s]",
			provider, e.Model, e.Capability,
		)
	case RuntimeErrTransport:
		return fmt.Sprintf(
			"transport error%s: %s",
			formatContext(e.Provider, e.Model, e.RequestID, 0), e.Message,
		)
	case RuntimeErrProviderProtocol:
		return fmt.Sprintf(
			"provider protocol error%s: %s",
			formatContext(e.Provider, e.Model, e.RequestID, e.StatusCode), e.Message,
		)
	case RuntimeErrSerialization:
		return fmt.Sprintf(
			"serialization error%s: %s",
			formatContext(e.Provider, e.Model, e.RequestID, 0), e.Message,
		)
	case RuntimeErrCostCalculation:
		return fmt.Sprintf(
			"cost calculation error%s: %s",
			formatContext(e.Provider, e.Model, "", 0), e.Message,
		)
	default:
		return e.Message
	}
}

func (e *RuntimeError) Unwrap() error {
	return e.wrapped
}

// WrapConfigError lifts a ConfigError into the runtime error surface.
func WrapConfigError(err *ConfigError) *RuntimeError {
	return &RuntimeError{Kind: RuntimeErrConfig, wrapped: err}
}

// WrapRoutingError lifts a RoutingError into the runtime error surface.
func WrapRoutingError(err *RoutingError) *RuntimeError {
	return &RuntimeError{Kind: RuntimeErrRouting, wrapped: err}
}

// NewCredentialMissingError drops empty candidates, then sorts and dedups the
// remainder so rendering is deterministic.
func NewCredentialMissingError(provider ProviderID, envCandidates []string) *RuntimeError {
	candidates := lo.Filter(envCandidates, func(c string, _ int) bool { return c != "" })
	sort.Strings(candidates)
	candidates = lo.Uniq(candidates)

	return &RuntimeError{
		Kind:          RuntimeErrCredentialMissing,
		Provider:      &provider,
		EnvCandidates: candidates,
	}
}

func NewCapabilityMismatchError(provider ProviderID, model, capability string) *RuntimeError {
	return &RuntimeError{
		Kind:       RuntimeErrCapability,
		Provider:   &provider,
		Model:      model,
		Capability: capability,
	}
}

// RuntimeFromProviderError maps every provider error onto the runtime error
// surface. The mapping is total: transport stays transport, serialization
// stays serialization, and credentials/status/protocol collapse into the
// provider protocol kind, preserving status codes and request ids.
func RuntimeFromProviderError(err *ProviderError) *RuntimeError {
	provider := err.Provider

	switch err.Kind {
	case ProviderErrTransport:
		return &RuntimeError{
			Kind:      RuntimeErrTransport,
			Provider:  &provider,
			RequestID: err.RequestID,
			Message:   err.Message,
			wrapped:   err,
		}
	case ProviderErrSerialization:
		return &RuntimeError{
			Kind:      RuntimeErrSerialization,
			Provider:  &provider,
			Model:     err.Model,
			RequestID: err.RequestID,
			Message:   err.Message,
			wrapped:   err,
		}
	case ProviderErrCredentialsRejected:
		return &RuntimeError{
			Kind:      RuntimeErrProviderProtocol,
			Provider:  &provider,
			RequestID: err.RequestID,
			Message:   err.Message,
			wrapped:   err,
		}
	case ProviderErrStatus:
		return &RuntimeError{
			Kind:       RuntimeErrProviderProtocol,
			Provider:   &provider,
			Model:      err.Model,
			RequestID:  err.RequestID,
			StatusCode: err.StatusCode,
			Message:    err.Message,
			wrapped:    err,
		}
	default:
		return &RuntimeError{
			Kind:      RuntimeErrProviderProtocol,
			Provider:  &provider,
			Model:     err.Model,
			RequestID: err.RequestID,
			Message:   err.Message,
			wrapped:   err,
		}
	}
}
