package llm

// ProviderID identifies a provider family for routing and diagnostics.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderOpenRouter ProviderID = "openrouter"
	ProviderCustom     ProviderID = "custom"
)

// Order returns the stable sort rank used when presenting multi-provider
// results: openai, anthropic, openrouter, then everything else.
func (p ProviderID) Order() int {
	switch p {
	case ProviderOpenAI:
		return 0
	case ProviderAnthropic:
		return 1
	case ProviderOpenRouter:
		return 2
	default:
		return 3
	}
}

// Capabilities declares provider support flags checked by the runtime before
// dispatching a request.
type Capabilities struct {
	SupportsTools            bool `json:"supports_tools"`
	SupportsStructuredOutput bool `json:"supports_structured_output"`
	SupportsThinking         bool `json:"supports_thinking"`
	SupportsRemoteDiscovery  bool `json:"supports_remote_discovery"`
}

// Context carries opaque per-call metadata from the embedding application to
// adapters and the transport. Well-known keys include "<provider>.api_key" for
// credential injection and the "transport.*" keys consumed by httpclient.
type Context struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy so adapters can attach transport keys without
// mutating the caller's context.
func (c *Context) Clone() *Context {
	clone := &Context{Metadata: make(map[string]string, len(c.Metadata))}
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// Get returns the trimmed metadata value for key, or "" when absent.
func (c *Context) Get(key string) string {
	if c == nil {
		return ""
	}

	return c.Metadata[key]
}

// DiscoveryOptions controls remote model discovery.
type DiscoveryOptions struct {
	Remote          bool         `json:"remote"`
	IncludeProvider []ProviderID `json:"include_provider,omitempty"`
	RefreshCache    bool         `json:"refresh_cache"`
}
