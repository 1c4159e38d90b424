package llm

import "context"

// Adapter translates canonical requests into one provider protocol and back.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// ID is the stable provider identifier used for routing and diagnostics.
	ID() ProviderID

	// Capabilities declares support flags checked before dispatch.
	Capabilities() Capabilities

	// Run executes a single non-streaming canonical request.
	Run(ctx context.Context, req *Request, actx *Context) (*Response, error)

	// DiscoverModels lists provider models as canonical records. Adapters
	// without a listing endpoint return an empty slice.
	DiscoverModels(ctx context.Context, opts *DiscoveryOptions, actx *Context) ([]ModelInfo, error)
}

// TokenProvider is an auth extension point for externally managed bearer
// tokens. The runtime does not implement token lifecycle itself.
type TokenProvider interface {
	GetToken(ctx context.Context, provider ProviderID) (string, error)
}
