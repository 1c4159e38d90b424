// Package runtime is the facade over routing, adapters, and pricing: one
// entry point that takes a canonical request and returns a canonical
// response with cost attached when a pricing table is configured.
package runtime

import (
	"context"
	"errors"

	"github.com/looplj/modelrelay/catalog"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/pricing"
	"github.com/looplj/modelrelay/registry"
)

// Runtime dispatches canonical requests to registered provider adapters.
// It is safe for concurrent use.
type Runtime struct {
	registry *registry.Registry
	actx     *llm.Context
	pricing  *pricing.Table
}

// Builder assembles a Runtime. The zero configuration uses the builtin
// catalog, an empty adapter context, and no pricing table.
type Builder struct {
	adapters        []llm.Adapter
	static          llm.Catalog
	defaultProvider *llm.ProviderID
	pricing         *pricing.Table
	actx            *llm.Context
}

func NewBuilder() *Builder {
	return &Builder{
		static: catalog.Builtin(),
		actx:   &llm.Context{},
	}
}

// WithAdapter registers an adapter. Order matters only for replacement;
// routing is deterministic regardless of registration order.
func (b *Builder) WithAdapter(adapter llm.Adapter) *Builder {
	b.adapters = append(b.adapters, adapter)

	return b
}

// WithDefaultProvider sets the fallback provider used when the catalog has no
// route for a model and the request carries no hint.
func (b *Builder) WithDefaultProvider(provider llm.ProviderID) *Builder {
	b.defaultProvider = &provider

	return b
}

// WithModelCatalog replaces the builtin static catalog.
func (b *Builder) WithModelCatalog(static llm.Catalog) *Builder {
	b.static = static

	return b
}

func (b *Builder) WithPricingTable(table *pricing.Table) *Builder {
	b.pricing = table

	return b
}

// WithAdapterContext sets the metadata context passed to every adapter call.
func (b *Builder) WithAdapterContext(actx *llm.Context) *Builder {
	b.actx = actx

	return b
}

func (b *Builder) Build() *Runtime {
	reg := registry.New(b.static, b.defaultProvider)
	for _, adapter := range b.adapters {
		reg.Register(adapter)
	}

	return &Runtime{
		registry: reg,
		actx:     b.actx,
		pricing:  b.pricing,
	}
}

// Run routes the request, checks the resolved adapter's capabilities against
// what the request needs, dispatches, and attaches an estimated cost when the
// provider did not report one and a pricing table is configured.
func (r *Runtime) Run(ctx context.Context, req *llm.Request) (*llm.Response, *llm.RuntimeError) {
	provider, rerr := r.registry.ResolveProvider(req.Model)
	if rerr != nil {
		return nil, llm.WrapRoutingError(rerr)
	}

	adapter, rerr := r.registry.ResolveAdapter(provider)
	if rerr != nil {
		return nil, llm.WrapRoutingError(rerr)
	}

	capabilities := adapter.Capabilities()

	if len(req.Tools) > 0 && !capabilities.SupportsTools {
		return nil, llm.NewCapabilityMismatchError(provider, req.Model.ModelID, "tools")
	}

	if !req.ResponseFormat.IsText() && !capabilities.SupportsStructuredOutput {
		return nil, llm.NewCapabilityMismatchError(provider, req.Model.ModelID, "structured_output")
	}

	resp, err := adapter.Run(ctx, req, r.actx)
	if err != nil {
		return nil, adapterError(err)
	}

	if resp.Cost == nil && r.pricing != nil {
		cost, warnings := pricing.EstimateCost(resp.Provider, resp.Model, resp.Usage, r.pricing)
		resp.Cost = cost
		resp.Warnings = append(resp.Warnings, warnings...)
	}

	return resp, nil
}

// DiscoverModels lists models, sweeping provider endpoints when the options
// request a remote refresh.
func (r *Runtime) DiscoverModels(ctx context.Context, opts *llm.DiscoveryOptions) (llm.Catalog, *llm.RuntimeError) {
	return r.registry.DiscoverModels(ctx, opts, r.actx)
}

// ExportCatalogJSON renders a catalog as deterministic pretty-printed JSON.
func (r *Runtime) ExportCatalogJSON(cat llm.Catalog) (string, *llm.RuntimeError) {
	return catalog.ExportJSON(cat)
}

// Registry exposes the underlying registry for scheduled refresh wiring.
func (r *Runtime) Registry() *registry.Registry {
	return r.registry
}

func adapterError(err error) *llm.RuntimeError {
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		return llm.RuntimeFromProviderError(perr)
	}

	var rerr *llm.RuntimeError
	if errors.As(err, &rerr) {
		return rerr
	}

	var routingErr *llm.RoutingError
	if errors.As(err, &routingErr) {
		return llm.WrapRoutingError(routingErr)
	}

	var cerr *llm.ConfigError
	if errors.As(err, &cerr) {
		return llm.WrapConfigError(cerr)
	}

	return &llm.RuntimeError{Kind: llm.RuntimeErrTransport, Message: err.Error()}
}
