// Package registry owns the adapter set and the active model catalog.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/looplj/modelrelay/catalog"
	"github.com/looplj/modelrelay/internal/log"
	"github.com/looplj/modelrelay/llm"
)

// Registry stores provider adapters and routes model references onto them.
// Adapters are kept in registration order; resolution and discovery iterate
// in provider order for determinism. The active catalog starts as the static
// one and is atomically replaced by discovery refreshes.
type Registry struct {
	adapters        []llm.Adapter
	static          llm.Catalog
	defaultProvider *llm.ProviderID

	mu     sync.RWMutex
	active llm.Catalog

	refreshGroup singleflight.Group
}

// New builds a registry seeded with the static catalog. A nil defaultProvider
// disables the model-not-found fallback.
func New(static llm.Catalog, defaultProvider *llm.ProviderID) *Registry {
	return &Registry{
		adapters:        nil,
		static:          static,
		defaultProvider: defaultProvider,
		active:          static,
	}
}

// NewWithBuiltinCatalog builds a registry over the compiled-in catalog.
func NewWithBuiltinCatalog() *Registry {
	return New(catalog.Builtin(), nil)
}

// Register adds an adapter. Re-registering a provider replaces its adapter in
// place, keeping the original registration position.
func (r *Registry) Register(adapter llm.Adapter) {
	provider := adapter.ID()

	for index, existing := range r.adapters {
		if existing.ID() == provider {
			r.adapters[index] = adapter

			return
		}
	}

	r.adapters = append(r.adapters, adapter)
}

// ResolveAdapter returns the adapter registered for provider.
func (r *Registry) ResolveAdapter(provider llm.ProviderID) (llm.Adapter, *llm.RoutingError) {
	for _, adapter := range r.adapters {
		if adapter.ID() == provider {
			return adapter, nil
		}
	}

	return nil, llm.NewProviderNotRegisteredError(provider)
}

// ResolveProvider maps a model reference onto a registered provider: a hint
// with a registered adapter wins outright, then the catalog route, then the
// configured default when the catalog has no entry for the model.
func (r *Registry) ResolveProvider(model llm.ModelRef) (llm.ProviderID, *llm.RoutingError) {
	if model.ProviderHint != nil {
		if _, rerr := r.ResolveAdapter(*model.ProviderHint); rerr != nil {
			return "", rerr
		}

		return *model.ProviderHint, nil
	}

	provider, rerr := catalog.ResolveModelProvider(r.ActiveCatalog(), model.ModelID, nil)
	if rerr == nil {
		if _, aerr := r.ResolveAdapter(provider); aerr != nil {
			return "", aerr
		}

		return provider, nil
	}

	if rerr.Kind == llm.RoutingModelNotFound && r.defaultProvider != nil {
		if _, aerr := r.ResolveAdapter(*r.defaultProvider); aerr != nil {
			return "", aerr
		}

		return *r.defaultProvider, nil
	}

	return "", rerr
}

// ActiveCatalog returns a snapshot of the catalog routing currently uses.
func (r *Registry) ActiveCatalog() llm.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return llm.Catalog{Models: append([]llm.ModelInfo(nil), r.active.Models...)}
}

// DiscoverModels refreshes the active catalog from every discovery-capable
// adapter when remote and refresh_cache are both set, and returns the active
// snapshot otherwise. Concurrent refreshes with the same provider filter are
// collapsed into one upstream sweep.
func (r *Registry) DiscoverModels(ctx context.Context, opts *llm.DiscoveryOptions, actx *llm.Context) (llm.Catalog, *llm.RuntimeError) {
	if opts == nil || !opts.Remote || !opts.RefreshCache {
		return r.ActiveCatalog(), nil
	}

	result, err, _ := r.refreshGroup.Do(refreshKey(opts), func() (any, error) {
		return r.refresh(ctx, opts, actx)
	})
	if err != nil {
		var rerr *llm.RuntimeError
		if errors.As(err, &rerr) {
			return llm.Catalog{}, rerr
		}

		return llm.Catalog{}, &llm.RuntimeError{Kind: llm.RuntimeErrTransport, Message: err.Error()}
	}

	return result.(llm.Catalog), nil
}

func (r *Registry) refresh(ctx context.Context, opts *llm.DiscoveryOptions, actx *llm.Context) (llm.Catalog, error) {
	adapters := append([]llm.Adapter(nil), r.adapters...)
	sort.SliceStable(adapters, func(i, j int) bool {
		return adapters[i].ID().Order() < adapters[j].ID().Order()
	})

	var remote []llm.ModelInfo

	for _, adapter := range adapters {
		provider := adapter.ID()

		if len(opts.IncludeProvider) > 0 && !lo.Contains(opts.IncludeProvider, provider) {
			continue
		}

		if !adapter.Capabilities().SupportsRemoteDiscovery {
			continue
		}

		discovered, err := adapter.DiscoverModels(ctx, opts, actx)
		if err != nil {
			log.Warn(ctx, "model discovery failed",
				log.String("provider", string(provider)),
				log.Err(err),
			)

			return llm.Catalog{}, discoveryError(err)
		}

		log.Debug(ctx, "model discovery completed",
			log.String("provider", string(provider)),
			log.Int("models", len(discovered)),
		)

		remote = append(remote, discovered...)
	}

	merged := catalog.Merge(r.static, llm.Catalog{Models: remote})

	r.mu.Lock()
	r.active = merged
	r.mu.Unlock()

	return merged, nil
}

func discoveryError(err error) *llm.RuntimeError {
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		return llm.RuntimeFromProviderError(perr)
	}

	var rerr *llm.RuntimeError
	if errors.As(err, &rerr) {
		return rerr
	}

	return &llm.RuntimeError{Kind: llm.RuntimeErrTransport, Message: err.Error()}
}

func refreshKey(opts *llm.DiscoveryOptions) string {
	if len(opts.IncludeProvider) == 0 {
		return "refresh:all"
	}

	providers := lo.Map(opts.IncludeProvider, func(p llm.ProviderID, _ int) string { return string(p) })
	sort.Strings(providers)

	return "refresh:" + strings.Join(providers, ",")
}
