package registry

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/modelrelay/llm"
)

type mockAdapter struct {
	id            llm.ProviderID
	capabilities  llm.Capabilities
	models        []llm.ModelInfo
	discoverErr   error
	discoverCalls int
	tag           string
}

var _ llm.Adapter = (*mockAdapter)(nil)

func newMockAdapter(id llm.ProviderID, models ...llm.ModelInfo) *mockAdapter {
	return &mockAdapter{
		id: id,
		capabilities: llm.Capabilities{
			SupportsTools:            true,
			SupportsStructuredOutput: true,
			SupportsRemoteDiscovery:  true,
		},
		models: models,
	}
}

func (m *mockAdapter) ID() llm.ProviderID             { return m.id }
func (m *mockAdapter) Capabilities() llm.Capabilities { return m.capabilities }

func (m *mockAdapter) Run(ctx context.Context, req *llm.Request, actx *llm.Context) (*llm.Response, error) {
	return &llm.Response{
		Output:       llm.AssistantOutput{Content: []llm.ContentPart{llm.TextPart("ok")}},
		Provider:     m.id,
		Model:        req.Model.ModelID,
		FinishReason: llm.FinishStop,
	}, nil
}

func (m *mockAdapter) DiscoverModels(ctx context.Context, opts *llm.DiscoveryOptions, actx *llm.Context) ([]llm.ModelInfo, error) {
	m.discoverCalls++

	if m.discoverErr != nil {
		return nil, m.discoverErr
	}

	return m.models, nil
}

func remoteModel(provider llm.ProviderID, modelID, displayName string) llm.ModelInfo {
	return llm.ModelInfo{
		Provider:                 provider,
		ModelID:                  modelID,
		DisplayName:              lo.ToPtr(displayName),
		SupportsTools:            true,
		SupportsStructuredOutput: true,
	}
}

func staticCatalog() llm.Catalog {
	return llm.Catalog{Models: []llm.ModelInfo{
		remoteModel(llm.ProviderOpenAI, "gpt-5-mini", "Static GPT"),
		remoteModel(llm.ProviderAnthropic, "claude-sonnet-4-5-20250929", "Static Claude"),
	}}
}

func TestRegister_ReplacesSameProvider(t *testing.T) {
	reg := New(staticCatalog(), nil)

	first := newMockAdapter(llm.ProviderOpenAI)
	first.tag = "first"
	second := newMockAdapter(llm.ProviderOpenAI)
	second.tag = "second"

	reg.Register(first)
	reg.Register(newMockAdapter(llm.ProviderAnthropic))
	reg.Register(second)

	adapter, rerr := reg.ResolveAdapter(llm.ProviderOpenAI)
	require.Nil(t, rerr)
	assert.Equal(t, "second", adapter.(*mockAdapter).tag)

	_, rerr = reg.ResolveAdapter(llm.ProviderOpenRouter)
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RoutingProviderNotRegistered, rerr.Kind)
}

func TestResolveProvider_Precedence(t *testing.T) {
	reg := New(staticCatalog(), nil)
	reg.Register(newMockAdapter(llm.ProviderOpenAI))
	reg.Register(newMockAdapter(llm.ProviderAnthropic))

	// A hint with a registered adapter wins even when the catalog disagrees.
	anthropicID := llm.ProviderAnthropic
	provider, rerr := reg.ResolveProvider(llm.ModelRef{ModelID: "gpt-5-mini", ProviderHint: &anthropicID})
	require.Nil(t, rerr)
	assert.Equal(t, llm.ProviderAnthropic, provider)

	// No hint routes through the catalog.
	provider, rerr = reg.ResolveProvider(llm.ModelRef{ModelID: "gpt-5-mini"})
	require.Nil(t, rerr)
	assert.Equal(t, llm.ProviderOpenAI, provider)

	// Unknown model with no default is not found.
	_, rerr = reg.ResolveProvider(llm.ModelRef{ModelID: "unknown-model"})
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RoutingModelNotFound, rerr.Kind)
}

func TestResolveProvider_Ambiguous(t *testing.T) {
	shared := llm.Catalog{Models: []llm.ModelInfo{
		remoteModel(llm.ProviderOpenAI, "shared-model", "a"),
		remoteModel(llm.ProviderAnthropic, "shared-model", "b"),
	}}

	reg := New(shared, nil)
	reg.Register(newMockAdapter(llm.ProviderOpenAI))
	reg.Register(newMockAdapter(llm.ProviderAnthropic))

	_, rerr := reg.ResolveProvider(llm.ModelRef{ModelID: "shared-model"})
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RoutingAmbiguousModelRoute, rerr.Kind)
	assert.Equal(t, []llm.ProviderID{llm.ProviderOpenAI, llm.ProviderAnthropic}, rerr.Candidates)
}

func TestResolveProvider_DefaultFallback(t *testing.T) {
	openaiID := llm.ProviderOpenAI

	reg := New(staticCatalog(), &openaiID)
	reg.Register(newMockAdapter(llm.ProviderOpenAI))

	provider, rerr := reg.ResolveProvider(llm.ModelRef{ModelID: "unknown-model"})
	require.Nil(t, rerr)
	assert.Equal(t, llm.ProviderOpenAI, provider)
}

func TestResolveProvider_RequiresRegisteredAdapter(t *testing.T) {
	openrouterID := llm.ProviderOpenRouter

	t.Run("hint", func(t *testing.T) {
		reg := New(staticCatalog(), nil)

		_, rerr := reg.ResolveProvider(llm.ModelRef{ModelID: "gpt-5-mini", ProviderHint: &openrouterID})
		require.NotNil(t, rerr)
		assert.Equal(t, llm.RoutingProviderNotRegistered, rerr.Kind)
	})

	t.Run("catalog route", func(t *testing.T) {
		reg := New(staticCatalog(), nil)

		_, rerr := reg.ResolveProvider(llm.ModelRef{ModelID: "gpt-5-mini"})
		require.NotNil(t, rerr)
		assert.Equal(t, llm.RoutingProviderNotRegistered, rerr.Kind)
	})

	t.Run("default", func(t *testing.T) {
		reg := New(staticCatalog(), &openrouterID)

		_, rerr := reg.ResolveProvider(llm.ModelRef{ModelID: "unknown-model"})
		require.NotNil(t, rerr)
		assert.Equal(t, llm.RoutingProviderNotRegistered, rerr.Kind)
	})
}

func TestDiscoverModels_RefreshMergesStaticFirst(t *testing.T) {
	reg := New(staticCatalog(), nil)

	openai := newMockAdapter(llm.ProviderOpenAI,
		remoteModel(llm.ProviderOpenAI, "gpt-5-mini", "Remote GPT"),
		remoteModel(llm.ProviderOpenAI, "gpt-5-nano", "Remote Nano"),
	)
	reg.Register(openai)

	refreshed, rerr := reg.DiscoverModels(
		context.Background(),
		&llm.DiscoveryOptions{Remote: true, RefreshCache: true},
		&llm.Context{},
	)
	require.Nil(t, rerr)
	require.Len(t, refreshed.Models, 3)

	// The static entry keeps its metadata; the new remote model is appended.
	assert.Equal(t, "gpt-5-mini", refreshed.Models[0].ModelID)
	assert.Equal(t, "Static GPT", *refreshed.Models[0].DisplayName)
	assert.Equal(t, "gpt-5-nano", refreshed.Models[1].ModelID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", refreshed.Models[2].ModelID)

	// The refresh replaced the active catalog.
	active := reg.ActiveCatalog()
	assert.Equal(t, refreshed, active)
}

func TestDiscoverModels_IncludeProviderFilter(t *testing.T) {
	reg := New(llm.Catalog{}, nil)

	openai := newMockAdapter(llm.ProviderOpenAI, remoteModel(llm.ProviderOpenAI, "gpt-5-mini", "GPT"))
	anthropic := newMockAdapter(llm.ProviderAnthropic, remoteModel(llm.ProviderAnthropic, "claude-haiku-4-5", "Haiku"))
	reg.Register(openai)
	reg.Register(anthropic)

	refreshed, rerr := reg.DiscoverModels(
		context.Background(),
		&llm.DiscoveryOptions{
			Remote:          true,
			RefreshCache:    true,
			IncludeProvider: []llm.ProviderID{llm.ProviderAnthropic},
		},
		&llm.Context{},
	)
	require.Nil(t, rerr)
	require.Len(t, refreshed.Models, 1)
	assert.Equal(t, llm.ProviderAnthropic, refreshed.Models[0].Provider)
	assert.Zero(t, openai.discoverCalls)
	assert.Equal(t, 1, anthropic.discoverCalls)
}

func TestDiscoverModels_CachedWithoutRefresh(t *testing.T) {
	reg := New(staticCatalog(), nil)

	openai := newMockAdapter(llm.ProviderOpenAI, remoteModel(llm.ProviderOpenAI, "gpt-5-nano", "Nano"))
	reg.Register(openai)

	cached, rerr := reg.DiscoverModels(
		context.Background(),
		&llm.DiscoveryOptions{Remote: true, RefreshCache: false},
		&llm.Context{},
	)
	require.Nil(t, rerr)
	assert.Equal(t, staticCatalog(), cached)
	assert.Zero(t, openai.discoverCalls)
}

func TestDiscoverModels_SkipsNonDiscoveryAdapters(t *testing.T) {
	reg := New(llm.Catalog{}, nil)

	silent := newMockAdapter(llm.ProviderOpenAI, remoteModel(llm.ProviderOpenAI, "gpt-5-mini", "GPT"))
	silent.capabilities.SupportsRemoteDiscovery = false
	reg.Register(silent)

	refreshed, rerr := reg.DiscoverModels(
		context.Background(),
		&llm.DiscoveryOptions{Remote: true, RefreshCache: true},
		&llm.Context{},
	)
	require.Nil(t, rerr)
	assert.Empty(t, refreshed.Models)
	assert.Zero(t, silent.discoverCalls)
}

func TestDiscoverModels_AdapterErrorSurfaces(t *testing.T) {
	reg := New(llm.Catalog{}, nil)

	failing := newMockAdapter(llm.ProviderOpenAI)
	failing.discoverErr = llm.NewTransportProviderError(llm.ProviderOpenAI, "", "connection refused")
	reg.Register(failing)

	_, rerr := reg.DiscoverModels(
		context.Background(),
		&llm.DiscoveryOptions{Remote: true, RefreshCache: true},
		&llm.Context{},
	)
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RuntimeErrTransport, rerr.Kind)
}
