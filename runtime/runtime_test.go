package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/modelrelay/httpclient"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/pricing"
	"github.com/looplj/modelrelay/transformer/openrouter"
)

type stubAdapter struct {
	id           llm.ProviderID
	capabilities llm.Capabilities
	models       []llm.ModelInfo
	run          func(ctx context.Context, req *llm.Request, actx *llm.Context) (*llm.Response, error)
}

var _ llm.Adapter = (*stubAdapter)(nil)

func newStubAdapter(id llm.ProviderID) *stubAdapter {
	return &stubAdapter{
		id: id,
		capabilities: llm.Capabilities{
			SupportsTools:            true,
			SupportsStructuredOutput: true,
			SupportsRemoteDiscovery:  true,
		},
	}
}

func (s *stubAdapter) ID() llm.ProviderID             { return s.id }
func (s *stubAdapter) Capabilities() llm.Capabilities { return s.capabilities }

func (s *stubAdapter) Run(ctx context.Context, req *llm.Request, actx *llm.Context) (*llm.Response, error) {
	if s.run != nil {
		return s.run(ctx, req, actx)
	}

	return &llm.Response{
		Output:       llm.AssistantOutput{Content: []llm.ContentPart{llm.TextPart("hello")}},
		Provider:     s.id,
		Model:        req.Model.ModelID,
		FinishReason: llm.FinishStop,
		Usage: llm.Usage{
			InputTokens:  lo.ToPtr(int64(10)),
			OutputTokens: lo.ToPtr(int64(5)),
			TotalTokens:  lo.ToPtr(int64(15)),
		},
	}, nil
}

func (s *stubAdapter) DiscoverModels(ctx context.Context, opts *llm.DiscoveryOptions, actx *llm.Context) ([]llm.ModelInfo, error) {
	return s.models, nil
}

func userRequest(modelID string) *llm.Request {
	return &llm.Request{
		Model: llm.ModelRef{ModelID: modelID},
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: []llm.ContentPart{llm.TextPart("Hello")}},
		},
	}
}

func TestRun_RoutesRequest(t *testing.T) {
	rt := NewBuilder().
		WithAdapter(newStubAdapter(llm.ProviderOpenAI)).
		Build()

	resp, rerr := rt.Run(context.Background(), userRequest("gpt-5-mini"))
	require.Nil(t, rerr)
	assert.Equal(t, llm.ProviderOpenAI, resp.Provider)
	assert.Equal(t, "hello", resp.TextContent())
	assert.Equal(t, llm.FinishStop, resp.FinishReason)
	assert.Nil(t, resp.Cost)
}

func TestRun_RoutingErrorWrapped(t *testing.T) {
	rt := NewBuilder().
		WithAdapter(newStubAdapter(llm.ProviderOpenAI)).
		Build()

	_, rerr := rt.Run(context.Background(), userRequest("no-such-model"))
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RuntimeErrRouting, rerr.Kind)
	assert.Equal(t, "model route not found: no-such-model", rerr.Error())
}

func TestRun_ToolsCapabilityMismatch(t *testing.T) {
	limited := newStubAdapter(llm.ProviderOpenAI)
	limited.capabilities.SupportsTools = false

	rt := NewBuilder().WithAdapter(limited).Build()

	req := userRequest("gpt-5-mini")
	req.Tools = []llm.ToolDefinition{{Name: "lookup", ParametersSchema: []byte(`{"type":"object"}`)}}

	_, rerr := rt.Run(context.Background(), req)
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RuntimeErrCapability, rerr.Kind)
	assert.Equal(t, "tools", rerr.Capability)
}

func TestRun_StructuredOutputCapabilityMismatch(t *testing.T) {
	limited := newStubAdapter(llm.ProviderOpenAI)
	limited.capabilities.SupportsStructuredOutput = false

	rt := NewBuilder().WithAdapter(limited).Build()

	req := userRequest("gpt-5-mini")
	req.ResponseFormat = llm.ResponseFormat{Type: llm.ResponseFormatJSONObject}

	_, rerr := rt.Run(context.Background(), req)
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RuntimeErrCapability, rerr.Kind)
	assert.Equal(t, "structured_output", rerr.Capability)
}

func TestRun_CostAttachedWhenPricingAvailable(t *testing.T) {
	table := pricing.NewTable([]pricing.Rule{{
		Provider:           llm.ProviderOpenAI,
		ModelPattern:       "gpt-5-mini",
		InputCostPerToken:  0.1,
		OutputCostPerToken: 0.4,
	}})

	rt := NewBuilder().
		WithAdapter(newStubAdapter(llm.ProviderOpenAI)).
		WithPricingTable(table).
		Build()

	resp, rerr := rt.Run(context.Background(), userRequest("gpt-5-mini"))
	require.Nil(t, rerr)
	require.NotNil(t, resp.Cost)
	assert.InDelta(t, 1.0, resp.Cost.InputCost, 1e-9)
	assert.InDelta(t, 2.0, resp.Cost.OutputCost, 1e-9)
	assert.InDelta(t, 3.0, resp.Cost.TotalCost, 1e-9)
	assert.Equal(t, llm.PricingSourceConfigured, resp.Cost.PricingSource)
	assert.Empty(t, resp.Warnings)
}

func TestRun_PreservesProviderCost(t *testing.T) {
	reported := newStubAdapter(llm.ProviderOpenAI)
	reported.run = func(ctx context.Context, req *llm.Request, actx *llm.Context) (*llm.Response, error) {
		return &llm.Response{
			Output:       llm.AssistantOutput{Content: []llm.ContentPart{llm.TextPart("ok")}},
			Provider:     llm.ProviderOpenAI,
			Model:        req.Model.ModelID,
			FinishReason: llm.FinishStop,
			Usage: llm.Usage{
				InputTokens:  lo.ToPtr(int64(10)),
				OutputTokens: lo.ToPtr(int64(5)),
			},
			Cost: &llm.Cost{
				Currency:      "USD",
				InputCost:     9,
				OutputCost:    9,
				TotalCost:     18,
				PricingSource: llm.PricingSourceProviderReported,
			},
		}, nil
	}

	table := pricing.NewTable([]pricing.Rule{{
		Provider:           llm.ProviderOpenAI,
		ModelPattern:       "*",
		InputCostPerToken:  0.1,
		OutputCostPerToken: 0.1,
	}})

	rt := NewBuilder().WithAdapter(reported).WithPricingTable(table).Build()

	resp, rerr := rt.Run(context.Background(), userRequest("gpt-5-mini"))
	require.Nil(t, rerr)
	require.NotNil(t, resp.Cost)
	assert.Equal(t, llm.PricingSourceProviderReported, resp.Cost.PricingSource)
	assert.InDelta(t, 18.0, resp.Cost.TotalCost, 1e-9)
}

func TestRun_ProviderErrorMapped(t *testing.T) {
	failing := newStubAdapter(llm.ProviderOpenAI)
	failing.run = func(ctx context.Context, req *llm.Request, actx *llm.Context) (*llm.Response, error) {
		return nil, llm.NewStatusError(llm.ProviderOpenAI, req.Model.ModelID, 500, "req-1", "upstream exploded")
	}

	rt := NewBuilder().WithAdapter(failing).Build()

	_, rerr := rt.Run(context.Background(), userRequest("gpt-5-mini"))
	require.NotNil(t, rerr)
	assert.Equal(t, llm.RuntimeErrProviderProtocol, rerr.Kind)
	assert.Equal(t, 500, rerr.StatusCode)
	assert.Equal(t, "req-1", rerr.RequestID)
}

func TestDiscoverModels_StaticFirst(t *testing.T) {
	static := llm.Catalog{Models: []llm.ModelInfo{{
		Provider:    llm.ProviderOpenAI,
		ModelID:     "gpt-5-mini",
		DisplayName: lo.ToPtr("Static GPT"),
	}}}

	remote := newStubAdapter(llm.ProviderOpenAI)
	remote.models = []llm.ModelInfo{
		{Provider: llm.ProviderOpenAI, ModelID: "gpt-5-mini", DisplayName: lo.ToPtr("Remote GPT")},
		{Provider: llm.ProviderOpenAI, ModelID: "gpt-5-nano", DisplayName: lo.ToPtr("Remote Nano")},
	}

	rt := NewBuilder().WithAdapter(remote).WithModelCatalog(static).Build()

	refreshed, rerr := rt.DiscoverModels(
		context.Background(),
		&llm.DiscoveryOptions{Remote: true, RefreshCache: true},
	)
	require.Nil(t, rerr)
	require.Len(t, refreshed.Models, 2)
	assert.Equal(t, "Static GPT", *refreshed.Models[0].DisplayName)
	assert.Equal(t, "gpt-5-nano", refreshed.Models[1].ModelID)
}

func TestExportCatalogJSON(t *testing.T) {
	rt := NewBuilder().Build()

	rendered, rerr := rt.ExportCatalogJSON(llm.Catalog{Models: []llm.ModelInfo{{
		Provider: llm.ProviderOpenAI,
		ModelID:  "gpt-5-mini",
	}}})
	require.Nil(t, rerr)
	assert.Contains(t, rendered, `"gpt-5-mini"`)
}

func retryingClient(t *testing.T, maxAttempts int) *httpclient.Client {
	t.Helper()

	client, err := httpclient.New(5*time.Second, httpclient.RetryPolicy{
		MaxAttempts:          maxAttempts,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           time.Millisecond,
		RetryableStatusCodes: []int{429, 500, 502, 503},
	})
	require.NoError(t, err)

	return client
}

func TestRun_EndToEndOpenRouter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "openai/gpt-5-mini",
			"choices": [{
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "pong"}
			}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	adapter, err := openrouter.NewAdapterWithClient("sk-or-test", server.URL, openrouter.Options{}, retryingClient(t, 1))
	require.NoError(t, err)

	rt := NewBuilder().
		WithAdapter(adapter).
		WithDefaultProvider(llm.ProviderOpenRouter).
		Build()

	resp, rerr := rt.Run(context.Background(), userRequest("openai/gpt-5-mini"))
	require.Nil(t, rerr)
	assert.Equal(t, "pong", resp.TextContent())
	assert.Equal(t, llm.ProviderOpenRouter, resp.Provider)
	assert.Equal(t, int64(4), resp.Usage.DerivedTotalTokens())
}

func TestRun_RetryExhaustionSurfacesStatus(t *testing.T) {
	var attempts int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++

		w.Header().Set("x-request-id", "req-429")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "code": 429}}`))
	}))
	defer server.Close()

	adapter, err := openrouter.NewAdapterWithClient("sk-or-test", server.URL, openrouter.Options{}, retryingClient(t, 3))
	require.NoError(t, err)

	rt := NewBuilder().
		WithAdapter(adapter).
		WithDefaultProvider(llm.ProviderOpenRouter).
		Build()

	_, rerr := rt.Run(context.Background(), userRequest("openai/gpt-5-mini"))
	require.NotNil(t, rerr)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, llm.RuntimeErrProviderProtocol, rerr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, rerr.StatusCode)
	assert.Equal(t, "req-429", rerr.RequestID)
}
