package openrouter

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/looplj/modelrelay/httpclient"
	"github.com/looplj/modelrelay/llm"
)

const (
	apiKeyMetadata = "openrouter.api_key"
	apiKeyEnv      = "OPENROUTER_API_KEY"

	defaultTimeout = 30 * time.Second
)

// Adapter implements llm.Adapter for OpenRouter.
type Adapter struct {
	client      *httpclient.Client
	transformer *OutboundTransformer
	apiKey      string
	options     Options
}

var _ llm.Adapter = (*Adapter)(nil)

// NewAdapter builds an adapter against the public OpenRouter endpoint. An
// empty apiKey defers credential resolution to context metadata or the
// environment.
func NewAdapter(apiKey string, options Options) (*Adapter, error) {
	return NewAdapterWithBaseURL(apiKey, DefaultBaseURL, options)
}

// NewAdapterWithBaseURL builds an adapter against an alternate endpoint.
func NewAdapterWithBaseURL(apiKey, baseURL string, options Options) (*Adapter, error) {
	if cerr := options.Validate(); cerr != nil {
		return nil, cerr
	}

	client, err := httpclient.New(defaultTimeout, httpclient.DefaultRetryPolicy())
	if err != nil {
		return nil, err
	}

	return newAdapter(apiKey, baseURL, options, client), nil
}

// NewAdapterWithClient injects the HTTP client, for tests and shared
// transports.
func NewAdapterWithClient(apiKey, baseURL string, options Options, client *httpclient.Client) (*Adapter, error) {
	if cerr := options.Validate(); cerr != nil {
		return nil, cerr
	}

	return newAdapter(apiKey, baseURL, options, client), nil
}

func newAdapter(apiKey, baseURL string, options Options, client *httpclient.Client) *Adapter {
	return &Adapter{
		client:      client,
		transformer: NewOutboundTransformerWithConfig(&Config{BaseURL: baseURL, Options: options}),
		apiKey:      strings.TrimSpace(apiKey),
		options:     options,
	}
}

func (a *Adapter) ID() llm.ProviderID {
	return llm.ProviderOpenRouter
}

func (a *Adapter) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsThinking:         true,
		SupportsRemoteDiscovery:  true,
	}
}

func (a *Adapter) Run(ctx context.Context, req *llm.Request, actx *llm.Context) (*llm.Response, error) {
	apiKey := a.resolveAPIKey(actx)
	if apiKey == "" {
		return nil, missingAPIKeyError(req.Model.ModelID)
	}

	httpReq, err := a.transformer.TransformRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpReq.Metadata = a.transportMetadata(actx, apiKey)

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, a.mapTransportError(ctx, err, req.Model.ModelID)
	}

	return a.transformer.TransformResponse(ctx, resp)
}

// DiscoverModels lists the aggregator catalog. The listing endpoint is
// public, so a credential is attached only when one resolves.
func (a *Adapter) DiscoverModels(ctx context.Context, opts *llm.DiscoveryOptions, actx *llm.Context) ([]llm.ModelInfo, error) {
	headers := make(http.Header)
	headers.Set("Accept", "application/json")

	httpReq := &httpclient.Request{
		Method:   http.MethodGet,
		URL:      a.transformer.config.BaseURL + modelsPath,
		Headers:  headers,
		Metadata: a.transportMetadata(actx, a.resolveAPIKey(actx)),
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, a.mapTransportError(ctx, err, "")
	}

	models, perr := DecodeModelsList(resp.Body)
	if perr != nil {
		return nil, perr
	}

	return models, nil
}

func (a *Adapter) resolveAPIKey(actx *llm.Context) string {
	if a.apiKey != "" {
		return a.apiKey
	}

	if key := strings.TrimSpace(actx.Get(apiKeyMetadata)); key != "" {
		return key
	}

	return strings.TrimSpace(os.Getenv(apiKeyEnv))
}

func (a *Adapter) mapTransportError(ctx context.Context, err error, model string) *llm.ProviderError {
	var herr *httpclient.Error
	if !errors.As(err, &herr) {
		return llm.NewTransportProviderError(llm.ProviderOpenRouter, "", err.Error())
	}

	perr := a.transformer.TransformError(ctx, herr)
	if perr.Model == "" {
		perr.Model = model
	}

	return perr
}

func missingAPIKeyError(model string) *llm.ProviderError {
	return protocolError(
		model,
		"missing OpenRouter API key; set openrouter.api_key metadata or OPENROUTER_API_KEY env var",
	)
}

// transportMetadata clones the caller metadata and attaches the bearer
// credential plus the optional attribution headers.
func (a *Adapter) transportMetadata(actx *llm.Context, apiKey string) map[string]string {
	metadata := make(map[string]string)

	if actx != nil {
		for key, value := range actx.Metadata {
			metadata[key] = value
		}
	}

	if apiKey != "" {
		metadata[httpclient.AuthBearerTokenKey] = apiKey
	}

	if a.options.HTTPReferer != "" {
		metadata[httpclient.CustomHeaderPrefix+"http-referer"] = a.options.HTTPReferer
	}

	if a.options.XTitle != "" {
		metadata[httpclient.CustomHeaderPrefix+"x-title"] = a.options.XTitle
	}

	return metadata
}
