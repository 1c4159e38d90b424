package openai

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
	apiKeyMetadata = "openai.api_key"
	apiKeyEnv      = "OPENAI_API_KEY"

	defaultTimeout = 30 * time.Second
)

// Adapter implements llm.Adapter for the OpenAI Responses API.
type Adapter struct {
	client      *httpclient.Client
	transformer *OutboundTransformer
	apiKey      string
}

var _ llm.Adapter = (*Adapter)(nil)

// NewAdapter builds an adapter against the public OpenAI endpoint. An empty
// apiKey defers credential resolution to context metadata or the environment.
func NewAdapter(apiKey string) (*Adapter, error) {
	return NewAdapterWithBaseURL(apiKey, DefaultBaseURL)
}

// NewAdapterWithBaseURL builds an adapter against an alternate endpoint.
func NewAdapterWithBaseURL(apiKey, baseURL string) (*Adapter, error) {
	client, err := httpclient.New(defaultTimeout, httpclient.DefaultRetryPolicy())
	if err != nil {
		return nil, err
	}

	return NewAdapterWithClient(apiKey, baseURL, client), nil
}

// NewAdapterWithClient injects the HTTP client, for tests and shared
// transports.
func NewAdapterWithClient(apiKey, baseURL string, client *httpclient.Client) *Adapter {
	return &Adapter{
		client:      client,
		transformer: NewOutboundTransformer(baseURL, ""),
		apiKey:      strings.TrimSpace(apiKey),
	}
}

func (a *Adapter) ID() llm.ProviderID {
	return llm.ProviderOpenAI
}

func (a *Adapter) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsThinking:         false,
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

	httpReq.Metadata = transportMetadata(actx, apiKey)

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, a.mapTransportError(ctx, err, req.Model.ModelID)
	}

	return a.transformer.TransformResponse(ctx, resp)
}

// DiscoverModels lists the account's models from the listing endpoint.
func (a *Adapter) DiscoverModels(ctx context.Context, opts *llm.DiscoveryOptions, actx *llm.Context) ([]llm.ModelInfo, error) {
	apiKey := a.resolveAPIKey(actx)
	if apiKey == "" {
		return nil, missingAPIKeyError("")
	}

	headers := make(http.Header)
	headers.Set("Accept", "application/json")

	httpReq := &httpclient.Request{
		Method:   http.MethodGet,
		URL:      a.transformer.config.BaseURL + modelsPath,
		Headers:  headers,
		Metadata: transportMetadata(actx, apiKey),
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, a.mapTransportError(ctx, err, "")
	}

	models, perr := DecodeModelsList(resp.Body, a.Capabilities())
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
		return llm.NewTransportProviderError(llm.ProviderOpenAI, "", err.Error())
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
		"missing OpenAI API key; set openai.api_key metadata or OPENAI_API_KEY env var",
	)
}

// transportMetadata clones the caller metadata and attaches the bearer token
// so the transformed request stays credential-free until send time.
func transportMetadata(actx *llm.Context, apiKey string) map[string]string {
	metadata := make(map[string]string)

	if actx != nil {
		for key, value := range actx.Metadata {
			metadata[key] = value
		}
	}

	metadata[httpclient.AuthBearerTokenKey] = apiKey

	return metadata
}
