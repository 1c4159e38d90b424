// Package transformer defines the outbound translation contract between the
// canonical request model and provider wire protocols.
package transformer

import (
	"context"
	"errors"

	"github.com/looplj/modelrelay/httpclient"
	"github.com/looplj/modelrelay/llm"
)

var (
	// ErrInvalidRequest marks caller misuse, such as a nil request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidResponse marks caller misuse, such as a nil response.
	ErrInvalidResponse = errors.New("invalid response")
)

// Outbound translates canonical requests to one provider's wire protocol and
// decodes the wire responses back. Implementations are stateless per call and
// safe for concurrent use.
type Outbound interface {
	// TransformRequest builds the provider HTTP request. Validation
	// failures return *llm.ProviderError; encode-time warnings travel on
	// the request's TransformerMetadata.
	TransformRequest(ctx context.Context, req *llm.Request) (*httpclient.Request, error)

	// TransformResponse decodes a successful provider response.
	TransformResponse(ctx context.Context, resp *httpclient.Response) (*llm.Response, error)

	// TransformError maps a transport-level failure onto the provider
	// error taxonomy, parsing provider error envelopes where present.
	TransformError(ctx context.Context, herr *httpclient.Error) *llm.ProviderError
}

// TransformerMetadata keys shared by all outbound transformers.
const (
	// MetaRequestWarnings holds []llm.Warning produced while encoding.
	MetaRequestWarnings = "request_warnings"

	// MetaResponseFormat holds the llm.ResponseFormat the caller requested,
	// needed again when decoding structured output.
	MetaResponseFormat = "response_format"
)

// AttachRequestState records encode warnings and the requested response
// format on the outgoing request so the decode side can recover them.
func AttachRequestState(req *httpclient.Request, format llm.ResponseFormat, warnings []llm.Warning) {
	if req.TransformerMetadata == nil {
		req.TransformerMetadata = make(map[string]any, 2)
	}

	req.TransformerMetadata[MetaResponseFormat] = format

	if len(warnings) > 0 {
		req.TransformerMetadata[MetaRequestWarnings] = warnings
	}
}

// RequestWarnings returns the encode warnings attached to the request that
// produced resp, if any.
func RequestWarnings(resp *httpclient.Response) []llm.Warning {
	if resp == nil || resp.Request == nil {
		return nil
	}

	warnings, _ := resp.Request.TransformerMetadata[MetaRequestWarnings].([]llm.Warning)

	return warnings
}

// RequestedResponseFormat returns the response format recorded on the request
// that produced resp, defaulting to text.
func RequestedResponseFormat(resp *httpclient.Response) llm.ResponseFormat {
	if resp == nil || resp.Request == nil {
		return llm.ResponseFormat{}
	}

	format, _ := resp.Request.TransformerMetadata[MetaResponseFormat].(llm.ResponseFormat)

	return format
}
