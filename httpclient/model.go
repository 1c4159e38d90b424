package httpclient

import (
	"fmt"
	"net/http"
)

// Request is a provider-neutral HTTP request produced by an outbound
// transformer and executed by Client.
type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	Headers     http.Header `json:"headers"`
	ContentType string      `json:"content_type"`
	Body        []byte      `json:"body,omitempty"`

	// Auth is applied as a header at send time so transformed requests can
	// be logged without the credential attached.
	Auth *AuthConfig `json:"auth,omitempty"`

	// Metadata carries the transport.* context keys (bearer token, custom
	// headers, request-id header override) resolved by the adapter.
	Metadata map[string]string `json:"-"`

	// TransformerMetadata preserves transformer state needed again when the
	// response comes back, such as the requested response format.
	TransformerMetadata map[string]any `json:"-"`
}

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	// Type is "bearer" or "api_key".
	Type string `json:"type"`

	APIKey string `json:"api_key,omitempty"`

	// HeaderKey is the header name used when Type is "api_key".
	HeaderKey string `json:"header_key,omitempty"`
}

const (
	AuthTypeBearer = "bearer"
	AuthTypeAPIKey = "api_key"
)

// Response is a fully-read HTTP response paired with the request that
// produced it.
type Response struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body,omitempty"`

	Request *Request `json:"-"`
}

// RequestID returns the provider request id from the response headers, using
// the header name configured on the request metadata.
func (r *Response) RequestID() string {
	if r == nil || r.Request == nil {
		return r.headerRequestID(DefaultRequestIDHeader)
	}

	return r.headerRequestID(requestIDHeaderName(r.Request.Metadata))
}

func (r *Response) headerRequestID(header string) string {
	if r == nil {
		return ""
	}

	return r.Headers.Get(header)
}

// Error is the transport-level failure surface. StatusCode zero means the
// request never produced an HTTP status (timeout, connection failure, or a
// request that could not be built); those failures are always retryable.
type Error struct {
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
	Message    string `json:"message"`
	Body       []byte `json:"body,omitempty"`
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport failure: %s", e.Message)
	}

	return e.Message
}

// IsTransportFailure reports whether the failure happened before any HTTP
// status was received.
func (e *Error) IsTransportFailure() bool {
	return e.StatusCode == 0
}

// Context metadata keys consumed by the transport. Adapters set these on the
// per-call context; the client folds them into outgoing headers.
const (
	// AuthBearerTokenKey holds a token sent as "Authorization: Bearer ...".
	AuthBearerTokenKey = "transport.auth.bearer_token"

	// CustomHeaderPrefix marks keys whose suffix is a literal header name
	// sent with the given value, e.g. "transport.header.x-api-key".
	CustomHeaderPrefix = "transport.header."

	// RequestIDHeaderKey overrides the response header the client reads the
	// provider request id from.
	RequestIDHeaderKey = "transport.request_id_header"

	// DefaultRequestIDHeader is used when no override is configured.
	DefaultRequestIDHeader = "x-request-id"
)

func requestIDHeaderName(metadata map[string]string) string {
	if name, ok := metadata[RequestIDHeaderKey]; ok && name != "" {
		return name
	}

	return DefaultRequestIDHeader
}
