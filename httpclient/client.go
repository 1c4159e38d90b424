package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/looplj/modelrelay/internal/log"
)

// Client executes transformed requests with bounded retries. It is safe for
// concurrent use.
type Client struct {
	http   *http.Client
	policy RetryPolicy
}

// New builds a client with the given per-attempt timeout. The policy is
// validated up front so misconfiguration fails at construction, not at the
// first call.
func New(timeout time.Duration, policy RetryPolicy) (*Client, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout: %d ms", timeout.Milliseconds())
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	return &Client{
		http:   &http.Client{Timeout: timeout},
		policy: policy,
	}, nil
}

// Policy returns the retry policy the client was built with.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Do executes the request, retrying transport failures and retryable HTTP
// statuses with exponential backoff. On success the response body is fully
// read. On failure the returned error is always a *Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	callID := uuid.NewString()

	var lastErr *Error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.policy.BackoffFor(attempt - 2)
			log.Warn(ctx, "retrying request",
				log.String("call_id", callID),
				log.String("url", req.URL),
				log.Int("attempt", attempt),
				log.Duration("backoff", backoff),
				log.Err(lastErr),
			)

			select {
			case <-ctx.Done():
				return nil, &Error{Message: ctx.Err().Error()}
			case <-time.After(backoff):
			}
		}

		resp, err := c.doOnce(ctx, req, callID)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !c.shouldRetry(err) {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, req *Request, callID string) (*Response, *Error) {
	httpReq, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to build request: %v", err)}
	}

	log.Debug(ctx, "sending request",
		log.String("call_id", callID),
		log.String("method", req.Method),
		log.String("url", req.URL),
		log.Any("headers", MaskSensitiveHeaders(httpReq.Header)),
	)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &Error{
			StatusCode: httpResp.StatusCode,
			RequestID:  httpResp.Header.Get(requestIDHeaderName(req.Metadata)),
			Message:    statusErrorMessage(httpResp.StatusCode, body),
			Body:       body,
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Request:    req,
	}, nil
}

func (c *Client) shouldRetry(err *Error) bool {
	if err.IsTransportFailure() {
		return true
	}

	return c.policy.IsRetryableStatus(err.StatusCode)
}

func (c *Client) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	if err := applyAuth(httpReq.Header, req.Auth); err != nil {
		return nil, err
	}

	applyContextHeaders(httpReq.Header, req.Metadata)

	return httpReq, nil
}

func applyAuth(headers http.Header, auth *AuthConfig) error {
	if auth == nil {
		return nil
	}

	switch auth.Type {
	case AuthTypeBearer:
		headers.Set("Authorization", "Bearer "+auth.APIKey)
	case AuthTypeAPIKey:
		if auth.HeaderKey == "" {
			return fmt.Errorf("api_key auth requires a header key")
		}

		headers.Set(auth.HeaderKey, auth.APIKey)
	default:
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}

	return nil
}

// applyContextHeaders folds the transport.* context metadata into the header
// set. Explicit transformer headers win over metadata-derived ones.
func applyContextHeaders(headers http.Header, metadata map[string]string) {
	for key, value := range metadata {
		switch {
		case key == AuthBearerTokenKey:
			if headers.Get("Authorization") == "" {
				headers.Set("Authorization", "Bearer "+value)
			}
		case strings.HasPrefix(key, CustomHeaderPrefix):
			name := strings.TrimPrefix(key, CustomHeaderPrefix)
			if name != "" && headers.Get(name) == "" {
				headers.Set(name, value)
			}
		}
	}
}

func statusErrorMessage(statusCode int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("http status %d", statusCode)
	}

	return text
}
