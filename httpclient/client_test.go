package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, policy RetryPolicy) *Client {
	t.Helper()

	client, err := New(5*time.Second, policy)
	require.NoError(t, err)

	return client
}

func fastPolicy(maxAttempts int, codes ...int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          maxAttempts,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           time.Millisecond,
		RetryableStatusCodes: codes,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, DefaultRetryPolicy())
	require.Error(t, err)

	_, err = New(time.Second, RetryPolicy{MaxAttempts: 0})
	require.Error(t, err)

	_, err = New(time.Second, RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Millisecond,
	})
	require.Error(t, err)
}

func TestDo_Success(t *testing.T) {
	var got *http.Request

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("x-request-id", "req-1")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(1))

	resp, err := client.Do(context.Background(), &Request{
		Method:      http.MethodPost,
		URL:         server.URL,
		ContentType: "application/json",
		Body:        []byte(`{}`),
		Auth:        &AuthConfig{Type: AuthTypeBearer, APIKey: "sk-test"},
		Metadata: map[string]string{
			CustomHeaderPrefix + "x-title": "relay",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok": true}`, string(resp.Body))
	assert.Equal(t, "req-1", resp.RequestID())

	assert.Equal(t, "Bearer sk-test", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "relay", got.Header.Get("x-title"))
}

func TestDo_MetadataBearerDoesNotOverrideAuth(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(1))

	_, err := client.Do(context.Background(), &Request{
		Method:   http.MethodGet,
		URL:      server.URL,
		Auth:     &AuthConfig{Type: AuthTypeBearer, APIKey: "sk-explicit"},
		Metadata: map[string]string{AuthBearerTokenKey: "sk-metadata"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-explicit", gotAuth)
}

func TestDo_RetriesRetryableStatus(t *testing.T) {
	var attempts int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++

		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(3, 503))

	resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_ExhaustedRetriesReturnLastError(t *testing.T) {
	var attempts int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++

		w.Header().Set("x-request-id", "req-429")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(3, 429))

	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, herr.StatusCode)
	assert.Equal(t, "req-429", herr.RequestID)
	assert.False(t, herr.IsTransportFailure())
	assert.JSONEq(t, `{"error": "rate limited"}`, string(herr.Body))
}

func TestDo_NonRetryableStatusFailsFast(t *testing.T) {
	var attempts int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++

		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(3, 503))

	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, herr.StatusCode)
	assert.Equal(t, "http status 400", herr.Message)
}

func TestDo_TransportFailureRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, fastPolicy(2))

	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.Error(t, err)

	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.True(t, herr.IsTransportFailure())
	assert.Contains(t, herr.Error(), "transport failure")
}

func TestDo_RequestIDHeaderOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("request-id", "anthropic-style")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(1))

	_, err := client.Do(context.Background(), &Request{
		Method:   http.MethodGet,
		URL:      server.URL,
		Metadata: map[string]string{RequestIDHeaderKey: "request-id"},
	})
	require.Error(t, err)

	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "anthropic-style", herr.RequestID)
}

func TestBackoffFor(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
	}

	assert.Equal(t, 100*time.Millisecond, policy.BackoffFor(0))
	assert.Equal(t, 200*time.Millisecond, policy.BackoffFor(1))
	assert.Equal(t, 300*time.Millisecond, policy.BackoffFor(2))
	assert.Equal(t, 300*time.Millisecond, policy.BackoffFor(3))
}
