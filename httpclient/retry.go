package httpclient

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// RetryPolicy bounds the retry loop. MaxAttempts counts the initial attempt,
// so MaxAttempts == 1 disables retries entirely.
type RetryPolicy struct {
	MaxAttempts          int           `json:"max_attempts"`
	InitialBackoff       time.Duration `json:"initial_backoff"`
	MaxBackoff           time.Duration `json:"max_backoff"`
	RetryableStatusCodes []int         `json:"retryable_status_codes"`
}

// DefaultRetryPolicy mirrors the defaults most provider SDKs ship: three
// attempts, 100ms initial backoff doubling up to 2s, retrying timeouts,
// rate limits, and transient 5xx.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          3,
		InitialBackoff:       100 * time.Millisecond,
		MaxBackoff:           2 * time.Second,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts == 0 {
		return fmt.Errorf("max_attempts must be at least 1")
	}

	if p.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}

	if p.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff_ms must be at least 1")
	}

	if p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("max_backoff_ms must be >= initial_backoff_ms")
	}

	for _, code := range p.RetryableStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("retryable status code out of range: %d", code)
		}
	}

	return nil
}

// IsRetryableStatus reports whether the policy retries the given HTTP status.
func (p RetryPolicy) IsRetryableStatus(statusCode int) bool {
	return lo.Contains(p.RetryableStatusCodes, statusCode)
}

// BackoffFor returns the sleep before retry number retryIndex (zero-based):
// min(initial * 2^retryIndex, max).
func (p RetryPolicy) BackoffFor(retryIndex int) time.Duration {
	backoff := p.InitialBackoff
	for i := 0; i < retryIndex; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}

	return min(backoff, p.MaxBackoff)
}
