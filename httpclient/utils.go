package httpclient

import (
	"net/http"
)

var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Api-Key":             true,
	"X-Api-Key":           true,
	"X-Api-Secret":        true,
	"X-Api-Token":         true,
	"Cookie":              true,
	"Set-Cookie":          true,
	"Proxy-Authorization": true,
	"Www-Authenticate":    true,
}

// MaskSensitiveHeaders returns a copy of headers with credential-bearing
// values replaced, for safe logging.
func MaskSensitiveHeaders(headers http.Header) http.Header {
	result := make(http.Header, len(headers))

	for key, values := range headers {
		if sensitiveHeaders[http.CanonicalHeaderKey(key)] {
			result[key] = []string{"******"}
			continue
		}

		result[key] = values
	}

	return result
}

// IsHTTPStatusCodeRetryable reports the conventional retry classification:
// 429 and 5xx retry, everything else does not. RetryPolicy consults its own
// configured set; this helper exists for callers composing custom policies.
func IsHTTPStatusCodeRetryable(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}

	return statusCode >= 500
}
