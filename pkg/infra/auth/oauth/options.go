package oauth

import (
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
)

// TokenClientOption is a function that configures a TokenClient
type TokenClientOption func(*tokenClient)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client httpx.Client) TokenClientOption {
	return func(tc *tokenClient) {
		if client != nil {
			tc.http = client
		}
	}
}

// WithTimeout bounds each token request
func WithTimeout(timeout time.Duration) TokenClientOption {
	return func(tc *tokenClient) {
		tc.timeout = timeout
	}
}

func withClock(now func() time.Time) TokenClientOption {
	return func(tc *tokenClient) {
		tc.now = now
	}
}
