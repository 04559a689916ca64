package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/google/uuid"
)

type TokenClient interface {
	GetToken(ctx context.Context, req TokenRequest) (Token, error)
}

// TokenRequest exchanges a static credential for a bearer token. AuthHeader
// is sent verbatim as the Authorization header.
type TokenRequest struct {
	TokenURL   string
	AuthHeader string
	Scope      string
	Extra      map[string]string
}

type Token struct {
	AccessToken string
	// ExpiresAt is zero when the endpoint did not report an expiry.
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used skew before its expiry.
func (t Token) Valid(now time.Time, skew time.Duration) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(skew).Before(t.ExpiresAt)
}

type tokenClient struct {
	http    httpx.Client
	timeout time.Duration
	now     func() time.Time
}

func NewTokenClient(opts ...TokenClientOption) TokenClient {
	tc := &tokenClient{
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.http == nil {
		tc.http = httpx.NewFastHTTPClient(httpx.WithTimeout(tc.timeout))
	}
	return tc
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is a unix timestamp in milliseconds.
	ExpiresAt int64 `json:"expires_at"`
	ExpiresIn int64 `json:"expires_in"`
}

func (c *tokenClient) GetToken(ctx context.Context, tr TokenRequest) (Token, error) {
	tokenURL := strings.TrimSpace(tr.TokenURL)
	if tokenURL == "" {
		return Token{}, fmt.Errorf("token url is required")
	}
	if strings.TrimSpace(tr.AuthHeader) == "" {
		return Token{}, fmt.Errorf("auth header is required")
	}

	form := url.Values{}
	if tr.Scope != "" {
		form.Set("scope", tr.Scope)
	}
	for k, v := range tr.Extra {
		if strings.TrimSpace(k) != "" && v != "" {
			form.Set(k, v)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", tr.AuthHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request failed: %w", err)
	}
	body, err := httpx.ReadResponse(resp)
	if err != nil {
		return Token{}, fmt.Errorf("token endpoint: %w", err)
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return Token{}, fmt.Errorf("empty access_token in response")
	}

	token := Token{AccessToken: out.AccessToken}
	switch {
	case out.ExpiresAt > 0:
		token.ExpiresAt = time.UnixMilli(out.ExpiresAt)
	case out.ExpiresIn > 0:
		token.ExpiresAt = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return token, nil
}
