package gigachat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/auth/oauth"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const ProviderName = "gigachat"

type Config struct {
	AuthURL     string
	ChatURL     string
	AuthHeader  string
	Scope       string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	AuthRetry     retry.Policy
	ModerateRetry retry.Policy
	// RateLimit caps outbound completions per second. Zero disables it.
	RateLimit float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	Stream         bool          `json:"stream"`
	UpdateInterval int           `json:"update_interval"`
	Messages       []chatMessage `json:"messages"`
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

type Client struct {
	cfg      Config
	http     httpx.Client
	tokens   tokenSource
	limiter  *rate.Limiter
	logger   *logrus.Logger
	observer ai.Observer
}

var _ ai.Provider = (*Client)(nil)

func NewClient(cfg Config, httpClient httpx.Client, logger *logrus.Logger, observer ai.Observer) *Client {
	tokenClient := oauth.NewTokenClient(oauth.WithHTTPClient(httpClient), oauth.WithTimeout(cfg.Timeout))
	tokens := oauth.NewCachedSource(tokenClient, oauth.TokenRequest{
		TokenURL:   cfg.AuthURL,
		AuthHeader: cfg.AuthHeader,
		Scope:      cfg.Scope,
	})
	return newClient(cfg, httpClient, tokens, logger, observer)
}

func newClient(cfg Config, httpClient httpx.Client, tokens tokenSource, logger *logrus.Logger, observer ai.Observer) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if observer == nil {
		observer = ai.NopObserver{}
	}
	c := &Client{
		cfg:      cfg,
		http:     httpClient,
		tokens:   tokens,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		observer: observer,
	}
	c.cfg.AuthRetry = c.withHooks(ai.OpAuthenticate, cfg.AuthRetry)
	c.cfg.ModerateRetry = c.withHooks(ai.OpModerate, cfg.ModerateRetry)
	return c
}

func (c *Client) withHooks(op string, p retry.Policy) retry.Policy {
	if p.Retryable == nil {
		p.Retryable = retryable
	}
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.WithFields(logrus.Fields{
			"provider": ProviderName,
			"op":       op,
			"attempt":  attempt,
			"delay":    delay.String(),
		}).WithError(err).Warn("ai call failed, retrying")
	}
	return p
}

func (c *Client) Name() string {
	return ProviderName
}

func (c *Client) Authenticate(ctx context.Context) (string, error) {
	token, attempts, err := retry.Do(ctx, c.cfg.AuthRetry, func(ctx context.Context) (string, error) {
		token, err := c.tokens.Token(ctx)
		c.observer.ObserveAttempt(ProviderName, ai.OpAuthenticate, err)
		return token, err
	})
	if err != nil {
		return "", moderation.NewServiceError(ai.OpAuthenticate, attempts, err)
	}
	return token, nil
}

// Moderate reuses the token Authenticate returned for its first attempt.
// A 401 drops it and the next attempt authenticates again under AuthRetry.
func (c *Client) Moderate(ctx context.Context, text string) (*moderation.AIResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, attempts, err := retry.Do(ctx, c.cfg.ModerateRetry, func(ctx context.Context) (*moderation.AIResult, error) {
		if token == "" {
			fresh, err := c.Authenticate(ctx)
			if err != nil {
				return nil, err
			}
			token = fresh
		}
		result, err := c.complete(ctx, token, text)
		if se, ok := httpx.IsStatusError(err); ok && se.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
			token = ""
		}
		c.observer.ObserveAttempt(ProviderName, ai.OpModerate, err)
		return result, err
	})
	c.observer.ObserveLatency(ProviderName, ai.OpModerate, time.Since(started))
	if err != nil {
		var se *moderation.ServiceError
		if errors.As(err, &se) && se.Op == ai.OpAuthenticate {
			return nil, err
		}
		return nil, moderation.NewServiceError(ai.OpModerate, attempts, err)
	}
	return result, nil
}

func (c *Client) complete(ctx context.Context, token, text string) (*moderation.AIResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := httpx.NewJSONRequest(ctx, http.MethodPost, c.cfg.ChatURL, chatRequest{
		Model:          c.cfg.Model,
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		Stream:         false,
		UpdateInterval: 0,
		Messages: []chatMessage{
			{Role: "system", Content: ai.SystemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	body, err := httpx.ReadResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("chat endpoint: %w", err)
	}

	return ai.ParseCompletion(body)
}

// retryable treats client errors other than 401 and 429 as permanent.
// A failed re-authentication already spent its own retries.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, moderation.ErrServiceUnavailable) {
		return false
	}
	if se, ok := httpx.IsStatusError(err); ok {
		return se.Temporary() || se.StatusCode == http.StatusUnauthorized
	}
	return true
}
