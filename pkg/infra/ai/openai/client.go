package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/retry"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const ProviderName = "openai"

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	ModerateRetry retry.Policy
	RateLimit     float64
}

// Client classifies reviews through an OpenAI-compatible chat endpoint.
type Client struct {
	cfg      Config
	client   *goopenai.Client
	limiter  *rate.Limiter
	logger   *logrus.Logger
	observer ai.Observer
}

var _ ai.Provider = (*Client)(nil)

func NewClient(cfg Config, httpClient httpx.Client, logger *logrus.Logger, observer ai.Observer) *Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if observer == nil {
		observer = ai.NopObserver{}
	}

	c := &Client{
		cfg:      cfg,
		client:   goopenai.NewClientWithConfig(clientCfg),
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		observer: observer,
	}
	if c.cfg.ModerateRetry.Retryable == nil {
		c.cfg.ModerateRetry.Retryable = retryable
	}
	c.cfg.ModerateRetry.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.WithFields(logrus.Fields{
			"provider": ProviderName,
			"op":       ai.OpModerate,
			"attempt":  attempt,
			"delay":    delay.String(),
		}).WithError(err).Warn("ai call failed, retrying")
	}
	return c
}

func (c *Client) Name() string {
	return ProviderName
}

// Authenticate returns the static API key; OpenAI has no token exchange.
func (c *Client) Authenticate(context.Context) (string, error) {
	if c.cfg.APIKey == "" {
		return "", moderation.NewServiceError(ai.OpAuthenticate, 1, errors.New("openai api key is not configured"))
	}
	return c.cfg.APIKey, nil
}

func (c *Client) Moderate(ctx context.Context, text string) (*moderation.AIResult, error) {
	if _, err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	result, attempts, err := retry.Do(ctx, c.cfg.ModerateRetry, func(ctx context.Context) (*moderation.AIResult, error) {
		result, err := c.complete(ctx, text)
		c.observer.ObserveAttempt(ProviderName, ai.OpModerate, err)
		return result, err
	})
	c.observer.ObserveLatency(ProviderName, ai.OpModerate, time.Since(started))
	if err != nil {
		return nil, moderation.NewServiceError(ai.OpModerate, attempts, err)
	}
	return result, nil
}

func (c *Client) complete(ctx context.Context, text string) (*moderation.AIResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: temperature(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: ai.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: choices array is empty", moderation.ErrInvalidAPIResponse)
	}
	return ai.ExtractVerdict(resp.Choices[0].Message.Content)
}

// temperature keeps an explicit zero on the wire; the request field is omitempty.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return true
}
