package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/retry"
	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	ProviderName = "anthropic"
	DefaultModel = "claude-3-5-haiku-latest"
)

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

type Client struct {
	cfg      Config
	client   sdk.Client
	limiter  *rate.Limiter
	logger   *logrus.Logger
	observer ai.Observer
}

var _ ai.Provider = (*Client)(nil)

func NewClient(cfg Config, httpClient httpx.Client, logger *logrus.Logger, observer ai.Observer) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpx.StdClient(httpClient)),
		// retries are driven by ModerateRetry
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
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
		client:   sdk.NewClient(opts...),
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

func (c *Client) Authenticate(context.Context) (string, error) {
	if c.cfg.APIKey == "" {
		return "", moderation.NewServiceError(ai.OpAuthenticate, 1, errors.New("anthropic api key is not configured"))
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

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		System: []sdk.TextBlockParam{
			{Text: ai.SystemPrompt, Type: "text"},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(text)),
		},
		Temperature: sdk.Float(c.cfg.Temperature),
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			return ai.ExtractVerdict(block.Text)
		}
	}
	return nil, fmt.Errorf("%w: no text content returned", moderation.ErrInvalidAPIResponse)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
