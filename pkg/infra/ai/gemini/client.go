package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	ProviderName = "gemini"
	DefaultModel = "gemini-2.0-flash"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration

	ModerateRetry retry.Policy
	RateLimit     float64
}

// Client classifies reviews with the Gemini API. The SDK client is built
// lazily because its constructor can fail and the locator cannot.
type Client struct {
	cfg        Config
	httpClient httpx.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	observer   ai.Observer

	once    sync.Once
	sdk     *genai.Client
	initErr error
}

var _ ai.Provider = (*Client)(nil)

func NewClient(cfg Config, httpClient httpx.Client, logger *logrus.Logger, observer ai.Observer) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if observer == nil {
		observer = ai.NopObserver{}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		observer:   observer,
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

func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if c.cfg.APIKey == "" {
		return "", moderation.NewServiceError(ai.OpAuthenticate, 1, errors.New("gemini api key is not configured"))
	}
	if _, err := c.client(ctx); err != nil {
		return "", moderation.NewServiceError(ai.OpAuthenticate, 1, err)
	}
	return c.cfg.APIKey, nil
}

func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     c.cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpx.StdClient(c.httpClient),
		}
		if c.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
		}
		c.sdk, c.initErr = genai.NewClient(ctx, cc)
	})
	return c.sdk, c.initErr
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

	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	temperature := float32(c.cfg.Temperature)
	resp, err := sdk.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: ai.SystemPrompt}},
		},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	content := resp.Text()
	if content == "" {
		return nil, fmt.Errorf("%w: no text content returned", moderation.ErrInvalidAPIResponse)
	}
	return ai.ExtractVerdict(content)
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled)
}
