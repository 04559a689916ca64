package dependency_container

import (
	"fmt"

	"github.com/NeuralTrust/ReviewGuard/pkg/app/dispatcher"
	"github.com/NeuralTrust/ReviewGuard/pkg/app/fastpath"
	"github.com/NeuralTrust/ReviewGuard/pkg/app/moderator"
	"github.com/NeuralTrust/ReviewGuard/pkg/config"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/anthropic"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/factory"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/gemini"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/gigachat"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/openai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/cache"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/kafka"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/retry"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/reviews"
	"github.com/NeuralTrust/ReviewGuard/pkg/server"
	"github.com/NeuralTrust/ReviewGuard/pkg/version"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Container struct {
	Metrics    *prometheus.Metrics
	Provider   ai.Provider
	Moderator  *moderator.Moderator
	Dispatcher *dispatcher.Dispatcher
	Consumer   *kafka.Consumer
	OpsServer  *server.OpsServer

	redis *redis.Client
}

type ContainerDI struct {
	Cfg    *config.Config
	Logger *logrus.Logger
}

func NewContainer(di ContainerDI) (*Container, error) {
	cfg, logger := di.Cfg, di.Logger
	metrics := prometheus.NewMetrics()

	gigachatHTTP, aiHTTP := aiClients(cfg)
	servicesHTTP := httpx.NewFastHTTPClient(
		httpx.WithTimeout(cfg.Services.Timeout),
		httpx.WithUserAgent(version.UserAgent()),
	)

	provider, err := newProvider(cfg, gigachatHTTP, aiHTTP, logger, metrics)
	if err != nil {
		return nil, err
	}

	reviewService := reviews.NewReviewService(
		cfg.Services.ReviewURL,
		servicesHTTP,
		httpx.NewCircuitBreaker("review-service", cfg.Services.BreakerTimeout, cfg.Services.BreakerFailures, metrics.ObserveBreaker),
		cfg.Services.Timeout,
		logger,
	)
	manualService := reviews.NewManualModerationService(
		cfg.Services.ManualModerationURL,
		servicesHTTP,
		httpx.NewCircuitBreaker("manual-moderation", cfg.Services.BreakerTimeout, cfg.Services.BreakerFailures, metrics.ObserveBreaker),
		cfg.Services.Timeout,
		logger,
	)

	matcher, err := fastpath.NewMatcher(cfg.Moderation.Languages, cfg.Moderation.BannedWords)
	if err != nil {
		return nil, fmt.Errorf("failed to build banned term matcher: %w", err)
	}
	engine := fastpath.NewEngine(fastpath.Config{
		MaxTextLength: cfg.Moderation.MaxLength,
		CheckLinks:    cfg.Moderation.CheckLinks,
	}, matcher)

	mod := moderator.New(
		engine,
		provider,
		reviewService,
		manualService,
		logger,
		moderator.WithConfidenceThreshold(cfg.Moderation.Confidence),
		moderator.WithRecorder(metrics),
	)

	c := &Container{
		Metrics:   metrics,
		Provider:  provider,
		Moderator: mod,
	}

	guard, err := c.newGuard(cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	c.Dispatcher = dispatcher.New(mod, guard, logger, metrics)

	c.Consumer, err = kafka.NewConsumer(kafka.Config{
		BootstrapServers: cfg.Kafka.BootstrapServers,
		Topic:            cfg.Kafka.Topic,
		GroupID:          cfg.Kafka.GroupID,
		Workers:          cfg.Kafka.Workers,
	}, c.Dispatcher, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	c.OpsServer = server.NewOpsServer(cfg, logger, metrics.Handler())
	return c, nil
}

// aiClients returns the GigaChat transport and the one every other provider
// shares. GigaChat is served with a certificate chain most trust stores lack,
// so only its client may skip verification.
func aiClients(cfg *config.Config) (gigachatHTTP, defaultHTTP *httpx.FastHTTPClient) {
	gigachatHTTP = httpx.NewFastHTTPClient(
		httpx.WithTimeout(cfg.AI.Timeout),
		httpx.WithInsecureSkipVerify(!cfg.GigaChat.SSLVerify),
		httpx.WithUserAgent(version.UserAgent()),
	)
	defaultHTTP = httpx.NewFastHTTPClient(
		httpx.WithTimeout(cfg.AI.Timeout),
		httpx.WithUserAgent(version.UserAgent()),
	)
	return gigachatHTTP, defaultHTTP
}

func newProvider(
	cfg *config.Config,
	gigachatHTTP, defaultHTTP httpx.Client,
	logger *logrus.Logger,
	metrics *prometheus.Metrics,
) (ai.Provider, error) {
	authRetry := retryPolicy(cfg.Retry, cfg.Retry.AuthAttempts)
	moderateRetry := retryPolicy(cfg.Retry, cfg.Retry.ModerateAttempts)

	locator := factory.NewProviderLocator(
		factory.Configs{
			GigaChat: gigachat.Config{
				AuthURL:       cfg.GigaChat.AuthURL,
				ChatURL:       cfg.GigaChat.ChatURL,
				AuthHeader:    cfg.GigaChat.AuthHeader,
				Scope:         cfg.GigaChat.Scope,
				Model:         cfg.GigaChat.Model,
				Temperature:   cfg.AI.Temperature,
				MaxTokens:     cfg.AI.MaxTokens,
				Timeout:       cfg.AI.Timeout,
				AuthRetry:     authRetry,
				ModerateRetry: moderateRetry,
				RateLimit:     cfg.AI.RateLimitRPS,
			},
			OpenAI: openai.Config{
				APIKey:        cfg.OpenAI.APIKey,
				BaseURL:       cfg.OpenAI.BaseURL,
				Model:         cfg.OpenAI.Model,
				Temperature:   cfg.AI.Temperature,
				MaxTokens:     cfg.AI.MaxTokens,
				Timeout:       cfg.AI.Timeout,
				ModerateRetry: moderateRetry,
				RateLimit:     cfg.AI.RateLimitRPS,
			},
			Anthropic: anthropic.Config{
				APIKey:        cfg.Anthropic.APIKey,
				BaseURL:       cfg.Anthropic.BaseURL,
				Model:         cfg.Anthropic.Model,
				Temperature:   cfg.AI.Temperature,
				MaxTokens:     cfg.AI.MaxTokens,
				Timeout:       cfg.AI.Timeout,
				ModerateRetry: moderateRetry,
				RateLimit:     cfg.AI.RateLimitRPS,
			},
			Gemini: gemini.Config{
				APIKey:        cfg.Gemini.APIKey,
				BaseURL:       cfg.Gemini.BaseURL,
				Model:         cfg.Gemini.Model,
				Temperature:   cfg.AI.Temperature,
				Timeout:       cfg.AI.Timeout,
				ModerateRetry: moderateRetry,
				RateLimit:     cfg.AI.RateLimitRPS,
			},
		},
		defaultHTTP,
		logger,
		metrics,
		factory.WithProviderHTTPClient(factory.ProviderGigaChat, gigachatHTTP),
	)
	provider, err := locator.Get(cfg.AI.Provider)
	if err != nil {
		return nil, err
	}
	breaker := httpx.NewCircuitBreaker("ai-"+provider.Name(), cfg.AI.BreakerTimeout, cfg.AI.BreakerFailures, metrics.ObserveBreaker)
	return ai.WithBreaker(provider, breaker), nil
}

func retryPolicy(cfg config.RetryConfig, attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

// newGuard prefers redis so every consumer instance shares one view of
// processed events. Without redis each process remembers its own.
func (c *Container) newGuard(cfg config.RedisConfig, logger *logrus.Logger) (cache.ProcessedGuard, error) {
	if cfg.DedupTTL <= 0 {
		return cache.NopGuard{}, nil
	}
	if !cfg.Enabled {
		return cache.NewMemoryGuard(cfg.DedupTTL), nil
	}
	client, err := cache.NewRedisClient(cache.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
		TLS:      cfg.TLS,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("processed-event guard: %w", err)
	}
	c.redis = client
	return cache.NewRedisGuard(client, cfg.DedupTTL), nil
}

// Close releases connections owned by the container. The consumer is
// closed by whoever runs it.
func (c *Container) Close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
}
