package factory

import (
	"fmt"
	"strings"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/anthropic"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/gemini"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/gigachat"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/openai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/sirupsen/logrus"
)

const (
	ProviderGigaChat  = gigachat.ProviderName
	ProviderOpenAI    = openai.ProviderName
	ProviderAnthropic = anthropic.ProviderName
	ProviderGemini    = gemini.ProviderName
)

type ProviderLocator interface {
	Get(provider string) (ai.Provider, error)
}

// Configs carries the settings of every provider the locator can build.
type Configs struct {
	GigaChat  gigachat.Config
	OpenAI    openai.Config
	Anthropic anthropic.Config
	Gemini    gemini.Config
}

type providerLocator struct {
	configs    Configs
	httpClient httpx.Client
	overrides  map[string]httpx.Client
	logger     *logrus.Logger
	observer   ai.Observer
}

type LocatorOption func(*providerLocator)

// WithProviderHTTPClient gives one provider its own transport, e.g. one
// with relaxed TLS that must not be shared with the others.
func WithProviderHTTPClient(provider string, client httpx.Client) LocatorOption {
	return func(l *providerLocator) {
		l.overrides[provider] = client
	}
}

func NewProviderLocator(
	configs Configs,
	httpClient httpx.Client,
	logger *logrus.Logger,
	observer ai.Observer,
	opts ...LocatorOption,
) ProviderLocator {
	l := &providerLocator{
		configs:    configs,
		httpClient: httpClient,
		overrides:  make(map[string]httpx.Client),
		logger:     logger,
		observer:   observer,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *providerLocator) client(provider string) httpx.Client {
	if c, ok := l.overrides[provider]; ok {
		return c
	}
	return l.httpClient
}

func (l *providerLocator) Get(provider string) (ai.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderGigaChat, "":
		return gigachat.NewClient(l.configs.GigaChat, l.client(ProviderGigaChat), l.logger, l.observer), nil
	case ProviderOpenAI:
		return openai.NewClient(l.configs.OpenAI, l.client(ProviderOpenAI), l.logger, l.observer), nil
	case ProviderAnthropic:
		return anthropic.NewClient(l.configs.Anthropic, l.client(ProviderAnthropic), l.logger, l.observer), nil
	case ProviderGemini:
		return gemini.NewClient(l.configs.Gemini, l.client(ProviderGemini), l.logger, l.observer), nil
	default:
		return nil, fmt.Errorf("%w: %s", moderation.ErrUnknownProvider, provider)
	}
}
