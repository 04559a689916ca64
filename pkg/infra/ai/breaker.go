package ai

import (
	"context"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
)

// breakerProvider stops calling a provider that keeps failing after its
// own retries, so a dead endpoint turns into fast pending verdicts.
type breakerProvider struct {
	Provider
	breaker httpx.CircuitBreaker
}

func WithBreaker(p Provider, breaker httpx.CircuitBreaker) Provider {
	if breaker == nil {
		return p
	}
	return &breakerProvider{Provider: p, breaker: breaker}
}

func (b *breakerProvider) Moderate(ctx context.Context, text string) (*moderation.AIResult, error) {
	var result *moderation.AIResult
	err := b.breaker.Execute(func() error {
		var err error
		result, err = b.Provider.Moderate(ctx, text)
		return err
	})
	if httpx.IsOpen(err) {
		// Refused without calling the provider.
		return nil, moderation.NewServiceError(OpModerate, 0, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
