package ai

import (
	"context"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
)

const (
	OpAuthenticate = "authenticate"
	OpModerate     = "moderate"
)

// Provider is the capability an AI classifier exposes to the pipeline.
type Provider interface {
	Name() string
	// Authenticate returns a usable bearer token, refreshing it if needed.
	Authenticate(ctx context.Context) (string, error)
	// Moderate classifies text. Once retries are exhausted the error is a
	// *moderation.ServiceError.
	Moderate(ctx context.Context, text string) (*moderation.AIResult, error)
}

// Observer receives per-attempt telemetry from providers.
type Observer interface {
	ObserveAttempt(provider, op string, err error)
	ObserveLatency(provider, op string, d time.Duration)
}

type NopObserver struct{}

func (NopObserver) ObserveAttempt(string, string, error) {}

func (NopObserver) ObserveLatency(string, string, time.Duration) {}
