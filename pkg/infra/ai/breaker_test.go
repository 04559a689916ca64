package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/mocks"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWithBreaker_PassesResultThrough(t *testing.T) {
	provider := new(mocks.Provider)
	want := &moderation.AIResult{Status: moderation.StatusApproved, Confidence: 0.9}
	provider.On("Moderate", mock.Anything, "text").Return(want, nil)

	p := ai.WithBreaker(provider, httpx.NewCircuitBreaker("ai", time.Minute, 2))
	got, err := p.Moderate(context.Background(), "text")

	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestWithBreaker_OpensAfterFailures(t *testing.T) {
	provider := new(mocks.Provider)
	provider.On("Moderate", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Twice()

	p := ai.WithBreaker(provider, httpx.NewCircuitBreaker("ai", time.Minute, 2))
	for i := 0; i < 2; i++ {
		_, err := p.Moderate(context.Background(), "text")
		require.Error(t, err)
	}

	_, err := p.Moderate(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, httpx.IsOpen(err))
	assert.True(t, moderation.IsServiceUnavailable(err))
	var se *moderation.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ai.OpModerate, se.Op)
	assert.Equal(t, 0, se.Attempts)
	provider.AssertNumberOfCalls(t, "Moderate", 2)
}

func TestWithBreaker_NilBreaker(t *testing.T) {
	provider := new(mocks.Provider)
	assert.Same(t, provider, ai.WithBreaker(provider, nil))
}
