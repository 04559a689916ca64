package mocks

import (
	"context"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/stretchr/testify/mock"
)

type Provider struct {
	mock.Mock
}

func (m *Provider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *Provider) Authenticate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *Provider) Moderate(ctx context.Context, text string) (*moderation.AIResult, error) {
	args := m.Called(ctx, text)
	result, _ := args.Get(0).(*moderation.AIResult)
	return result, args.Error(1)
}
