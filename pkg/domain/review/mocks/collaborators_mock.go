package mocks

import (
	"context"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/domain/review"
	"github.com/stretchr/testify/mock"
)

type StatusUpdater struct {
	mock.Mock
}

func (m *StatusUpdater) UpdateReviewStatus(ctx context.Context, reviewID string, status moderation.Status, comment string) error {
	args := m.Called(ctx, reviewID, status, comment)
	return args.Error(0)
}

type ManualQueue struct {
	mock.Mock
}

func (m *ManualQueue) CreateManualReviewEntry(ctx context.Context, entry review.ManualEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ManualQueue) DeleteManualReviewEntry(ctx context.Context, reviewID string) error {
	args := m.Called(ctx, reviewID)
	return args.Error(0)
}
