package review

import (
	"context"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
)

// StatusUpdater is the review-owning UGC service.
type StatusUpdater interface {
	UpdateReviewStatus(ctx context.Context, reviewID string, status moderation.Status, comment string) error
}

type ManualEntry struct {
	ReviewID  string `json:"review_id"`
	Title     string `json:"review_title"`
	Text      string `json:"review_text"`
	UserID    string `json:"user_id"`
	MovieID   string `json:"movie_id"`
	Rationale string `json:"auto_moderation_result"`
}

// ManualQueue is the human moderation backlog.
type ManualQueue interface {
	CreateManualReviewEntry(ctx context.Context, entry ManualEntry) error
	DeleteManualReviewEntry(ctx context.Context, reviewID string) error
}
