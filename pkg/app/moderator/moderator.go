package moderator

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/ReviewGuard/pkg/app/fastpath"
	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/domain/review"
	"github.com/sirupsen/logrus"
)

// DefaultConfidenceThreshold is the minimum AI confidence for an automatic verdict.
const DefaultConfidenceThreshold = 0.7

type FastChecker interface {
	Evaluate(text string) fastpath.Result
}

type Classifier interface {
	Moderate(ctx context.Context, text string) (*moderation.AIResult, error)
}

type Recorder interface {
	ObserveVerdict(status moderation.Status, source moderation.Source)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVerdict(moderation.Status, moderation.Source) {}

// Moderator runs the moderation pipeline for a single review and routes the
// verdict to the review service or the manual moderation queue.
type Moderator struct {
	fast       FastChecker
	classifier Classifier
	reviews    review.StatusUpdater
	manual     review.ManualQueue
	threshold  float64
	logger     *logrus.Logger
	recorder   Recorder
}

type Option func(*Moderator)

func WithConfidenceThreshold(threshold float64) Option {
	return func(m *Moderator) {
		m.threshold = threshold
	}
}

func WithRecorder(r Recorder) Option {
	return func(m *Moderator) {
		if r != nil {
			m.recorder = r
		}
	}
}

func New(
	fast FastChecker,
	classifier Classifier,
	reviews review.StatusUpdater,
	manual review.ManualQueue,
	logger *logrus.Logger,
	opts ...Option,
) *Moderator {
	m := &Moderator{
		fast:       fast,
		classifier: classifier,
		reviews:    reviews,
		manual:     manual,
		threshold:  DefaultConfidenceThreshold,
		logger:     logger,
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Decide computes the verdict for sub without touching any collaborator.
// AI failures never escape: they become a pending verdict.
func (m *Moderator) Decide(ctx context.Context, sub review.Submission) moderation.Verdict {
	text := sub.CombinedText()
	log := m.logger.WithField("review_id", sub.ReviewID)

	if res := m.fast.Evaluate(text); !res.Pass {
		log.WithField("rule", res.FailedRule).Info("review rejected by fast-path rules")
		return moderation.Verdict{
			Status:  moderation.StatusRejected,
			Comment: moderation.FastModerationFailMessage,
			Source:  moderation.SourceFastPath,
		}
	}

	result, err := m.classifier.Moderate(ctx, text)
	if err != nil {
		log.WithError(err).Warn("ai moderation failed, routing to manual review")
		return moderation.Verdict{
			Status:  moderation.StatusPending,
			Comment: moderation.AIErrorCommentPrefix + err.Error(),
			Source:  moderation.SourceAIError,
		}
	}

	comment, err := result.Comment()
	if err != nil {
		log.WithError(err).Warn("failed to serialize ai result, routing to manual review")
		return moderation.Verdict{
			Status:  moderation.StatusPending,
			Comment: moderation.AIErrorCommentPrefix + err.Error(),
			Source:  moderation.SourceAIError,
		}
	}

	status := result.Status
	if result.Confidence < m.threshold {
		status = moderation.StatusPending
	}
	confidence := result.Confidence

	log.WithFields(logrus.Fields{
		"ai_status":  result.Status,
		"status":     status,
		"confidence": confidence,
	}).Info("ai moderation completed")

	return moderation.Verdict{
		Status:     status,
		Comment:    comment,
		Confidence: &confidence,
		Issues:     result.Issues,
		Source:     moderation.SourceAI,
	}
}

// Moderate decides on sub and performs exactly one collaborator call.
// Nothing is sent once ctx is done.
func (m *Moderator) Moderate(ctx context.Context, sub review.Submission) (moderation.Verdict, error) {
	verdict := m.Decide(ctx, sub)
	if err := ctx.Err(); err != nil {
		return verdict, fmt.Errorf("moderation of review %s abandoned: %w", sub.ReviewID, err)
	}
	m.recorder.ObserveVerdict(verdict.Status, verdict.Source)

	if verdict.NeedsManualReview() {
		err := m.manual.CreateManualReviewEntry(ctx, review.ManualEntry{
			ReviewID:  sub.ReviewID,
			Title:     sub.Title,
			Text:      sub.Body,
			UserID:    sub.UserID,
			MovieID:   sub.MovieID,
			Rationale: verdict.Comment,
		})
		if err != nil {
			return verdict, fmt.Errorf("create manual review entry: %w", err)
		}
		return verdict, nil
	}

	if err := m.reviews.UpdateReviewStatus(ctx, sub.ReviewID, verdict.Status, verdict.Comment); err != nil {
		return verdict, fmt.Errorf("update review status: %w", err)
	}
	return verdict, nil
}

// RemoveFromManualQueue drops a deleted pending review from the manual queue.
func (m *Moderator) RemoveFromManualQueue(ctx context.Context, reviewID string) error {
	if err := m.manual.DeleteManualReviewEntry(ctx, reviewID); err != nil {
		return fmt.Errorf("delete manual review entry: %w", err)
	}
	return nil
}
