package reviews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/domain/review"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/httpx"
	"github.com/sirupsen/logrus"
)

var ErrCollaboratorCall = errors.New("collaborator call failed")

const DefaultTimeout = 5 * time.Second

type base struct {
	baseURL string
	http    httpx.Client
	breaker httpx.CircuitBreaker
	timeout time.Duration
	logger  *logrus.Logger
}

func (b *base) call(ctx context.Context, op, method, path string, payload any) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	err := b.breaker.Execute(func() error {
		req, err := httpx.NewJSONRequest(ctx, method, b.baseURL+path, payload)
		if err != nil {
			return err
		}
		resp, err := b.http.Do(req)
		if err != nil {
			return err
		}
		_, err = httpx.ReadResponse(resp)
		return err
	})
	if err != nil {
		b.logger.WithFields(logrus.Fields{"op": op, "path": path}).WithError(err).Error("collaborator call failed")
		return fmt.Errorf("%w: %s: %w", ErrCollaboratorCall, op, err)
	}
	return nil
}

// ReviewService updates review statuses in the UGC service.
type ReviewService struct {
	base
}

var _ review.StatusUpdater = (*ReviewService)(nil)

func NewReviewService(baseURL string, client httpx.Client, breaker httpx.CircuitBreaker, timeout time.Duration, logger *logrus.Logger) *ReviewService {
	return &ReviewService{base: base{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}}
}

type statusUpdate struct {
	Status  moderation.Status `json:"status"`
	Comment string            `json:"comment"`
}

func (s *ReviewService) UpdateReviewStatus(ctx context.Context, reviewID string, status moderation.Status, comment string) error {
	path := "/api/v1/reviews/" + url.PathEscape(reviewID) + "/status"
	return s.call(ctx, "update_review_status", http.MethodPost, path, statusUpdate{Status: status, Comment: comment})
}

// ManualModerationService is the human moderation backlog.
type ManualModerationService struct {
	base
}

var _ review.ManualQueue = (*ManualModerationService)(nil)

func NewManualModerationService(baseURL string, client httpx.Client, breaker httpx.CircuitBreaker, timeout time.Duration, logger *logrus.Logger) *ManualModerationService {
	return &ManualModerationService{base: base{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}}
}

func (s *ManualModerationService) CreateManualReviewEntry(ctx context.Context, entry review.ManualEntry) error {
	return s.call(ctx, "create_manual_review_entry", http.MethodPost, "/api/v1/reviews", entry)
}

func (s *ManualModerationService) DeleteManualReviewEntry(ctx context.Context, reviewID string) error {
	return s.call(ctx, "delete_manual_review_entry", http.MethodDelete, "/api/v1/reviews/"+url.PathEscape(reviewID), nil)
}
