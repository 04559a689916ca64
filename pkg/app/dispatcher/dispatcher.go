package dispatcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/domain/review"
	"github.com/NeuralTrust/ReviewGuard/pkg/infra/cache"
	"github.com/sirupsen/logrus"
)

const (
	OutcomeModerated = "moderated"
	OutcomeRemoved   = "removed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

var ErrMalformedEvent = errors.New("malformed review event")

type Pipeline interface {
	Moderate(ctx context.Context, sub review.Submission) (moderation.Verdict, error)
	RemoveFromManualQueue(ctx context.Context, reviewID string) error
}

type Recorder interface {
	ObserveEvent(eventType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvent(string, string) {}

// Dispatcher routes review lifecycle events to the moderation pipeline.
type Dispatcher struct {
	pipeline Pipeline
	guard    cache.ProcessedGuard
	logger   *logrus.Logger
	recorder Recorder
}

func New(pipeline Pipeline, guard cache.ProcessedGuard, logger *logrus.Logger, recorder Recorder) *Dispatcher {
	if guard == nil {
		guard = cache.NopGuard{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Dispatcher{
		pipeline: pipeline,
		guard:    guard,
		logger:   logger,
		recorder: recorder,
	}
}

// HandleMessage decodes a raw queue message and dispatches it.
func (d *Dispatcher) HandleMessage(ctx context.Context, payload []byte) error {
	var event review.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		d.recorder.ObserveEvent("unknown", OutcomeMalformed)
		d.logger.WithError(err).Error("failed to decode review event")
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return d.Handle(ctx, event)
}

// Handle processes a single event. Its error is meant to be logged by the
// caller, never to stop consumption.
func (d *Dispatcher) Handle(ctx context.Context, event review.Event) error {
	log := d.logger.WithFields(logrus.Fields{
		"review_id":  event.ReviewID,
		"event_type": event.EventType,
	})

	outcome, err := d.handle(ctx, event, log)
	d.recorder.ObserveEvent(string(event.EventType), outcome)
	if err != nil {
		log.WithError(err).Error("failed to process review event")
		return err
	}
	log.WithField("outcome", outcome).Debug("review event processed")
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, event review.Event, log *logrus.Entry) (string, error) {
	switch {
	case event.TriggersModeration():
		if event.ReviewID == "" {
			return OutcomeMalformed, fmt.Errorf("%w: review_id is empty", ErrMalformedEvent)
		}
		return d.moderate(ctx, event, log)

	case event.TriggersManualRemoval():
		if event.ReviewID == "" {
			return OutcomeMalformed, fmt.Errorf("%w: review_id is empty", ErrMalformedEvent)
		}
		if err := d.pipeline.RemoveFromManualQueue(ctx, event.ReviewID); err != nil {
			return OutcomeFailed, err
		}
		log.Info("pending review removed from manual queue")
		return OutcomeRemoved, nil

	default:
		return OutcomeIgnored, nil
	}
}

func (d *Dispatcher) moderate(ctx context.Context, event review.Event, log *logrus.Entry) (string, error) {
	key := ProcessedKey(event)

	seen, err := d.guard.Seen(ctx, key)
	if err != nil {
		log.WithError(err).Warn("processed-event guard unavailable, moderating anyway")
	}
	if seen {
		log.Info("duplicate review event skipped")
		return OutcomeDuplicate, nil
	}

	verdict, err := d.pipeline.Moderate(ctx, event.Submission())
	if err != nil {
		return OutcomeFailed, err
	}

	if err := d.guard.Mark(ctx, key); err != nil {
		log.WithError(err).Warn("failed to record processed review event")
	}
	log.WithFields(logrus.Fields{
		"status": verdict.Status,
		"source": verdict.Source,
	}).Info("review moderated")
	return OutcomeModerated, nil
}

// ProcessedKey identifies a moderation request by review, event type and content.
func ProcessedKey(event review.Event) string {
	h := sha256.New()
	h.Write([]byte(event.Title))
	h.Write([]byte{0})
	h.Write([]byte(event.Text))
	sum := h.Sum(nil)
	return fmt.Sprintf("%s:%s:%s", event.ReviewID, event.EventType, hex.EncodeToString(sum[:8]))
}
