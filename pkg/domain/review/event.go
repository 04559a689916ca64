package review

import "github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"

type EventType string

const (
	EventReviewCreated       EventType = "review_created"
	EventReviewStatusUpdated EventType = "review_status_updated"
	EventReviewDeleted       EventType = "review_deleted"
)

// Event is the review lifecycle message published by the UGC service.
type Event struct {
	EventType EventType `json:"event_type"`
	ReviewID  string    `json:"review_id"`
	Title     string    `json:"title"`
	Text      string    `json:"review_text"`
	UserID    string    `json:"user_id"`
	MovieID   string    `json:"movie_id"`
	Status    string    `json:"status,omitempty"`
}

func (e Event) TriggersModeration() bool {
	return e.EventType == EventReviewCreated || e.EventType == EventReviewStatusUpdated
}

func (e Event) TriggersManualRemoval() bool {
	return e.EventType == EventReviewDeleted && moderation.Status(e.Status) == moderation.StatusPending
}

func (e Event) Submission() Submission {
	return Submission{
		ReviewID: e.ReviewID,
		Title:    e.Title,
		Body:     e.Text,
		UserID:   e.UserID,
		MovieID:  e.MovieID,
	}
}
