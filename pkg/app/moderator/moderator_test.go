package moderator

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/NeuralTrust/ReviewGuard/pkg/app/fastpath"
	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/NeuralTrust/ReviewGuard/pkg/domain/review"
	reviewmocks "github.com/NeuralTrust/ReviewGuard/pkg/domain/review/mocks"
	aimocks "github.com/NeuralTrust/ReviewGuard/pkg/infra/ai/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	classifier *aimocks.Provider
	reviews    *reviewmocks.StatusUpdater
	manual     *reviewmocks.ManualQueue
	recorded   []moderation.Status
	moderator  *Moderator
}

type recorderFunc func(moderation.Status, moderation.Source)

func (f recorderFunc) ObserveVerdict(s moderation.Status, src moderation.Source) { f(s, src) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	matcher, err := fastpath.NewMatcher(fastpath.DefaultLanguages, []string{"banned_word", "оскорбление"})
	require.NoError(t, err)
	engine := fastpath.NewEngine(fastpath.Config{MaxTextLength: 200, CheckLinks: true}, matcher)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		classifier: &aimocks.Provider{},
		reviews:    &reviewmocks.StatusUpdater{},
		manual:     &reviewmocks.ManualQueue{},
	}
	f.moderator = New(engine, f.classifier, f.reviews, f.manual, logger,
		WithConfidenceThreshold(0.7),
		WithRecorder(recorderFunc(func(s moderation.Status, _ moderation.Source) {
			f.recorded = append(f.recorded, s)
		})),
	)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.classifier.AssertExpectations(t)
	f.reviews.AssertExpectations(t)
	f.manual.AssertExpectations(t)
}

func submission() review.Submission {
	return review.Submission{ReviewID: "r1", Title: "Great", Body: "Lovely film", UserID: "u1", MovieID: "m1"}
}

func aiResult(status moderation.Status, confidence float64) *moderation.AIResult {
	return &moderation.AIResult{Status: status, Tags: []byte(`""`), Issues: []moderation.Issue{}, Confidence: confidence}
}

func TestModerate_FastPathRejects(t *testing.T) {
	f := newFixture(t)
	sub := submission()
	sub.Body = "contains banned_word"
	f.reviews.On("UpdateReviewStatus", mock.Anything, "r1", moderation.StatusRejected, moderation.FastModerationFailMessage).
		Return(nil).Once()

	verdict, err := f.moderator.Moderate(context.Background(), sub)

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusRejected, verdict.Status)
	assert.Equal(t, moderation.SourceFastPath, verdict.Source)
	assert.Nil(t, verdict.Confidence)
	f.classifier.AssertNotCalled(t, "Moderate", mock.Anything, mock.Anything)
	f.manual.AssertNotCalled(t, "CreateManualReviewEntry", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestModerate_FastPathChecksTitleToo(t *testing.T) {
	f := newFixture(t)
	sub := submission()
	sub.Title = "Сплошные оскорбления"
	f.reviews.On("UpdateReviewStatus", mock.Anything, "r1", moderation.StatusRejected, moderation.FastModerationFailMessage).
		Return(nil).Once()

	verdict, err := f.moderator.Moderate(context.Background(), sub)

	require.NoError(t, err)
	assert.Equal(t, moderation.SourceFastPath, verdict.Source)
	f.assertExpectations(t)
}

func TestModerate_FastPathLengthAndLinks(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "too long", body: strings.Repeat("a", 200)},
		{name: "link", body: "see https://spam.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sub := submission()
			sub.Body = tt.body
			f.reviews.On("UpdateReviewStatus", mock.Anything, "r1", moderation.StatusRejected, moderation.FastModerationFailMessage).
				Return(nil).Once()

			verdict := f.moderator.Decide(context.Background(), sub)
			_, err := f.moderator.Moderate(context.Background(), sub)

			require.NoError(t, err)
			assert.Equal(t, moderation.StatusRejected, verdict.Status)
			f.classifier.AssertNotCalled(t, "Moderate", mock.Anything, mock.Anything)
		})
	}
}

func TestModerate_AIApproved(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Moderate", mock.Anything, "Great\n\nLovely film").
		Return(aiResult(moderation.StatusApproved, 0.95), nil).Once()
	f.reviews.On("UpdateReviewStatus", mock.Anything, "r1", moderation.StatusApproved, mock.AnythingOfType("string")).
		Return(nil).Once()

	verdict, err := f.moderator.Moderate(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusApproved, verdict.Status)
	assert.Equal(t, moderation.SourceAI, verdict.Source)
	require.NotNil(t, verdict.Confidence)
	assert.Equal(t, 0.95, *verdict.Confidence)
	assert.Equal(t, []moderation.Status{moderation.StatusApproved}, f.recorded)
	f.manual.AssertNotCalled(t, "CreateManualReviewEntry", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestModerate_AIRejectedWithComment(t *testing.T) {
	f := newFixture(t)
	law := "ст. 282 УК РФ"
	result := aiResult(moderation.StatusRejected, 0.9)
	result.Issues = []moderation.Issue{{Category: "экстремизм", Description: "Призыв к ненависти", Law: &law}}
	expectedComment, err := result.Comment()
	require.NoError(t, err)

	f.classifier.On("Moderate", mock.Anything, mock.Anything).Return(result, nil).Once()
	f.reviews.On("UpdateReviewStatus", mock.Anything, "r1", moderation.StatusRejected, expectedComment).Return(nil).Once()

	verdict, err := f.moderator.Moderate(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusRejected, verdict.Status)
	assert.Equal(t, expectedComment, verdict.Comment)
	assert.Equal(t, result.Issues, verdict.Issues)

	parsed, err := moderation.ParseComment(verdict.Comment)
	require.NoError(t, err)
	require.Len(t, parsed.Issues, 1)
	assert.Equal(t, "экстремизм", parsed.Issues[0].Category)
	assert.Equal(t, "Призыв к ненависти", parsed.Issues[0].Description)
	require.NotNil(t, parsed.Issues[0].Law)
	assert.Equal(t, law, *parsed.Issues[0].Law)
	f.assertExpectations(t)
}

func TestModerate_LowConfidenceOverridesApproval(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Moderate", mock.Anything, mock.Anything).
		Return(aiResult(moderation.StatusApproved, 0.5), nil).Once()
	f.manual.On("CreateManualReviewEntry", mock.Anything, mock.MatchedBy(func(e review.ManualEntry) bool {
		parsed, err := moderation.ParseComment(e.Rationale)
		return err == nil &&
			e.ReviewID == "r1" && e.Title == "Great" && e.Text == "Lovely film" &&
			e.UserID == "u1" && e.MovieID == "m1" &&
			parsed.Status == moderation.StatusApproved && parsed.Confidence == 0.5
	})).Return(nil).Once()

	verdict, err := f.moderator.Moderate(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusPending, verdict.Status)
	assert.Equal(t, moderation.SourceAI, verdict.Source)
	f.reviews.AssertNotCalled(t, "UpdateReviewStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestModerate_ThresholdIsInclusive(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Moderate", mock.Anything, mock.Anything).
		Return(aiResult(moderation.StatusRejected, 0.7), nil).Once()

	verdict := f.moderator.Decide(context.Background(), submission())

	assert.Equal(t, moderation.StatusRejected, verdict.Status)
}

func TestModerate_AIPendingGoesToManualQueue(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Moderate", mock.Anything, mock.Anything).
		Return(aiResult(moderation.StatusPending, 0.99), nil).Once()
	f.manual.On("CreateManualReviewEntry", mock.Anything, mock.Anything).Return(nil).Once()

	verdict, err := f.moderator.Moderate(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusPending, verdict.Status)
	f.assertExpectations(t)
}

func TestModerate_AIErrorBecomesPending(t *testing.T) {
	f := newFixture(t)
	aiErr := moderation.NewServiceError("moderate", 3, moderation.ErrInvalidAPIResponse)
	f.classifier.On("Moderate", mock.Anything, mock.Anything).Return(nil, aiErr).Once()
	f.manual.On("CreateManualReviewEntry", mock.Anything, mock.MatchedBy(func(e review.ManualEntry) bool {
		return e.Rationale == moderation.AIErrorCommentPrefix+aiErr.Error()
	})).Return(nil).Once()

	verdict, err := f.moderator.Moderate(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, moderation.StatusPending, verdict.Status)
	assert.Equal(t, moderation.SourceAIError, verdict.Source)
	assert.True(t, strings.HasPrefix(verdict.Comment, moderation.AIErrorCommentPrefix))
	assert.Contains(t, verdict.Comment, "ai moderation service unavailable")
	f.reviews.AssertNotCalled(t, "UpdateReviewStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestModerate_CollaboratorErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Moderate", mock.Anything, mock.Anything).
		Return(aiResult(moderation.StatusApproved, 0.95), nil).Once()
	f.reviews.On("UpdateReviewStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("ugc api down")).Once()

	verdict, err := f.moderator.Moderate(context.Background(), submission())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ugc api down")
	assert.Equal(t, moderation.StatusApproved, verdict.Status)
}

func TestModerate_CancelledContextSkipsSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.classifier.On("Moderate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	_, err := f.moderator.Moderate(ctx, submission())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.recorded)
	f.manual.AssertNotCalled(t, "CreateManualReviewEntry", mock.Anything, mock.Anything)
	f.reviews.AssertNotCalled(t, "UpdateReviewStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveFromManualQueue(t *testing.T) {
	f := newFixture(t)
	f.manual.On("DeleteManualReviewEntry", mock.Anything, "r2").Return(nil).Once()

	require.NoError(t, f.moderator.RemoveFromManualQueue(context.Background(), "r2"))

	f.manual.On("DeleteManualReviewEntry", mock.Anything, "r3").Return(errors.New("not found")).Once()
	err := f.moderator.RemoveFromManualQueue(context.Background(), "r3")
	assert.ErrorContains(t, err, "not found")
	f.assertExpectations(t)
}

func TestNew_DefaultThreshold(t *testing.T) {
	m := New(nil, nil, nil, nil, logrus.New())
	assert.Equal(t, DefaultConfidenceThreshold, m.threshold)
}
