package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type mockFeedbackRepo struct {
	entries map[string]models.Feedback
}

func newMockFeedbackRepo() *mockFeedbackRepo {
	return &mockFeedbackRepo{entries: make(map[string]models.Feedback)}
}

func (m *mockFeedbackRepo) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = "fb-1"
	}
	m.entries[feedback.ID] = *feedback
	return nil
}

func (m *mockFeedbackRepo) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	if f, ok := m.entries[id]; ok {
		return &f, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeedbackRepo) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	out := make([]models.Feedback, 0, len(m.entries))
	for _, f := range m.entries {
		out = append(out, f)
	}
	return out, len(out), nil
}

func (m *mockFeedbackRepo) UpdateStatus(ctx context.Context, feedback *models.Feedback) error {
	if _, ok := m.entries[feedback.ID]; !ok {
		return sql.ErrNoRows
	}
	m.entries[feedback.ID] = *feedback
	return nil
}

func feedbackFixture() *FeedbackService {
	students := &mockEnrollmentStudents{students: map[string]models.StudentDetail{
		"stu-1": activeStudent("stu-1"),
	}}
	svc := NewFeedbackService(newMockFeedbackRepo(), students, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func submitFeedback(t *testing.T, svc *FeedbackService) *models.Feedback {
	t.Helper()
	feedback, err := svc.Submit(context.Background(), SubmitFeedbackRequest{
		StudentID:    "stu-1",
		FeedbackType: "COMPLAINT",
		Subject:      "Library hours",
		Message:      "The library closes too early during finals week.",
	})
	require.NoError(t, err)
	require.Equal(t, models.FeedbackPending, feedback.Status)
	require.False(t, feedback.SubmittedAt.IsZero())
	return feedback
}

func TestFeedbackForwardProgress(t *testing.T) {
	svc := feedbackFixture()
	feedback := submitFeedback(t, svc)

	for _, status := range []models.FeedbackStatus{models.FeedbackReviewed, models.FeedbackResolved, models.FeedbackClosed} {
		updated, err := svc.Respond(context.Background(), feedback.ID, RespondFeedbackRequest{Status: string(status)}, "staff-1")
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}
}

func TestFeedbackBackwardRejected(t *testing.T) {
	svc := feedbackFixture()
	feedback := submitFeedback(t, svc)

	_, err := svc.Respond(context.Background(), feedback.ID, RespondFeedbackRequest{Status: string(models.FeedbackResolved)}, "staff-1")
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), feedback.ID, RespondFeedbackRequest{Status: string(models.FeedbackReviewed)}, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errorCode(err))
}

func TestFeedbackClosedIsTerminal(t *testing.T) {
	svc := feedbackFixture()
	feedback := submitFeedback(t, svc)

	_, err := svc.Respond(context.Background(), feedback.ID, RespondFeedbackRequest{Status: string(models.FeedbackClosed)}, "staff-1")
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), feedback.ID, RespondFeedbackRequest{Status: string(models.FeedbackResolved)}, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalState.Code, errorCode(err))
}

func TestFeedbackResponseStampsResponder(t *testing.T) {
	svc := feedbackFixture()
	feedback := submitFeedback(t, svc)

	updated, err := svc.Respond(context.Background(), feedback.ID, RespondFeedbackRequest{
		Status:   string(models.FeedbackReviewed),
		Response: "Extended hours start next week.",
	}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, "Extended hours start next week.", updated.Response)
	require.NotNil(t, updated.RespondedByID)
	assert.Equal(t, "staff-1", *updated.RespondedByID)
	require.NotNil(t, updated.RespondedAt)
}

func TestFeedbackStatusOnlyMoveKeepsResponderEmpty(t *testing.T) {
	svc := feedbackFixture()
	feedback := submitFeedback(t, svc)

	updated, err := svc.Respond(context.Background(), feedback.ID, RespondFeedbackRequest{Status: string(models.FeedbackReviewed)}, "staff-1")
	require.NoError(t, err)
	assert.Nil(t, updated.RespondedByID)
	assert.Empty(t, updated.Response)
}

func TestFeedbackUnknownTypeRejected(t *testing.T) {
	svc := feedbackFixture()

	_, err := svc.Submit(context.Background(), SubmitFeedbackRequest{
		StudentID:    "stu-1",
		FeedbackType: "RANT",
		Subject:      "x",
		Message:      "y",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}
