package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type mockEvaluationRepo struct {
	byEnrollment map[string]models.CourseEvaluation
	offerings    map[string]string
}

func newMockEvaluationRepo() *mockEvaluationRepo {
	return &mockEvaluationRepo{byEnrollment: make(map[string]models.CourseEvaluation), offerings: make(map[string]string)}
}

func (m *mockEvaluationRepo) Create(ctx context.Context, evaluation *models.CourseEvaluation) error {
	if _, ok := m.byEnrollment[evaluation.EnrollmentID]; ok {
		return repository.ErrDuplicateKey
	}
	evaluation.ID = "eval-" + evaluation.EnrollmentID
	m.byEnrollment[evaluation.EnrollmentID] = *evaluation
	return nil
}

func (m *mockEvaluationRepo) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.CourseEvaluation, error) {
	if e, ok := m.byEnrollment[enrollmentID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationRepo) ListByOffering(ctx context.Context, offeringID string) ([]models.CourseEvaluation, error) {
	var out []models.CourseEvaluation
	for enrollmentID, e := range m.byEnrollment {
		if m.offerings[enrollmentID] == offeringID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockEvaluationEnrollments struct {
	enrollments map[string]models.EnrollmentDetail
}

func (m *mockEvaluationEnrollments) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func evaluationFixture(statuses map[string]models.EnrollmentStatus) (*EvaluationService, *mockEvaluationRepo) {
	repo := newMockEvaluationRepo()
	enrollments := &mockEvaluationEnrollments{enrollments: make(map[string]models.EnrollmentDetail)}
	for id, status := range statuses {
		enrollments.enrollments[id] = models.EnrollmentDetail{
			Enrollment: models.Enrollment{ID: id, CourseOfferingID: "off-1", Status: status},
		}
		repo.offerings[id] = "off-1"
	}
	return NewEvaluationService(repo, enrollments, nil, nil), repo
}

func validEvaluation() SubmitEvaluationRequest {
	return SubmitEvaluationRequest{
		TeachingEffectiveness: 5,
		CourseContent:         4,
		LearningResources:     4,
		AssessmentFairness:    5,
		OverallSatisfaction:   5,
		Comments:              "clear lectures",
	}
}

func TestSubmitEvaluation(t *testing.T) {
	svc, _ := evaluationFixture(map[string]models.EnrollmentStatus{"enr-1": models.EnrollmentCompleted})

	evaluation, err := svc.Submit(context.Background(), "enr-1", validEvaluation())
	require.NoError(t, err)
	assert.Equal(t, 5, evaluation.TeachingEffectiveness)
	assert.False(t, evaluation.SubmittedAt.IsZero())
}

func TestSubmitEvaluationRatingOutOfRange(t *testing.T) {
	svc, _ := evaluationFixture(map[string]models.EnrollmentStatus{"enr-1": models.EnrollmentEnrolled})

	req := validEvaluation()
	req.CourseContent = 6
	_, err := svc.Submit(context.Background(), "enr-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	req = validEvaluation()
	req.OverallSatisfaction = 0
	_, err = svc.Submit(context.Background(), "enr-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestSubmitEvaluationStatusGate(t *testing.T) {
	svc, _ := evaluationFixture(map[string]models.EnrollmentStatus{"enr-1": models.EnrollmentPending})

	_, err := svc.Submit(context.Background(), "enr-1", validEvaluation())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestSubmitEvaluationOncePerEnrollment(t *testing.T) {
	svc, _ := evaluationFixture(map[string]models.EnrollmentStatus{"enr-1": models.EnrollmentCompleted})

	_, err := svc.Submit(context.Background(), "enr-1", validEvaluation())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "enr-1", validEvaluation())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestSummarizeAveragesDimensions(t *testing.T) {
	svc, _ := evaluationFixture(map[string]models.EnrollmentStatus{
		"enr-1": models.EnrollmentCompleted,
		"enr-2": models.EnrollmentCompleted,
	})

	first := validEvaluation()
	_, err := svc.Submit(context.Background(), "enr-1", first)
	require.NoError(t, err)

	second := SubmitEvaluationRequest{
		TeachingEffectiveness: 3,
		CourseContent:         2,
		LearningResources:     2,
		AssessmentFairness:    3,
		OverallSatisfaction:   3,
	}
	_, err = svc.Submit(context.Background(), "enr-2", second)
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Responses)
	assert.InDelta(t, 4.0, summary.TeachingEffectiveness, 0.0001)
	assert.InDelta(t, 3.0, summary.CourseContent, 0.0001)
	assert.InDelta(t, 4.0, summary.OverallSatisfaction, 0.0001)
}

func TestSummarizeEmptyOffering(t *testing.T) {
	svc, _ := evaluationFixture(nil)

	summary, err := svc.Summarize(context.Background(), "off-9")
	require.NoError(t, err)
	assert.Zero(t, summary.Responses)
	assert.Zero(t, summary.OverallSatisfaction)
}
