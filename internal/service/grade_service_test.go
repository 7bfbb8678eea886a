package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type mockGradeRepo struct {
	grades      map[string]models.Grade
	assessments map[string]models.Assessment
	scores      map[string]models.AssessmentScore
	seq         int
}

func newMockGradeRepo() *mockGradeRepo {
	return &mockGradeRepo{
		grades:      make(map[string]models.Grade),
		assessments: make(map[string]models.Assessment),
		scores:      make(map[string]models.AssessmentScore),
	}
}

func (m *mockGradeRepo) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Grade, error) {
	if g, ok := m.grades[enrollmentID]; ok {
		return &g, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) Upsert(ctx context.Context, grade *models.Grade) error {
	existing, ok := m.grades[grade.EnrollmentID]
	if ok {
		grade.ID = existing.ID
		grade.DateSubmitted = existing.DateSubmitted
	} else {
		m.seq++
		grade.ID = "grd"
	}
	m.grades[grade.EnrollmentID] = *grade
	return nil
}

func (m *mockGradeRepo) Finalize(ctx context.Context, enrollmentID string, submittedAt time.Time) (bool, error) {
	g, ok := m.grades[enrollmentID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if g.DateSubmitted != nil {
		return false, nil
	}
	g.DateSubmitted = &submittedAt
	m.grades[enrollmentID] = g
	return true, nil
}

func (m *mockGradeRepo) ListAssessments(ctx context.Context, offeringID string) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, a := range m.assessments {
		if a.CourseOfferingID == offeringID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockGradeRepo) FindAssessmentByID(ctx context.Context, id string) (*models.Assessment, error) {
	if a, ok := m.assessments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	m.seq++
	if assessment.ID == "" {
		assessment.ID = "asm-" + assessment.Title
	}
	m.assessments[assessment.ID] = *assessment
	return nil
}

func (m *mockGradeRepo) UpdateAssessment(ctx context.Context, assessment *models.Assessment) error {
	m.assessments[assessment.ID] = *assessment
	return nil
}

func (m *mockGradeRepo) DeleteAssessment(ctx context.Context, id string) error {
	if _, ok := m.assessments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.assessments, id)
	return nil
}

func (m *mockGradeRepo) UpsertScore(ctx context.Context, score *models.AssessmentScore) error {
	m.scores[score.AssessmentID+"/"+score.EnrollmentID] = *score
	return nil
}

func (m *mockGradeRepo) ListScoresByEnrollment(ctx context.Context, enrollmentID string) ([]models.AssessmentScore, []models.Assessment, error) {
	var scores []models.AssessmentScore
	var assessments []models.Assessment
	for _, s := range m.scores {
		if s.EnrollmentID == enrollmentID {
			scores = append(scores, s)
			if a, ok := m.assessments[s.AssessmentID]; ok {
				assessments = append(assessments, a)
			}
		}
	}
	return scores, assessments, nil
}

func (m *mockGradeRepo) WeightSummary(ctx context.Context, offeringID string) (*models.WeightSummary, error) {
	summary := &models.WeightSummary{CourseOfferingID: offeringID}
	for _, a := range m.assessments {
		if a.CourseOfferingID == offeringID {
			summary.TotalWeight += a.Weight
			summary.AssessmentCount++
		}
	}
	return summary, nil
}

type mockGradeEnrollments struct {
	enrollments map[string]models.EnrollmentDetail
}

func (m *mockGradeEnrollments) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeEnrollments) ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.CourseOfferingID == offeringID {
			out = append(out, e)
		}
	}
	return out, nil
}

func gradeFixture() (*GradeService, *mockGradeRepo) {
	repo := newMockGradeRepo()
	enrollments := &mockGradeEnrollments{enrollments: map[string]models.EnrollmentDetail{
		"enr-1": {
			Enrollment:    models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseOfferingID: "off-1", Status: models.EnrollmentEnrolled},
			StudentNumber: "2025-0001",
			StudentName:   "Reyes, Ana",
		},
	}}
	svc := NewGradeService(repo, enrollments, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 12, 10, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestUpsertGradeInvalidRating(t *testing.T) {
	svc, _ := gradeFixture()

	_, err := svc.UpsertGrade(context.Background(), "enr-1", UpsertGradeRequest{FinalRating: "2.10"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestUpsertGradeThenFinalize(t *testing.T) {
	svc, _ := gradeFixture()

	grade, err := svc.UpsertGrade(context.Background(), "enr-1", UpsertGradeRequest{FinalRating: "1.25"})
	require.NoError(t, err)
	assert.Nil(t, grade.DateSubmitted)

	finalized, err := svc.FinalizeGrade(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, finalized.DateSubmitted)
}

func TestFinalizeRequiresRating(t *testing.T) {
	svc, _ := gradeFixture()

	_, err := svc.UpsertGrade(context.Background(), "enr-1", UpsertGradeRequest{Remarks: "incomplete"})
	require.NoError(t, err)

	_, err = svc.FinalizeGrade(context.Background(), "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestFinalizeTwiceRejected(t *testing.T) {
	svc, _ := gradeFixture()

	_, err := svc.UpsertGrade(context.Background(), "enr-1", UpsertGradeRequest{FinalRating: "3.00"})
	require.NoError(t, err)
	_, err = svc.FinalizeGrade(context.Background(), "enr-1")
	require.NoError(t, err)

	_, err = svc.FinalizeGrade(context.Background(), "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestUpsertAfterFinalizeRejected(t *testing.T) {
	svc, _ := gradeFixture()

	_, err := svc.UpsertGrade(context.Background(), "enr-1", UpsertGradeRequest{FinalRating: "2.00"})
	require.NoError(t, err)
	_, err = svc.FinalizeGrade(context.Background(), "enr-1")
	require.NoError(t, err)

	_, err = svc.UpsertGrade(context.Background(), "enr-1", UpsertGradeRequest{FinalRating: "1.00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestRecordScoreCapsAtMax(t *testing.T) {
	svc, repo := gradeFixture()
	repo.assessments["asm-1"] = models.Assessment{ID: "asm-1", CourseOfferingID: "off-1", Title: "Quiz 1", MaxScore: 50, Weight: 30}

	_, err := svc.RecordScore(context.Background(), "asm-1", RecordScoreRequest{EnrollmentID: "enr-1", Score: 55})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestRecordScoreWrongOffering(t *testing.T) {
	svc, repo := gradeFixture()
	repo.assessments["asm-other"] = models.Assessment{ID: "asm-other", CourseOfferingID: "off-9", Title: "Exam", MaxScore: 100, Weight: 40}

	_, err := svc.RecordScore(context.Background(), "asm-other", RecordScoreRequest{EnrollmentID: "enr-1", Score: 80})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestComputeTermScoreWeighted(t *testing.T) {
	svc, repo := gradeFixture()
	repo.assessments["asm-1"] = models.Assessment{ID: "asm-1", CourseOfferingID: "off-1", Title: "Quiz 1", MaxScore: 50, Weight: 30}
	repo.assessments["asm-2"] = models.Assessment{ID: "asm-2", CourseOfferingID: "off-1", Title: "Midterm", MaxScore: 100, Weight: 40}

	_, err := svc.RecordScore(context.Background(), "asm-1", RecordScoreRequest{EnrollmentID: "enr-1", Score: 40})
	require.NoError(t, err)
	_, err = svc.RecordScore(context.Background(), "asm-2", RecordScoreRequest{EnrollmentID: "enr-1", Score: 85})
	require.NoError(t, err)

	term, err := svc.ComputeTermScore(context.Background(), "enr-1")
	require.NoError(t, err)
	// 40/50 * 30 = 24.0, 85/100 * 40 = 34.0
	assert.InDelta(t, 58.0, term.Total, 0.0001)
	assert.InDelta(t, 70.0, term.WeightUsed, 0.0001)
	assert.Len(t, term.Components, 2)
}

func TestComputeTermScoreMissingScores(t *testing.T) {
	svc, repo := gradeFixture()
	repo.assessments["asm-1"] = models.Assessment{ID: "asm-1", CourseOfferingID: "off-1", Title: "Quiz 1", MaxScore: 50, Weight: 30}

	term, err := svc.ComputeTermScore(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Zero(t, term.Total)
	assert.Zero(t, term.WeightUsed)
	assert.Empty(t, term.Components)
}

func TestCreateAssessmentRejectsUnknownType(t *testing.T) {
	svc, _ := gradeFixture()

	_, err := svc.CreateAssessment(context.Background(), "off-1", CreateAssessmentRequest{
		Title:          "Pop quiz",
		AssessmentType: "SURPRISE",
		MaxScore:       10,
		Weight:         5,
		DateGiven:      time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestWeightSummaryCountsDeclaredWeight(t *testing.T) {
	svc, repo := gradeFixture()
	repo.assessments["asm-1"] = models.Assessment{ID: "asm-1", CourseOfferingID: "off-1", Weight: 30}
	repo.assessments["asm-2"] = models.Assessment{ID: "asm-2", CourseOfferingID: "off-1", Weight: 40}

	summary, err := svc.WeightSummary(context.Background(), "off-1")
	require.NoError(t, err)
	assert.InDelta(t, 70.0, summary.TotalWeight, 0.0001)
	assert.Equal(t, 2, summary.AssessmentCount)
}

func TestExportGradeSheetCSV(t *testing.T) {
	svc, repo := gradeFixture()
	repo.assessments["asm-1"] = models.Assessment{ID: "asm-1", CourseOfferingID: "off-1", Title: "Quiz 1", MaxScore: 50, Weight: 30}
	_, err := svc.RecordScore(context.Background(), "asm-1", RecordScoreRequest{EnrollmentID: "enr-1", Score: 40})
	require.NoError(t, err)
	_, err = svc.UpsertGrade(context.Background(), "enr-1", UpsertGradeRequest{FinalRating: "1.75"})
	require.NoError(t, err)

	payload, filename, err := svc.ExportGradeSheet(context.Background(), "off-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "grade-sheet-off-1.csv", filename)

	body := string(payload)
	assert.True(t, strings.Contains(body, "Student No"))
	assert.True(t, strings.Contains(body, "2025-0001"))
	assert.True(t, strings.Contains(body, "24.00"))
	assert.True(t, strings.Contains(body, "1.75"))
}

func TestExportGradeSheetUnknownFormat(t *testing.T) {
	svc, _ := gradeFixture()

	_, _, err := svc.ExportGradeSheet(context.Background(), "off-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}
