package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
	"github.com/campusregistry/registrar-api/pkg/export"
)

type gradeRepository interface {
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Grade, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	Finalize(ctx context.Context, enrollmentID string, submittedAt time.Time) (bool, error)
	ListAssessments(ctx context.Context, offeringID string) ([]models.Assessment, error)
	FindAssessmentByID(ctx context.Context, id string) (*models.Assessment, error)
	CreateAssessment(ctx context.Context, assessment *models.Assessment) error
	UpdateAssessment(ctx context.Context, assessment *models.Assessment) error
	DeleteAssessment(ctx context.Context, id string) error
	UpsertScore(ctx context.Context, score *models.AssessmentScore) error
	ListScoresByEnrollment(ctx context.Context, enrollmentID string) ([]models.AssessmentScore, []models.Assessment, error)
	WeightSummary(ctx context.Context, offeringID string) (*models.WeightSummary, error)
}

type gradeEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error)
}

// UpsertGradeRequest writes midterm/final numeric grades and the rating.
type UpsertGradeRequest struct {
	MidtermGrade *float64 `json:"midterm_grade" validate:"omitempty,gte=0,lte=100"`
	FinalGrade   *float64 `json:"final_grade" validate:"omitempty,gte=0,lte=100"`
	FinalRating  string   `json:"final_rating"`
	Remarks      string   `json:"remarks"`
}

// CreateAssessmentRequest describes a graded activity.
type CreateAssessmentRequest struct {
	Title          string    `json:"title" validate:"required"`
	AssessmentType string    `json:"assessment_type" validate:"required,assessment_type"`
	MaxScore       float64   `json:"max_score" validate:"gt=0"`
	Weight         float64   `json:"weight" validate:"gte=0,lte=100"`
	DateGiven      time.Time `json:"date_given" validate:"required"`
	Description    string    `json:"description"`
}

// UpdateAssessmentRequest describes assessment changes.
type UpdateAssessmentRequest struct {
	Title          string     `json:"title"`
	AssessmentType string     `json:"assessment_type" validate:"omitempty,assessment_type"`
	MaxScore       *float64   `json:"max_score" validate:"omitempty,gt=0"`
	Weight         *float64   `json:"weight" validate:"omitempty,gte=0,lte=100"`
	DateGiven      *time.Time `json:"date_given"`
	Description    *string    `json:"description"`
}

// RecordScoreRequest records one student's result on an assessment.
type RecordScoreRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Score        float64 `json:"score" validate:"gte=0"`
	Remarks      string  `json:"remarks"`
}

// GradeService manages grade records, assessments and score aggregation.
// The weighted term score is always computed on demand; posting a final
// grade is the separate, explicit Finalize step.
type GradeService struct {
	repo        gradeRepository
	enrollments gradeEnrollmentReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradeService constructs the service.
func NewGradeService(repo gradeRepository, enrollments gradeEnrollmentReader, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &GradeService{
		repo:        repo,
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	svc.validator.RegisterValidation("assessment_type", func(fl validator.FieldLevel) bool {
		switch models.AssessmentType(strings.ToUpper(fl.Field().String())) {
		case models.AssessmentQuiz, models.AssessmentExam, models.AssessmentProject, models.AssessmentRecitation, models.AssessmentAssignment:
			return true
		default:
			return false
		}
	})
	return svc
}

// GetGrade returns the grade record of an enrollment.
func (s *GradeService) GetGrade(ctx context.Context, enrollmentID string) (*models.Grade, error) {
	grade, err := s.repo.FindByEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// UpsertGrade writes the grade record for an enrollment. A finalized
// record rejects further writes.
func (s *GradeService) UpsertGrade(ctx context.Context, enrollmentID string, req UpsertGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	rating := models.FinalRating(req.FinalRating)
	if req.FinalRating != "" && !rating.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "final rating is not on the grading scale")
	}

	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	existing, err := s.repo.FindByEnrollment(ctx, enrollmentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if existing != nil && existing.DateSubmitted != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "grade has already been finalized")
	}

	grade := &models.Grade{
		EnrollmentID: enrollmentID,
		MidtermGrade: req.MidtermGrade,
		FinalGrade:   req.FinalGrade,
		FinalRating:  rating,
		Remarks:      req.Remarks,
	}
	if err := s.repo.Upsert(ctx, grade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	return s.GetGrade(ctx, enrollmentID)
}

// FinalizeGrade stamps the submission date on a grade record. Finalizing
// an already-finalized grade is rejected; the rating must be set first.
func (s *GradeService) FinalizeGrade(ctx context.Context, enrollmentID string) (*models.Grade, error) {
	grade, err := s.GetGrade(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if grade.FinalRating == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "final rating must be set before finalizing")
	}
	stamped, err := s.repo.Finalize(ctx, enrollmentID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize grade")
	}
	if !stamped {
		return nil, appErrors.Clone(appErrors.ErrConflict, "grade has already been finalized")
	}
	return s.GetGrade(ctx, enrollmentID)
}

// ListAssessments returns an offering's graded activities.
func (s *GradeService) ListAssessments(ctx context.Context, offeringID string) ([]models.Assessment, error) {
	assessments, err := s.repo.ListAssessments(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	return assessments, nil
}

// CreateAssessment adds a graded activity to an offering.
func (s *GradeService) CreateAssessment(ctx context.Context, offeringID string, req CreateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}

	assessment := &models.Assessment{
		CourseOfferingID: offeringID,
		Title:            req.Title,
		AssessmentType:   models.AssessmentType(strings.ToUpper(req.AssessmentType)),
		MaxScore:         req.MaxScore,
		Weight:           req.Weight,
		DateGiven:        req.DateGiven,
		Description:      req.Description,
	}
	if err := s.repo.CreateAssessment(ctx, assessment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment")
	}
	return assessment, nil
}

// UpdateAssessment modifies a graded activity.
func (s *GradeService) UpdateAssessment(ctx context.Context, id string, req UpdateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	assessment, err := s.repo.FindAssessmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}

	if req.Title != "" {
		assessment.Title = req.Title
	}
	if req.AssessmentType != "" {
		assessment.AssessmentType = models.AssessmentType(strings.ToUpper(req.AssessmentType))
	}
	if req.MaxScore != nil {
		assessment.MaxScore = *req.MaxScore
	}
	if req.Weight != nil {
		assessment.Weight = *req.Weight
	}
	if req.DateGiven != nil {
		assessment.DateGiven = *req.DateGiven
	}
	if req.Description != nil {
		assessment.Description = *req.Description
	}

	if err := s.repo.UpdateAssessment(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assessment")
	}
	return assessment, nil
}

// DeleteAssessment removes a graded activity and its scores.
func (s *GradeService) DeleteAssessment(ctx context.Context, id string) error {
	if err := s.repo.DeleteAssessment(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assessment")
	}
	return nil
}

// RecordScore writes a student's result on an assessment. The score may
// not exceed the assessment's maximum; re-recording overwrites.
func (s *GradeService) RecordScore(ctx context.Context, assessmentID string, req RecordScoreRequest) (*models.AssessmentScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}

	assessment, err := s.repo.FindAssessmentByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if req.Score > assessment.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds the assessment maximum")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.CourseOfferingID != assessment.CourseOfferingID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment does not belong to the assessment's offering")
	}

	score := &models.AssessmentScore{
		AssessmentID: assessmentID,
		EnrollmentID: req.EnrollmentID,
		Score:        req.Score,
		Remarks:      req.Remarks,
		DateRecorded: s.now(),
	}
	if err := s.repo.UpsertScore(ctx, score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment or enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record score")
	}
	return score, nil
}

// ComputeTermScore aggregates an enrollment's recorded scores into the
// weighted total: each component contributes score/max * weight. Missing
// scores simply contribute nothing; WeightUsed reports how much of the
// declared weight the computation actually covered.
func (s *GradeService) ComputeTermScore(ctx context.Context, enrollmentID string) (*models.TermScore, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	scores, assessments, err := s.repo.ListScoresByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}

	byAssessment := make(map[string]models.Assessment, len(assessments))
	for _, a := range assessments {
		byAssessment[a.ID] = a
	}

	result := &models.TermScore{EnrollmentID: enrollmentID, Components: make([]models.TermScoreComponent, 0, len(scores))}
	for _, score := range scores {
		assessment, ok := byAssessment[score.AssessmentID]
		if !ok || assessment.MaxScore <= 0 {
			continue
		}
		contribution := score.Score / assessment.MaxScore * assessment.Weight
		result.Total += contribution
		result.WeightUsed += assessment.Weight
		result.Components = append(result.Components, models.TermScoreComponent{
			AssessmentID: assessment.ID,
			Title:        assessment.Title,
			Score:        score.Score,
			MaxScore:     assessment.MaxScore,
			Weight:       assessment.Weight,
			Contribution: contribution,
		})
	}
	return result, nil
}

// WeightSummary reports the declared weight total of an offering without
// enforcing that it reaches 100.
func (s *GradeService) WeightSummary(ctx context.Context, offeringID string) (*models.WeightSummary, error) {
	summary, err := s.repo.WeightSummary(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize weights")
	}
	return summary, nil
}

// ExportGradeSheet renders an offering's roster with term scores and
// posted ratings as CSV or PDF bytes.
func (s *GradeService) ExportGradeSheet(ctx context.Context, offeringID, format string) ([]byte, string, error) {
	enrollments, err := s.enrollments.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering roster")
	}

	dataset := export.Dataset{
		Headers: []string{"Student No", "Student Name", "Status", "Term Score", "Final Rating"},
		Rows:    make([]map[string]string, 0, len(enrollments)),
	}
	for _, enrollment := range enrollments {
		row := map[string]string{
			"Student No":   enrollment.StudentNumber,
			"Student Name": enrollment.StudentName,
			"Status":       string(enrollment.Status),
			"Term Score":   "",
			"Final Rating": "",
		}
		if term, err := s.ComputeTermScore(ctx, enrollment.ID); err == nil {
			row["Term Score"] = fmt.Sprintf("%.2f", term.Total)
		}
		if grade, err := s.repo.FindByEnrollment(ctx, enrollment.ID); err == nil {
			row["Final Rating"] = string(grade.FinalRating)
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	switch strings.ToLower(format) {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet")
		}
		return payload, fmt.Sprintf("grade-sheet-%s.csv", offeringID), nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Grade Sheet")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet")
		}
		return payload, fmt.Sprintf("grade-sheet-%s.pdf", offeringID), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
