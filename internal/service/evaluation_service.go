package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type evaluationRepository interface {
	Create(ctx context.Context, evaluation *models.CourseEvaluation) error
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.CourseEvaluation, error)
	ListByOffering(ctx context.Context, offeringID string) ([]models.CourseEvaluation, error)
}

type evaluationEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// SubmitEvaluationRequest is a student's rating of an enrollment. All
// five dimensions are bounded 1..5.
type SubmitEvaluationRequest struct {
	TeachingEffectiveness int    `json:"teaching_effectiveness" validate:"gte=1,lte=5"`
	CourseContent         int    `json:"course_content" validate:"gte=1,lte=5"`
	LearningResources     int    `json:"learning_resources" validate:"gte=1,lte=5"`
	AssessmentFairness    int    `json:"assessment_fairness" validate:"gte=1,lte=5"`
	OverallSatisfaction   int    `json:"overall_satisfaction" validate:"gte=1,lte=5"`
	Comments              string `json:"comments"`
	IsAnonymous           bool   `json:"is_anonymous"`
}

// EvaluationSummary averages the five dimensions across an offering.
type EvaluationSummary struct {
	CourseOfferingID      string  `json:"course_offering_id"`
	Responses             int     `json:"responses"`
	TeachingEffectiveness float64 `json:"teaching_effectiveness"`
	CourseContent         float64 `json:"course_content"`
	LearningResources     float64 `json:"learning_resources"`
	AssessmentFairness    float64 `json:"assessment_fairness"`
	OverallSatisfaction   float64 `json:"overall_satisfaction"`
}

// EvaluationService collects one evaluation per enrollment.
type EvaluationService struct {
	repo        evaluationRepository
	enrollments evaluationEnrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEvaluationService constructs the service.
func NewEvaluationService(repo evaluationRepository, enrollments evaluationEnrollmentReader, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		repo:        repo,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit records an evaluation. The enrollment must have reached the
// ENROLLED or COMPLETED state, and each enrollment is evaluated once.
func (s *EvaluationService) Submit(ctx context.Context, enrollmentID string, req SubmitEvaluationRequest) (*models.CourseEvaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentEnrolled && enrollment.Status != models.EnrollmentCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only enrolled or completed enrollments can be evaluated")
	}

	evaluation := &models.CourseEvaluation{
		EnrollmentID:          enrollmentID,
		TeachingEffectiveness: req.TeachingEffectiveness,
		CourseContent:         req.CourseContent,
		LearningResources:     req.LearningResources,
		AssessmentFairness:    req.AssessmentFairness,
		OverallSatisfaction:   req.OverallSatisfaction,
		Comments:              req.Comments,
		SubmittedAt:           s.now(),
		IsAnonymous:           req.IsAnonymous,
	}
	if err := s.repo.Create(ctx, evaluation); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment has already been evaluated")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit evaluation")
	}
	return evaluation, nil
}

// GetByEnrollment returns the evaluation attached to an enrollment.
func (s *EvaluationService) GetByEnrollment(ctx context.Context, enrollmentID string) (*models.CourseEvaluation, error) {
	evaluation, err := s.repo.FindByEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	return evaluation, nil
}

// ListByOffering returns the raw evaluations of an offering. Anonymous
// submissions keep their flag; redaction is the caller's concern.
func (s *EvaluationService) ListByOffering(ctx context.Context, offeringID string) ([]models.CourseEvaluation, error) {
	evaluations, err := s.repo.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return evaluations, nil
}

// Summarize averages the five dimensions across an offering.
func (s *EvaluationService) Summarize(ctx context.Context, offeringID string) (*EvaluationSummary, error) {
	evaluations, err := s.repo.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}

	summary := &EvaluationSummary{CourseOfferingID: offeringID, Responses: len(evaluations)}
	if len(evaluations) == 0 {
		return summary, nil
	}
	for _, e := range evaluations {
		summary.TeachingEffectiveness += float64(e.TeachingEffectiveness)
		summary.CourseContent += float64(e.CourseContent)
		summary.LearningResources += float64(e.LearningResources)
		summary.AssessmentFairness += float64(e.AssessmentFairness)
		summary.OverallSatisfaction += float64(e.OverallSatisfaction)
	}
	n := float64(len(evaluations))
	summary.TeachingEffectiveness /= n
	summary.CourseContent /= n
	summary.LearningResources /= n
	summary.AssessmentFairness /= n
	summary.OverallSatisfaction /= n
	return summary, nil
}
