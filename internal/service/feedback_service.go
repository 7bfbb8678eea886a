package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	FindByID(ctx context.Context, id string) (*models.Feedback, error)
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error)
	UpdateStatus(ctx context.Context, feedback *models.Feedback) error
}

// SubmitFeedbackRequest is a student's complaint, suggestion, inquiry or
// praise.
type SubmitFeedbackRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	FeedbackType string `json:"feedback_type" validate:"required,feedback_type"`
	Subject      string `json:"subject" validate:"required"`
	Message      string `json:"message" validate:"required"`
}

// RespondFeedbackRequest moves feedback forward along its lifecycle,
// optionally attaching a staff response.
type RespondFeedbackRequest struct {
	Status   string `json:"status" validate:"required,feedback_status"`
	Response string `json:"response"`
}

// FeedbackService handles the student feedback inbox. The lifecycle is
// strictly forward-only: PENDING, REVIEWED, RESOLVED, CLOSED.
type FeedbackService struct {
	repo      feedbackRepository
	students  enrollmentStudentReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFeedbackService constructs the service.
func NewFeedbackService(repo feedbackRepository, students enrollmentStudentReader, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &FeedbackService{
		repo:      repo,
		students:  students,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	svc.validator.RegisterValidation("feedback_type", func(fl validator.FieldLevel) bool {
		switch models.FeedbackType(strings.ToUpper(fl.Field().String())) {
		case models.FeedbackComplaint, models.FeedbackSuggestion, models.FeedbackInquiry, models.FeedbackPraise:
			return true
		default:
			return false
		}
	})
	svc.validator.RegisterValidation("feedback_status", func(fl validator.FieldLevel) bool {
		switch models.FeedbackStatus(strings.ToUpper(fl.Field().String())) {
		case models.FeedbackPending, models.FeedbackReviewed, models.FeedbackResolved, models.FeedbackClosed:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns feedback entries with pagination metadata.
func (s *FeedbackService) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error) {
	feedback, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return feedback, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one feedback entry.
func (s *FeedbackService) Get(ctx context.Context, id string) (*models.Feedback, error) {
	feedback, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	return feedback, nil
}

// Submit records new feedback in the PENDING state.
func (s *FeedbackService) Submit(ctx context.Context, req SubmitFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	feedback := &models.Feedback{
		StudentID:    req.StudentID,
		FeedbackType: models.FeedbackType(strings.ToUpper(req.FeedbackType)),
		Subject:      req.Subject,
		Message:      req.Message,
		Status:       models.FeedbackPending,
		SubmittedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit feedback")
	}
	return feedback, nil
}

// Respond advances feedback along the lifecycle. Backward or same-state
// moves are rejected; attaching a response stamps the responder and time.
func (s *FeedbackService) Respond(ctx context.Context, id string, req RespondFeedbackRequest, responderID string) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	target := models.FeedbackStatus(strings.ToUpper(req.Status))

	feedback, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if feedback.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalState, "feedback is closed")
	}
	if !feedback.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "feedback status only moves forward")
	}

	feedback.Status = target
	if req.Response != "" {
		respondedAt := s.now()
		feedback.Response = req.Response
		feedback.RespondedByID = &responderID
		feedback.RespondedAt = &respondedAt
	}
	if err := s.repo.UpdateStatus(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update feedback")
	}
	return feedback, nil
}
