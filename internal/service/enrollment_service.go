package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	CreateWithSlot(ctx context.Context, enrollment *models.Enrollment, force bool) error
	UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) error
	DropWithRelease(ctx context.Context, id, offeringID string, droppedAt time.Time) error
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type enrollmentOfferingReader interface {
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type semesterReader interface {
	FindSemesterByID(ctx context.Context, id string) (*models.Semester, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EnrollRequest registers a student into an offering. Override skips the
// enrollment window and capacity checks; it is reserved for registrars.
type EnrollRequest struct {
	StudentID        string `json:"student_id" validate:"required"`
	CourseOfferingID string `json:"course_offering_id" validate:"required"`
	Override         bool   `json:"override"`
}

// UpdateEnrollmentStatusRequest moves an enrollment along its lifecycle.
type UpdateEnrollmentStatusRequest struct {
	Status string `json:"status" validate:"required,enrollment_status"`
}

// EnrollmentService orchestrates enrollment workflows: slot-guarded
// registration, lifecycle transitions and the slot-releasing drop.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  enrollmentStudentReader
	offerings enrollmentOfferingReader
	semesters semesterReader
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentReader, offerings enrollmentOfferingReader, semesters semesterReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EnrollmentService{
		repo:      repo,
		students:  students,
		offerings: offerings,
		semesters: semesters,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	svc.validator.RegisterValidation("enrollment_status", func(fl validator.FieldLevel) bool {
		switch models.EnrollmentStatus(strings.ToUpper(fl.Field().String())) {
		case models.EnrollmentPending, models.EnrollmentApproved, models.EnrollmentEnrolled, models.EnrollmentDropped, models.EnrollmentCompleted:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment with context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student into an offering. Without override the
// offering's semester must be active with an open enrollment window, and
// the slot is taken through the capacity-guarded counter update. With
// override both checks are skipped and the action is audit-logged.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, actorID string) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is not in active standing")
	}

	offering, err := s.offerings.FindByID(ctx, req.CourseOfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	if !offering.IsActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "offering is not open")
	}

	if !req.Override {
		semester, err := s.semesters.FindSemesterByID(ctx, offering.SemesterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
		}
		if !semester.IsActive || !semester.EnrollmentOpenAt(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentClosed, "enrollment window is closed for this semester")
		}
	}

	enrollment := &models.Enrollment{
		StudentID:        req.StudentID,
		CourseOfferingID: req.CourseOfferingID,
		DateEnrolled:     s.now(),
		Status:           models.EnrollmentPending,
	}
	if err := s.repo.CreateWithSlot(ctx, enrollment, req.Override); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotsExhausted):
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "offering has no available slots")
		case errors.Is(err, repository.ErrDuplicateKey):
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this offering")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if req.Override {
		payload, _ := json.Marshal(map[string]string{
			"student_id":         req.StudentID,
			"course_offering_id": req.CourseOfferingID,
		})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionOverride,
			Resource:   "enrollment",
			ResourceID: &enrollment.ID,
			NewValues:  payload,
		}); err != nil {
			s.logger.Warn("failed to record override audit log", zap.Error(err))
		}
	}

	return s.Get(ctx, enrollment.ID)
}

// UpdateStatus moves an enrollment along the lifecycle. Re-submitting the
// current status is a no-op; a terminal enrollment rejects anything else;
// DROPPED additionally releases the slot and stamps the dropped date.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target := models.EnrollmentStatus(strings.ToUpper(req.Status))

	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if enrollment.Status == target {
		return enrollment, nil
	}
	if enrollment.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalState, "enrollment is in a terminal state")
	}
	if !enrollment.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "status transition not permitted")
	}

	if target == models.EnrollmentDropped {
		err := s.repo.DropWithRelease(ctx, id, enrollment.CourseOfferingID, s.now())
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrStaleStatus):
			// The row reached a terminal status after our read. A drop
			// that lost to another drop is a success with nothing left
			// to release; losing to anything else is a terminal reject.
			current, getErr := s.Get(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == models.EnrollmentDropped {
				return current, nil
			}
			return nil, appErrors.Clone(appErrors.ErrTerminalState, "enrollment is in a terminal state")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
	} else {
		err := s.repo.UpdateStatus(ctx, id, enrollment.Status, target)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently, retry")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
		}
	}

	return s.Get(ctx, id)
}

// Drop is the dedicated student-facing drop operation: dropping an
// already-dropped enrollment succeeds without touching the counter again.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return s.UpdateStatus(ctx, id, UpdateEnrollmentStatusRequest{Status: string(models.EnrollmentDropped)})
}
