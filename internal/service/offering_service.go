package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type offeringRepository interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	Create(ctx context.Context, offering *models.CourseOffering) error
	Update(ctx context.Context, offering *models.CourseOffering) error
	Delete(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, offeringID string) ([]models.Schedule, error)
	FindScheduleByID(ctx context.Context, id string) (*models.Schedule, error)
	CreateSchedule(ctx context.Context, schedule *models.Schedule) error
	UpdateSchedule(ctx context.Context, schedule *models.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
}

// CreateOfferingRequest describes a new course offering.
type CreateOfferingRequest struct {
	CourseID   string  `json:"course_id" validate:"required"`
	SemesterID string  `json:"semester_id" validate:"required"`
	FacultyID  *string `json:"faculty_id"`
	Section    string  `json:"section" validate:"required"`
	MaxSlots   int     `json:"max_slots" validate:"gte=1"`
}

// UpdateOfferingRequest describes offering changes. MaxSlots may shrink
// below the current enrolled count; existing slot holders are never evicted.
type UpdateOfferingRequest struct {
	FacultyID    *string `json:"faculty_id"`
	ClearFaculty bool    `json:"clear_faculty"`
	Section      string  `json:"section"`
	MaxSlots     *int    `json:"max_slots" validate:"omitempty,gte=1"`
	IsActive     *bool   `json:"is_active"`
}

// CreateScheduleRequest describes a weekly meeting slot.
type CreateScheduleRequest struct {
	DayOfWeek string `json:"day_of_week" validate:"required,day_of_week"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Room      string `json:"room"`
	Building  string `json:"building"`
}

// UpdateScheduleRequest describes schedule changes.
type UpdateScheduleRequest struct {
	DayOfWeek string  `json:"day_of_week" validate:"omitempty,day_of_week"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Room      *string `json:"room"`
	Building  *string `json:"building"`
}

// OfferingService manages scheduled course sections and their weekly
// meeting slots.
type OfferingService struct {
	repo      offeringRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferingService constructs the service.
func NewOfferingService(repo offeringRepository, validate *validator.Validate, logger *zap.Logger) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &OfferingService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("day_of_week", func(fl validator.FieldLevel) bool {
		switch models.DayOfWeek(strings.ToUpper(fl.Field().String())) {
		case models.DayMonday, models.DayTuesday, models.DayWednesday, models.DayThursday, models.DayFriday, models.DaySaturday:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns offerings with pagination metadata.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, *models.Pagination, error) {
	offerings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	return offerings, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one offering with catalog context.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.OfferingDetail, error) {
	offering, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

// Create persists a new offering with a zero enrolled count.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.CourseOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}

	offering := &models.CourseOffering{
		CourseID:      req.CourseID,
		SemesterID:    req.SemesterID,
		FacultyID:     req.FacultyID,
		Section:       strings.ToUpper(req.Section),
		MaxSlots:      req.MaxSlots,
		EnrolledCount: 0,
		IsActive:      true,
	}
	if err := s.repo.Create(ctx, offering); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "section already exists for this course and semester")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course, semester or faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}
	return offering, nil
}

// Update modifies an offering. The enrolled count is untouched here; it
// only moves with enrollment writes.
func (s *OfferingService) Update(ctx context.Context, id string, req UpdateOfferingRequest) (*models.CourseOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	offering := detail.CourseOffering

	if req.ClearFaculty {
		offering.FacultyID = nil
	} else if req.FacultyID != nil {
		offering.FacultyID = req.FacultyID
	}
	if req.Section != "" {
		offering.Section = strings.ToUpper(req.Section)
	}
	if req.MaxSlots != nil {
		offering.MaxSlots = *req.MaxSlots
	}
	if req.IsActive != nil {
		offering.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, &offering); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "section already exists for this course and semester")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offering")
	}
	return &offering, nil
}

// Delete removes an offering.
func (s *OfferingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete offering")
	}
	return nil
}

// ListSchedules returns the weekly meeting slots of an offering.
func (s *OfferingService) ListSchedules(ctx context.Context, offeringID string) ([]models.Schedule, error) {
	if _, err := s.Get(ctx, offeringID); err != nil {
		return nil, err
	}
	schedules, err := s.repo.ListSchedules(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return schedules, nil
}

// AddSchedule attaches a weekly meeting slot. The submitted times are
// stored as-is; no ordering or overlap constraint is imposed.
func (s *OfferingService) AddSchedule(ctx context.Context, offeringID string, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	schedule := &models.Schedule{
		CourseOfferingID: offeringID,
		DayOfWeek:        models.DayOfWeek(strings.ToUpper(req.DayOfWeek)),
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Room:             req.Room,
		Building:         req.Building,
	}
	if err := s.repo.CreateSchedule(ctx, schedule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	return schedule, nil
}

// UpdateSchedule modifies a meeting slot.
func (s *OfferingService) UpdateSchedule(ctx context.Context, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	schedule, err := s.repo.FindScheduleByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	if req.DayOfWeek != "" {
		schedule.DayOfWeek = models.DayOfWeek(strings.ToUpper(req.DayOfWeek))
	}
	if req.StartTime != "" {
		schedule.StartTime = req.StartTime
	}
	if req.EndTime != "" {
		schedule.EndTime = req.EndTime
	}
	if req.Room != nil {
		schedule.Room = *req.Room
	}
	if req.Building != nil {
		schedule.Building = *req.Building
	}

	if err := s.repo.UpdateSchedule(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	return schedule, nil
}

// DeleteSchedule removes a meeting slot.
func (s *OfferingService) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.repo.DeleteSchedule(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}
