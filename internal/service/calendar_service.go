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
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type calendarRepository interface {
	ListYears(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error)
	FindYearByID(ctx context.Context, id string) (*models.AcademicYear, error)
	CreateYear(ctx context.Context, year *models.AcademicYear) error
	UpdateYear(ctx context.Context, year *models.AcademicYear) error
	DeleteYear(ctx context.Context, id string) error
	ActivateYear(ctx context.Context, id string) error
	ListSemesters(ctx context.Context, filter models.SemesterFilter) ([]models.SemesterDetail, int, error)
	FindSemesterByID(ctx context.Context, id string) (*models.Semester, error)
	CreateSemester(ctx context.Context, semester *models.Semester) error
	UpdateSemester(ctx context.Context, semester *models.Semester) error
	DeleteSemester(ctx context.Context, id string) error
	ActivateSemester(ctx context.Context, id string) error
	CurrentSemester(ctx context.Context, now time.Time) (*models.Semester, error)
}

// CreateAcademicYearRequest describes a new academic year.
type CreateAcademicYearRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// UpdateAcademicYearRequest describes academic year changes.
type UpdateAcademicYearRequest struct {
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// CreateSemesterRequest describes a new semester within a year.
type CreateSemesterRequest struct {
	AcademicYearID  string    `json:"academic_year_id" validate:"required"`
	SemesterType    string    `json:"semester_type" validate:"required,semester_type"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required"`
	EnrollmentStart time.Time `json:"enrollment_start" validate:"required"`
	EnrollmentEnd   time.Time `json:"enrollment_end" validate:"required"`
}

// UpdateSemesterRequest describes semester window changes.
type UpdateSemesterRequest struct {
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	EnrollmentStart *time.Time `json:"enrollment_start"`
	EnrollmentEnd   *time.Time `json:"enrollment_end"`
}

// CalendarService manages the academic calendar: years, semesters and the
// derived current semester.
type CalendarService struct {
	repo      calendarRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CalendarService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	svc.validator.RegisterValidation("semester_type", func(fl validator.FieldLevel) bool {
		switch models.SemesterType(strings.ToUpper(fl.Field().String())) {
		case models.SemesterFirst, models.SemesterSecond, models.SemesterSummer:
			return true
		default:
			return false
		}
	})
	return svc
}

// ListYears returns academic years with pagination metadata.
func (s *CalendarService) ListYears(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, *models.Pagination, error) {
	years, total, err := s.repo.ListYears(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic years")
	}
	return years, buildPagination(filter.Page, filter.PageSize, total), nil
}

// GetYear returns one academic year.
func (s *CalendarService) GetYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	year, err := s.repo.FindYearByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return year, nil
}

// CreateYear persists a new academic year, inactive until activated.
func (s *CalendarService) CreateYear(ctx context.Context, req CreateAcademicYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic year payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}

	year := &models.AcademicYear{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  false,
	}
	if err := s.repo.CreateYear(ctx, year); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "academic year name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create academic year")
	}
	return year, nil
}

// UpdateYear modifies an academic year's name and dates.
func (s *CalendarService) UpdateYear(ctx context.Context, id string, req UpdateAcademicYearRequest) (*models.AcademicYear, error) {
	year, err := s.GetYear(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		year.Name = req.Name
	}
	if req.StartDate != nil {
		year.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		year.EndDate = *req.EndDate
	}
	if !year.StartDate.Before(year.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	if err := s.repo.UpdateYear(ctx, year); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "academic year name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update academic year")
	}
	return year, nil
}

// DeleteYear removes an academic year and its semesters.
func (s *CalendarService) DeleteYear(ctx context.Context, id string) error {
	if err := s.repo.DeleteYear(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete academic year")
	}
	return nil
}

// ActivateYear makes one year the active one; every other year's flag is
// cleared in the same transaction.
func (s *CalendarService) ActivateYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	if err := s.repo.ActivateYear(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate academic year")
	}
	return s.GetYear(ctx, id)
}

// ListSemesters returns semesters with pagination metadata.
func (s *CalendarService) ListSemesters(ctx context.Context, filter models.SemesterFilter) ([]models.SemesterDetail, *models.Pagination, error) {
	semesters, total, err := s.repo.ListSemesters(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, buildPagination(filter.Page, filter.PageSize, total), nil
}

// GetSemester returns one semester.
func (s *CalendarService) GetSemester(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindSemesterByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// CreateSemester persists a new semester under an academic year. One
// semester of each type exists per year.
func (s *CalendarService) CreateSemester(ctx context.Context, req CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	if req.EnrollmentEnd.Before(req.EnrollmentStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment window end precedes its start")
	}

	semester := &models.Semester{
		AcademicYearID:  req.AcademicYearID,
		SemesterType:    models.SemesterType(strings.ToUpper(req.SemesterType)),
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		IsActive:        false,
		EnrollmentStart: req.EnrollmentStart,
		EnrollmentEnd:   req.EnrollmentEnd,
	}
	if err := s.repo.CreateSemester(ctx, semester); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "semester already exists for this academic year")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	return semester, nil
}

// UpdateSemester modifies semester window dates.
func (s *CalendarService) UpdateSemester(ctx context.Context, id string, req UpdateSemesterRequest) (*models.Semester, error) {
	semester, err := s.GetSemester(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.StartDate != nil {
		semester.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		semester.EndDate = *req.EndDate
	}
	if req.EnrollmentStart != nil {
		semester.EnrollmentStart = *req.EnrollmentStart
	}
	if req.EnrollmentEnd != nil {
		semester.EnrollmentEnd = *req.EnrollmentEnd
	}
	if !semester.StartDate.Before(semester.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	if semester.EnrollmentEnd.Before(semester.EnrollmentStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment window end precedes its start")
	}
	if err := s.repo.UpdateSemester(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update semester")
	}
	return semester, nil
}

// DeleteSemester removes a semester and its offerings.
func (s *CalendarService) DeleteSemester(ctx context.Context, id string) error {
	if err := s.repo.DeleteSemester(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester")
	}
	return nil
}

// ActivateSemester makes one semester the active one, clearing all other
// semester flags transactionally.
func (s *CalendarService) ActivateSemester(ctx context.Context, id string) (*models.Semester, error) {
	if err := s.repo.ActivateSemester(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate semester")
	}
	return s.GetSemester(ctx, id)
}

// CurrentSemester derives the semester that is active with an open
// enrollment window right now. Not-found is a normal answer, not a fault.
func (s *CalendarService) CurrentSemester(ctx context.Context) (*models.Semester, error) {
	semester, err := s.repo.CurrentSemester(ctx, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no semester is currently open for enrollment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive current semester")
	}
	return semester, nil
}
