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

type facultyRepository interface {
	List(ctx context.Context, filter models.FacultyFilter) ([]models.FacultyDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.FacultyDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.Faculty, error)
	Create(ctx context.Context, faculty *models.Faculty) error
	Update(ctx context.Context, faculty *models.Faculty) error
	Delete(ctx context.Context, id string) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateFacultyRequest describes a new faculty profile.
type CreateFacultyRequest struct {
	UserID            string     `json:"user_id" validate:"required"`
	DepartmentID      *string    `json:"department_id"`
	EmployeeID        string     `json:"employee_id" validate:"required"`
	Title             string     `json:"title"`
	EmploymentStatus  string     `json:"employment_status" validate:"required,employment_status"`
	Specialization    string     `json:"specialization"`
	OfficeRoom        string     `json:"office_room"`
	ConsultationHours string     `json:"consultation_hours"`
	ContactNumber     string     `json:"contact_number"`
	DateHired         *time.Time `json:"date_hired"`
	Bio               string     `json:"bio"`
}

// UpdateFacultyRequest describes faculty profile changes.
type UpdateFacultyRequest struct {
	DepartmentID      *string    `json:"department_id"`
	ClearDepartment   bool       `json:"clear_department"`
	EmployeeID        string     `json:"employee_id"`
	Title             *string    `json:"title"`
	EmploymentStatus  string     `json:"employment_status" validate:"omitempty,employment_status"`
	Specialization    *string    `json:"specialization"`
	OfficeRoom        *string    `json:"office_room"`
	ConsultationHours *string    `json:"consultation_hours"`
	ContactNumber     *string    `json:"contact_number"`
	DateHired         *time.Time `json:"date_hired"`
	Bio               *string    `json:"bio"`
	IsActive          *bool      `json:"is_active"`
}

// FacultyService manages teaching staff profiles.
type FacultyService struct {
	repo      facultyRepository
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFacultyService constructs the service.
func NewFacultyService(repo facultyRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *FacultyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &FacultyService{repo: repo, users: users, validator: validate, logger: logger}
	svc.validator.RegisterValidation("employment_status", func(fl validator.FieldLevel) bool {
		switch models.EmploymentStatus(strings.ToUpper(fl.Field().String())) {
		case models.EmploymentFullTime, models.EmploymentPartTime, models.EmploymentContract:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns faculty profiles with pagination metadata.
func (s *FacultyService) List(ctx context.Context, filter models.FacultyFilter) ([]models.FacultyDetail, *models.Pagination, error) {
	faculty, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	return faculty, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one faculty profile.
func (s *FacultyService) Get(ctx context.Context, id string) (*models.FacultyDetail, error) {
	faculty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	return faculty, nil
}

// GetByUser returns the profile owned by a user identity.
func (s *FacultyService) GetByUser(ctx context.Context, userID string) (*models.Faculty, error) {
	faculty, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty profile")
	}
	return faculty, nil
}

// Create persists a new faculty profile, checking the user exists and
// carries the FACULTY role.
func (s *FacultyService) Create(ctx context.Context, req CreateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleFaculty {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user does not carry the faculty role")
	}

	faculty := &models.Faculty{
		UserID:            req.UserID,
		DepartmentID:      req.DepartmentID,
		EmployeeID:        req.EmployeeID,
		Title:             req.Title,
		EmploymentStatus:  models.EmploymentStatus(strings.ToUpper(req.EmploymentStatus)),
		Specialization:    req.Specialization,
		OfficeRoom:        req.OfficeRoom,
		ConsultationHours: req.ConsultationHours,
		ContactNumber:     req.ContactNumber,
		DateHired:         req.DateHired,
		Bio:               req.Bio,
		IsActive:          true,
	}
	if err := s.repo.Create(ctx, faculty); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "employee id or user already has a faculty profile")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty")
	}
	return faculty, nil
}

// Update modifies a faculty profile.
func (s *FacultyService) Update(ctx context.Context, id string, req UpdateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	faculty := detail.Faculty

	if req.ClearDepartment {
		faculty.DepartmentID = nil
	} else if req.DepartmentID != nil {
		faculty.DepartmentID = req.DepartmentID
	}
	if req.EmployeeID != "" {
		faculty.EmployeeID = req.EmployeeID
	}
	if req.Title != nil {
		faculty.Title = *req.Title
	}
	if req.EmploymentStatus != "" {
		faculty.EmploymentStatus = models.EmploymentStatus(strings.ToUpper(req.EmploymentStatus))
	}
	if req.Specialization != nil {
		faculty.Specialization = *req.Specialization
	}
	if req.OfficeRoom != nil {
		faculty.OfficeRoom = *req.OfficeRoom
	}
	if req.ConsultationHours != nil {
		faculty.ConsultationHours = *req.ConsultationHours
	}
	if req.ContactNumber != nil {
		faculty.ContactNumber = *req.ContactNumber
	}
	if req.DateHired != nil {
		faculty.DateHired = req.DateHired
	}
	if req.Bio != nil {
		faculty.Bio = *req.Bio
	}
	if req.IsActive != nil {
		faculty.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, &faculty); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "employee id already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update faculty")
	}
	return &faculty, nil
}

// Delete removes a faculty profile.
func (s *FacultyService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete faculty")
	}
	return nil
}
