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

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
	ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindProgramByID(ctx context.Context, id string) (*models.Program, error)
	CreateProgram(ctx context.Context, program *models.Program) error
	UpdateProgram(ctx context.Context, program *models.Program) error
	DeleteProgram(ctx context.Context, id string) error
}

type facultyReader interface {
	FindByID(ctx context.Context, id string) (*models.FacultyDetail, error)
}

// CreateDepartmentRequest describes a new department.
type CreateDepartmentRequest struct {
	Name        string  `json:"name" validate:"required"`
	Code        string  `json:"code" validate:"required"`
	Description string  `json:"description"`
	HeadID      *string `json:"head_id"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Phone       string  `json:"phone"`
	Building    string  `json:"building"`
}

// UpdateDepartmentRequest describes department changes. ClearHead removes
// the current head; otherwise HeadID reassigns it when present.
type UpdateDepartmentRequest struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
	HeadID      *string `json:"head_id"`
	ClearHead   bool    `json:"clear_head"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone"`
	Building    *string `json:"building"`
}

// CreateProgramRequest describes a new degree program.
type CreateProgramRequest struct {
	Name          string `json:"name" validate:"required"`
	Code          string `json:"code" validate:"required"`
	DegreeType    string `json:"degree_type" validate:"required,degree_type"`
	DepartmentID  string `json:"department_id" validate:"required"`
	Description   string `json:"description"`
	TotalUnits    int    `json:"total_units" validate:"gte=0"`
	DurationYears int    `json:"duration_years" validate:"gte=0"`
}

// UpdateProgramRequest describes program changes.
type UpdateProgramRequest struct {
	Name          string  `json:"name"`
	Code          string  `json:"code"`
	DegreeType    string  `json:"degree_type" validate:"omitempty,degree_type"`
	Description   *string `json:"description"`
	TotalUnits    *int    `json:"total_units" validate:"omitempty,gte=0"`
	DurationYears *int    `json:"duration_years" validate:"omitempty,gte=0"`
}

// DepartmentService manages departments and their degree programs.
type DepartmentService struct {
	repo      departmentRepository
	faculty   facultyReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs the service.
func NewDepartmentService(repo departmentRepository, faculty facultyReader, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DepartmentService{repo: repo, faculty: faculty, validator: validate, logger: logger}
	svc.validator.RegisterValidation("degree_type", func(fl validator.FieldLevel) bool {
		switch models.DegreeType(strings.ToUpper(fl.Field().String())) {
		case models.DegreeBS, models.DegreeBA, models.DegreeMS, models.DegreeMA, models.DegreePHD:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns departments with pagination metadata.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, *models.Pagination, error) {
	departments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one department.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return department, nil
}

// Create persists a new department, verifying the head exists when given.
func (s *DepartmentService) Create(ctx context.Context, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if req.HeadID != nil {
		if err := s.checkHead(ctx, *req.HeadID); err != nil {
			return nil, err
		}
	}

	department := &models.Department{
		Name:        req.Name,
		Code:        strings.ToUpper(req.Code),
		Description: req.Description,
		HeadID:      req.HeadID,
		Email:       strings.ToLower(req.Email),
		Phone:       req.Phone,
		Building:    req.Building,
	}
	if err := s.repo.Create(ctx, department); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// Update modifies a department, including head assignment or removal.
func (s *DepartmentService) Update(ctx context.Context, id string, req UpdateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	department, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		department.Name = req.Name
	}
	if req.Code != "" {
		department.Code = strings.ToUpper(req.Code)
	}
	if req.Description != nil {
		department.Description = *req.Description
	}
	if req.Email != "" {
		department.Email = strings.ToLower(req.Email)
	}
	if req.Phone != nil {
		department.Phone = *req.Phone
	}
	if req.Building != nil {
		department.Building = *req.Building
	}
	if req.ClearHead {
		department.HeadID = nil
	} else if req.HeadID != nil {
		if err := s.checkHead(ctx, *req.HeadID); err != nil {
			return nil, err
		}
		department.HeadID = req.HeadID
	}

	if err := s.repo.Update(ctx, department); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department code already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department head not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return department, nil
}

// Delete removes a department.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	return nil
}

func (s *DepartmentService) checkHead(ctx context.Context, headID string) error {
	if _, err := s.faculty.FindByID(ctx, headID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department head not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department head")
	}
	return nil
}

// ListPrograms returns degree programs with pagination metadata.
func (s *DepartmentService) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	programs, total, err := s.repo.ListPrograms(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, buildPagination(filter.Page, filter.PageSize, total), nil
}

// GetProgram returns one degree program.
func (s *DepartmentService) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindProgramByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// CreateProgram persists a new degree program under a department.
func (s *DepartmentService) CreateProgram(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}

	program := &models.Program{
		Name:          req.Name,
		Code:          strings.ToUpper(req.Code),
		DegreeType:    models.DegreeType(strings.ToUpper(req.DegreeType)),
		DepartmentID:  req.DepartmentID,
		Description:   req.Description,
		TotalUnits:    req.TotalUnits,
		DurationYears: req.DurationYears,
	}
	if err := s.repo.CreateProgram(ctx, program); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "program code already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// UpdateProgram modifies a degree program.
func (s *DepartmentService) UpdateProgram(ctx context.Context, id string, req UpdateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		program.Name = req.Name
	}
	if req.Code != "" {
		program.Code = strings.ToUpper(req.Code)
	}
	if req.DegreeType != "" {
		program.DegreeType = models.DegreeType(strings.ToUpper(req.DegreeType))
	}
	if req.Description != nil {
		program.Description = *req.Description
	}
	if req.TotalUnits != nil {
		program.TotalUnits = *req.TotalUnits
	}
	if req.DurationYears != nil {
		program.DurationYears = *req.DurationYears
	}

	if err := s.repo.UpdateProgram(ctx, program); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "program code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}

// DeleteProgram removes a degree program.
func (s *DepartmentService) DeleteProgram(ctx context.Context, id string) error {
	if err := s.repo.DeleteProgram(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	return nil
}
