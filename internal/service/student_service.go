package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateProfilePicture(ctx context.Context, id, path string) error
	Delete(ctx context.Context, id string) error
}

type uploadStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// CreateStudentRequest describes a new student profile.
type CreateStudentRequest struct {
	UserID                 string     `json:"user_id" validate:"required"`
	StudentID              string     `json:"student_id" validate:"required"`
	DepartmentID           *string    `json:"department_id"`
	DateOfBirth            *time.Time `json:"date_of_birth"`
	YearLevel              int        `json:"year_level" validate:"gte=1,lte=6"`
	Address                string     `json:"address"`
	ContactNumber          string     `json:"contact_number"`
	EmergencyContactName   string     `json:"emergency_contact_name"`
	EmergencyContactNumber string     `json:"emergency_contact_number"`
	GuardianName           string     `json:"guardian_name"`
	GuardianContact        string     `json:"guardian_contact"`
}

// UpdateStudentRequest describes student profile changes. EnrolledAt is
// immutable and deliberately absent.
type UpdateStudentRequest struct {
	StudentID              string     `json:"student_id"`
	DepartmentID           *string    `json:"department_id"`
	ClearDepartment        bool       `json:"clear_department"`
	DateOfBirth            *time.Time `json:"date_of_birth"`
	YearLevel              *int       `json:"year_level" validate:"omitempty,gte=1,lte=6"`
	Status                 string     `json:"status" validate:"omitempty,student_status"`
	Address                *string    `json:"address"`
	ContactNumber          *string    `json:"contact_number"`
	EmergencyContactName   *string    `json:"emergency_contact_name"`
	EmergencyContactNumber *string    `json:"emergency_contact_number"`
	GuardianName           *string    `json:"guardian_name"`
	GuardianContact        *string    `json:"guardian_contact"`
}

// StudentService manages learner profiles.
type StudentService struct {
	repo      studentRepository
	users     userReader
	uploads   uploadStorage
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the service.
func NewStudentService(repo studentRepository, users userReader, uploads uploadStorage, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StudentService{repo: repo, users: users, uploads: uploads, validator: validate, logger: logger}
	svc.validator.RegisterValidation("student_status", func(fl validator.FieldLevel) bool {
		switch models.StudentStatus(strings.ToUpper(fl.Field().String())) {
		case models.StudentActive, models.StudentInactive, models.StudentGraduated, models.StudentSuspended, models.StudentLOA:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns student profiles with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one student profile.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetByUser returns the profile owned by a user identity.
func (s *StudentService) GetByUser(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return student, nil
}

// Create persists a new student profile, checking the user exists and
// carries the STUDENT role. The enrollment date is stamped here and never
// changes afterwards.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user does not carry the student role")
	}

	student := &models.Student{
		UserID:                 req.UserID,
		StudentID:              req.StudentID,
		DepartmentID:           req.DepartmentID,
		DateOfBirth:            req.DateOfBirth,
		YearLevel:              req.YearLevel,
		Status:                 models.StudentActive,
		Address:                req.Address,
		ContactNumber:          req.ContactNumber,
		EmergencyContactName:   req.EmergencyContactName,
		EmergencyContactNumber: req.EmergencyContactNumber,
		GuardianName:           req.GuardianName,
		GuardianContact:        req.GuardianContact,
		EnrolledAt:             time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number or user already has a student profile")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies a student profile.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student := detail.Student

	if req.StudentID != "" {
		student.StudentID = req.StudentID
	}
	if req.ClearDepartment {
		student.DepartmentID = nil
	} else if req.DepartmentID != nil {
		student.DepartmentID = req.DepartmentID
	}
	if req.DateOfBirth != nil {
		student.DateOfBirth = req.DateOfBirth
	}
	if req.YearLevel != nil {
		student.YearLevel = *req.YearLevel
	}
	if req.Status != "" {
		student.Status = models.StudentStatus(strings.ToUpper(req.Status))
	}
	if req.Address != nil {
		student.Address = *req.Address
	}
	if req.ContactNumber != nil {
		student.ContactNumber = *req.ContactNumber
	}
	if req.EmergencyContactName != nil {
		student.EmergencyContactName = *req.EmergencyContactName
	}
	if req.EmergencyContactNumber != nil {
		student.EmergencyContactNumber = *req.EmergencyContactNumber
	}
	if req.GuardianName != nil {
		student.GuardianName = *req.GuardianName
	}
	if req.GuardianContact != nil {
		student.GuardianContact = *req.GuardianContact
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// UploadProfilePicture stores the image and records its path on the
// profile; the previous file, if any, is removed best-effort.
func (s *StudentService) UploadProfilePicture(ctx context.Context, id string, filename string, r io.Reader) (string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "profile picture must be jpg or png")
	}

	path := fmt.Sprintf("students/%s/%s%s", id, uuid.NewString(), ext)
	stored, err := s.uploads.SaveStream(path, r)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store profile picture")
	}

	if err := s.repo.UpdateProfilePicture(ctx, id, stored); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record profile picture")
	}

	if old := detail.ProfilePicture; old != "" && old != stored {
		if err := s.uploads.Delete(old); err != nil {
			s.logger.Warn("failed to remove previous profile picture", zap.String("path", old), zap.Error(err))
		}
	}
	return stored, nil
}

// Delete removes a student profile.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}
