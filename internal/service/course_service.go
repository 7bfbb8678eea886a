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
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error
	RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error
	ListPrerequisites(ctx context.Context, courseID string) ([]models.CourseRef, error)
	ListDependents(ctx context.Context, courseID string) ([]models.CourseRef, error)
	AllPrerequisiteEdges(ctx context.Context) ([]models.PrerequisiteEdge, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest describes a new catalog course.
type CreateCourseRequest struct {
	CourseCode      string  `json:"course_code" validate:"required"`
	Title           string  `json:"title" validate:"required"`
	Description     string  `json:"description"`
	DepartmentID    *string `json:"department_id"`
	Units           int     `json:"units" validate:"gte=0"`
	LectureHours    int     `json:"lecture_hours" validate:"gte=0"`
	LabHours        int     `json:"lab_hours" validate:"gte=0"`
	CourseType      string  `json:"course_type" validate:"required,course_type"`
	YearLevel       int     `json:"year_level" validate:"gte=0,lte=6"`
	SemesterOffered string  `json:"semester_offered"`
}

// UpdateCourseRequest describes catalog changes.
type UpdateCourseRequest struct {
	CourseCode      string  `json:"course_code"`
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	DepartmentID    *string `json:"department_id"`
	ClearDepartment bool    `json:"clear_department"`
	Units           *int    `json:"units" validate:"omitempty,gte=0"`
	LectureHours    *int    `json:"lecture_hours" validate:"omitempty,gte=0"`
	LabHours        *int    `json:"lab_hours" validate:"omitempty,gte=0"`
	CourseType      string  `json:"course_type" validate:"omitempty,course_type"`
	YearLevel       *int    `json:"year_level" validate:"omitempty,gte=0,lte=6"`
	SemesterOffered *string `json:"semester_offered"`
}

// CoursePrerequisites pairs a course with both directions of its graph
// neighbourhood.
type CoursePrerequisites struct {
	Course        models.Course      `json:"course"`
	Prerequisites []models.CourseRef `json:"prerequisites"`
	RequiredBy    []models.CourseRef `json:"required_by"`
}

// CourseService manages the catalog and its prerequisite graph. Listings
// are served through the Redis cache when available; every catalog write
// invalidates the cached pages.
type CourseService struct {
	repo      courseRepository
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the service. A nil cache disables caching.
func NewCourseService(repo courseRepository, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	svc := &CourseService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
	svc.validator.RegisterValidation("course_type", func(fl validator.FieldLevel) bool {
		switch models.CourseType(strings.ToUpper(fl.Field().String())) {
		case models.CourseMajor, models.CourseMinor, models.CourseGenEd, models.CourseElective:
			return true
		default:
			return false
		}
	})
	return svc
}

type cachedCourseList struct {
	Courses []models.Course    `json:"courses"`
	Meta    *models.Pagination `json:"meta"`
}

// List returns catalog courses, cache-first.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := catalogListKey(filter)
	if s.cache != nil {
		var cached cachedCourseList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Courses, cached.Meta, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	meta := buildPagination(filter.Page, filter.PageSize, total)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Meta: meta}, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return courses, meta, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create persists a new catalog course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		CourseCode:      strings.ToUpper(req.CourseCode),
		Title:           req.Title,
		Description:     req.Description,
		DepartmentID:    req.DepartmentID,
		Units:           req.Units,
		LectureHours:    req.LectureHours,
		LabHours:        req.LabHours,
		CourseType:      models.CourseType(strings.ToUpper(req.CourseType)),
		YearLevel:       req.YearLevel,
		SemesterOffered: req.SemesterOffered,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Update modifies a catalog course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CourseCode != "" {
		course.CourseCode = strings.ToUpper(req.CourseCode)
	}
	if req.Title != "" {
		course.Title = req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.ClearDepartment {
		course.DepartmentID = nil
	} else if req.DepartmentID != nil {
		course.DepartmentID = req.DepartmentID
	}
	if req.Units != nil {
		course.Units = *req.Units
	}
	if req.LectureHours != nil {
		course.LectureHours = *req.LectureHours
	}
	if req.LabHours != nil {
		course.LabHours = *req.LabHours
	}
	if req.CourseType != "" {
		course.CourseType = models.CourseType(strings.ToUpper(req.CourseType))
	}
	if req.YearLevel != nil {
		course.YearLevel = *req.YearLevel
	}
	if req.SemesterOffered != nil {
		course.SemesterOffered = *req.SemesterOffered
	}

	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a catalog course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// Prerequisites returns both graph directions for a course: the courses
// it requires and the courses that require it.
func (s *CourseService) Prerequisites(ctx context.Context, id string) (*CoursePrerequisites, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prerequisites, err := s.repo.ListPrerequisites(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prerequisites")
	}
	dependents, err := s.repo.ListDependents(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dependent courses")
	}
	return &CoursePrerequisites{Course: *course, Prerequisites: prerequisites, RequiredBy: dependents}, nil
}

// AddPrerequisite inserts a directed edge after rejecting self-loops and
// any edge that would close a cycle anywhere in the graph.
func (s *CourseService) AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	if courseID == prerequisiteID {
		return appErrors.Clone(appErrors.ErrPrerequisiteCycle, "a course cannot be its own prerequisite")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return err
	}
	if _, err := s.Get(ctx, prerequisiteID); err != nil {
		return err
	}

	edges, err := s.repo.AllPrerequisiteEdges(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite graph")
	}
	if createsCycle(edges, courseID, prerequisiteID) {
		return appErrors.Clone(appErrors.ErrPrerequisiteCycle, "prerequisite would introduce a cycle")
	}

	if err := s.repo.AddPrerequisite(ctx, courseID, prerequisiteID); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return appErrors.Clone(appErrors.ErrConflict, "prerequisite already declared")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add prerequisite")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// RemovePrerequisite deletes a directed edge.
func (s *CourseService) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	if err := s.repo.RemovePrerequisite(ctx, courseID, prerequisiteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "prerequisite not declared")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove prerequisite")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "catalog:courses:*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func catalogListKey(filter models.CourseFilter) string {
	return fmt.Sprintf("catalog:courses:%s:%s:%d:%s:%s:%s:%s:%d:%d",
		filter.DepartmentID, filter.CourseType, filter.YearLevel, filter.SemesterOffered,
		filter.Search, filter.SortBy, filter.SortOrder, filter.Page, filter.PageSize)
}

// createsCycle reports whether adding course -> prerequisite closes a
// loop: it walks the existing graph depth-first from the prerequisite and
// checks whether the course is reachable through prerequisite edges.
func createsCycle(edges []models.PrerequisiteEdge, courseID, prerequisiteID string) bool {
	adjacency := make(map[string][]string, len(edges))
	for _, edge := range edges {
		adjacency[edge.CourseID] = append(adjacency[edge.CourseID], edge.PrerequisiteID)
	}

	stack := []string{prerequisiteID}
	visited := map[string]bool{}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == courseID {
			return true
		}
		if visited[node] {
			continue
		}
		visited[node] = true
		stack = append(stack, adjacency[node]...)
	}
	return false
}
