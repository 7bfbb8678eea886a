package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusregistry/registrar-api/internal/models"
)

// CourseRepository persists the course catalog and its prerequisite graph.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns catalog courses matching the filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := `FROM courses WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.CourseType != "" {
		conditions = append(conditions, fmt.Sprintf("course_type = $%d", len(args)+1))
		args = append(args, filter.CourseType)
	}
	if filter.YearLevel > 0 {
		conditions = append(conditions, fmt.Sprintf("year_level = $%d", len(args)+1))
		args = append(args, filter.YearLevel)
	}
	if filter.SemesterOffered != "" {
		conditions = append(conditions, fmt.Sprintf("semester_offered = $%d", len(args)+1))
		args = append(args, filter.SemesterOffered)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(course_code) LIKE $%d OR LOWER(title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{"course_code": true, "title": true, "units": true, "year_level": true}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "course_code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT id, course_code, title, description, department_id, units, lecture_hours, lab_hours,
        course_type, year_level, semester_offered, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, pageSize, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, course_code, title, description, department_id, units, lecture_hours, lab_hours,
        course_type, year_level, semester_offered, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new catalog course. course_code is unique.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, course_code, title, description, department_id, units, lecture_hours,
        lab_hours, course_type, year_level, semester_offered, created_at, updated_at)
        VALUES (:id, :course_code, :title, :description, :department_id, :units, :lecture_hours,
        :lab_hours, :course_type, :year_level, :semester_offered, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists catalog changes.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET course_code = :course_code, title = :title, description = :description,
        department_id = :department_id, units = :units, lecture_hours = :lecture_hours, lab_hours = :lab_hours,
        course_type = :course_type, year_level = :year_level, semester_offered = :semester_offered,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course; prerequisite edges cascade at the schema level.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddPrerequisite inserts one directed prerequisite edge.
func (r *CourseRepository) AddPrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	const query = `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, courseID, prerequisiteID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("add prerequisite: %w", err)
	}
	return nil
}

// RemovePrerequisite deletes one directed prerequisite edge.
func (r *CourseRepository) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1 AND prerequisite_id = $2`, courseID, prerequisiteID)
	if err != nil {
		return fmt.Errorf("remove prerequisite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPrerequisites returns the courses that must be taken before the given course.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.CourseRef, error) {
	const query = `SELECT c.id, c.course_code, c.title FROM course_prerequisites p
        JOIN courses c ON c.id = p.prerequisite_id
        WHERE p.course_id = $1 ORDER BY c.course_code`
	var refs []models.CourseRef
	if err := r.db.SelectContext(ctx, &refs, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return refs, nil
}

// ListDependents returns the courses that list the given course as a prerequisite.
func (r *CourseRepository) ListDependents(ctx context.Context, courseID string) ([]models.CourseRef, error) {
	const query = `SELECT c.id, c.course_code, c.title FROM course_prerequisites p
        JOIN courses c ON c.id = p.course_id
        WHERE p.prerequisite_id = $1 ORDER BY c.course_code`
	var refs []models.CourseRef
	if err := r.db.SelectContext(ctx, &refs, query, courseID); err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	return refs, nil
}

// AllPrerequisiteEdges returns the full prerequisite graph for cycle checks.
func (r *CourseRepository) AllPrerequisiteEdges(ctx context.Context) ([]models.PrerequisiteEdge, error) {
	const query = `SELECT course_id, prerequisite_id FROM course_prerequisites`
	var edges []models.PrerequisiteEdge
	if err := r.db.SelectContext(ctx, &edges, query); err != nil {
		return nil, fmt.Errorf("list prerequisite edges: %w", err)
	}
	return edges, nil
}
