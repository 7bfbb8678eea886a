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

// FacultyRepository persists faculty profiles.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs the repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

const facultyDetailColumns = `f.id, f.user_id, f.department_id, f.employee_id, f.title, f.employment_status,
        f.specialization, f.office_room, f.consultation_hours, f.contact_number, f.date_hired, f.bio,
        f.is_active, f.created_at, f.updated_at, u.full_name, u.email, d.name AS department_name`

// List returns faculty profiles with user and department context.
func (r *FacultyRepository) List(ctx context.Context, filter models.FacultyFilter) ([]models.FacultyDetail, int, error) {
	base := `FROM faculty f
JOIN users u ON u.id = f.user_id
LEFT JOIN departments d ON d.id = f.department_id`
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.EmploymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("f.employment_status = $%d", len(args)+1))
		args = append(args, filter.EmploymentStatus)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("f.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(f.employee_id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{"employee_id": "f.employee_id", "full_name": "u.full_name", "created_at": "f.created_at"}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "u.full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", facultyDetailColumns, base+clause, orderBy, order, pageSize, offset)
	var faculty []models.FacultyDetail
	if err := r.db.SelectContext(ctx, &faculty, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list faculty: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count faculty: %w", err)
	}
	return faculty, total, nil
}

// FindByID returns one faculty profile with context.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.FacultyDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM faculty f
        JOIN users u ON u.id = f.user_id
        LEFT JOIN departments d ON d.id = f.department_id
        WHERE f.id = $1`, facultyDetailColumns)
	var faculty models.FacultyDetail
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// FindByUserID returns the faculty profile owned by a user identity.
func (r *FacultyRepository) FindByUserID(ctx context.Context, userID string) (*models.Faculty, error) {
	const query = `SELECT id, user_id, department_id, employee_id, title, employment_status, specialization,
        office_room, consultation_hours, contact_number, date_hired, bio, is_active, created_at, updated_at
        FROM faculty WHERE user_id = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, userID); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// Create persists a new faculty profile. employee_id and user_id are unique.
func (r *FacultyRepository) Create(ctx context.Context, faculty *models.Faculty) error {
	if faculty.ID == "" {
		faculty.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	faculty.CreatedAt = now
	faculty.UpdatedAt = now
	const query = `INSERT INTO faculty (id, user_id, department_id, employee_id, title, employment_status, specialization,
        office_room, consultation_hours, contact_number, date_hired, bio, is_active, created_at, updated_at)
        VALUES (:id, :user_id, :department_id, :employee_id, :title, :employment_status, :specialization,
        :office_room, :consultation_hours, :contact_number, :date_hired, :bio, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, faculty); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// Update persists faculty profile changes.
func (r *FacultyRepository) Update(ctx context.Context, faculty *models.Faculty) error {
	faculty.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET department_id = :department_id, employee_id = :employee_id, title = :title,
        employment_status = :employment_status, specialization = :specialization, office_room = :office_room,
        consultation_hours = :consultation_hours, contact_number = :contact_number, date_hired = :date_hired,
        bio = :bio, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, faculty); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("update faculty: %w", err)
	}
	return nil
}

// Delete removes a faculty profile; offerings referencing it are nullified
// at the schema level.
func (r *FacultyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM faculty WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete faculty: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
