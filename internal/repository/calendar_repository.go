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

// CalendarRepository persists academic years and semesters.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs the repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// ListYears returns academic years ordered by start date descending.
func (r *CalendarRepository) ListYears(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error) {
	base := `FROM academic_years WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT id, name, start_date, end_date, is_active, created_at, updated_at %s ORDER BY start_date %s LIMIT %d OFFSET %d", base, order, pageSize, offset)
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list academic years: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count academic years: %w", err)
	}
	return years, total, nil
}

// FindYearByID returns an academic year by identifier.
func (r *CalendarRepository) FindYearByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM academic_years WHERE id = $1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// CreateYear persists a new academic year.
func (r *CalendarRepository) CreateYear(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	year.CreatedAt = now
	year.UpdatedAt = now
	const query = `INSERT INTO academic_years (id, name, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :name, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create academic year: %w", err)
	}
	return nil
}

// UpdateYear persists changes to an academic year.
func (r *CalendarRepository) UpdateYear(ctx context.Context, year *models.AcademicYear) error {
	year.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_years SET name = :name, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("update academic year: %w", err)
	}
	return nil
}

// DeleteYear removes an academic year; semesters cascade at the schema level.
func (r *CalendarRepository) DeleteYear(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM academic_years WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete academic year: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ActivateYear sets one academic year active and clears every other flag
// inside a single transaction, so at most one row is ever active.
func (r *CalendarRepository) ActivateYear(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate year: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("clear active years: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_active = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("activate year: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// ListSemesters returns semesters with their academic year names.
func (r *CalendarRepository) ListSemesters(ctx context.Context, filter models.SemesterFilter) ([]models.SemesterDetail, int, error) {
	base := `FROM semesters s JOIN academic_years y ON y.id = s.academic_year_id`
	var conditions []string
	var args []interface{}

	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("s.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.SemesterType != "" {
		conditions = append(conditions, fmt.Sprintf("s.semester_type = $%d", len(args)+1))
		args = append(args, filter.SemesterType)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT s.id, s.academic_year_id, s.semester_type, s.start_date, s.end_date, s.is_active,
        s.enrollment_start, s.enrollment_end, s.created_at, s.updated_at, y.name AS academic_year_name
        %s ORDER BY s.start_date %s LIMIT %d OFFSET %d`, base+clause, order, pageSize, offset)

	var semesters []models.SemesterDetail
	if err := r.db.SelectContext(ctx, &semesters, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list semesters: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count semesters: %w", err)
	}
	return semesters, total, nil
}

// FindSemesterByID returns a semester by identifier.
func (r *CalendarRepository) FindSemesterByID(ctx context.Context, id string) (*models.Semester, error) {
	const query = `SELECT id, academic_year_id, semester_type, start_date, end_date, is_active, enrollment_start, enrollment_end, created_at, updated_at FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// CreateSemester persists a new semester; (academic_year, type) is unique.
func (r *CalendarRepository) CreateSemester(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	semester.CreatedAt = now
	semester.UpdatedAt = now
	const query = `INSERT INTO semesters (id, academic_year_id, semester_type, start_date, end_date, is_active, enrollment_start, enrollment_end, created_at, updated_at)
        VALUES (:id, :academic_year_id, :semester_type, :start_date, :end_date, :is_active, :enrollment_start, :enrollment_end, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// UpdateSemester persists changes to a semester's window dates.
func (r *CalendarRepository) UpdateSemester(ctx context.Context, semester *models.Semester) error {
	semester.UpdatedAt = time.Now().UTC()
	const query = `UPDATE semesters SET start_date = :start_date, end_date = :end_date, enrollment_start = :enrollment_start, enrollment_end = :enrollment_end, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("update semester: %w", err)
	}
	return nil
}

// DeleteSemester removes a semester; offerings cascade at the schema level.
func (r *CalendarRepository) DeleteSemester(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM semesters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete semester: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ActivateSemester sets one semester active and clears all other semester
// flags in the same transaction.
func (r *CalendarRepository) ActivateSemester(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate semester: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE semesters SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("clear active semesters: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE semesters SET is_active = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("activate semester: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// CurrentSemester returns the active semester whose enrollment window
// contains the given instant. The "current semester" is always derived by
// this query, never held as ambient state.
func (r *CalendarRepository) CurrentSemester(ctx context.Context, now time.Time) (*models.Semester, error) {
	const query = `SELECT id, academic_year_id, semester_type, start_date, end_date, is_active, enrollment_start, enrollment_end, created_at, updated_at
        FROM semesters WHERE is_active = TRUE AND enrollment_start <= $1 AND enrollment_end >= $1
        ORDER BY start_date DESC LIMIT 1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, now); err != nil {
		return nil, err
	}
	return &semester, nil
}
