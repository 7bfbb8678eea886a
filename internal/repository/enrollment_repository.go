package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusregistry/registrar-api/internal/models"
)

// EnrollmentRepository persists enrollments. Writes that move slots are
// composed with the offering counter update inside one transaction so the
// counter and the enrollment rows can never drift apart.
type EnrollmentRepository struct {
	db        *sqlx.DB
	offerings *OfferingRepository
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB, offerings *OfferingRepository) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, offerings: offerings}
}

// CreateWithSlot reserves a slot on the offering and inserts the
// enrollment in a single transaction. With force set, the capacity guard
// is skipped (administrative override). Returns ErrSlotsExhausted when
// the offering is full, ErrDuplicateKey when the (student, offering)
// pair already exists, sql.ErrNoRows when a referenced row is missing.
func (r *EnrollmentRepository) CreateWithSlot(ctx context.Context, enrollment *models.Enrollment, force bool) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.DateEnrolled.IsZero() {
		enrollment.DateEnrolled = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := reserveSlot(ctx, tx, enrollment.CourseOfferingID, force); err != nil {
		return err
	}

	const query = `INSERT INTO enrollments (id, student_id, course_offering_id, date_enrolled, status)
        VALUES (:id, :student_id, :course_offering_id, :date_enrolled, :status)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return tx.Commit()
}

// updateStatusQuery only matches while the row still holds the status
// the caller validated against, so a transition decided on a stale read
// can never overwrite a concurrent change.
const updateStatusQuery = `UPDATE enrollments SET status = $3 WHERE id = $1 AND status = $2`

// dropEnrollmentQuery refuses rows that already reached a terminal
// status, so the slot release below runs at most once per enrollment.
const dropEnrollmentQuery = `UPDATE enrollments SET status = $2, dropped_date = $3
        WHERE id = $1 AND status NOT IN ('DROPPED', 'COMPLETED')`

// UpdateStatus writes a status change that does not move a slot. The
// write is compare-and-swap on the status the caller read; a mismatch
// reports ErrStaleStatus, a missing row sql.ErrNoRows.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) error {
	res, err := r.db.ExecContext(ctx, updateStatusQuery, id, from, to)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM enrollments WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check enrollment exists: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrStaleStatus
}

// DropWithRelease marks the enrollment DROPPED, stamps dropped_date and
// gives the slot back to the offering, all in one transaction. The drop
// update carries its own terminal-state guard; when it matches nothing
// the slot is left untouched and the caller learns whether the row is
// missing (sql.ErrNoRows) or already terminal (ErrStaleStatus).
func (r *EnrollmentRepository) DropWithRelease(ctx context.Context, id, offeringID string, droppedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, dropEnrollmentQuery, id, models.EnrollmentDropped, droppedAt)
	if err != nil {
		return fmt.Errorf("drop enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status models.EnrollmentStatus
		if err := tx.GetContext(ctx, &status, `SELECT status FROM enrollments WHERE id = $1`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("check enrollment status: %w", err)
		}
		return ErrStaleStatus
	}
	if err := r.offerings.ReleaseSlot(ctx, tx, offeringID); err != nil {
		return err
	}
	return tx.Commit()
}

// FindByID returns one enrollment with student and offering context.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_offering_id, e.date_enrolled, e.status, e.dropped_date,
        st.student_id AS student_number, u.full_name AS student_name, c.course_code, o.section
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN users u ON u.id = st.user_id
        JOIN course_offerings o ON o.id = e.course_offering_id
        JOIN courses c ON c.id = o.course_id
        WHERE e.id = $1`
	var enrollment models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments matching the filter with context columns.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students st ON st.id = e.student_id
JOIN users u ON u.id = st.user_id
JOIN course_offerings o ON o.id = e.course_offering_id
JOIN courses c ON c.id = o.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseOfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_offering_id = $%d", len(args)+1))
		args = append(args, filter.CourseOfferingID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("o.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{"date_enrolled": "e.date_enrolled", "student_number": "st.student_id", "course_code": "c.course_code"}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.date_enrolled"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_offering_id, e.date_enrolled, e.status, e.dropped_date,
        st.student_id AS student_number, u.full_name AS student_name, c.course_code, o.section
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, pageSize, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByOffering returns every enrollment on an offering, for grade sheets.
func (r *EnrollmentRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_offering_id, e.date_enrolled, e.status, e.dropped_date,
        st.student_id AS student_number, u.full_name AS student_name, c.course_code, o.section
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN users u ON u.id = st.user_id
        JOIN course_offerings o ON o.id = e.course_offering_id
        JOIN courses c ON c.id = o.course_id
        WHERE e.course_offering_id = $1
        ORDER BY u.full_name`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, offeringID); err != nil {
		return nil, fmt.Errorf("list enrollments by offering: %w", err)
	}
	return enrollments, nil
}
