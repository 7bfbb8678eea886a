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

// OfferingRepository persists course offerings, their weekly schedules and
// the enrolled-count capacity counter.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringDetailColumns = `o.id, o.course_id, o.semester_id, o.faculty_id, o.section, o.max_slots,
        o.enrolled_count, o.is_active, o.created_at, o.updated_at,
        c.course_code, c.title AS course_title,
        y.name || ' ' || s.semester_type AS semester_name,
        u.full_name AS faculty_name`

const offeringDetailJoins = `FROM course_offerings o
JOIN courses c ON c.id = o.course_id
JOIN semesters s ON s.id = o.semester_id
JOIN academic_years y ON y.id = s.academic_year_id
LEFT JOIN faculty f ON f.id = o.faculty_id
LEFT JOIN users u ON u.id = f.user_id`

// List returns offerings with catalog context.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("o.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("o.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("o.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("o.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{"course_code": "c.course_code", "section": "o.section", "created_at": "o.created_at"}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.course_code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, o.section ASC LIMIT %d OFFSET %d",
		offeringDetailColumns, offeringDetailJoins+clause, orderBy, order, pageSize, offset)

	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+offeringDetailJoins+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return offerings, total, nil
}

// FindByID returns one offering with catalog context.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE o.id = $1", offeringDetailColumns, offeringDetailJoins)
	var offering models.OfferingDetail
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// Create persists a new offering. (course, semester, section) is unique.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.CourseOffering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	offering.CreatedAt = now
	offering.UpdatedAt = now
	const query = `INSERT INTO course_offerings (id, course_id, semester_id, faculty_id, section, max_slots,
        enrolled_count, is_active, created_at, updated_at)
        VALUES (:id, :course_id, :semester_id, :faculty_id, :section, :max_slots,
        :enrolled_count, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

// Update persists offering changes. enrolled_count is never written here;
// it only moves through the slot operations below.
func (r *OfferingRepository) Update(ctx context.Context, offering *models.CourseOffering) error {
	offering.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_offerings SET faculty_id = :faculty_id, section = :section,
        max_slots = :max_slots, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("update offering: %w", err)
	}
	return nil
}

// Delete removes an offering; schedules and enrollments cascade at the
// schema level.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_offerings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// reserveSlotQuery increments enrolled_count only while capacity remains,
// so concurrent enrollments cannot push past max_slots: the row predicate
// makes the check-and-increment a single atomic statement.
const reserveSlotQuery = `UPDATE course_offerings
        SET enrolled_count = enrolled_count + 1, updated_at = $2
        WHERE id = $1 AND enrolled_count < max_slots`

// forceReserveSlotQuery is the administrative override path: it increments
// unconditionally and may leave enrolled_count above max_slots.
const forceReserveSlotQuery = `UPDATE course_offerings
        SET enrolled_count = enrolled_count + 1, updated_at = $2
        WHERE id = $1`

// releaseSlotQuery decrements with a floor of zero so repeated releases
// stay idempotent.
const releaseSlotQuery = `UPDATE course_offerings
        SET enrolled_count = enrolled_count - 1, updated_at = $2
        WHERE id = $1 AND enrolled_count > 0`

// ReserveSlot atomically takes one slot on the offering. Returns
// ErrSlotsExhausted when the offering is full and sql.ErrNoRows when it
// does not exist.
func (r *OfferingRepository) ReserveSlot(ctx context.Context, tx *sqlx.Tx, offeringID string) error {
	return reserveSlot(ctx, tx, offeringID, false)
}

// ForceReserveSlot takes a slot without the capacity guard, for
// administrative overrides.
func (r *OfferingRepository) ForceReserveSlot(ctx context.Context, tx *sqlx.Tx, offeringID string) error {
	return reserveSlot(ctx, tx, offeringID, true)
}

func reserveSlot(ctx context.Context, tx *sqlx.Tx, offeringID string, force bool) error {
	query := reserveSlotQuery
	if force {
		query = forceReserveSlotQuery
	}
	res, err := tx.ExecContext(ctx, query, offeringID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}
	if force {
		return sql.ErrNoRows
	}
	// Zero rows means either a missing offering or a full one.
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM course_offerings WHERE id = $1)`, offeringID); err != nil {
		return fmt.Errorf("check offering exists: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrSlotsExhausted
}

// ReleaseSlot gives back one slot inside the caller's transaction. A
// counter already at zero is left untouched.
func (r *OfferingRepository) ReleaseSlot(ctx context.Context, tx *sqlx.Tx, offeringID string) error {
	if _, err := tx.ExecContext(ctx, releaseSlotQuery, offeringID, time.Now().UTC()); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// ListSchedules returns the weekly meeting slots of an offering.
func (r *OfferingRepository) ListSchedules(ctx context.Context, offeringID string) ([]models.Schedule, error) {
	const query = `SELECT id, course_offering_id, day_of_week, start_time, end_time, room, building, created_at
        FROM schedules WHERE course_offering_id = $1 ORDER BY day_of_week, start_time`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, offeringID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// FindScheduleByID returns one schedule row.
func (r *OfferingRepository) FindScheduleByID(ctx context.Context, id string) (*models.Schedule, error) {
	const query = `SELECT id, course_offering_id, day_of_week, start_time, end_time, room, building, created_at
        FROM schedules WHERE id = $1`
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// CreateSchedule attaches a weekly meeting slot to an offering.
func (r *OfferingRepository) CreateSchedule(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO schedules (id, course_offering_id, day_of_week, start_time, end_time, room, building, created_at)
        VALUES (:id, :course_offering_id, :day_of_week, :start_time, :end_time, :room, :building, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// UpdateSchedule persists schedule changes.
func (r *OfferingRepository) UpdateSchedule(ctx context.Context, schedule *models.Schedule) error {
	const query = `UPDATE schedules SET day_of_week = :day_of_week, start_time = :start_time,
        end_time = :end_time, room = :room, building = :building WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule row.
func (r *OfferingRepository) DeleteSchedule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BeginTx starts a transaction for callers that compose slot and
// enrollment writes atomically.
func (r *OfferingRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}
