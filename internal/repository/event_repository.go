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

// EventRepository persists campus events and their registrations.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events matching the filter.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	base := `FROM events WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)+1))
		args = append(args, filter.EventType)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.PublishedOnly {
		conditions = append(conditions, "is_published = TRUE")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{"start_datetime": true, "title": true, "created_at": true}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "start_datetime"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT id, title, description, event_type, start_datetime, end_datetime, venue,
        organizer_id, department_id, max_participants, is_published, banner_image, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, pageSize, offset)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// FindByID returns an event by identifier.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	const query = `SELECT id, title, description, event_type, start_datetime, end_datetime, venue,
        organizer_id, department_id, max_participants, is_published, banner_image, created_at, updated_at
        FROM events WHERE id = $1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create persists a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	const query = `INSERT INTO events (id, title, description, event_type, start_datetime, end_datetime, venue,
        organizer_id, department_id, max_participants, is_published, banner_image, created_at, updated_at)
        VALUES (:id, :title, :description, :event_type, :start_datetime, :end_datetime, :venue,
        :organizer_id, :department_id, :max_participants, :is_published, :banner_image, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update persists event changes.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, event_type = :event_type,
        start_datetime = :start_datetime, end_datetime = :end_datetime, venue = :venue,
        department_id = :department_id, max_participants = :max_participants, is_published = :is_published,
        banner_image = :banner_image, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// Delete removes an event; registrations cascade at the schema level.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// lockEventQuery pins the event row for the rest of the transaction, so
// concurrent registrations for the same event serialize and each one
// counts the rows committed by the previous one.
const lockEventQuery = `SELECT max_participants FROM events WHERE id = $1 FOR UPDATE`

// Register inserts a registration only while capacity remains. The event
// row is locked before counting, so two registrations racing for the last
// place cannot both see the pre-insert count. Events without a cap always
// admit. Returns ErrSlotsExhausted when full, ErrDuplicateKey when the
// student is already registered, sql.ErrNoRows when the event or student
// is missing.
func (r *EventRepository) Register(ctx context.Context, registration *models.EventRegistration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.RegistrationDate.IsZero() {
		registration.RegistrationDate = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxParticipants sql.NullInt64
	if err := tx.GetContext(ctx, &maxParticipants, lockEventQuery, registration.EventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock event: %w", err)
	}

	if maxParticipants.Valid {
		var registered int64
		if err := tx.GetContext(ctx, &registered, `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`, registration.EventID); err != nil {
			return fmt.Errorf("count event registrations: %w", err)
		}
		if registered >= maxParticipants.Int64 {
			return ErrSlotsExhausted
		}
	}

	const query = `INSERT INTO event_registrations (id, event_id, student_id, registration_date, attended, certificate_issued)
        VALUES ($1, $2, $3, $4, FALSE, FALSE)`
	if _, err := tx.ExecContext(ctx, query,
		registration.ID, registration.EventID, registration.StudentID, registration.RegistrationDate); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("register for event: %w", err)
	}
	return tx.Commit()
}

// Unregister removes a student's registration.
func (r *EventRepository) Unregister(ctx context.Context, eventID, studentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM event_registrations WHERE event_id = $1 AND student_id = $2`, eventID, studentID)
	if err != nil {
		return fmt.Errorf("unregister from event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListRegistrations returns the registrations of an event.
func (r *EventRepository) ListRegistrations(ctx context.Context, eventID string) ([]models.EventRegistration, error) {
	const query = `SELECT id, event_id, student_id, registration_date, attended, certificate_issued
        FROM event_registrations WHERE event_id = $1 ORDER BY registration_date`
	var registrations []models.EventRegistration
	if err := r.db.SelectContext(ctx, &registrations, query, eventID); err != nil {
		return nil, fmt.Errorf("list event registrations: %w", err)
	}
	return registrations, nil
}

// MarkAttendance records attendance and certificate issuance.
func (r *EventRepository) MarkAttendance(ctx context.Context, registrationID string, attended, certificateIssued bool) error {
	const query = `UPDATE event_registrations SET attended = $2, certificate_issued = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, registrationID, attended, certificateIssued)
	if err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountRegistrations returns the number of registrations for an event.
func (r *EventRepository) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`, eventID); err != nil {
		return 0, fmt.Errorf("count event registrations: %w", err)
	}
	return count, nil
}
