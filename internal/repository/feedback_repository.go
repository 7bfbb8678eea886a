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

// FeedbackRepository persists student feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create persists a new feedback entry in PENDING.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.SubmittedAt.IsZero() {
		feedback.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO feedback (id, student_id, feedback_type, subject, message, status, submitted_at, response, responded_by_id, responded_at)
        VALUES (:id, :student_id, :feedback_type, :subject, :message, :status, :submitted_at, :response, :responded_by_id, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// FindByID returns a feedback entry by identifier.
func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	const query = `SELECT id, student_id, feedback_type, subject, message, status, submitted_at, response, responded_by_id, responded_at
        FROM feedback WHERE id = $1`
	var feedback models.Feedback
	if err := r.db.GetContext(ctx, &feedback, query, id); err != nil {
		return nil, err
	}
	return &feedback, nil
}

// List returns feedback entries matching the filter, newest first.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	base := `FROM feedback WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.FeedbackType != "" {
		conditions = append(conditions, fmt.Sprintf("feedback_type = $%d", len(args)+1))
		args = append(args, filter.FeedbackType)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	pageSize, offset := paginate(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT id, student_id, feedback_type, subject, message, status, submitted_at, response, responded_by_id, responded_at
        %s ORDER BY submitted_at DESC LIMIT %d OFFSET %d`, base, pageSize, offset)

	var feedbacks []models.Feedback
	if err := r.db.SelectContext(ctx, &feedbacks, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}
	return feedbacks, total, nil
}

// UpdateStatus advances the lifecycle, optionally recording the response.
func (r *FeedbackRepository) UpdateStatus(ctx context.Context, feedback *models.Feedback) error {
	const query = `UPDATE feedback SET status = :status, response = :response,
        responded_by_id = :responded_by_id, responded_at = :responded_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("update feedback status: %w", err)
	}
	return nil
}
