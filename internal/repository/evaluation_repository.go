package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusregistry/registrar-api/internal/models"
)

// EvaluationRepository persists course evaluations.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Create persists a course evaluation; the enrollment may hold at most one.
func (r *EvaluationRepository) Create(ctx context.Context, evaluation *models.CourseEvaluation) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	if evaluation.SubmittedAt.IsZero() {
		evaluation.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_evaluations (id, enrollment_id, teaching_effectiveness, course_content,
        learning_resources, assessment_fairness, overall_satisfaction, comments, submitted_at, is_anonymous)
        VALUES (:id, :enrollment_id, :teaching_effectiveness, :course_content,
        :learning_resources, :assessment_fairness, :overall_satisfaction, :comments, :submitted_at, :is_anonymous)`
	if _, err := r.db.NamedExecContext(ctx, query, evaluation); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

// FindByEnrollment returns the evaluation attached to an enrollment.
func (r *EvaluationRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.CourseEvaluation, error) {
	const query = `SELECT id, enrollment_id, teaching_effectiveness, course_content, learning_resources,
        assessment_fairness, overall_satisfaction, comments, submitted_at, is_anonymous
        FROM course_evaluations WHERE enrollment_id = $1`
	var evaluation models.CourseEvaluation
	if err := r.db.GetContext(ctx, &evaluation, query, enrollmentID); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// ListByOffering returns every evaluation submitted against an offering.
func (r *EvaluationRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.CourseEvaluation, error) {
	const query = `SELECT ev.id, ev.enrollment_id, ev.teaching_effectiveness, ev.course_content, ev.learning_resources,
        ev.assessment_fairness, ev.overall_satisfaction, ev.comments, ev.submitted_at, ev.is_anonymous
        FROM course_evaluations ev
        JOIN enrollments e ON e.id = ev.enrollment_id
        WHERE e.course_offering_id = $1 ORDER BY ev.submitted_at`
	var evaluations []models.CourseEvaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, offeringID); err != nil {
		return nil, fmt.Errorf("list evaluations by offering: %w", err)
	}
	return evaluations, nil
}
