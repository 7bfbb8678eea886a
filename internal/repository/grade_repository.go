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

// GradeRepository persists grade records, assessments and scores.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// FindByEnrollment returns the one-to-one grade record of an enrollment.
func (r *GradeRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Grade, error) {
	const query = `SELECT id, enrollment_id, midterm_grade, final_grade, final_rating, remarks, date_submitted,
        created_at, updated_at FROM grades WHERE enrollment_id = $1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, enrollmentID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Upsert writes the grade record for an enrollment, creating it on first
// write. date_submitted is deliberately excluded; only Finalize moves it.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, enrollment_id, midterm_grade, final_grade, final_rating, remarks, created_at, updated_at)
        VALUES (:id, :enrollment_id, :midterm_grade, :final_grade, :final_rating, :remarks, :created_at, :updated_at)
        ON CONFLICT (enrollment_id) DO UPDATE SET
        midterm_grade = EXCLUDED.midterm_grade, final_grade = EXCLUDED.final_grade,
        final_rating = EXCLUDED.final_rating, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// Finalize stamps date_submitted on an unfinalized grade record. A record
// that is already finalized is not matched, letting the caller map the
// zero-row case to a conflict.
func (r *GradeRepository) Finalize(ctx context.Context, enrollmentID string, submittedAt time.Time) (bool, error) {
	const query = `UPDATE grades SET date_submitted = $2, updated_at = $2
        WHERE enrollment_id = $1 AND date_submitted IS NULL`
	res, err := r.db.ExecContext(ctx, query, enrollmentID, submittedAt)
	if err != nil {
		return false, fmt.Errorf("finalize grade: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListAssessments returns the graded activities of an offering.
func (r *GradeRepository) ListAssessments(ctx context.Context, offeringID string) ([]models.Assessment, error) {
	const query = `SELECT id, course_offering_id, title, assessment_type, max_score, weight, date_given, description, created_at
        FROM assessments WHERE course_offering_id = $1 ORDER BY date_given, created_at`
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, offeringID); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

// FindAssessmentByID returns one assessment.
func (r *GradeRepository) FindAssessmentByID(ctx context.Context, id string) (*models.Assessment, error) {
	const query = `SELECT id, course_offering_id, title, assessment_type, max_score, weight, date_given, description, created_at
        FROM assessments WHERE id = $1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// CreateAssessment persists a graded activity.
func (r *GradeRepository) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	assessment.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO assessments (id, course_offering_id, title, assessment_type, max_score, weight, date_given, description, created_at)
        VALUES (:id, :course_offering_id, :title, :assessment_type, :max_score, :weight, :date_given, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// UpdateAssessment persists assessment changes.
func (r *GradeRepository) UpdateAssessment(ctx context.Context, assessment *models.Assessment) error {
	const query = `UPDATE assessments SET title = :title, assessment_type = :assessment_type, max_score = :max_score,
        weight = :weight, date_given = :date_given, description = :description WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	return nil
}

// DeleteAssessment removes an assessment; its scores cascade.
func (r *GradeRepository) DeleteAssessment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertScore records a student's result on an assessment; the
// (assessment, enrollment) pair is unique so re-recording overwrites.
func (r *GradeRepository) UpsertScore(ctx context.Context, score *models.AssessmentScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.DateRecorded.IsZero() {
		score.DateRecorded = time.Now().UTC()
	}
	const query = `INSERT INTO assessment_scores (id, assessment_id, enrollment_id, score, remarks, date_recorded)
        VALUES (:id, :assessment_id, :enrollment_id, :score, :remarks, :date_recorded)
        ON CONFLICT (assessment_id, enrollment_id) DO UPDATE SET
        score = EXCLUDED.score, remarks = EXCLUDED.remarks, date_recorded = EXCLUDED.date_recorded`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("upsert assessment score: %w", err)
	}
	return nil
}

// ListScoresByEnrollment returns scores joined with their assessments so
// the term-score computation can weigh each one.
func (r *GradeRepository) ListScoresByEnrollment(ctx context.Context, enrollmentID string) ([]models.AssessmentScore, []models.Assessment, error) {
	const query = `SELECT sc.id, sc.assessment_id, sc.enrollment_id, sc.score, sc.remarks, sc.date_recorded
        FROM assessment_scores sc WHERE sc.enrollment_id = $1 ORDER BY sc.date_recorded`
	var scores []models.AssessmentScore
	if err := r.db.SelectContext(ctx, &scores, query, enrollmentID); err != nil {
		return nil, nil, fmt.Errorf("list scores: %w", err)
	}

	const assessmentQuery = `SELECT a.id, a.course_offering_id, a.title, a.assessment_type, a.max_score, a.weight, a.date_given, a.description, a.created_at
        FROM assessments a
        JOIN assessment_scores sc ON sc.assessment_id = a.id
        WHERE sc.enrollment_id = $1 ORDER BY a.date_given, a.created_at`
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, assessmentQuery, enrollmentID); err != nil {
		return nil, nil, fmt.Errorf("list score assessments: %w", err)
	}
	return scores, assessments, nil
}

// WeightSummary totals the declared assessment weights for an offering.
func (r *GradeRepository) WeightSummary(ctx context.Context, offeringID string) (*models.WeightSummary, error) {
	const query = `SELECT COALESCE(SUM(weight), 0) AS total_weight, COUNT(*) AS assessment_count
        FROM assessments WHERE course_offering_id = $1`
	var row struct {
		TotalWeight     float64 `db:"total_weight"`
		AssessmentCount int     `db:"assessment_count"`
	}
	if err := r.db.GetContext(ctx, &row, query, offeringID); err != nil {
		return nil, fmt.Errorf("weight summary: %w", err)
	}
	return &models.WeightSummary{
		CourseOfferingID: offeringID,
		TotalWeight:      row.TotalWeight,
		AssessmentCount:  row.AssessmentCount,
	}, nil
}
