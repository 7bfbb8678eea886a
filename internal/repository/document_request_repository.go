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

// DocumentRequestRepository persists registrar document requests.
type DocumentRequestRepository struct {
	db *sqlx.DB
}

// NewDocumentRequestRepository constructs the repository.
func NewDocumentRequestRepository(db *sqlx.DB) *DocumentRequestRepository {
	return &DocumentRequestRepository{db: db}
}

// Create persists a new request in PENDING.
func (r *DocumentRequestRepository) Create(ctx context.Context, request *models.DocumentRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestDate.IsZero() {
		request.RequestDate = time.Now().UTC()
	}
	const query = `INSERT INTO document_requests (id, student_id, document_type, purpose, copies, request_date,
        status, claimed_date, processing_fee, remarks, file_path)
        VALUES (:id, :student_id, :document_type, :purpose, :copies, :request_date,
        :status, :claimed_date, :processing_fee, :remarks, :file_path)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create document request: %w", err)
	}
	return nil
}

// FindByID returns a request by identifier.
func (r *DocumentRequestRepository) FindByID(ctx context.Context, id string) (*models.DocumentRequest, error) {
	const query = `SELECT id, student_id, document_type, purpose, copies, request_date, status, claimed_date,
        processing_fee, remarks, file_path FROM document_requests WHERE id = $1`
	var request models.DocumentRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter.
func (r *DocumentRequestRepository) List(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequest, int, error) {
	base := `FROM document_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DocumentType != "" {
		conditions = append(conditions, fmt.Sprintf("document_type = $%d", len(args)+1))
		args = append(args, filter.DocumentType)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{"request_date": true, "status": true, "document_type": true}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "request_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	pageSize, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT id, student_id, document_type, purpose, copies, request_date, status, claimed_date,
        processing_fee, remarks, file_path %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, pageSize, offset)

	var requests []models.DocumentRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list document requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count document requests: %w", err)
	}
	return requests, total, nil
}

// UpdateStatus writes the request's lifecycle fields. claimed_date only
// carries a value when the service stamps the CLAIMED transition.
func (r *DocumentRequestRepository) UpdateStatus(ctx context.Context, request *models.DocumentRequest) error {
	const query = `UPDATE document_requests SET status = :status, claimed_date = :claimed_date,
        processing_fee = :processing_fee, remarks = :remarks, file_path = :file_path WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("update document request: %w", err)
	}
	return nil
}
