package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
	"github.com/campusregistry/registrar-api/pkg/export"
)

type documentRequestRepository interface {
	Create(ctx context.Context, request *models.DocumentRequest) error
	FindByID(ctx context.Context, id string) (*models.DocumentRequest, error)
	List(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequest, int, error)
	UpdateStatus(ctx context.Context, request *models.DocumentRequest) error
}

type documentStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

type documentNotifier interface {
	Notify(ctx context.Context, notification *models.Notification) error
}

// CreateDocumentRequestRequest opens a document request.
type CreateDocumentRequestRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	DocumentType string `json:"document_type" validate:"required,document_type"`
	Purpose      string `json:"purpose" validate:"required"`
	Copies       int    `json:"copies" validate:"gte=1"`
}

// UpdateDocumentRequestStatusRequest moves a request along its lifecycle.
type UpdateDocumentRequestStatusRequest struct {
	Status        string   `json:"status" validate:"required,document_status"`
	ProcessingFee *float64 `json:"processing_fee" validate:"omitempty,gte=0"`
	Remarks       string   `json:"remarks"`
}

var documentTypeNames = map[models.DocumentType]string{
	models.DocumentTOR:            "Transcript of Records",
	models.DocumentCertGrades:     "Certificate of Grades",
	models.DocumentCertEnrollment: "Certificate of Enrollment",
	models.DocumentGoodMoral:      "Certificate of Good Moral Character",
	models.DocumentDiploma:        "Diploma",
	models.DocumentCAV:            "Certification, Authentication and Verification",
}

// DocumentService handles document requests: the adjacent-only lifecycle,
// PDF generation on the way to READY and signed download links.
type DocumentService struct {
	repo      documentRequestRepository
	students  enrollmentStudentReader
	storage   documentStorage
	signer    downloadSigner
	notifier  documentNotifier
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDocumentService constructs the service. The notifier may be nil.
func NewDocumentService(repo documentRequestRepository, students enrollmentStudentReader, storage documentStorage, signer downloadSigner, notifier documentNotifier, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DocumentService{
		repo:      repo,
		students:  students,
		storage:   storage,
		signer:    signer,
		notifier:  notifier,
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	svc.validator.RegisterValidation("document_type", func(fl validator.FieldLevel) bool {
		_, ok := documentTypeNames[models.DocumentType(strings.ToUpper(fl.Field().String()))]
		return ok
	})
	svc.validator.RegisterValidation("document_status", func(fl validator.FieldLevel) bool {
		switch models.DocumentRequestStatus(strings.ToUpper(fl.Field().String())) {
		case models.RequestPending, models.RequestProcessing, models.RequestReady, models.RequestClaimed, models.RequestCancelled:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns document requests with pagination metadata.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document requests")
	}
	return requests, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one document request.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.DocumentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document request")
	}
	return request, nil
}

// Create opens a request in the PENDING state.
func (s *DocumentService) Create(ctx context.Context, req CreateDocumentRequestRequest) (*models.DocumentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document request payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	request := &models.DocumentRequest{
		StudentID:    req.StudentID,
		DocumentType: models.DocumentType(strings.ToUpper(req.DocumentType)),
		Purpose:      req.Purpose,
		Copies:       req.Copies,
		RequestDate:  s.now(),
		Status:       models.RequestPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document request")
	}
	return request, nil
}

// UpdateStatus advances a request one step, or cancels it from any
// non-terminal state. The transition into READY renders the document and
// notifies the student; the transition into CLAIMED stamps the claim date.
func (s *DocumentService) UpdateStatus(ctx context.Context, id string, req UpdateDocumentRequestStatusRequest) (*models.DocumentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target := models.DocumentRequestStatus(strings.ToUpper(req.Status))

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status == target {
		return request, nil
	}
	if request.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalState, "document request is in a terminal state")
	}
	if !request.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document request steps cannot be skipped")
	}

	request.Status = target
	if req.ProcessingFee != nil {
		request.ProcessingFee = *req.ProcessingFee
	}
	if req.Remarks != "" {
		request.Remarks = req.Remarks
	}
	switch target {
	case models.RequestReady:
		path, err := s.renderDocument(ctx, request)
		if err != nil {
			return nil, err
		}
		request.FilePath = path
	case models.RequestClaimed:
		claimedAt := s.now()
		request.ClaimedDate = &claimedAt
	}

	if err := s.repo.UpdateStatus(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document request")
	}

	if target == models.RequestReady && s.notifier != nil {
		student, err := s.students.FindByID(ctx, request.StudentID)
		if err == nil {
			notifyErr := s.notifier.Notify(ctx, &models.Notification{
				RecipientID: student.UserID,
				Type:        models.NotificationDocument,
				Title:       fmt.Sprintf("%s ready for pickup", documentTypeNames[request.DocumentType]),
				Message:     "Your requested document is ready at the registrar's office.",
				Link:        fmt.Sprintf("/document-requests/%s", request.ID),
			})
			if notifyErr != nil {
				s.logger.Warn("failed to notify student of ready document", zap.String("request_id", request.ID), zap.Error(notifyErr))
			}
		}
	}
	return request, nil
}

// Cancel cancels a request from any non-terminal state.
func (s *DocumentService) Cancel(ctx context.Context, id string) (*models.DocumentRequest, error) {
	return s.UpdateStatus(ctx, id, UpdateDocumentRequestStatusRequest{Status: string(models.RequestCancelled)})
}

// DownloadToken issues a signed token for a READY or CLAIMED request's
// generated file.
func (s *DocumentService) DownloadToken(ctx context.Context, id string) (string, time.Time, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if request.FilePath == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrConflict, "document has not been generated")
	}
	token, expiresAt, err := s.signer.Generate(request.ID, request.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return token, expiresAt, nil
}

// OpenDownload validates a token and opens the referenced file. The
// embedded request ID must still resolve to the file the token names.
func (s *DocumentService) OpenDownload(ctx context.Context, token string) (*os.File, error) {
	requestID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.FilePath == "" || request.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match the request")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	return file, nil
}

func (s *DocumentService) renderDocument(ctx context.Context, request *models.DocumentRequest) (string, error) {
	student, err := s.students.FindByID(ctx, request.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	dataset := export.Dataset{
		Headers: []string{"Field", "Value"},
		Rows: []map[string]string{
			{"Field": "Student No", "Value": student.StudentID},
			{"Field": "Student Name", "Value": student.FullName},
			{"Field": "Document", "Value": documentTypeNames[request.DocumentType]},
			{"Field": "Purpose", "Value": request.Purpose},
			{"Field": "Copies", "Value": fmt.Sprintf("%d", request.Copies)},
			{"Field": "Requested", "Value": request.RequestDate.Format("2006-01-02")},
		},
	}
	payload, err := s.pdf.Render(dataset, documentTypeNames[request.DocumentType])
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render document")
	}

	path := fmt.Sprintf("documents/%s/%s.pdf", request.StudentID, uuid.NewString())
	stored, err := s.storage.Save(path, payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	return stored, nil
}
