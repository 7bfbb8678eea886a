package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
	"github.com/campusregistry/registrar-api/pkg/jobs"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

type recipientLister interface {
	ListIDsByRoles(ctx context.Context, roles []models.UserRole) ([]string, error)
}

type notificationBatchWriter interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
}

type notifyQueue interface {
	Enqueue(job jobs.Job) error
}

// CreateAnnouncementRequest describes a new notice.
type CreateAnnouncementRequest struct {
	DepartmentID   *string    `json:"department_id"`
	Title          string     `json:"title" validate:"required"`
	Content        string     `json:"content" validate:"required"`
	Priority       string     `json:"priority" validate:"omitempty,announcement_priority"`
	TargetAudience string     `json:"target_audience" validate:"omitempty,target_audience"`
	IsPublic       bool       `json:"is_public"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	Attachment     string     `json:"attachment"`
}

// UpdateAnnouncementRequest describes notice changes.
type UpdateAnnouncementRequest struct {
	DepartmentID    *string    `json:"department_id"`
	ClearDepartment bool       `json:"clear_department"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Priority        string     `json:"priority" validate:"omitempty,announcement_priority"`
	TargetAudience  string     `json:"target_audience" validate:"omitempty,target_audience"`
	IsPublic        *bool      `json:"is_public"`
	IsActive        *bool      `json:"is_active"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	ClearExpiry     bool       `json:"clear_expiry"`
	Attachment      *string    `json:"attachment"`
}

// announcementFanout is the queued payload carrying everything the
// notification batch needs, so the worker never re-reads the notice.
type announcementFanout struct {
	AnnouncementID string
	Title          string
	TargetAudience string
}

// AnnouncementService manages posted notices and fans each new one out to
// its audience as notifications through the background queue.
type AnnouncementService struct {
	repo          announcementRepository
	users         recipientLister
	notifications notificationBatchWriter
	queue         notifyQueue
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAnnouncementService constructs the service. The queue may be nil;
// fan-out is then skipped.
func NewAnnouncementService(repo announcementRepository, users recipientLister, notifications notificationBatchWriter, queue notifyQueue, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AnnouncementService{
		repo:          repo,
		users:         users,
		notifications: notifications,
		queue:         queue,
		validator:     validate,
		logger:        logger,
	}
	svc.validator.RegisterValidation("announcement_priority", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementPriority(strings.ToUpper(fl.Field().String())) {
		case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
			return true
		default:
			return false
		}
	})
	svc.validator.RegisterValidation("target_audience", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(fl.Field().String()) {
		case models.AudienceAll, models.AudienceStudents, models.AudienceFaculty:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns announcements with pagination metadata.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, *models.Pagination, error) {
	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one announcement.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// Create posts an announcement and enqueues the notification fan-out.
func (s *AnnouncementService) Create(ctx context.Context, req CreateAnnouncementRequest, postedByID string) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	priority := models.PriorityNormal
	if req.Priority != "" {
		priority = models.AnnouncementPriority(strings.ToUpper(req.Priority))
	}
	audience := models.AudienceAll
	if req.TargetAudience != "" {
		audience = strings.ToUpper(req.TargetAudience)
	}

	announcement := &models.Announcement{
		DepartmentID:   req.DepartmentID,
		Title:          req.Title,
		Content:        req.Content,
		PostedByID:     &postedByID,
		Priority:       priority,
		TargetAudience: audience,
		IsPublic:       req.IsPublic,
		IsActive:       true,
		ExpiryDate:     req.ExpiryDate,
		Attachment:     req.Attachment,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	if s.queue != nil {
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: "announcement.fanout",
			Payload: announcementFanout{
				AnnouncementID: announcement.ID,
				Title:          announcement.Title,
				TargetAudience: announcement.TargetAudience,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue announcement fan-out", zap.String("announcement_id", announcement.ID), zap.Error(err))
		}
	}
	return announcement, nil
}

// Update modifies an announcement. Edits do not re-notify.
func (s *AnnouncementService) Update(ctx context.Context, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ClearDepartment {
		announcement.DepartmentID = nil
	} else if req.DepartmentID != nil {
		announcement.DepartmentID = req.DepartmentID
	}
	if req.Title != "" {
		announcement.Title = req.Title
	}
	if req.Content != "" {
		announcement.Content = req.Content
	}
	if req.Priority != "" {
		announcement.Priority = models.AnnouncementPriority(strings.ToUpper(req.Priority))
	}
	if req.TargetAudience != "" {
		announcement.TargetAudience = strings.ToUpper(req.TargetAudience)
	}
	if req.IsPublic != nil {
		announcement.IsPublic = *req.IsPublic
	}
	if req.IsActive != nil {
		announcement.IsActive = *req.IsActive
	}
	if req.ClearExpiry {
		announcement.ExpiryDate = nil
	} else if req.ExpiryDate != nil {
		announcement.ExpiryDate = req.ExpiryDate
	}
	if req.Attachment != nil {
		announcement.Attachment = *req.Attachment
	}

	if err := s.repo.Update(ctx, announcement); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete removes an announcement. Notifications already delivered stay.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

// HandleFanoutJob is the queue handler: it resolves the audience to user
// IDs and writes one ANNOUNCEMENT notification per recipient.
func (s *AnnouncementService) HandleFanoutJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(announcementFanout)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}

	var roles []models.UserRole
	switch payload.TargetAudience {
	case models.AudienceStudents:
		roles = []models.UserRole{models.RoleStudent}
	case models.AudienceFaculty:
		roles = []models.UserRole{models.RoleFaculty}
	default:
		roles = []models.UserRole{models.RoleStudent, models.RoleFaculty, models.RoleRegistrar, models.RoleAdmin}
	}

	recipients, err := s.users.ListIDsByRoles(ctx, roles)
	if err != nil {
		return fmt.Errorf("resolve audience: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	notifications := make([]models.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		notifications = append(notifications, models.Notification{
			RecipientID: recipientID,
			Type:        models.NotificationAnnouncement,
			Title:       payload.Title,
			Message:     "A new announcement has been posted.",
			Link:        fmt.Sprintf("/announcements/%s", payload.AnnouncementID),
		})
	}
	if err := s.notifications.CreateBatch(ctx, notifications); err != nil {
		return fmt.Errorf("write notifications: %w", err)
	}
	s.logger.Info("announcement fan-out delivered",
		zap.String("announcement_id", payload.AnnouncementID),
		zap.Int("recipients", len(notifications)))
	return nil
}
