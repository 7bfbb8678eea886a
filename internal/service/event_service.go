package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
	Register(ctx context.Context, registration *models.EventRegistration) error
	Unregister(ctx context.Context, eventID, studentID string) error
	ListRegistrations(ctx context.Context, eventID string) ([]models.EventRegistration, error)
	MarkAttendance(ctx context.Context, registrationID string, attended, certificateIssued bool) error
	CountRegistrations(ctx context.Context, eventID string) (int, error)
}

type eventStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// CreateEventRequest describes a new campus event.
type CreateEventRequest struct {
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description"`
	EventType       string    `json:"event_type" validate:"required,event_type"`
	StartDatetime   time.Time `json:"start_datetime" validate:"required"`
	EndDatetime     time.Time `json:"end_datetime" validate:"required"`
	Venue           string    `json:"venue"`
	DepartmentID    *string   `json:"department_id"`
	MaxParticipants *int      `json:"max_participants" validate:"omitempty,gte=1"`
	BannerImage     string    `json:"banner_image"`
}

// UpdateEventRequest describes event changes.
type UpdateEventRequest struct {
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	EventType       string     `json:"event_type" validate:"omitempty,event_type"`
	StartDatetime   *time.Time `json:"start_datetime"`
	EndDatetime     *time.Time `json:"end_datetime"`
	Venue           *string    `json:"venue"`
	DepartmentID    *string    `json:"department_id"`
	ClearDepartment bool       `json:"clear_department"`
	MaxParticipants *int       `json:"max_participants" validate:"omitempty,gte=1"`
	ClearCap        bool       `json:"clear_cap"`
	IsPublished     *bool      `json:"is_published"`
	BannerImage     *string    `json:"banner_image"`
}

// MarkAttendanceRequest records presence and certificate issuance.
type MarkAttendanceRequest struct {
	Attended          bool `json:"attended"`
	CertificateIssued bool `json:"certificate_issued"`
}

// EventService manages campus events and capacity-capped registrations.
type EventService struct {
	repo      eventRepository
	students  eventStudentReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService constructs the service.
func NewEventService(repo eventRepository, students eventStudentReader, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{
		repo:      repo,
		students:  students,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	svc.validator.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		switch models.EventType(strings.ToUpper(fl.Field().String())) {
		case models.EventAcademic, models.EventSeminar, models.EventWorkshop, models.EventSports, models.EventCultural, models.EventOther:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns events with pagination metadata.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// Create persists an unpublished event.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest, organizerID string) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.EndDatetime.After(req.StartDatetime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event must end after it starts")
	}

	event := &models.Event{
		Title:           req.Title,
		Description:     req.Description,
		EventType:       models.EventType(strings.ToUpper(req.EventType)),
		StartDatetime:   req.StartDatetime,
		EndDatetime:     req.EndDatetime,
		Venue:           req.Venue,
		OrganizerID:     &organizerID,
		DepartmentID:    req.DepartmentID,
		MaxParticipants: req.MaxParticipants,
		IsPublished:     false,
		BannerImage:     req.BannerImage,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department or organizer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Update modifies an event. Lowering the cap never evicts registrants.
func (s *EventService) Update(ctx context.Context, id string, req UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		event.Title = req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.EventType != "" {
		event.EventType = models.EventType(strings.ToUpper(req.EventType))
	}
	if req.StartDatetime != nil {
		event.StartDatetime = *req.StartDatetime
	}
	if req.EndDatetime != nil {
		event.EndDatetime = *req.EndDatetime
	}
	if req.Venue != nil {
		event.Venue = *req.Venue
	}
	if req.ClearDepartment {
		event.DepartmentID = nil
	} else if req.DepartmentID != nil {
		event.DepartmentID = req.DepartmentID
	}
	if req.ClearCap {
		event.MaxParticipants = nil
	} else if req.MaxParticipants != nil {
		event.MaxParticipants = req.MaxParticipants
	}
	if req.IsPublished != nil {
		event.IsPublished = *req.IsPublished
	}
	if req.BannerImage != nil {
		event.BannerImage = *req.BannerImage
	}
	if !event.EndDatetime.After(event.StartDatetime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event must end after it starts")
	}

	if err := s.repo.Update(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Delete removes an event and its registrations.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}

// Register signs a student up for a published event. When the event caps
// participation the registration runs through the repository's locked
// count-and-insert, so the cap holds under concurrent sign-ups.
func (s *EventService) Register(ctx context.Context, eventID, studentID string) (*models.EventRegistration, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "event is not open for registration")
	}

	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	registration := &models.EventRegistration{
		EventID:          eventID,
		StudentID:        studentID,
		RegistrationDate: s.now(),
	}
	if err := s.repo.Register(ctx, registration); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotsExhausted):
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "event has reached its participant cap")
		case errors.Is(err, repository.ErrDuplicateKey):
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already registered for this event")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register for event")
	}
	return registration, nil
}

// Unregister removes a student's registration, freeing a slot.
func (s *EventService) Unregister(ctx context.Context, eventID, studentID string) error {
	if err := s.repo.Unregister(ctx, eventID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unregister from event")
	}
	return nil
}

// ListRegistrations returns an event's sign-ups.
func (s *EventService) ListRegistrations(ctx context.Context, eventID string) ([]models.EventRegistration, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return nil, err
	}
	registrations, err := s.repo.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return registrations, nil
}

// MarkAttendance records presence after the event.
func (s *EventService) MarkAttendance(ctx context.Context, registrationID string, req MarkAttendanceRequest) error {
	if err := s.repo.MarkAttendance(ctx, registrationID, req.Attended, req.CertificateIssued); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	return nil
}
