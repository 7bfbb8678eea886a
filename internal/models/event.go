package models

import "time"

// EventType classifies campus events.
type EventType string

const (
	EventAcademic EventType = "ACADEMIC"
	EventSeminar  EventType = "SEMINAR"
	EventWorkshop EventType = "WORKSHOP"
	EventSports   EventType = "SPORTS"
	EventCultural EventType = "CULTURAL"
	EventOther    EventType = "OTHER"
)

// Event is a campus happening students can register for. MaxParticipants,
// when set, caps registrations the same way offering slots cap enrollments.
// BannerImage is an opaque storage path.
type Event struct {
	ID              string     `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	EventType       EventType  `db:"event_type" json:"event_type"`
	StartDatetime   time.Time  `db:"start_datetime" json:"start_datetime"`
	EndDatetime     time.Time  `db:"end_datetime" json:"end_datetime"`
	Venue           string     `db:"venue" json:"venue"`
	OrganizerID     *string    `db:"organizer_id" json:"organizer_id,omitempty"`
	DepartmentID    *string    `db:"department_id" json:"department_id,omitempty"`
	MaxParticipants *int       `db:"max_participants" json:"max_participants,omitempty"`
	IsPublished     bool       `db:"is_published" json:"is_published"`
	BannerImage     string     `db:"banner_image" json:"banner_image"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EventRegistration links a student to an event; the pair is unique.
type EventRegistration struct {
	ID                string    `db:"id" json:"id"`
	EventID           string    `db:"event_id" json:"event_id"`
	StudentID         string    `db:"student_id" json:"student_id"`
	RegistrationDate  time.Time `db:"registration_date" json:"registration_date"`
	Attended          bool      `db:"attended" json:"attended"`
	CertificateIssued bool      `db:"certificate_issued" json:"certificate_issued"`
}

// EventFilter filters event listings.
type EventFilter struct {
	EventType     EventType
	DepartmentID  string
	PublishedOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
