package models

import "time"

// AnnouncementPriority ranks announcements for display.
type AnnouncementPriority string

const (
	PriorityLow    AnnouncementPriority = "LOW"
	PriorityNormal AnnouncementPriority = "NORMAL"
	PriorityHigh   AnnouncementPriority = "HIGH"
	PriorityUrgent AnnouncementPriority = "URGENT"
)

// Audience tags for announcement targeting.
const (
	AudienceAll      = "ALL"
	AudienceStudents = "STUDENTS"
	AudienceFaculty  = "FACULTY"
)

// Announcement is a posted notice. DepartmentID and PostedByID survive the
// deletion of their referents as nulls. Attachment is an opaque storage path.
type Announcement struct {
	ID             string               `db:"id" json:"id"`
	DepartmentID   *string              `db:"department_id" json:"department_id,omitempty"`
	Title          string               `db:"title" json:"title"`
	Content        string               `db:"content" json:"content"`
	PostedByID     *string              `db:"posted_by_id" json:"posted_by_id,omitempty"`
	Priority       AnnouncementPriority `db:"priority" json:"priority"`
	TargetAudience string               `db:"target_audience" json:"target_audience"`
	IsPublic       bool                 `db:"is_public" json:"is_public"`
	IsActive       bool                 `db:"is_active" json:"is_active"`
	ExpiryDate     *time.Time           `db:"expiry_date" json:"expiry_date,omitempty"`
	Attachment     string               `db:"attachment" json:"attachment"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter filters announcement listings.
type AnnouncementFilter struct {
	DepartmentID   string
	Priority       AnnouncementPriority
	TargetAudience string
	ActiveOnly     bool
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
