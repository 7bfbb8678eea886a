package models

import "time"

// CourseOffering is one scheduled section of a course within a semester.
// EnrolledCount is a maintained counter of slot-holding enrollments; the
// invariant EnrolledCount <= MaxSlots holds for every non-override write.
type CourseOffering struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	SemesterID    string    `db:"semester_id" json:"semester_id"`
	FacultyID     *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	Section       string    `db:"section" json:"section"`
	MaxSlots      int       `db:"max_slots" json:"max_slots"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableSlots derives the remaining capacity. Never negative under the
// normal enrollment path; an administrative override can consume it past
// zero, in which case it is clamped.
func (o CourseOffering) AvailableSlots() int {
	if o.EnrolledCount >= o.MaxSlots {
		return 0
	}
	return o.MaxSlots - o.EnrolledCount
}

// OfferingDetail enriches CourseOffering with catalog context.
type OfferingDetail struct {
	CourseOffering
	CourseCode   string  `db:"course_code" json:"course_code"`
	CourseTitle  string  `db:"course_title" json:"course_title"`
	SemesterName string  `db:"semester_name" json:"semester_name"`
	FacultyName  *string `db:"faculty_name" json:"faculty_name,omitempty"`
}

// OfferingFilter filters offering listings.
type OfferingFilter struct {
	CourseID   string
	SemesterID string
	FacultyID  string
	IsActive   *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// DayOfWeek enumerates schedulable days, Monday through Saturday.
type DayOfWeek string

const (
	DayMonday    DayOfWeek = "MON"
	DayTuesday   DayOfWeek = "TUE"
	DayWednesday DayOfWeek = "WED"
	DayThursday  DayOfWeek = "THU"
	DayFriday    DayOfWeek = "FRI"
	DaySaturday  DayOfWeek = "SAT"
)

// Schedule is a weekly meeting slot owned by a course offering.
// No start<end or room-overlap constraint is applied; the stored shape
// mirrors what callers submit.
type Schedule struct {
	ID               string    `db:"id" json:"id"`
	CourseOfferingID string    `db:"course_offering_id" json:"course_offering_id"`
	DayOfWeek        DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime        string    `db:"start_time" json:"start_time"`
	EndTime          string    `db:"end_time" json:"end_time"`
	Room             string    `db:"room" json:"room"`
	Building         string    `db:"building" json:"building"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
