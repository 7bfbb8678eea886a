package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. DROPPED and COMPLETED are terminal.
const (
	EnrollmentPending   EnrollmentStatus = "PENDING"
	EnrollmentApproved  EnrollmentStatus = "APPROVED"
	EnrollmentEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentDropped   EnrollmentStatus = "DROPPED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
)

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending:  {EnrollmentApproved, EnrollmentDropped},
	EnrollmentApproved: {EnrollmentEnrolled, EnrollmentDropped},
	EnrollmentEnrolled: {EnrollmentDropped, EnrollmentCompleted},
}

// IsTerminal reports whether no further transition is permitted.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentDropped || s == EnrollmentCompleted
}

// CanTransitionTo reports whether the forward transition is permitted.
// Transitioning into the current status is treated as a no-op by callers,
// not by this table.
func (s EnrollmentStatus) CanTransitionTo(target EnrollmentStatus) bool {
	for _, next := range enrollmentTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Enrollment registers a student into a course offering. The (student,
// offering) pair is unique; DateEnrolled is stamped at creation and
// immutable; DroppedDate is only meaningful when status is DROPPED.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseOfferingID string           `db:"course_offering_id" json:"course_offering_id"`
	DateEnrolled     time.Time        `db:"date_enrolled" json:"date_enrolled"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	DroppedDate      *time.Time       `db:"dropped_date" json:"dropped_date,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and offering info.
type EnrollmentDetail struct {
	Enrollment
	StudentNumber string `db:"student_number" json:"student_number"`
	StudentName   string `db:"student_name" json:"student_name"`
	CourseCode    string `db:"course_code" json:"course_code"`
	Section       string `db:"section" json:"section"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID        string
	CourseOfferingID string
	SemesterID       string
	Status           EnrollmentStatus
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
