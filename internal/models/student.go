package models

import "time"

// StudentStatus tracks a student's standing in the institution.
type StudentStatus string

const (
	StudentActive    StudentStatus = "ACTIVE"
	StudentInactive  StudentStatus = "INACTIVE"
	StudentGraduated StudentStatus = "GRADUATED"
	StudentSuspended StudentStatus = "SUSPENDED"
	StudentLOA       StudentStatus = "LOA"
)

// Student is the learner profile attached one-to-one to a user identity.
// EnrolledAt is stamped at creation and never updated afterwards.
// ProfilePicture holds an opaque storage path, not file content.
type Student struct {
	ID                     string        `db:"id" json:"id"`
	UserID                 string        `db:"user_id" json:"user_id"`
	StudentID              string        `db:"student_id" json:"student_id"`
	DepartmentID           *string       `db:"department_id" json:"department_id,omitempty"`
	DateOfBirth            *time.Time    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	YearLevel              int           `db:"year_level" json:"year_level"`
	Status                 StudentStatus `db:"status" json:"status"`
	Address                string        `db:"address" json:"address"`
	ContactNumber          string        `db:"contact_number" json:"contact_number"`
	EmergencyContactName   string        `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactNumber string        `db:"emergency_contact_number" json:"emergency_contact_number"`
	GuardianName           string        `db:"guardian_name" json:"guardian_name"`
	GuardianContact        string        `db:"guardian_contact" json:"guardian_contact"`
	EnrolledAt             time.Time     `db:"enrolled_at" json:"enrolled_at"`
	ProfilePicture         string        `db:"profile_picture" json:"profile_picture"`
	CreatedAt              time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with user and department context.
type StudentDetail struct {
	Student
	FullName       string  `db:"full_name" json:"full_name"`
	Email          string  `db:"email" json:"email"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}

// StudentFilter filters student listings.
type StudentFilter struct {
	DepartmentID string
	Status       StudentStatus
	YearLevel    int
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
