package models

import "time"

// EmploymentStatus enumerates faculty employment arrangements.
type EmploymentStatus string

const (
	EmploymentFullTime EmploymentStatus = "FULL_TIME"
	EmploymentPartTime EmploymentStatus = "PART_TIME"
	EmploymentContract EmploymentStatus = "CONTRACT"
)

// Faculty is the teaching profile attached one-to-one to a user identity.
// DepartmentID is nullified when the department is deleted.
type Faculty struct {
	ID                string           `db:"id" json:"id"`
	UserID            string           `db:"user_id" json:"user_id"`
	DepartmentID      *string          `db:"department_id" json:"department_id,omitempty"`
	EmployeeID        string           `db:"employee_id" json:"employee_id"`
	Title             string           `db:"title" json:"title"`
	EmploymentStatus  EmploymentStatus `db:"employment_status" json:"employment_status"`
	Specialization    string           `db:"specialization" json:"specialization"`
	OfficeRoom        string           `db:"office_room" json:"office_room"`
	ConsultationHours string           `db:"consultation_hours" json:"consultation_hours"`
	ContactNumber     string           `db:"contact_number" json:"contact_number"`
	DateHired         *time.Time       `db:"date_hired" json:"date_hired,omitempty"`
	Bio               string           `db:"bio" json:"bio"`
	IsActive          bool             `db:"is_active" json:"is_active"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// FacultyDetail enriches Faculty with user and department context.
type FacultyDetail struct {
	Faculty
	FullName       string  `db:"full_name" json:"full_name"`
	Email          string  `db:"email" json:"email"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}

// FacultyFilter filters faculty listings.
type FacultyFilter struct {
	DepartmentID     string
	EmploymentStatus EmploymentStatus
	IsActive         *bool
	Search           string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
