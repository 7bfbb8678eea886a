package models

import "time"

// Department is an organizational unit. HeadID references a faculty member
// and is nullified when that faculty record is deleted.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	HeadID      *string   `db:"head_id" json:"head_id,omitempty"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone"`
	Building    string    `db:"building" json:"building"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentDetail adds the head's display name.
type DepartmentDetail struct {
	Department
	HeadName *string `db:"head_name" json:"head_name,omitempty"`
}

// DepartmentFilter filters department listings.
type DepartmentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// DegreeType enumerates supported degree programs.
type DegreeType string

const (
	DegreeBS  DegreeType = "BS"
	DegreeBA  DegreeType = "BA"
	DegreeMS  DegreeType = "MS"
	DegreeMA  DegreeType = "MA"
	DegreePHD DegreeType = "PHD"
)

// Program is a degree program owned by a department and removed with it.
type Program struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Code          string     `db:"code" json:"code"`
	DegreeType    DegreeType `db:"degree_type" json:"degree_type"`
	DepartmentID  string     `db:"department_id" json:"department_id"`
	Description   string     `db:"description" json:"description"`
	TotalUnits    int        `db:"total_units" json:"total_units"`
	DurationYears int        `db:"duration_years" json:"duration_years"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ProgramFilter filters program listings.
type ProgramFilter struct {
	DepartmentID string
	DegreeType   DegreeType
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
