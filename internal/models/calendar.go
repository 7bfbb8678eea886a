package models

import "time"

// AcademicYear partitions the calendar, e.g. "2025-2026".
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SemesterType enumerates the semester slots within an academic year.
type SemesterType string

const (
	SemesterFirst  SemesterType = "1ST"
	SemesterSecond SemesterType = "2ND"
	SemesterSummer SemesterType = "SUMMER"
)

// Semester belongs to exactly one academic year. The enrollment window
// [EnrollmentStart, EnrollmentEnd] is distinct from the semester's own dates.
type Semester struct {
	ID              string       `db:"id" json:"id"`
	AcademicYearID  string       `db:"academic_year_id" json:"academic_year_id"`
	SemesterType    SemesterType `db:"semester_type" json:"semester_type"`
	StartDate       time.Time    `db:"start_date" json:"start_date"`
	EndDate         time.Time    `db:"end_date" json:"end_date"`
	IsActive        bool         `db:"is_active" json:"is_active"`
	EnrollmentStart time.Time    `db:"enrollment_start" json:"enrollment_start"`
	EnrollmentEnd   time.Time    `db:"enrollment_end" json:"enrollment_end"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// SemesterDetail enriches Semester with its academic year name.
type SemesterDetail struct {
	Semester
	AcademicYearName string `db:"academic_year_name" json:"academic_year_name"`
}

// EnrollmentOpenAt reports whether the enrollment window contains the instant.
func (s Semester) EnrollmentOpenAt(t time.Time) bool {
	return !t.Before(s.EnrollmentStart) && !t.After(s.EnrollmentEnd)
}

// AcademicYearFilter filters academic year listings.
type AcademicYearFilter struct {
	IsActive  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SemesterFilter filters semester listings.
type SemesterFilter struct {
	AcademicYearID string
	SemesterType   SemesterType
	IsActive       *bool
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
