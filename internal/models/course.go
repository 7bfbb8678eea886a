package models

import "time"

// CourseType classifies a catalog course.
type CourseType string

const (
	CourseMajor    CourseType = "MAJOR"
	CourseMinor    CourseType = "MINOR"
	CourseGenEd    CourseType = "GEN_ED"
	CourseElective CourseType = "ELECTIVE"
)

// Course is a catalog entry. Prerequisites form a directed graph over
// courses: the prerequisite list of C is distinct from the courses that
// list C as their prerequisite.
type Course struct {
	ID              string     `db:"id" json:"id"`
	CourseCode      string     `db:"course_code" json:"course_code"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	DepartmentID    *string    `db:"department_id" json:"department_id,omitempty"`
	Units           int        `db:"units" json:"units"`
	LectureHours    int        `db:"lecture_hours" json:"lecture_hours"`
	LabHours        int        `db:"lab_hours" json:"lab_hours"`
	CourseType      CourseType `db:"course_type" json:"course_type"`
	YearLevel       int        `db:"year_level" json:"year_level"`
	SemesterOffered string     `db:"semester_offered" json:"semester_offered"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PrerequisiteEdge is one directed edge of the prerequisite graph:
// PrerequisiteID must be taken before CourseID.
type PrerequisiteEdge struct {
	CourseID       string `db:"course_id" json:"course_id"`
	PrerequisiteID string `db:"prerequisite_id" json:"prerequisite_id"`
}

// CourseRef is a compact course reference used in prerequisite listings.
type CourseRef struct {
	ID         string `db:"id" json:"id"`
	CourseCode string `db:"course_code" json:"course_code"`
	Title      string `db:"title" json:"title"`
}

// CourseFilter filters catalog listings.
type CourseFilter struct {
	DepartmentID    string
	CourseType      CourseType
	YearLevel       int
	SemesterOffered string
	Search          string
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}
