package models

import "time"

// FinalRating is a value from the closed grading scale. 1.00 through 3.00
// are passing, 5.00 is failing, INC is incomplete and DRP is dropped.
type FinalRating string

const (
	RatingFailed     FinalRating = "5.00"
	RatingIncomplete FinalRating = "INC"
	RatingDropped    FinalRating = "DRP"
)

var finalRatingScale = map[FinalRating]struct{}{
	"1.00": {}, "1.25": {}, "1.50": {}, "1.75": {},
	"2.00": {}, "2.25": {}, "2.50": {}, "2.75": {},
	"3.00": {}, RatingFailed: {}, RatingIncomplete: {}, RatingDropped: {},
}

// Valid reports whether the rating belongs to the closed scale.
func (r FinalRating) Valid() bool {
	_, ok := finalRatingScale[r]
	return ok
}

// Grade is the one-to-one grade record for an enrollment. Posting the
// final grade is an explicit finalize step that stamps DateSubmitted;
// it is never derived automatically from assessment scores.
type Grade struct {
	ID            string      `db:"id" json:"id"`
	EnrollmentID  string      `db:"enrollment_id" json:"enrollment_id"`
	MidtermGrade  *float64    `db:"midterm_grade" json:"midterm_grade,omitempty"`
	FinalGrade    *float64    `db:"final_grade" json:"final_grade,omitempty"`
	FinalRating   FinalRating `db:"final_rating" json:"final_rating"`
	Remarks       string      `db:"remarks" json:"remarks"`
	DateSubmitted *time.Time  `db:"date_submitted" json:"date_submitted,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// AssessmentType classifies graded work within an offering.
type AssessmentType string

const (
	AssessmentQuiz       AssessmentType = "QUIZ"
	AssessmentExam       AssessmentType = "EXAM"
	AssessmentProject    AssessmentType = "PROJECT"
	AssessmentRecitation AssessmentType = "RECITATION"
	AssessmentAssignment AssessmentType = "ASSIGNMENT"
)

// Assessment is a graded activity owned by a course offering. Weight is
// the percentage contribution to the term score; totals across an
// offering are reported but not forced to reach 100.
type Assessment struct {
	ID               string         `db:"id" json:"id"`
	CourseOfferingID string         `db:"course_offering_id" json:"course_offering_id"`
	Title            string         `db:"title" json:"title"`
	AssessmentType   AssessmentType `db:"assessment_type" json:"assessment_type"`
	MaxScore         float64        `db:"max_score" json:"max_score"`
	Weight           float64        `db:"weight" json:"weight"`
	DateGiven        time.Time      `db:"date_given" json:"date_given"`
	Description      string         `db:"description" json:"description"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// AssessmentScore records one student's result on an assessment. The
// (assessment, enrollment) pair is unique. Percentage is derived, never
// stored.
type AssessmentScore struct {
	ID           string    `db:"id" json:"id"`
	AssessmentID string    `db:"assessment_id" json:"assessment_id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Score        float64   `db:"score" json:"score"`
	Remarks      string    `db:"remarks" json:"remarks"`
	DateRecorded time.Time `db:"date_recorded" json:"date_recorded"`
}

// Percentage derives score/max as a percentage for the given assessment.
func (s AssessmentScore) Percentage(maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return s.Score / maxScore * 100
}

// TermScoreComponent is one assessment's contribution to a term score.
type TermScoreComponent struct {
	AssessmentID string  `json:"assessment_id"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// TermScore is the computed weighted aggregate for one enrollment. It is
// a read-only view over assessment scores; it is never written back to
// the Grade record.
type TermScore struct {
	EnrollmentID string               `json:"enrollment_id"`
	Total        float64              `json:"total"`
	WeightUsed   float64              `json:"weight_used"`
	Components   []TermScoreComponent `json:"components"`
}

// WeightSummary reports the declared assessment weight total for an
// offering so callers can spot gaps without the core enforcing 100%.
type WeightSummary struct {
	CourseOfferingID string  `json:"course_offering_id"`
	TotalWeight      float64 `json:"total_weight"`
	AssessmentCount  int     `json:"assessment_count"`
}
