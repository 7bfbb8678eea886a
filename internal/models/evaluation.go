package models

import "time"

// CourseEvaluation is the one-to-one student evaluation of an enrollment.
// All five rating dimensions are bounded 1..5.
type CourseEvaluation struct {
	ID                    string    `db:"id" json:"id"`
	EnrollmentID          string    `db:"enrollment_id" json:"enrollment_id"`
	TeachingEffectiveness int       `db:"teaching_effectiveness" json:"teaching_effectiveness"`
	CourseContent         int       `db:"course_content" json:"course_content"`
	LearningResources     int       `db:"learning_resources" json:"learning_resources"`
	AssessmentFairness    int       `db:"assessment_fairness" json:"assessment_fairness"`
	OverallSatisfaction   int       `db:"overall_satisfaction" json:"overall_satisfaction"`
	Comments              string    `db:"comments" json:"comments"`
	SubmittedAt           time.Time `db:"submitted_at" json:"submitted_at"`
	IsAnonymous           bool      `db:"is_anonymous" json:"is_anonymous"`
}
