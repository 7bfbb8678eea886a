package models

import "time"

// FeedbackType classifies student feedback.
type FeedbackType string

const (
	FeedbackComplaint  FeedbackType = "COMPLAINT"
	FeedbackSuggestion FeedbackType = "SUGGESTION"
	FeedbackInquiry    FeedbackType = "INQUIRY"
	FeedbackPraise     FeedbackType = "PRAISE"
)

// FeedbackStatus advances forward-only: pending, reviewed, resolved, closed.
type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "PENDING"
	FeedbackReviewed FeedbackStatus = "REVIEWED"
	FeedbackResolved FeedbackStatus = "RESOLVED"
	FeedbackClosed   FeedbackStatus = "CLOSED"
)

var feedbackOrder = map[FeedbackStatus]int{
	FeedbackPending:  0,
	FeedbackReviewed: 1,
	FeedbackResolved: 2,
	FeedbackClosed:   3,
}

// IsTerminal reports whether the status ends the lifecycle.
func (s FeedbackStatus) IsTerminal() bool { return s == FeedbackClosed }

// CanTransitionTo permits only forward movement along the lifecycle.
func (s FeedbackStatus) CanTransitionTo(target FeedbackStatus) bool {
	from, okFrom := feedbackOrder[s]
	to, okTo := feedbackOrder[target]
	return okFrom && okTo && to > from
}

// Feedback is a student-submitted complaint, suggestion, inquiry or praise.
type Feedback struct {
	ID            string         `db:"id" json:"id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	FeedbackType  FeedbackType   `db:"feedback_type" json:"feedback_type"`
	Subject       string         `db:"subject" json:"subject"`
	Message       string         `db:"message" json:"message"`
	Status        FeedbackStatus `db:"status" json:"status"`
	SubmittedAt   time.Time      `db:"submitted_at" json:"submitted_at"`
	Response      string         `db:"response" json:"response"`
	RespondedByID *string        `db:"responded_by_id" json:"responded_by_id,omitempty"`
	RespondedAt   *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
}

// FeedbackFilter filters feedback listings.
type FeedbackFilter struct {
	StudentID    string
	FeedbackType FeedbackType
	Status       FeedbackStatus
	Page         int
	PageSize     int
}
