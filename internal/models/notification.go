package models

import "time"

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationAnnouncement NotificationType = "ANNOUNCEMENT"
	NotificationGrade        NotificationType = "GRADE"
	NotificationAssignment   NotificationType = "ASSIGNMENT"
	NotificationEvent        NotificationType = "EVENT"
	NotificationDocument     NotificationType = "DOCUMENT"
	NotificationGeneral      NotificationType = "GENERAL"
)

// Notification is a per-user message; removed with its recipient.
type Notification struct {
	ID           string           `db:"id" json:"id"`
	RecipientID  string           `db:"recipient_id" json:"recipient_id"`
	Type         NotificationType `db:"type" json:"type"`
	Title        string           `db:"title" json:"title"`
	Message      string           `db:"message" json:"message"`
	IsRead       bool             `db:"is_read" json:"is_read"`
	Link         string           `db:"link" json:"link"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter filters a user's notification feed.
type NotificationFilter struct {
	RecipientID string
	Type        NotificationType
	UnreadOnly  bool
	Page        int
	PageSize    int
}
