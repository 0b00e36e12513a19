package notify

import (
	"errors"
	"strings"
	"time"
)

// PushStatus records the outcome of one best-effort push attempt.
type PushStatus string

const (
	PushSent           PushStatus = "SENT"
	PushSkippedNoToken PushStatus = "SKIPPED_NO_TOKEN"
	PushFailed         PushStatus = "FAILED"
)

// Notification is an admin-composed broadcast, persisted read-only once
// fanned out.
type Notification struct {
	ID        string
	Title     string
	Message   string
	CreatedBy string
	CreatedAt time.Time
	// Read is the requesting recipient's delivery flag; only per-user
	// listings populate it.
	Read bool
}

// Delivery is the per-recipient record of a notification. The persisted row
// exists whether or not the push attempt succeeded; push is best-effort.
type Delivery struct {
	NotificationID string
	UserID         string
	PushStatus     PushStatus
	PushError      string
	Read           bool
	CreatedAt      time.Time
}

var (
	ErrTitleRequired      = errors.New("notification title is required")
	ErrMessageRequired    = errors.New("notification message is required")
	ErrRecipientsRequired = errors.New("at least one recipient is required")
)

// NewNotification validates and builds a broadcast record.
func NewNotification(id, title, message, createdBy string, recipients []string) (*Notification, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrMessageRequired
	}
	if len(recipients) == 0 {
		return nil, ErrRecipientsRequired
	}

	return &Notification{
		ID:        id,
		Title:     strings.TrimSpace(title),
		Message:   strings.TrimSpace(message),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}, nil
}
