// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"time"
)

// ContactStatus describes where a contact sits in the two-message follow-up
// lifecycle. Transitions are monotonic along
// NOT_CONTACTED -> FOLLOWED_UP -> {ACCEPTED | FOLLOWED_UP_REMINDER};
// INVALID_CONTACT is reachable on an unrecoverable send failure.
type ContactStatus string

const (
	ContactStatusNotContacted       ContactStatus = "NOT_CONTACTED"
	ContactStatusFollowedUp         ContactStatus = "FOLLOWED_UP"
	ContactStatusFollowedUpReminder ContactStatus = "FOLLOWED_UP_REMINDER"
	ContactStatusAccepted           ContactStatus = "ACCEPTED"
	ContactStatusInvalidContact     ContactStatus = "INVALID_CONTACT"
)

// IsValid reports whether s is one of the known lifecycle states.
func (s ContactStatus) IsValid() bool {
	switch s {
	case ContactStatusNotContacted, ContactStatusFollowedUp,
		ContactStatusFollowedUpReminder, ContactStatusAccepted,
		ContactStatusInvalidContact:
		return true
	}
	return false
}

// Contact represents a contact in the database.
//
// FollowUpScheduledAt is non-null exactly while an in-memory follow-up timer
// is armed for the contact's phone number in the current process. A process
// restart can leave the column set with no live timer behind it; startup logs
// such rows instead of repairing them.
type Contact struct {
	ID                  int64          `db:"id" json:"id"`
	Name                string         `db:"name" json:"name"`
	PhoneNumber         string         `db:"phone_number" json:"phone_number"`
	Status              ContactStatus  `db:"status" json:"status"`
	FirstMessage        sql.NullString `db:"first_message" json:"first_message,omitempty"`
	SecondMessage       sql.NullString `db:"second_message" json:"second_message,omitempty"`
	Context             sql.NullString `db:"context" json:"context,omitempty"`
	LastMessageSentAt   sql.NullTime   `db:"last_message_sent_at" json:"last_message_sent_at,omitempty"`
	FollowUpScheduledAt sql.NullTime   `db:"follow_up_scheduled_at" json:"follow_up_scheduled_at,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// FollowUpResult is returned to the caller of a successful StartFollowUp.
type FollowUpResult struct {
	ContactID   int64  `json:"contact_id"`
	PhoneNumber string `json:"phone_number"`
	DeliveryID  string `json:"delivery_id"`
	Body        string `json:"body"`
}
