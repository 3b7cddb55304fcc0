package repository

import (
	"time"

	"github.com/popeskul/whatsapp-followup/internal/models"
)

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	// Contact returns the contact repository
	Contact() ContactRepository

	// Message returns the message log repository
	Message() MessageRepository
}

// ContactRepository defines operations on the durable contact record.
// Lookup methods return (nil, nil) when no row matches.
type ContactRepository interface {
	GetByPhone(phoneNumber string) (*models.Contact, error)
	GetByID(id int64) (*models.Contact, error)
	Create(name, phoneNumber string) (*models.Contact, error)
	List() ([]*models.Contact, error)

	// MarkFollowedUp records a successful first send: status, first message,
	// generation context and both timestamps in one write.
	MarkFollowedUp(id int64, firstMessage, contactContext string, sentAt, scheduledAt time.Time) error

	// MarkAccepted records an inbound reply: status ACCEPTED and the pending
	// follow-up cleared.
	MarkAccepted(id int64, repliedAt time.Time) error

	// MarkInvalid records an unrecoverable send failure.
	MarkInvalid(id int64) error

	// CompleteReminder transitions FOLLOWED_UP -> FOLLOWED_UP_REMINDER as a
	// compare-and-set. It reports false when the contact was no longer in
	// FOLLOWED_UP, in which case nothing is written.
	CompleteReminder(id int64, secondMessage string, sentAt time.Time) (bool, error)

	// UpdateStatus overwrites the lifecycle state (operator API).
	UpdateStatus(id int64, status models.ContactStatus) (*models.Contact, error)

	// ListOrphanedFollowUps returns contacts still FOLLOWED_UP whose scheduled
	// follow-up time is in the past — timers lost to a restart.
	ListOrphanedFollowUps(before time.Time) ([]*models.Contact, error)

	Remove(id int64) error
}

// MessageRepository defines operations on the append-only message log.
type MessageRepository interface {
	Create(contactID int64, body string, sentAt time.Time) (*models.Message, error)
	List() ([]*models.Message, error)
	ListByContact(contactID int64) ([]*models.Message, error)
	GetByID(id int64) (*models.Message, error)
}
