package service

import (
	"context"

	"github.com/popeskul/whatsapp-followup/internal/models"
)

// FollowUpService drives the two-message follow-up workflow and owns the
// per-address timer table behind it.
type FollowUpService interface {
	// StartFollowUp sends the initial message and arms the escalation timer.
	// A second call for the same address restarts the sequence: last call
	// wins. A transport failure marks the contact INVALID_CONTACT, arms no
	// timer and is returned to the caller.
	StartFollowUp(ctx context.Context, phoneNumber, name, contactContext string) (*models.FollowUpResult, error)

	// CancelFollowUp drops the live timer for the address, if any. It does
	// not touch the contact's persisted state; success either way.
	CancelFollowUp(phoneNumber string) bool

	// ActiveFollowUps returns the number of live timers.
	ActiveFollowUps() int

	// BreakerStatus exposes the transport circuit breaker for health checks.
	BreakerStatus() (state string, requests, failures uint32)

	// ReportOrphans logs contacts whose scheduled follow-up predates this
	// process and can therefore never fire. Reporting only; no repair.
	ReportOrphans() int

	// Shutdown cancels every live timer.
	Shutdown()
}

// InboundService processes reply events from the webhook.
type InboundService interface {
	// HandleInbound records a reply and cancels the pending follow-up. It
	// always returns the acknowledgment text, even when processing fails
	// internally — the webhook must answer regardless.
	HandleInbound(ctx context.Context, from, body string) string
}

// ContactService is the dashboard/operator read-write surface over contacts.
type ContactService interface {
	ListContacts() ([]*models.Contact, error)
	GetContactByPhone(phoneNumber string) (*models.Contact, error)
	UpdateContactStatus(id int64, status models.ContactStatus) (*models.Contact, error)
	RemoveContact(id int64) error
}

// MessageService is the read-only surface over the message log.
type MessageService interface {
	ListMessages() ([]*models.Message, error)
	ListContactMessages(contactID int64) ([]*models.Message, error)
	GetMessage(id int64) (*models.Message, error)
}

// HealthService aggregates component health.
type HealthService interface {
	GetHealth() *models.HealthResponse
}
