package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/whatsapp-followup/internal/models"
)

const contactColumns = `id, name, phone_number, status, first_message, second_message, context,
	last_message_sent_at, follow_up_scheduled_at, created_at, updated_at`

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepository{
		db: db,
	}
}

// GetByPhone retrieves a contact by its normalized phone number.
func (r *contactRepository) GetByPhone(phoneNumber string) (*models.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE phone_number = $1`, contactColumns)

	var contact models.Contact
	err := r.db.Get(&contact, query, phoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact by phone: %w", err)
	}

	return &contact, nil
}

// GetByID retrieves a contact by its id.
func (r *contactRepository) GetByID(id int64) (*models.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE id = $1`, contactColumns)

	var contact models.Contact
	err := r.db.Get(&contact, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact by id: %w", err)
	}

	return &contact, nil
}

// Create inserts a new contact in the NOT_CONTACTED state.
func (r *contactRepository) Create(name, phoneNumber string) (*models.Contact, error) {
	query := fmt.Sprintf(`
		INSERT INTO contacts (name, phone_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s
	`, contactColumns)

	now := time.Now()

	var contact models.Contact
	err := r.db.Get(&contact, query, name, phoneNumber, models.ContactStatusNotContacted, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return &contact, nil
}

// List returns all contacts, most recently updated first.
func (r *contactRepository) List() ([]*models.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts ORDER BY updated_at DESC`, contactColumns)

	var contacts []*models.Contact
	if err := r.db.Select(&contacts, query); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	return contacts, nil
}

// MarkFollowedUp records a successful first send.
func (r *contactRepository) MarkFollowedUp(id int64, firstMessage, contactContext string, sentAt, scheduledAt time.Time) error {
	query := `
		UPDATE contacts
		SET status = $2,
		    first_message = $3,
		    context = $4,
		    last_message_sent_at = $5,
		    follow_up_scheduled_at = $6,
		    updated_at = $7
		WHERE id = $1
	`

	var ctxText sql.NullString
	if contactContext != "" {
		ctxText = sql.NullString{String: contactContext, Valid: true}
	}

	_, err := r.db.Exec(query, id, models.ContactStatusFollowedUp, firstMessage, ctxText, sentAt, scheduledAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark contact followed up: %w", err)
	}

	return nil
}

// MarkAccepted records an inbound reply and clears the pending follow-up.
func (r *contactRepository) MarkAccepted(id int64, repliedAt time.Time) error {
	query := `
		UPDATE contacts
		SET status = $2,
		    last_message_sent_at = $3,
		    follow_up_scheduled_at = NULL,
		    updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.Exec(query, id, models.ContactStatusAccepted, repliedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark contact accepted: %w", err)
	}

	return nil
}

// MarkInvalid records an unrecoverable send failure.
func (r *contactRepository) MarkInvalid(id int64) error {
	query := `
		UPDATE contacts
		SET status = $2,
		    follow_up_scheduled_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.Exec(query, id, models.ContactStatusInvalidContact, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark contact invalid: %w", err)
	}

	return nil
}

// CompleteReminder performs the FOLLOWED_UP -> FOLLOWED_UP_REMINDER
// compare-and-set. A concurrent reply that already moved the contact out of
// FOLLOWED_UP makes this a no-op reported via the bool.
func (r *contactRepository) CompleteReminder(id int64, secondMessage string, sentAt time.Time) (bool, error) {
	query := `
		UPDATE contacts
		SET status = $3,
		    second_message = $4,
		    last_message_sent_at = $5,
		    follow_up_scheduled_at = NULL,
		    updated_at = $6
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.Exec(query, id, models.ContactStatusFollowedUp, models.ContactStatusFollowedUpReminder,
		secondMessage, sentAt, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to complete reminder: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// UpdateStatus overwrites the lifecycle state and returns the updated row,
// or (nil, nil) when the contact does not exist.
func (r *contactRepository) UpdateStatus(id int64, status models.ContactStatus) (*models.Contact, error) {
	query := fmt.Sprintf(`
		UPDATE contacts
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING %s
	`, contactColumns)

	var contact models.Contact
	err := r.db.Get(&contact, query, id, status, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update contact status: %w", err)
	}

	return &contact, nil
}

// ListOrphanedFollowUps returns contacts whose scheduled follow-up can no
// longer fire because the process that armed it is gone.
func (r *contactRepository) ListOrphanedFollowUps(before time.Time) ([]*models.Contact, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM contacts
		WHERE status = $1 AND follow_up_scheduled_at IS NOT NULL AND follow_up_scheduled_at < $2
		ORDER BY follow_up_scheduled_at ASC
	`, contactColumns)

	var contacts []*models.Contact
	if err := r.db.Select(&contacts, query, models.ContactStatusFollowedUp, before); err != nil {
		return nil, fmt.Errorf("failed to list orphaned follow-ups: %w", err)
	}

	return contacts, nil
}

// Remove deletes a contact.
func (r *contactRepository) Remove(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM contacts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to remove contact: %w", err)
	}

	return nil
}
