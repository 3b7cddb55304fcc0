package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/whatsapp-followup/internal/models"
)

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

// Create appends one entry to the message log.
func (r *messageRepository) Create(contactID int64, body string, sentAt time.Time) (*models.Message, error) {
	query := `
		INSERT INTO messages (contact_id, body, sent_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, contact_id, body, sent_at, created_at
	`

	var message models.Message
	err := r.db.Get(&message, query, contactID, body, sentAt, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return &message, nil
}

// List returns the whole message log, newest first.
func (r *messageRepository) List() ([]*models.Message, error) {
	query := `
		SELECT id, contact_id, body, sent_at, created_at
		FROM messages
		ORDER BY sent_at DESC
	`

	var messages []*models.Message
	if err := r.db.Select(&messages, query); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// ListByContact returns a contact's messages in send order.
func (r *messageRepository) ListByContact(contactID int64) ([]*models.Message, error) {
	query := `
		SELECT id, contact_id, body, sent_at, created_at
		FROM messages
		WHERE contact_id = $1
		ORDER BY sent_at ASC
	`

	var messages []*models.Message
	if err := r.db.Select(&messages, query, contactID); err != nil {
		return nil, fmt.Errorf("failed to list messages for contact: %w", err)
	}

	return messages, nil
}

// GetByID retrieves one message, or (nil, nil) when it does not exist.
func (r *messageRepository) GetByID(id int64) (*models.Message, error) {
	query := `
		SELECT id, contact_id, body, sent_at, created_at
		FROM messages
		WHERE id = $1
	`

	var message models.Message
	err := r.db.Get(&message, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &message, nil
}
