package models

import "time"

// Message is one entry in the append-only log of bodies actually sent.
// Rows are never updated or deleted.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	ContactID int64     `db:"contact_id" json:"contact_id"`
	Body      string    `db:"body" json:"body"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
