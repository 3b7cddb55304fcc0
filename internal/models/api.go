package models

import "time"

// StartFollowUpRequest is the body of POST /api/follow-ups.
type StartFollowUpRequest struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Context     string `json:"context,omitempty"`
}

// UpdateContactStatusRequest is the body of PATCH /api/contacts/{id}/status.
type UpdateContactStatusRequest struct {
	Status ContactStatus `json:"status"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ContactResponse is the JSON view of a Contact with nullable columns
// flattened to optional fields.
type ContactResponse struct {
	ID                  int64         `json:"id"`
	Name                string        `json:"name"`
	PhoneNumber         string        `json:"phone_number"`
	Status              ContactStatus `json:"status"`
	FirstMessage        *string       `json:"first_message,omitempty"`
	SecondMessage       *string       `json:"second_message,omitempty"`
	Context             *string       `json:"context,omitempty"`
	LastMessageSentAt   *time.Time    `json:"last_message_sent_at,omitempty"`
	FollowUpScheduledAt *time.Time    `json:"follow_up_scheduled_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// NewContactResponse converts a database Contact into its API view.
func NewContactResponse(c *Contact) ContactResponse {
	resp := ContactResponse{
		ID:          c.ID,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}

	if c.FirstMessage.Valid {
		resp.FirstMessage = &c.FirstMessage.String
	}
	if c.SecondMessage.Valid {
		resp.SecondMessage = &c.SecondMessage.String
	}
	if c.Context.Valid {
		resp.Context = &c.Context.String
	}
	if c.LastMessageSentAt.Valid {
		resp.LastMessageSentAt = &c.LastMessageSentAt.Time
	}
	if c.FollowUpScheduledAt.Valid {
		resp.FollowUpScheduledAt = &c.FollowUpScheduledAt.Time
	}

	return resp
}

// ContactListResponse wraps the dashboard contact listing.
type ContactListResponse struct {
	Contacts []ContactResponse `json:"contacts"`
	Total    int               `json:"total"`
}

// MessageListResponse wraps the dashboard message listing.
type MessageListResponse struct {
	Messages []*Message `json:"messages"`
	Total    int        `json:"total"`
}

// Health response statuses.
type HealthStatusValue string

const (
	HealthStatusHealthy   HealthStatusValue = "healthy"
	HealthStatusDegraded  HealthStatusValue = "degraded"
	HealthStatusUnhealthy HealthStatusValue = "unhealthy"
)

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status               HealthStatusValue `json:"status"`
	DatabaseStatus       string            `json:"database_status"`
	RedisStatus          string            `json:"redis_status"`
	CircuitBreakerState  string            `json:"circuit_breaker_state"`
	CircuitBreakerCounts string            `json:"circuit_breaker_counts"`
	ActiveFollowUps      int               `json:"active_follow_ups"`
}
