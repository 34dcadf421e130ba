package dto

import (
	"time"

	"github.com/queueflow/queue-core/internal/domain"
)

// CreateTicketRequest is the body for POST /tickets
type CreateTicketRequest struct {
	QueueID  string `json:"queue_id" binding:"required"`
	UserID   string `json:"user_id"`
	Priority string `json:"priority"`
}

// TicketResponse is the API shape of a ticket
type TicketResponse struct {
	ID                string     `json:"id"`
	QueueID           string     `json:"queue_id"`
	UserID            string     `json:"user_id,omitempty"`
	TicketNumber      string     `json:"ticket_number"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	Position          int64      `json:"position"`
	EstimatedWaitTime int64      `json:"estimated_wait_time"`
	CreatedAt         time.Time  `json:"created_at"`
	CalledAt          *time.Time `json:"called_at,omitempty"`
	ServedAt          *time.Time `json:"served_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt         *time.Time `json:"expired_at,omitempty"`
}

// TicketFromDomain converts a domain ticket
func TicketFromDomain(t *domain.Ticket) *TicketResponse {
	if t == nil {
		return nil
	}
	return &TicketResponse{
		ID:                t.ID,
		QueueID:           t.QueueID,
		UserID:            t.UserID,
		TicketNumber:      t.TicketNumber,
		Status:            string(t.Status),
		Priority:          string(t.Priority),
		Position:          t.Position,
		EstimatedWaitTime: t.EstimatedWaitTime,
		CreatedAt:         t.CreatedAt,
		CalledAt:          t.CalledAt,
		ServedAt:          t.ServedAt,
		CancelledAt:       t.CancelledAt,
		ExpiredAt:         t.ExpiredAt,
	}
}

// TicketsFromDomain converts a slice of domain tickets
func TicketsFromDomain(tickets []*domain.Ticket) []*TicketResponse {
	out := make([]*TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketFromDomain(t))
	}
	return out
}
