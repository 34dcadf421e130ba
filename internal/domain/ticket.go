package domain

import "time"

// TicketStatus is the lifecycle state of a ticket
type TicketStatus string

const (
	StatusWaiting   TicketStatus = "WAITING"
	StatusCalled    TicketStatus = "CALLED"
	StatusServed    TicketStatus = "SERVED"
	StatusCancelled TicketStatus = "CANCELLED"
	StatusExpired   TicketStatus = "EXPIRED"
)

// TicketPriority is stored and surfaced but does not affect call order
type TicketPriority string

const (
	PriorityNormal   TicketPriority = "NORMAL"
	PriorityPriority TicketPriority = "PRIORITY"
	PriorityVIP      TicketPriority = "VIP"
	PriorityUrgency  TicketPriority = "URGENCY"
)

// Ticket is a single claim on a queue's service slot
type Ticket struct {
	ID                string         `json:"id"`
	QueueID           string         `json:"queue_id"`
	UserID            string         `json:"user_id,omitempty"`
	TicketNumber      string         `json:"ticket_number"`
	Status            TicketStatus   `json:"status"`
	Priority          TicketPriority `json:"priority"`
	Position          int64          `json:"position"`
	EstimatedWaitTime int64          `json:"estimated_wait_time"` // seconds
	CreatedAt         time.Time      `json:"created_at"`
	CalledAt          *time.Time     `json:"called_at,omitempty"`
	ServedAt          *time.Time     `json:"served_at,omitempty"`
	CancelledAt       *time.Time     `json:"cancelled_at,omitempty"`
	ExpiredAt         *time.Time     `json:"expired_at,omitempty"`
}

// transitions maps a target status to the states it may be reached from.
// Terminal states have no outgoing edges; re-applying a transition to a
// ticket already past it is illegal.
var transitions = map[TicketStatus][]TicketStatus{
	StatusCalled:    {StatusWaiting},
	StatusServed:    {StatusCalled},
	StatusCancelled: {StatusWaiting, StatusCalled},
	StatusExpired:   {StatusWaiting},
}

// AllowedFrom returns the set of states a transition to target is legal from
func AllowedFrom(target TicketStatus) []TicketStatus {
	return transitions[target]
}

// CanTransition reports whether a ticket in state from may move to target
func CanTransition(from, to TicketStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case StatusServed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known ticket status
func ValidStatus(s TicketStatus) bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusServed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority level
func ValidPriority(p TicketPriority) bool {
	switch p {
	case PriorityNormal, PriorityPriority, PriorityVIP, PriorityUrgency:
		return true
	}
	return false
}

// Validate checks ticket fields on creation
func (t *Ticket) Validate() error {
	if t.QueueID == "" {
		return ErrInvalidQueueID
	}
	if t.Position <= 0 {
		return ErrInvalidPosition
	}
	if t.Priority != "" && !ValidPriority(t.Priority) {
		return ErrInvalidPriority
	}
	return nil
}
