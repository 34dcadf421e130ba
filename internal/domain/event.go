package domain

import "time"

// Real-time event names emitted to websocket rooms
const (
	EventTicketCalled        = "ticket-called"
	EventYourTicketCalled    = "your-ticket-called"
	EventQueuePositionUpdate = "queue-position-update"
	EventQueueStatusUpdate   = "queue-status-update"
	EventNotification        = "notification"
)

// TicketCalledEvent goes to the queue room when a ticket is called
type TicketCalledEvent struct {
	QueueID      string    `json:"queue_id"`
	TicketNumber string    `json:"ticket_number"`
	TicketID     string    `json:"ticket_id"`
	Position     int64     `json:"position"`
	Timestamp    time.Time `json:"timestamp"`
}

// YourTicketCalledEvent goes to the owner's user room
type YourTicketCalledEvent struct {
	TicketNumber string    `json:"ticket_number"`
	TicketID     string    `json:"ticket_id"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// TicketPosition is one entry of a position snapshot
type TicketPosition struct {
	TicketID string `json:"ticket_id"`
	Position int64  `json:"position"`
}

// QueuePositionUpdateEvent carries a full position snapshot for a queue
type QueuePositionUpdateEvent struct {
	QueueID   string           `json:"queue_id"`
	Positions []TicketPosition `json:"positions"`
	Timestamp time.Time        `json:"timestamp"`
}

// QueueStatusUpdateEvent carries the queue aggregate
type QueueStatusUpdateEvent struct {
	QueueID   string      `json:"queue_id"`
	Status    QueueStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationEvent is a generic user-room notification
type NotificationEvent struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticket lifecycle event types published to the event stream
const (
	TicketEventCreated   = "ticket.created"
	TicketEventCalled    = "ticket.called"
	TicketEventServed    = "ticket.served"
	TicketEventCancelled = "ticket.cancelled"
	TicketEventExpired   = "ticket.expired"
)

// TicketEvent is the payload published for every committed transition
type TicketEvent struct {
	EventID      string       `json:"event_id"`
	EventType    string       `json:"event_type"`
	TicketID     string       `json:"ticket_id"`
	TicketNumber string       `json:"ticket_number"`
	QueueID      string       `json:"queue_id"`
	UserID       string       `json:"user_id,omitempty"`
	Status       TicketStatus `json:"status"`
	Position     int64        `json:"position"`
	Timestamp    time.Time    `json:"timestamp"`
}
