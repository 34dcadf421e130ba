package service

import (
	"context"

	"github.com/queueflow/queue-core/internal/domain"
)

// RealtimeHub fans events out to connected websocket sessions. The hub
// never returns errors: delivery to a slow or gone session is dropped.
type RealtimeHub interface {
	// NotifyTicketCalled broadcasts a called ticket to the queue room
	NotifyTicketCalled(event *domain.TicketCalledEvent)

	// NotifyUserTicketCalled tells the ticket owner their ticket was called
	NotifyUserTicketCalled(userID string, event *domain.YourTicketCalledEvent)

	// UpdateQueuePositions pushes the recomputed waiting order to the queue room
	UpdateQueuePositions(event *domain.QueuePositionUpdateEvent)

	// UpdateQueueStatus pushes aggregate queue state to the queue room
	UpdateQueueStatus(event *domain.QueueStatusUpdateEvent)

	// SendNotification delivers a personal notification to one user
	SendNotification(userID string, event *domain.NotificationEvent)
}

// Notifier forwards selected events to an external notification service.
// Calls make a single attempt with a bounded timeout; failures are
// classified, logged by the caller, and never retried.
type Notifier interface {
	// NotifyTicketCalled forwards a ticket-called event
	NotifyTicketCalled(ctx context.Context, ticket *domain.Ticket, queue *domain.Queue) error

	// NotifyQueueCreated forwards a queue-created event
	NotifyQueueCreated(ctx context.Context, queue *domain.Queue) error
}
