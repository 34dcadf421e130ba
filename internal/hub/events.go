package hub

import (
	"github.com/queueflow/queue-core/internal/domain"
)

// NotifyTicketCalled broadcasts a called ticket to its queue room
func (r *Registry) NotifyTicketCalled(event *domain.TicketCalledEvent) {
	r.emit(QueueRoom(event.QueueID), domain.EventTicketCalled, event)
}

// NotifyUserTicketCalled tells the ticket owner their ticket was called
func (r *Registry) NotifyUserTicketCalled(userID string, event *domain.YourTicketCalledEvent) {
	r.emit(UserRoom(userID), domain.EventYourTicketCalled, event)
}

// UpdateQueuePositions pushes the recomputed waiting order to the queue room
func (r *Registry) UpdateQueuePositions(event *domain.QueuePositionUpdateEvent) {
	r.emit(QueueRoom(event.QueueID), domain.EventQueuePositionUpdate, event)
}

// UpdateQueueStatus pushes the queue aggregate to the queue room
func (r *Registry) UpdateQueueStatus(event *domain.QueueStatusUpdateEvent) {
	r.emit(QueueRoom(event.QueueID), domain.EventQueueStatusUpdate, event)
}

// SendNotification delivers a personal notification to one user's room
func (r *Registry) SendNotification(userID string, event *domain.NotificationEvent) {
	r.emit(UserRoom(userID), domain.EventNotification, event)
}
