package dto

import "github.com/queueflow/queue-core/internal/domain"

// CreateQueueRequest is the body for POST /queues
type CreateQueueRequest struct {
	Name               string `json:"name" binding:"required"`
	Description        string `json:"description"`
	MaxActiveTickets   int    `json:"max_active_tickets"`
	AverageServiceTime int64  `json:"average_service_time"`
}

// UpdateQueueRequest is the body for PUT /queues/:id; nil fields are unchanged
type UpdateQueueRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	MaxActiveTickets   *int    `json:"max_active_tickets"`
	AverageServiceTime *int64  `json:"average_service_time"`
	IsActive           *bool   `json:"is_active"`
}

// QueueStatusResponse is the aggregate for GET /queues/:id/status
type QueueStatusResponse struct {
	QueueID         string `json:"queue_id"`
	TotalWaiting    int64  `json:"total_waiting"`
	AverageWaitTime int64  `json:"average_wait_time"`
	IsActive        bool   `json:"is_active"`
}

// QueueStatusFromDomain converts the domain aggregate
func QueueStatusFromDomain(s domain.QueueStatus) *QueueStatusResponse {
	return &QueueStatusResponse{
		QueueID:         s.QueueID,
		TotalWaiting:    s.TotalWaiting,
		AverageWaitTime: s.AverageWaitTime,
		IsActive:        s.IsActive,
	}
}
