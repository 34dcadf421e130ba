package repository

import (
	"context"

	"github.com/queueflow/queue-core/internal/domain"
)

// QueueRepository defines the store contract for queues
type QueueRepository interface {
	// Create persists a new queue; fails with ErrDuplicateQueueName on a
	// name collision
	Create(ctx context.Context, queue *domain.Queue) error

	// GetByID fetches a queue; ErrQueueNotFound when absent
	GetByID(ctx context.Context, id string) (*domain.Queue, error)

	// ListActive returns all active queues
	ListActive(ctx context.Context) ([]*domain.Queue, error)

	// Update persists mutable queue fields; ErrQueueNotFound when absent
	Update(ctx context.Context, queue *domain.Queue) error

	// Deactivate soft-deletes a queue and returns the updated row
	Deactivate(ctx context.Context, id string) (*domain.Queue, error)
}
