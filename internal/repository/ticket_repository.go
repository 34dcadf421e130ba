package repository

import (
	"context"
	"time"

	"github.com/queueflow/queue-core/internal/domain"
)

// TicketRepository defines the store contract for tickets. All mutating
// operations are conditional on the ticket's current state so racing
// writers cannot apply the same transition twice.
type TicketRepository interface {
	// Create persists a new WAITING ticket
	Create(ctx context.Context, ticket *domain.Ticket) error

	// GetByID fetches a ticket; ErrTicketNotFound when absent
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// ListByQueue returns tickets of a queue, optionally filtered by status
	// (empty status means all), ordered by position
	ListByQueue(ctx context.Context, queueID string, status domain.TicketStatus) ([]*domain.Ticket, error)

	// ListByUser returns a user's tickets, newest first
	ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error)

	// CountByStatus counts a queue's tickets in the given status
	CountByStatus(ctx context.Context, queueID string, status domain.TicketStatus) (int64, error)

	// CurrentCalled returns the most recently called ticket still in CALLED
	// state; ErrTicketNotFound when the queue has none
	CurrentCalled(ctx context.Context, queueID string) (*domain.Ticket, error)

	// WaitingPositions returns the position snapshot of WAITING tickets,
	// ordered by position
	WaitingPositions(ctx context.Context, queueID string) ([]domain.TicketPosition, error)

	// Transition moves a ticket to the target status if and only if its
	// current status allows it, stamping the transition timestamp in the
	// same statement. ErrInvalidTransition when the guard fails,
	// ErrTicketNotFound when the ticket is absent.
	Transition(ctx context.Context, ticketID string, to domain.TicketStatus, at time.Time) (*domain.Ticket, error)

	// CallNext atomically selects the WAITING ticket with the lowest
	// position (ties broken by created_at) and transitions it to CALLED.
	// Each WAITING ticket is handed to at most one caller.
	// ErrQueueEmpty when nothing is WAITING.
	CallNext(ctx context.Context, queueID string, at time.Time) (*domain.Ticket, error)

	// ExpireStale transitions WAITING tickets created before cutoff to
	// EXPIRED and returns them, any queue
	ExpireStale(ctx context.Context, cutoff time.Time, at time.Time) ([]*domain.Ticket, error)
}
