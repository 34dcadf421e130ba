package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/pkg/telemetry"
)

// PostgresTicketRepository implements TicketRepository using PostgreSQL.
// Every transition is a single state-guarded statement, so the guard and
// the write cannot be separated by a concurrent writer.
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

const ticketColumns = `id, queue_id, user_id, ticket_number, status, priority, position,
	estimated_wait_time, created_at, called_at, served_at, cancelled_at, expired_at`

// timestampColumn maps a target status to the column stamped on transition
var timestampColumn = map[domain.TicketStatus]string{
	domain.StatusCalled:    "called_at",
	domain.StatusServed:    "served_at",
	domain.StatusCancelled: "cancelled_at",
	domain.StatusExpired:   "expired_at",
}

// Create persists a new WAITING ticket
func (r *PostgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("queue_id", ticket.QueueID),
		attribute.String("ticket_number", ticket.TicketNumber),
	)

	query := `
		INSERT INTO tickets (
			id, queue_id, user_id, ticket_number, status, priority,
			position, estimated_wait_time, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.QueueID,
		nullString(ticket.UserID),
		ticket.TicketNumber,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.Position,
		ticket.EstimatedWaitTime,
		ticket.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID fetches a ticket by id
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id = $1`, ticketColumns)

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTicketNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// ListByQueue returns tickets of a queue ordered by position
func (r *PostgresTicketRepository) ListByQueue(ctx context.Context, queueID string, status domain.TicketStatus) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.list_by_queue")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", queueID))

	var rows pgx.Rows
	var err error
	if status == "" {
		query := fmt.Sprintf(`SELECT %s FROM tickets WHERE queue_id = $1 ORDER BY position`, ticketColumns)
		rows, err = r.pool.Query(ctx, query, queueID)
	} else {
		query := fmt.Sprintf(`SELECT %s FROM tickets WHERE queue_id = $1 AND status = $2 ORDER BY position`, ticketColumns)
		rows, err = r.pool.Query(ctx, query, queueID, string(status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets, err := collectTickets(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// ListByUser returns a user's tickets, newest first
func (r *PostgresTicketRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.list_by_user")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`, ticketColumns)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets, err := collectTickets(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// CountByStatus counts a queue's tickets in the given status
func (r *PostgresTicketRepository) CountByStatus(ctx context.Context, queueID string, status domain.TicketStatus) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.count_by_status")
	defer span.End()

	span.SetAttributes(
		attribute.String("queue_id", queueID),
		attribute.String("status", string(status)),
	)

	var count int64
	query := `SELECT count(*) FROM tickets WHERE queue_id = $1 AND status = $2`
	if err := r.pool.QueryRow(ctx, query, queueID, string(status)).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	span.SetAttributes(attribute.Int64("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

// CurrentCalled returns the queue's most recently called ticket still CALLED
func (r *PostgresTicketRepository) CurrentCalled(ctx context.Context, queueID string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.current_called")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", queueID))

	query := fmt.Sprintf(`
		SELECT %s FROM tickets
		WHERE queue_id = $1 AND status = $2
		ORDER BY called_at DESC
		LIMIT 1
	`, ticketColumns)

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, queueID, string(domain.StatusCalled)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "no called ticket")
			return nil, domain.ErrTicketNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get current ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// WaitingPositions returns the position snapshot of WAITING tickets
func (r *PostgresTicketRepository) WaitingPositions(ctx context.Context, queueID string) ([]domain.TicketPosition, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.waiting_positions")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", queueID))

	query := `
		SELECT id, position FROM tickets
		WHERE queue_id = $1 AND status = $2
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, queueID, string(domain.StatusWaiting))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query waiting positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.TicketPosition
	for rows.Next() {
		var p domain.TicketPosition
		if err := rows.Scan(&p.TicketID, &p.Position); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(positions)))
	span.SetStatus(codes.Ok, "")
	return positions, nil
}

// Transition applies a state-guarded status change in one statement
func (r *PostgresTicketRepository) Transition(ctx context.Context, ticketID string, to domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.transition")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("to_status", string(to)),
	)

	column, ok := timestampColumn[to]
	if !ok {
		span.SetStatus(codes.Error, "illegal target status")
		return nil, domain.ErrInvalidTransition
	}

	allowed := domain.AllowedFrom(to)
	from := make([]string, 0, len(allowed))
	for _, s := range allowed {
		from = append(from, string(s))
	}

	// The status guard and the write are one statement: a racing writer
	// that commits first makes this one affect zero rows.
	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = $2, %s = $3
		WHERE id = $1 AND status = ANY($4)
		RETURNING %s
	`, column, ticketColumns)

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, ticketID, string(to), at, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing ticket from a guard failure
			var exists bool
			if probeErr := r.pool.QueryRow(ctx, `SELECT true FROM tickets WHERE id = $1`, ticketID).Scan(&exists); probeErr != nil {
				if errors.Is(probeErr, pgx.ErrNoRows) {
					span.SetStatus(codes.Error, "not found")
					return nil, domain.ErrTicketNotFound
				}
				span.RecordError(probeErr)
				span.SetStatus(codes.Error, probeErr.Error())
				return nil, fmt.Errorf("failed to check ticket: %w", probeErr)
			}
			span.SetStatus(codes.Error, "invalid transition")
			return nil, domain.ErrInvalidTransition
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to transition ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// CallNext atomically selects and calls the head WAITING ticket.
// SKIP LOCKED keeps concurrent callers from ever locking the same row,
// and the status guard keeps a selected row from being called twice.
func (r *PostgresTicketRepository) CallNext(ctx context.Context, queueID string, at time.Time) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.call_next")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", queueID))

	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = $3, called_at = $2
		WHERE id = (
			SELECT id FROM tickets
			WHERE queue_id = $1 AND status = $4
			ORDER BY position, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = $4
		RETURNING %s
	`, ticketColumns)

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query,
		queueID, at, string(domain.StatusCalled), string(domain.StatusWaiting)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "queue empty")
			return nil, domain.ErrQueueEmpty
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to call next ticket: %w", err)
	}

	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("ticket_number", ticket.TicketNumber),
	)
	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// ExpireStale transitions WAITING tickets created before cutoff to EXPIRED
func (r *PostgresTicketRepository) ExpireStale(ctx context.Context, cutoff time.Time, at time.Time) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.expire_stale")
	defer span.End()

	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = $3, expired_at = $2
		WHERE status = $4 AND created_at < $1
		RETURNING %s
	`, ticketColumns)

	rows, err := r.pool.Query(ctx, query,
		cutoff, at, string(domain.StatusExpired), string(domain.StatusWaiting))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to expire tickets: %w", err)
	}
	defer rows.Close()

	tickets, err := collectTickets(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var userID *string
	err := row.Scan(
		&t.ID,
		&t.QueueID,
		&userID,
		&t.TicketNumber,
		&t.Status,
		&t.Priority,
		&t.Position,
		&t.EstimatedWaitTime,
		&t.CreatedAt,
		&t.CalledAt,
		&t.ServedAt,
		&t.CancelledAt,
		&t.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		t.UserID = *userID
	}
	return &t, nil
}

func collectTickets(rows pgx.Rows) ([]*domain.Ticket, error) {
	var tickets []*domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresTicketRepository implements TicketRepository
var _ TicketRepository = (*PostgresTicketRepository)(nil)
