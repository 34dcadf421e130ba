package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/pkg/telemetry"
)

// PostgresQueueRepository implements QueueRepository using PostgreSQL
type PostgresQueueRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresQueueRepository creates a new PostgresQueueRepository
func NewPostgresQueueRepository(pool *pgxpool.Pool) *PostgresQueueRepository {
	return &PostgresQueueRepository{pool: pool}
}

const queueColumns = `id, name, description, max_active_tickets, average_service_time, is_active, created_at, updated_at`

// Create persists a new queue
func (r *PostgresQueueRepository) Create(ctx context.Context, queue *domain.Queue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.queue.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("queue_id", queue.ID),
		attribute.String("queue_name", queue.Name),
	)

	query := `
		INSERT INTO queues (
			id, name, description, max_active_tickets, average_service_time,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		queue.ID,
		queue.Name,
		queue.Description,
		queue.MaxActiveTickets,
		queue.AverageServiceTime,
		queue.IsActive,
		queue.CreatedAt,
		queue.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			span.SetStatus(codes.Error, "duplicate queue name")
			return domain.ErrDuplicateQueueName
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create queue: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID fetches a queue by id
func (r *PostgresQueueRepository) GetByID(ctx context.Context, id string) (*domain.Queue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.queue.get")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", id))

	query := fmt.Sprintf(`SELECT %s FROM queues WHERE id = $1`, queueColumns)

	queue, err := scanQueue(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrQueueNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return queue, nil
}

// ListActive returns all active queues ordered by name
func (r *PostgresQueueRepository) ListActive(ctx context.Context) ([]*domain.Queue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.queue.list_active")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM queues WHERE is_active = true ORDER BY name`, queueColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	defer rows.Close()

	var queues []*domain.Queue
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan queue: %w", err)
		}
		queues = append(queues, queue)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate queues: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(queues)))
	span.SetStatus(codes.Ok, "")
	return queues, nil
}

// Update persists mutable queue fields
func (r *PostgresQueueRepository) Update(ctx context.Context, queue *domain.Queue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.queue.update")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", queue.ID))

	query := `
		UPDATE queues
		SET name = $2, description = $3, max_active_tickets = $4,
		    average_service_time = $5, is_active = $6, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		queue.ID,
		queue.Name,
		queue.Description,
		queue.MaxActiveTickets,
		queue.AverageServiceTime,
		queue.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			span.SetStatus(codes.Error, "duplicate queue name")
			return domain.ErrDuplicateQueueName
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update queue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrQueueNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Deactivate soft-deletes a queue
func (r *PostgresQueueRepository) Deactivate(ctx context.Context, id string) (*domain.Queue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.queue.deactivate")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", id))

	query := fmt.Sprintf(`
		UPDATE queues
		SET is_active = false, updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, queueColumns)

	queue, err := scanQueue(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrQueueNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to deactivate queue: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return queue, nil
}

func scanQueue(row pgx.Row) (*domain.Queue, error) {
	var q domain.Queue
	err := row.Scan(
		&q.ID,
		&q.Name,
		&q.Description,
		&q.MaxActiveTickets,
		&q.AverageServiceTime,
		&q.IsActive,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Ensure PostgresQueueRepository implements QueueRepository
var _ QueueRepository = (*PostgresQueueRepository)(nil)
