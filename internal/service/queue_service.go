package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/internal/dto"
	"github.com/queueflow/queue-core/internal/repository"
	"github.com/queueflow/queue-core/pkg/logger"
)

// sideEffectTimeout bounds the detached context used for fan-out,
// cross-service notification and event publishing after a commit
const sideEffectTimeout = 5 * time.Second

// QueueService manages queue lifecycle and aggregates
type QueueService interface {
	// CreateQueue registers a new queue
	CreateQueue(ctx context.Context, req *dto.CreateQueueRequest) (*domain.Queue, error)

	// GetQueue fetches one queue by id
	GetQueue(ctx context.Context, id string) (*domain.Queue, error)

	// ListQueues returns all active queues
	ListQueues(ctx context.Context) ([]*domain.Queue, error)

	// UpdateQueue applies partial updates to a queue
	UpdateQueue(ctx context.Context, id string, req *dto.UpdateQueueRequest) (*domain.Queue, error)

	// DeactivateQueue soft-deletes a queue
	DeactivateQueue(ctx context.Context, id string) (*domain.Queue, error)

	// GetQueueStatus computes the live aggregate for a queue
	GetQueueStatus(ctx context.Context, id string) (*domain.QueueStatus, error)
}

type queueService struct {
	queueRepo  repository.QueueRepository
	ticketRepo repository.TicketRepository
	hub        RealtimeHub
	notifier   Notifier
	log        *logger.Logger
	tracer     trace.Tracer
}

// NewQueueService creates a queue service
func NewQueueService(
	queueRepo repository.QueueRepository,
	ticketRepo repository.TicketRepository,
	hub RealtimeHub,
	notifier Notifier,
) QueueService {
	return &queueService{
		queueRepo:  queueRepo,
		ticketRepo: ticketRepo,
		hub:        hub,
		notifier:   notifier,
		log:        logger.Get(),
		tracer:     otel.Tracer("queue-service"),
	}
}

func (s *queueService) CreateQueue(ctx context.Context, req *dto.CreateQueueRequest) (*domain.Queue, error) {
	ctx, span := s.tracer.Start(ctx, "QueueService.CreateQueue",
		trace.WithAttributes(attribute.String("queue.name", req.Name)),
	)
	defer span.End()

	queue := domain.NewQueue(uuid.New().String(), req.Name, req.Description, req.MaxActiveTickets, req.AverageServiceTime)
	if err := queue.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.queueRepo.Create(ctx, queue); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create queue")
		return nil, err
	}

	s.log.Info("queue created",
		zap.String("queue_id", queue.ID),
		zap.String("name", queue.Name),
	)

	// Best-effort announcement to the notification service; the created
	// queue is returned regardless of the outcome.
	go func(q domain.Queue) {
		nctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.notifier.NotifyQueueCreated(nctx, &q); err != nil {
			s.log.Warn("queue-created notification failed",
				zap.String("queue_id", q.ID),
				zap.Error(err),
			)
		}
	}(*queue)

	return queue, nil
}

func (s *queueService) GetQueue(ctx context.Context, id string) (*domain.Queue, error) {
	ctx, span := s.tracer.Start(ctx, "QueueService.GetQueue",
		trace.WithAttributes(attribute.String("queue.id", id)),
	)
	defer span.End()

	if id == "" {
		return nil, domain.ErrInvalidQueueID
	}

	queue, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get queue")
		return nil, err
	}
	return queue, nil
}

func (s *queueService) ListQueues(ctx context.Context) ([]*domain.Queue, error) {
	ctx, span := s.tracer.Start(ctx, "QueueService.ListQueues")
	defer span.End()

	queues, err := s.queueRepo.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list queues")
		return nil, err
	}
	span.SetAttributes(attribute.Int("queue.count", len(queues)))
	return queues, nil
}

func (s *queueService) UpdateQueue(ctx context.Context, id string, req *dto.UpdateQueueRequest) (*domain.Queue, error) {
	ctx, span := s.tracer.Start(ctx, "QueueService.UpdateQueue",
		trace.WithAttributes(attribute.String("queue.id", id)),
	)
	defer span.End()

	if id == "" {
		return nil, domain.ErrInvalidQueueID
	}

	queue, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get queue")
		return nil, err
	}

	if req.Name != nil {
		queue.Name = *req.Name
	}
	if req.Description != nil {
		queue.Description = *req.Description
	}
	if req.MaxActiveTickets != nil {
		queue.MaxActiveTickets = *req.MaxActiveTickets
	}
	if req.AverageServiceTime != nil {
		queue.AverageServiceTime = *req.AverageServiceTime
	}
	if req.IsActive != nil {
		queue.IsActive = *req.IsActive
	}
	queue.UpdatedAt = time.Now().UTC()

	if err := queue.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.queueRepo.Update(ctx, queue); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update queue")
		return nil, err
	}

	s.pushQueueStatus(queue)
	return queue, nil
}

func (s *queueService) DeactivateQueue(ctx context.Context, id string) (*domain.Queue, error) {
	ctx, span := s.tracer.Start(ctx, "QueueService.DeactivateQueue",
		trace.WithAttributes(attribute.String("queue.id", id)),
	)
	defer span.End()

	if id == "" {
		return nil, domain.ErrInvalidQueueID
	}

	queue, err := s.queueRepo.Deactivate(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deactivate queue")
		return nil, err
	}

	s.log.Info("queue deactivated", zap.String("queue_id", queue.ID))
	s.pushQueueStatus(queue)
	return queue, nil
}

func (s *queueService) GetQueueStatus(ctx context.Context, id string) (*domain.QueueStatus, error) {
	ctx, span := s.tracer.Start(ctx, "QueueService.GetQueueStatus",
		trace.WithAttributes(attribute.String("queue.id", id)),
	)
	defer span.End()

	if id == "" {
		return nil, domain.ErrInvalidQueueID
	}

	queue, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get queue")
		return nil, err
	}

	waiting, err := s.ticketRepo.CountByStatus(ctx, id, domain.StatusWaiting)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count waiting tickets")
		return nil, err
	}

	status := queue.Status(waiting)
	return &status, nil
}

// pushQueueStatus recomputes and broadcasts the aggregate for a queue.
// Runs detached from the request.
func (s *queueService) pushQueueStatus(queue *domain.Queue) {
	go func(q domain.Queue) {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		waiting, err := s.ticketRepo.CountByStatus(ctx, q.ID, domain.StatusWaiting)
		if err != nil {
			s.log.Warn("queue status broadcast skipped",
				zap.String("queue_id", q.ID),
				zap.Error(err),
			)
			return
		}

		s.hub.UpdateQueueStatus(&domain.QueueStatusUpdateEvent{
			QueueID:   q.ID,
			Status:    q.Status(waiting),
			Timestamp: time.Now().UTC(),
		})
	}(*queue)
}

var _ QueueService = (*queueService)(nil)
