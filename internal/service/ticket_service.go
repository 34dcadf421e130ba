package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/internal/dto"
	"github.com/queueflow/queue-core/internal/metrics"
	"github.com/queueflow/queue-core/internal/repository"
	"github.com/queueflow/queue-core/pkg/logger"
)

// TicketService drives ticket admission and the lifecycle state machine.
// Every mutating operation commits first, then fires fan-out, the
// cross-service notifier and the event publisher as detached best-effort
// side effects.
type TicketService interface {
	// CreateTicket admits a ticket into a queue, minting its number and
	// position
	CreateTicket(ctx context.Context, req *dto.CreateTicketRequest) (*domain.Ticket, error)

	// GetTicket fetches one ticket by id
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)

	// ListQueueTickets returns a queue's tickets, optionally filtered by
	// status
	ListQueueTickets(ctx context.Context, queueID string, status domain.TicketStatus) ([]*domain.Ticket, error)

	// ListUserTickets returns a user's tickets, newest first
	ListUserTickets(ctx context.Context, userID string) ([]*domain.Ticket, error)

	// CurrentTicket returns the most recently called ticket still in
	// CALLED state; ErrTicketNotFound when the queue has none
	CurrentTicket(ctx context.Context, queueID string) (*domain.Ticket, error)

	// CallNext hands the longest-waiting ticket to the caller, at most
	// once per ticket; ErrQueueEmpty when nothing is waiting
	CallNext(ctx context.Context, queueID string) (*domain.Ticket, error)

	// ServeTicket completes a CALLED ticket
	ServeTicket(ctx context.Context, id string) (*domain.Ticket, error)

	// CancelTicket withdraws a WAITING or CALLED ticket
	CancelTicket(ctx context.Context, id string) (*domain.Ticket, error)

	// ExpireStale sweeps WAITING tickets older than ttl into EXPIRED and
	// returns them
	ExpireStale(ctx context.Context, ttl time.Duration) ([]*domain.Ticket, error)
}

type ticketService struct {
	queueRepo  repository.QueueRepository
	ticketRepo repository.TicketRepository
	seqRepo    repository.SequenceRepository
	hub        RealtimeHub
	notifier   Notifier
	publisher  EventPublisher
	log        *logger.Logger
	tracer     trace.Tracer
}

// NewTicketService creates a ticket service
func NewTicketService(
	queueRepo repository.QueueRepository,
	ticketRepo repository.TicketRepository,
	seqRepo repository.SequenceRepository,
	hub RealtimeHub,
	notifier Notifier,
	publisher EventPublisher,
) TicketService {
	return &ticketService{
		queueRepo:  queueRepo,
		ticketRepo: ticketRepo,
		seqRepo:    seqRepo,
		hub:        hub,
		notifier:   notifier,
		publisher:  publisher,
		log:        logger.Get(),
		tracer:     otel.Tracer("ticket-service"),
	}
}

func (s *ticketService) CreateTicket(ctx context.Context, req *dto.CreateTicketRequest) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.CreateTicket",
		trace.WithAttributes(attribute.String("queue.id", req.QueueID)),
	)
	defer span.End()

	if req.QueueID == "" {
		return nil, domain.ErrInvalidQueueID
	}

	queue, err := s.queueRepo.GetByID(ctx, req.QueueID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get queue")
		return nil, err
	}
	if !queue.IsActive {
		span.SetStatus(codes.Error, "queue inactive")
		return nil, domain.ErrQueueInactive
	}

	priority := domain.TicketPriority(req.Priority)
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.ErrInvalidPriority
	}

	// Tickets ahead of this one; the estimate is computed before the new
	// row exists so the new ticket does not count itself.
	ahead, err := s.ticketRepo.CountByStatus(ctx, queue.ID, domain.StatusWaiting)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count waiting tickets")
		return nil, err
	}

	now := time.Now().UTC()
	issued, err := s.seqRepo.Issue(ctx, queue.ID, queue.NumberPrefix(), now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to issue ticket number")
		return nil, fmt.Errorf("failed to issue ticket number: %w", err)
	}

	ticket := &domain.Ticket{
		ID:                uuid.New().String(),
		QueueID:           queue.ID,
		UserID:            req.UserID,
		TicketNumber:      issued.TicketNumber,
		Status:            domain.StatusWaiting,
		Priority:          priority,
		Position:          issued.Position,
		EstimatedWaitTime: ahead * queue.AverageServiceTime,
		CreatedAt:         now,
	}
	if err := ticket.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create ticket")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ticket.id", ticket.ID),
		attribute.String("ticket.number", ticket.TicketNumber),
		attribute.Int64("ticket.position", ticket.Position),
	)
	metrics.TicketsIssued.Add(ctx, 1, metrics.QueueAttr(queue.ID))
	s.log.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("queue_id", queue.ID),
		zap.Int64("position", ticket.Position),
	)

	t := *ticket
	s.detach(func(ctx context.Context) {
		s.publish(ctx, domain.TicketEventCreated, &t)
		s.broadcastQueueState(ctx, t.QueueID)
	})

	return ticket, nil
}

func (s *ticketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.GetTicket",
		trace.WithAttributes(attribute.String("ticket.id", id)),
	)
	defer span.End()

	if id == "" {
		return nil, domain.ErrInvalidTicketID
	}

	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get ticket")
		return nil, err
	}
	return ticket, nil
}

func (s *ticketService) ListQueueTickets(ctx context.Context, queueID string, status domain.TicketStatus) ([]*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.ListQueueTickets",
		trace.WithAttributes(attribute.String("queue.id", queueID)),
	)
	defer span.End()

	if queueID == "" {
		return nil, domain.ErrInvalidQueueID
	}
	if status != "" && !domain.ValidStatus(status) {
		return nil, domain.ErrInvalidTicketStatus
	}

	tickets, err := s.ticketRepo.ListByQueue(ctx, queueID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list tickets")
		return nil, err
	}
	span.SetAttributes(attribute.Int("ticket.count", len(tickets)))
	return tickets, nil
}

func (s *ticketService) ListUserTickets(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.ListUserTickets",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	tickets, err := s.ticketRepo.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list user tickets")
		return nil, err
	}
	return tickets, nil
}

func (s *ticketService) CurrentTicket(ctx context.Context, queueID string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.CurrentTicket",
		trace.WithAttributes(attribute.String("queue.id", queueID)),
	)
	defer span.End()

	if queueID == "" {
		return nil, domain.ErrInvalidQueueID
	}

	ticket, err := s.ticketRepo.CurrentCalled(ctx, queueID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return ticket, nil
}

func (s *ticketService) CallNext(ctx context.Context, queueID string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.CallNext",
		trace.WithAttributes(attribute.String("queue.id", queueID)),
	)
	defer span.End()

	if queueID == "" {
		return nil, domain.ErrInvalidQueueID
	}

	queue, err := s.queueRepo.GetByID(ctx, queueID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get queue")
		return nil, err
	}
	if !queue.IsActive {
		span.SetStatus(codes.Error, "queue inactive")
		return nil, domain.ErrQueueInactive
	}

	start := time.Now()
	ticket, err := s.ticketRepo.CallNext(ctx, queueID, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		if err != domain.ErrQueueEmpty {
			span.SetStatus(codes.Error, "failed to call next ticket")
		}
		return nil, err
	}

	metrics.TicketsCalled.Add(ctx, 1, metrics.QueueAttr(queueID))
	metrics.CallLatency.Record(ctx, time.Since(start).Seconds(), metrics.QueueAttr(queueID))
	span.SetAttributes(
		attribute.String("ticket.id", ticket.ID),
		attribute.String("ticket.number", ticket.TicketNumber),
	)
	s.log.Info("ticket called",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("queue_id", queueID),
	)

	t := *ticket
	q := *queue
	s.detach(func(ctx context.Context) {
		s.announceCalled(ctx, &t, &q)
		s.publish(ctx, domain.TicketEventCalled, &t)
		s.broadcastQueueState(ctx, t.QueueID)
	})

	return ticket, nil
}

func (s *ticketService) ServeTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.ServeTicket",
		trace.WithAttributes(attribute.String("ticket.id", id)),
	)
	defer span.End()

	ticket, err := s.transition(ctx, span, id, domain.StatusServed)
	if err != nil {
		return nil, err
	}

	metrics.TicketsServed.Add(ctx, 1, metrics.QueueAttr(ticket.QueueID))
	t := *ticket
	s.detach(func(ctx context.Context) {
		s.publish(ctx, domain.TicketEventServed, &t)
		s.broadcastQueueState(ctx, t.QueueID)
	})
	return ticket, nil
}

func (s *ticketService) CancelTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.CancelTicket",
		trace.WithAttributes(attribute.String("ticket.id", id)),
	)
	defer span.End()

	ticket, err := s.transition(ctx, span, id, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}

	metrics.TicketsCancelled.Add(ctx, 1, metrics.QueueAttr(ticket.QueueID))
	t := *ticket
	s.detach(func(ctx context.Context) {
		s.publish(ctx, domain.TicketEventCancelled, &t)
		s.broadcastQueueState(ctx, t.QueueID)
	})
	return ticket, nil
}

func (s *ticketService) ExpireStale(ctx context.Context, ttl time.Duration) ([]*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.ExpireStale")
	defer span.End()

	now := time.Now().UTC()
	expired, err := s.ticketRepo.ExpireStale(ctx, now.Add(-ttl), now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to expire tickets")
		return nil, err
	}
	span.SetAttributes(attribute.Int("ticket.expired", len(expired)))
	if len(expired) == 0 {
		return expired, nil
	}

	queues := make(map[string]struct{}, len(expired))
	for _, t := range expired {
		metrics.TicketsExpired.Add(ctx, 1, metrics.QueueAttr(t.QueueID))
		queues[t.QueueID] = struct{}{}
	}
	s.log.Info("stale tickets expired",
		zap.Int("count", len(expired)),
		zap.Int("queues", len(queues)),
	)

	snapshot := make([]domain.Ticket, len(expired))
	for i, t := range expired {
		snapshot[i] = *t
	}
	s.detach(func(ctx context.Context) {
		for i := range snapshot {
			t := &snapshot[i]
			s.publish(ctx, domain.TicketEventExpired, t)
			if t.UserID != "" {
				s.hub.SendNotification(t.UserID, &domain.NotificationEvent{
					Type:      "ticket-expired",
					Title:     "Ticket expired",
					Message:   fmt.Sprintf("Ticket %s expired after waiting too long", t.TicketNumber),
					Timestamp: time.Now().UTC(),
				})
			}
		}
		for queueID := range queues {
			s.broadcastQueueState(ctx, queueID)
		}
	})

	return expired, nil
}

// transition applies one state-guarded move and handles span bookkeeping
func (s *ticketService) transition(ctx context.Context, span trace.Span, id string, to domain.TicketStatus) (*domain.Ticket, error) {
	if id == "" {
		return nil, domain.ErrInvalidTicketID
	}

	ticket, err := s.ticketRepo.Transition(ctx, id, to, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition rejected")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ticket.number", ticket.TicketNumber),
		attribute.String("ticket.status", string(ticket.Status)),
	)
	s.log.Info("ticket transitioned",
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(ticket.Status)),
	)
	return ticket, nil
}

// detach runs fn on its own goroutine with a bounded context so side
// effects cannot block or outlive the request by much
func (s *ticketService) detach(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// announceCalled emits the queue-room and user-room events for a called
// ticket and forwards it to the notification service
func (s *ticketService) announceCalled(ctx context.Context, ticket *domain.Ticket, queue *domain.Queue) {
	now := time.Now().UTC()

	s.hub.NotifyTicketCalled(&domain.TicketCalledEvent{
		QueueID:      ticket.QueueID,
		TicketNumber: ticket.TicketNumber,
		TicketID:     ticket.ID,
		Position:     ticket.Position,
		Timestamp:    now,
	})

	if ticket.UserID != "" {
		s.hub.NotifyUserTicketCalled(ticket.UserID, &domain.YourTicketCalledEvent{
			TicketNumber: ticket.TicketNumber,
			TicketID:     ticket.ID,
			Message:      fmt.Sprintf("Ticket %s is now being served", ticket.TicketNumber),
			Timestamp:    now,
		})
	}

	if err := s.notifier.NotifyTicketCalled(ctx, ticket, queue); err != nil {
		metrics.NotifierFailures.Add(ctx, 1, metrics.QueueAttr(ticket.QueueID))
		s.log.Warn("ticket-called notification failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}
}

// publish sends one lifecycle event to the event stream, best-effort
func (s *ticketService) publish(ctx context.Context, eventType string, ticket *domain.Ticket) {
	if err := s.publisher.PublishTicketEvent(ctx, eventType, ticket); err != nil {
		s.log.Warn("lifecycle event publish failed",
			zap.String("event_type", eventType),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}
}

// broadcastQueueState pushes the position snapshot and the aggregate to
// the queue room
func (s *ticketService) broadcastQueueState(ctx context.Context, queueID string) {
	now := time.Now().UTC()

	positions, err := s.ticketRepo.WaitingPositions(ctx, queueID)
	if err != nil {
		s.log.Warn("position snapshot failed",
			zap.String("queue_id", queueID),
			zap.Error(err),
		)
	} else {
		s.hub.UpdateQueuePositions(&domain.QueuePositionUpdateEvent{
			QueueID:   queueID,
			Positions: positions,
			Timestamp: now,
		})
	}

	queue, err := s.queueRepo.GetByID(ctx, queueID)
	if err != nil {
		s.log.Warn("queue status broadcast skipped",
			zap.String("queue_id", queueID),
			zap.Error(err),
		)
		return
	}
	waiting, err := s.ticketRepo.CountByStatus(ctx, queueID, domain.StatusWaiting)
	if err != nil {
		s.log.Warn("queue status broadcast skipped",
			zap.String("queue_id", queueID),
			zap.Error(err),
		)
		return
	}
	s.hub.UpdateQueueStatus(&domain.QueueStatusUpdateEvent{
		QueueID:   queueID,
		Status:    queue.Status(waiting),
		Timestamp: now,
	})
}

var _ TicketService = (*ticketService)(nil)
