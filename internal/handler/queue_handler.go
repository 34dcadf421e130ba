package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/internal/dto"
	"github.com/queueflow/queue-core/internal/service"
	"github.com/queueflow/queue-core/pkg/response"
)

// QueueHandler exposes queue management over REST
type QueueHandler struct {
	queues  service.QueueService
	tickets service.TicketService
	tracer  trace.Tracer
}

// NewQueueHandler creates a queue handler
func NewQueueHandler(queues service.QueueService, tickets service.TicketService) *QueueHandler {
	return &QueueHandler{
		queues:  queues,
		tickets: tickets,
		tracer:  otel.Tracer("queue-handler"),
	}
}

// Create handles POST /api/v1/queues
func (h *QueueHandler) Create(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.Create")
	defer span.End()

	var req dto.CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	queue, err := h.queues.CreateQueue(ctx, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, queue)
}

// List handles GET /api/v1/queues
func (h *QueueHandler) List(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.List")
	defer span.End()

	queues, err := h.queues.ListQueues(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, queues)
}

// Get handles GET /api/v1/queues/:id
func (h *QueueHandler) Get(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.Get",
		trace.WithAttributes(attribute.String("queue.id", c.Param("id"))),
	)
	defer span.End()

	queue, err := h.queues.GetQueue(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, queue)
}

// Update handles PUT /api/v1/queues/:id
func (h *QueueHandler) Update(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.Update",
		trace.WithAttributes(attribute.String("queue.id", c.Param("id"))),
	)
	defer span.End()

	var req dto.UpdateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	queue, err := h.queues.UpdateQueue(ctx, c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, queue)
}

// Deactivate handles DELETE /api/v1/queues/:id
func (h *QueueHandler) Deactivate(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.Deactivate",
		trace.WithAttributes(attribute.String("queue.id", c.Param("id"))),
	)
	defer span.End()

	queue, err := h.queues.DeactivateQueue(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, queue)
}

// Status handles GET /api/v1/queues/:id/status
func (h *QueueHandler) Status(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.Status",
		trace.WithAttributes(attribute.String("queue.id", c.Param("id"))),
	)
	defer span.End()

	status, err := h.queues.GetQueueStatus(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dto.QueueStatusFromDomain(*status))
}

// Tickets handles GET /api/v1/queues/:id/tickets?status=WAITING
func (h *QueueHandler) Tickets(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.Tickets",
		trace.WithAttributes(attribute.String("queue.id", c.Param("id"))),
	)
	defer span.End()

	status := domain.TicketStatus(c.Query("status"))
	tickets, err := h.tickets.ListQueueTickets(ctx, c.Param("id"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dto.TicketsFromDomain(tickets))
}

// CurrentTicket handles GET /api/v1/queues/:id/tickets/current.
// A queue with no called ticket yields a null payload, not an error.
func (h *QueueHandler) CurrentTicket(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.CurrentTicket",
		trace.WithAttributes(attribute.String("queue.id", c.Param("id"))),
	)
	defer span.End()

	ticket, err := h.tickets.CurrentTicket(ctx, c.Param("id"))
	if err != nil {
		if domain.IsNotFoundError(err) {
			response.Success(c, nil)
			return
		}
		writeError(c, err)
		return
	}
	response.Success(c, dto.TicketFromDomain(ticket))
}

// CallNext handles POST /api/v1/queues/:id/call-next
func (h *QueueHandler) CallNext(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "QueueHandler.CallNext",
		trace.WithAttributes(attribute.String("queue.id", c.Param("id"))),
	)
	defer span.End()

	ticket, err := h.tickets.CallNext(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dto.TicketFromDomain(ticket))
}
