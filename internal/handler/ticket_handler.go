package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/queueflow/queue-core/internal/dto"
	"github.com/queueflow/queue-core/internal/service"
	"github.com/queueflow/queue-core/pkg/response"
)

// TicketHandler exposes the ticket lifecycle over REST
type TicketHandler struct {
	tickets service.TicketService
	tracer  trace.Tracer
}

// NewTicketHandler creates a ticket handler
func NewTicketHandler(tickets service.TicketService) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		tracer:  otel.Tracer("ticket-handler"),
	}
}

// Create handles POST /api/v1/tickets
func (h *TicketHandler) Create(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "TicketHandler.Create")
	defer span.End()

	var req dto.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ticket, err := h.tickets.CreateTicket(ctx, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, dto.TicketFromDomain(ticket))
}

// Get handles GET /api/v1/tickets/:id
func (h *TicketHandler) Get(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "TicketHandler.Get",
		trace.WithAttributes(attribute.String("ticket.id", c.Param("id"))),
	)
	defer span.End()

	ticket, err := h.tickets.GetTicket(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dto.TicketFromDomain(ticket))
}

// Serve handles PUT /api/v1/tickets/:id/serve
func (h *TicketHandler) Serve(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "TicketHandler.Serve",
		trace.WithAttributes(attribute.String("ticket.id", c.Param("id"))),
	)
	defer span.End()

	ticket, err := h.tickets.ServeTicket(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dto.TicketFromDomain(ticket))
}

// Cancel handles PUT /api/v1/tickets/:id/cancel
func (h *TicketHandler) Cancel(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "TicketHandler.Cancel",
		trace.WithAttributes(attribute.String("ticket.id", c.Param("id"))),
	)
	defer span.End()

	ticket, err := h.tickets.CancelTicket(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dto.TicketFromDomain(ticket))
}

// UserTickets handles GET /api/v1/users/:id/tickets
func (h *TicketHandler) UserTickets(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "TicketHandler.UserTickets",
		trace.WithAttributes(attribute.String("user.id", c.Param("id"))),
	)
	defer span.End()

	tickets, err := h.tickets.ListUserTickets(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dto.TicketsFromDomain(tickets))
}
