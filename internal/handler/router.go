package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/queueflow/queue-core/internal/hub"
)

// RegisterRoutes mounts the REST surface, the websocket endpoint and the
// health probe on a router
func RegisterRoutes(
	r *gin.Engine,
	queueHandler *QueueHandler,
	ticketHandler *TicketHandler,
	healthHandler *HealthHandler,
	registry *hub.Registry,
) {
	r.GET("/health", healthHandler.Check)
	r.GET("/ws", hub.Handler(registry))

	v1 := r.Group("/api/v1")
	{
		queues := v1.Group("/queues")
		{
			queues.POST("", queueHandler.Create)
			queues.GET("", queueHandler.List)
			queues.GET("/:id", queueHandler.Get)
			queues.PUT("/:id", queueHandler.Update)
			queues.DELETE("/:id", queueHandler.Deactivate)
			queues.GET("/:id/status", queueHandler.Status)
			queues.GET("/:id/tickets", queueHandler.Tickets)
			queues.GET("/:id/tickets/current", queueHandler.CurrentTicket)
			queues.POST("/:id/call-next", queueHandler.CallNext)
		}

		tickets := v1.Group("/tickets")
		{
			tickets.POST("", ticketHandler.Create)
			tickets.GET("/:id", ticketHandler.Get)
			tickets.PUT("/:id/serve", ticketHandler.Serve)
			tickets.PUT("/:id/cancel", ticketHandler.Cancel)
		}

		v1.GET("/users/:id/tickets", ticketHandler.UserTickets)
	}
}
