package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/pkg/response"
)

// writeError maps a domain error to its HTTP status and stable code
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrQueueEmpty):
		// An empty queue is an expected outcome, not a server fault
		response.Error(c, http.StatusNotFound, "QUEUE_EMPTY", "no waiting ticket in queue", "")
	case errors.Is(err, domain.ErrQueueInactive):
		response.Conflict(c, "QUEUE_INACTIVE", "queue is not active")
	case errors.Is(err, domain.ErrInvalidTransition):
		response.Conflict(c, "INVALID_TRANSITION", "ticket state does not allow this transition")
	case errors.Is(err, domain.ErrDuplicateQueueName):
		response.Conflict(c, "DUPLICATE_QUEUE_NAME", "queue name already exists")
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())
	case domain.IsValidationError(err):
		response.BadRequest(c, err.Error())
	case domain.IsDependencyError(err):
		response.Error(c, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", err.Error(), "")
	default:
		response.InternalError(c, err)
	}
}
