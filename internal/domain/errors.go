package domain

import "errors"

// Domain errors
var (
	// Entity lookup
	ErrQueueNotFound  = errors.New("queue not found")
	ErrTicketNotFound = errors.New("ticket not found")

	// Sequencer
	ErrQueueInactive = errors.New("queue is not active")

	// Lifecycle
	ErrInvalidTransition = errors.New("invalid ticket transition")

	// Call-next: an empty queue is an expected outcome, not a fault
	ErrQueueEmpty = errors.New("no waiting ticket in queue")

	// Validation
	ErrInvalidQueueID       = errors.New("invalid queue id")
	ErrInvalidTicketID      = errors.New("invalid ticket id")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidQueueName     = errors.New("queue name is required")
	ErrInvalidQueueCapacity = errors.New("max active tickets must be at least 1")
	ErrInvalidPosition      = errors.New("position must be positive")
	ErrInvalidPriority      = errors.New("unknown priority level")
	ErrInvalidTicketStatus  = errors.New("unknown ticket status")
	ErrDuplicateQueueName   = errors.New("queue name already exists")

	// Collaborator failures, classified by cause
	ErrNotifierUnreachable = errors.New("notification service unreachable")
	ErrNotifierTimeout     = errors.New("notification service timed out")
	ErrNotifierRemote      = errors.New("notification service returned an error")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrQueueNotFound) ||
		errors.Is(err, ErrTicketNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidQueueID) ||
		errors.Is(err, ErrInvalidTicketID) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidQueueName) ||
		errors.Is(err, ErrInvalidQueueCapacity) ||
		errors.Is(err, ErrInvalidPosition) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrInvalidTicketStatus)
}

// IsConflictError checks if the error is a state conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateQueueName)
}

// IsDependencyError checks if the error is a collaborator failure
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrNotifierUnreachable) ||
		errors.Is(err, ErrNotifierTimeout) ||
		errors.Is(err, ErrNotifierRemote)
}
