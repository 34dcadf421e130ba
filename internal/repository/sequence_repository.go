package repository

import (
	"context"
	"time"
)

// IssueResult is the (ticketNumber, position) pair minted for a new ticket
type IssueResult struct {
	TicketNumber string
	Position     int64
	Ordinal      int64 // daily ordinal behind the number suffix
}

// SequenceRepository mints queue-scoped ticket numbers and positions.
// Both counters are keyed by (queue, calendar day) and must be advanced
// atomically: two concurrent issuances never observe the same pair.
type SequenceRepository interface {
	Issue(ctx context.Context, queueID, prefix string, day time.Time) (*IssueResult, error)
}
