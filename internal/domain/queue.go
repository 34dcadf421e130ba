package domain

import (
	"strings"
	"time"
	"unicode"
)

// Queue represents a named service line issuing sequential tickets
type Queue struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	MaxActiveTickets   int       `json:"max_active_tickets"`
	AverageServiceTime int64     `json:"average_service_time"` // seconds per ticket
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// QueueStatus is the aggregate pushed to queue rooms and served over REST
type QueueStatus struct {
	QueueID         string `json:"queue_id"`
	TotalWaiting    int64  `json:"total_waiting"`
	AverageWaitTime int64  `json:"average_wait_time"` // seconds
	IsActive        bool   `json:"is_active"`
}

const (
	// DefaultMaxActiveTickets caps tickets in CALLED state per queue
	DefaultMaxActiveTickets = 5
	// DefaultAverageServiceTime is the pacing default in seconds
	DefaultAverageServiceTime = 300
)

// NewQueue creates a queue with defaults applied
func NewQueue(id, name, description string, maxActive int, avgServiceTime int64) *Queue {
	if maxActive <= 0 {
		maxActive = DefaultMaxActiveTickets
	}
	if avgServiceTime <= 0 {
		avgServiceTime = DefaultAverageServiceTime
	}
	now := time.Now().UTC()
	return &Queue{
		ID:                 id,
		Name:               name,
		Description:        description,
		MaxActiveTickets:   maxActive,
		AverageServiceTime: avgServiceTime,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Validate checks queue fields
func (q *Queue) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return ErrInvalidQueueName
	}
	if q.MaxActiveTickets < 1 {
		return ErrInvalidQueueCapacity
	}
	return nil
}

// NumberPrefix derives the ticket number prefix from the queue name:
// the first three letters, uppercased, non-letters skipped, padded with
// 'X' for very short names.
func (q *Queue) NumberPrefix() string {
	var b strings.Builder
	for _, r := range q.Name {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= 3 {
				break
			}
		}
	}
	prefix := b.String()
	for len(prefix) < 3 {
		prefix += "X"
	}
	return prefix[:3]
}

// Status builds the aggregate for a given waiting headcount
func (q *Queue) Status(totalWaiting int64) QueueStatus {
	return QueueStatus{
		QueueID:         q.ID,
		TotalWaiting:    totalWaiting,
		AverageWaitTime: totalWaiting * q.AverageServiceTime,
		IsActive:        q.IsActive,
	}
}
