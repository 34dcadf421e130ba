package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/pkg/logger"
)

const defaultTimeout = 3 * time.Second

// Client forwards lifecycle events to the notification service over
// HTTP. Every call is a single attempt bounded by the configured
// timeout; outcomes are classified so callers can count and log them,
// but a failed forward never fails the operation that triggered it.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
	tracer  trace.Tracer
}

// Config holds notification service settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a notification forwarder
func NewClient(cfg *Config) *Client {
	timeout := defaultTimeout
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	baseURL := ""
	if cfg != nil {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     logger.Get(),
		tracer:  otel.Tracer("notifier"),
	}
}

type ticketCalledPayload struct {
	TicketID     string     `json:"ticket_id"`
	TicketNumber string     `json:"ticket_number"`
	QueueID      string     `json:"queue_id"`
	QueueName    string     `json:"queue_name"`
	UserID       string     `json:"user_id,omitempty"`
	CalledAt     *time.Time `json:"called_at,omitempty"`
}

type queueCreatedPayload struct {
	QueueID     string `json:"queue_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NotifyTicketCalled forwards a ticket-called event
func (c *Client) NotifyTicketCalled(ctx context.Context, ticket *domain.Ticket, queue *domain.Queue) error {
	ctx, span := c.tracer.Start(ctx, "Notifier.NotifyTicketCalled",
		trace.WithAttributes(attribute.String("ticket.id", ticket.ID)),
	)
	defer span.End()

	return c.post(ctx, "/api/notifications/ticket-called", ticketCalledPayload{
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		QueueID:      ticket.QueueID,
		QueueName:    queue.Name,
		UserID:       ticket.UserID,
		CalledAt:     ticket.CalledAt,
	})
}

// NotifyQueueCreated forwards a queue-created event
func (c *Client) NotifyQueueCreated(ctx context.Context, queue *domain.Queue) error {
	ctx, span := c.tracer.Start(ctx, "Notifier.NotifyQueueCreated",
		trace.WithAttributes(attribute.String("queue.id", queue.ID)),
	)
	defer span.End()

	return c.post(ctx, "/api/notifications/queue-created", queueCreatedPayload{
		QueueID:     queue.ID,
		Name:        queue.Name,
		Description: queue.Description,
	})
}

// post performs one classified attempt against the notification service
func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.baseURL == "" {
		// Forwarding disabled; treated as delivered
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("notification service rejected event",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", domain.ErrNotifierRemote, resp.StatusCode)
	}
	return nil
}

// classify maps a transport error to its domain sentinel
func (c *Client) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrNotifierTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrNotifierTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrNotifierUnreachable, err)
}
