package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/queueflow/queue-core/internal/service"
	"github.com/queueflow/queue-core/pkg/logger"
)

const (
	defaultInterval = 30 * time.Second
	defaultTTL      = 4 * time.Hour
	sweepTimeout    = 30 * time.Second
)

// ExpiryWorker periodically sweeps tickets that waited past their TTL
// into EXPIRED. Each sweep goes through the same guarded transition as
// any other lifecycle change, so a ticket called or cancelled while the
// sweep runs is left alone.
type ExpiryWorker struct {
	tickets  service.TicketService
	interval time.Duration
	ttl      time.Duration
	log      *logger.Logger
	stop     chan struct{}
	done     chan struct{}
}

// Config tunes the sweep cadence and the waiting TTL
type Config struct {
	Interval  time.Duration
	TicketTTL time.Duration
}

// NewExpiryWorker creates a stopped worker
func NewExpiryWorker(tickets service.TicketService, cfg Config) *ExpiryWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.TicketTTL <= 0 {
		cfg.TicketTTL = defaultTTL
	}
	return &ExpiryWorker{
		tickets:  tickets,
		interval: cfg.Interval,
		ttl:      cfg.TicketTTL,
		log:      logger.Get(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called
func (w *ExpiryWorker) Start() {
	w.log.Info("expiry worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("ticket_ttl", w.ttl),
	)

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.sweep()
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish
func (w *ExpiryWorker) Stop() {
	close(w.stop)
	<-w.done
	w.log.Info("expiry worker stopped")
}

func (w *ExpiryWorker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	expired, err := w.tickets.ExpireStale(ctx, w.ttl)
	if err != nil {
		w.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if len(expired) > 0 {
		w.log.Info("expiry sweep completed", zap.Int("expired", len(expired)))
	}
}
