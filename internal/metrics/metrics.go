package metrics

import (
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/queueflow/queue-core/pkg/telemetry"
)

// Instruments for the ticket lifecycle and fan-out paths. Init wires
// them against the global meter; every instrument is nil-safe, so calls
// before Init are no-ops.
var (
	TicketsIssued    *telemetry.Counter
	TicketsCalled    *telemetry.Counter
	TicketsServed    *telemetry.Counter
	TicketsCancelled *telemetry.Counter
	TicketsExpired   *telemetry.Counter

	FanoutDeliveries *telemetry.Counter
	FanoutDropped    *telemetry.Counter
	HubSessions      *telemetry.UpDownCounter

	NotifierFailures *telemetry.Counter

	CallLatency *telemetry.Histogram
)

var initOnce sync.Once

// Init registers all instruments once. Instrument creation errors leave
// the instrument nil, which disables it without affecting the caller.
func Init() {
	initOnce.Do(func() {
		TicketsIssued, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "tickets_issued_total",
			Description: "Tickets admitted into a queue",
		})
		TicketsCalled, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "tickets_called_total",
			Description: "Tickets transitioned to CALLED",
		})
		TicketsServed, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "tickets_served_total",
			Description: "Tickets transitioned to SERVED",
		})
		TicketsCancelled, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "tickets_cancelled_total",
			Description: "Tickets transitioned to CANCELLED",
		})
		TicketsExpired, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "tickets_expired_total",
			Description: "Stale tickets swept to EXPIRED",
		})

		FanoutDeliveries, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "hub_deliveries_total",
			Description: "Websocket frames delivered to sessions",
		})
		FanoutDropped, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "hub_dropped_total",
			Description: "Websocket frames dropped for slow sessions",
		})
		HubSessions, _ = telemetry.NewUpDownCounter(telemetry.MetricOpts{
			Name:        "hub_sessions",
			Description: "Connected websocket sessions",
		})

		NotifierFailures, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "notifier_failures_total",
			Description: "Cross-service notification attempts that failed",
		})

		CallLatency, _ = telemetry.NewHistogram(telemetry.MetricOpts{
			Name:        "ticket_call_duration_seconds",
			Description: "Latency of the call-next operation",
			Unit:        "s",
		})
	})
}

// QueueAttr labels a measurement with its queue
func QueueAttr(queueID string) attribute.KeyValue {
	return attribute.String("queue_id", queueID)
}
