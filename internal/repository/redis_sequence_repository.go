package repository

import (
	_ "embed"
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	pkgredis "github.com/queueflow/queue-core/pkg/redis"
	"github.com/queueflow/queue-core/pkg/telemetry"
)

//go:embed scripts/issue_ticket.lua
var issueTicketScript string

const scriptIssueTicket = "issue_ticket"

// Counter keys expire well after the day they cover so late-night bursts
// around midnight never collide with a vanished counter.
const sequenceKeyTTL = 48 * time.Hour

// RedisSequenceRepository implements SequenceRepository on Redis counters
type RedisSequenceRepository struct {
	client *pkgredis.Client
}

// NewRedisSequenceRepository creates a new RedisSequenceRepository
func NewRedisSequenceRepository(client *pkgredis.Client) *RedisSequenceRepository {
	return &RedisSequenceRepository{client: client}
}

// LoadScripts loads the sequencer Lua script into Redis
func (r *RedisSequenceRepository) LoadScripts(ctx context.Context) error {
	if _, err := r.client.LoadScript(ctx, scriptIssueTicket, issueTicketScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptIssueTicket, err)
	}
	return nil
}

// Issue mints the next (ticketNumber, position) pair for the queue-day
func (r *RedisSequenceRepository) Issue(ctx context.Context, queueID, prefix string, day time.Time) (*IssueResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.sequence.issue")
	defer span.End()

	span.SetAttributes(attribute.String("queue_id", queueID))

	dayKey := day.UTC().Format("20060102")
	keys := []string{
		fmt.Sprintf("seq:%s:%s", queueID, dayKey),
		fmt.Sprintf("pos:%s:%s", queueID, dayKey),
	}

	result := r.client.EvalWithFallback(ctx, scriptIssueTicket, issueTicketScript, keys, int(sequenceKeyTTL.Seconds()))
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute issue_ticket script: %w", result.Err())
	}

	values, err := result.Int64Slice()
	if err != nil || len(values) != 2 {
		span.SetStatus(codes.Error, "unexpected script result")
		return nil, fmt.Errorf("unexpected issue_ticket script result: %v", result.Val())
	}

	ordinal, position := values[0], values[1]
	span.SetAttributes(
		attribute.Int64("ordinal", ordinal),
		attribute.Int64("position", position),
	)
	span.SetStatus(codes.Ok, "")

	return &IssueResult{
		TicketNumber: fmt.Sprintf("%s-%03d", prefix, ordinal),
		Position:     position,
		Ordinal:      ordinal,
	}, nil
}

// Ensure RedisSequenceRepository implements SequenceRepository
var _ SequenceRepository = (*RedisSequenceRepository)(nil)
