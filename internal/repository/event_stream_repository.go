package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/drive-api/internal/models"
)

// EventStreamRepository appends node events to a Redis stream.
type EventStreamRepository struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewEventStreamRepository constructs the repository. A nil client disables publishing.
func NewEventStreamRepository(client *redis.Client, stream string, maxLen int64) *EventStreamRepository {
	return &EventStreamRepository{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends one event to the stream, trimming it approximately to maxLen.
func (r *EventStreamRepository) Publish(ctx context.Context, event models.NodeEvent) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal node event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"operation": string(event.Operation),
			"node":      event.Node.Hex(),
			"payload":   payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}
