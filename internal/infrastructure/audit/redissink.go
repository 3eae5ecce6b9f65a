// Package audit publishes lifecycle audit events to Redis pub/sub for
// external consumers.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const DefaultChannel = "civictrack:audit"

type RedisSink struct {
	client  *redis.Client
	channel string
	logger  logger.Interface
}

func NewRedisSink(client *redis.Client, channel string, logger logger.Interface) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish stamps missing ids and timestamps before sending.
func (s *RedisSink) Publish(ctx context.Context, event events.AuditEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = biztime.NowUTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Errorw("failed to publish audit event",
			"action", event.Action,
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID,
			"error", err,
		)
		return fmt.Errorf("failed to publish audit event: %w", err)
	}

	s.logger.Debugw("audit event published",
		"event_id", event.EventID,
		"action", event.Action,
		"resource_id", event.ResourceID,
	)
	return nil
}

// Subscribe delivers events from the channel to handler until ctx ends.
// Malformed payloads are logged and skipped.
func (s *RedisSink) Subscribe(ctx context.Context, handler func(events.AuditEvent)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event events.AuditEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warnw("dropping malformed audit event", "error", err)
				continue
			}
			handler(event)
		}
	}
}
