// Package subscriber consumes alert events other services publish on a
// Redis channel and relays them to connected clients.
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"pondwatch/internal/ws"
)

// Broadcaster is the slice of the websocket manager the subscriber needs.
type Broadcaster interface {
	BroadcastToResource(ctx context.Context, resourceID int64, msg ws.Message)
	BroadcastToAll(ctx context.Context, msg ws.Message)
}

type Subscriber struct {
	logger      *slog.Logger
	client      *redis.Client
	topic       string
	broadcaster Broadcaster
}

func NewSubscriber(logger *slog.Logger, client *redis.Client, topic string, broadcaster Broadcaster) *Subscriber {
	return &Subscriber{
		logger:      logger,
		client:      client,
		topic:       topic,
		broadcaster: broadcaster,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	s.logger.Info("Redis subscriber is running", "topic", s.topic)
	pubsub := s.client.Subscribe(ctx, s.topic)
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("failed to close pubsub", "error", err)
		}
	}()

	msgCh := pubsub.Channel()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				s.logger.Warn("pubsub channel closed by Redis")
				return nil
			}
			if err := s.handleMessage(ctx, []byte(msg.Payload)); err != nil {
				s.logger.Error("error handling alert event", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("shutting down Redis subscriber")
			return nil
		}
	}
}

func (s *Subscriber) handleMessage(ctx context.Context, payload []byte) error {
	var event AlertEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshalling alert event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid alert event: %w", err)
	}

	msg := ws.NewMessage(ws.TypeSystemAlert, ws.SystemAlertPayload{
		Message: event.Message,
		Level:   event.Level,
	})

	// A zero pond id means a farm-wide announcement.
	if event.PondID == 0 {
		s.broadcaster.BroadcastToAll(ctx, msg)
		return nil
	}
	s.broadcaster.BroadcastToResource(ctx, event.PondID, msg.WithResource(event.PondID))
	return nil
}
