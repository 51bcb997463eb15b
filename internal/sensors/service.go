// Package sensors ingests readings: grade, persist, cache, fan out, and
// raise alerts when a value goes critical.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pondwatch/internal/push"
	"pondwatch/internal/storage"
	"pondwatch/internal/ws"
)

var ErrInvalidReading = errors.New("invalid sensor reading")

// Broadcaster is the slice of the websocket manager the ingestion path
// needs.
type Broadcaster interface {
	BroadcastToResource(ctx context.Context, resourceID int64, msg ws.Message)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, n push.Notification) error
}

type ReadingCache interface {
	SetLatest(ctx context.Context, reading storage.SensorReading) error
}

// Reading is one incoming measurement. UserID identifies the submitting
// user when the reading arrives over the authenticated API rather than
// straight from a device.
type Reading struct {
	PondID     int64
	SensorType string
	Value      float64
	Metadata   map[string]any
	UserID     *int64
}

type Service struct {
	logger      *slog.Logger
	readings    *storage.ReadingStore
	ponds       *storage.PondStore
	cache       ReadingCache
	broadcaster Broadcaster
	notifier    Notifier
}

func NewService(
	logger *slog.Logger,
	readings *storage.ReadingStore,
	ponds *storage.PondStore,
	cache ReadingCache,
	broadcaster Broadcaster,
	notifier Notifier,
) *Service {
	return &Service{
		logger:      logger,
		readings:    readings,
		ponds:       ponds,
		cache:       cache,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

// Ingest persists a reading and pushes it to every client watching the
// pond. A red reading additionally raises a critical alert on the pond
// and a push notification to the pond's owner. Cache and notification
// failures are logged, not returned: the reading is already durable.
func (s *Service) Ingest(ctx context.Context, in Reading) (storage.SensorReading, error) {
	if in.SensorType == "" {
		return storage.SensorReading{}, fmt.Errorf("%w: missing sensor type", ErrInvalidReading)
	}

	pond, err := s.ponds.GetByID(in.PondID)
	if err != nil {
		return storage.SensorReading{}, fmt.Errorf("looking up pond %d: %w", in.PondID, err)
	}

	status := StatusFor(in.SensorType, in.Value)
	saved, err := s.readings.Append(storage.SensorReading{
		PondID:     in.PondID,
		SensorType: in.SensorType,
		Value:      in.Value,
		Status:     status,
		Metadata:   in.Metadata,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		return storage.SensorReading{}, fmt.Errorf("persisting reading: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, saved); err != nil {
			s.logger.Warn("failed to cache latest reading", "pond_id", in.PondID, "error", err)
		}
	}

	update := ws.NewMessage(ws.TypeSensorUpdate, ws.SensorUpdatePayload{
		SensorType: saved.SensorType,
		Value:      saved.Value,
		Status:     saved.Status,
		Timestamp:  saved.RecordedAt,
		Metadata:   saved.Metadata,
		UserID:     in.UserID,
	}).WithResource(in.PondID)
	if in.UserID != nil {
		update = update.WithOwner(*in.UserID)
	}
	s.broadcaster.BroadcastToResource(ctx, in.PondID, update)

	s.logger.Info("ingested sensor reading",
		"pond_id", in.PondID, "sensor_type", saved.SensorType, "value", saved.Value, "status", status)

	if status == StatusRed {
		s.raiseAlert(ctx, pond, saved)
	}
	return saved, nil
}

func (s *Service) raiseAlert(ctx context.Context, pond storage.Pond, reading storage.SensorReading) {
	text := fmt.Sprintf("%s reading %.2f on %s is critical", reading.SensorType, reading.Value, pond.Name)

	s.broadcaster.BroadcastToResource(ctx, pond.ID, ws.NewMessage(ws.TypeSystemAlert, ws.SystemAlertPayload{
		Message: text,
		Level:   ws.LevelCritical,
	}).WithResource(pond.ID))

	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyUser(ctx, pond.OwnerID, push.Notification{
		Title: "Critical sensor alert",
		Body:  text,
		Tag:   fmt.Sprintf("sensor-alert-%d-%s", pond.ID, reading.SensorType),
		Data: map[string]any{
			"pond_id":     pond.ID,
			"sensor_type": reading.SensorType,
			"value":       reading.Value,
		},
	})
	if err != nil {
		s.logger.Warn("failed to push sensor alert", "pond_id", pond.ID, "error", err)
	}
}
