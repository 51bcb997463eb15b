package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pondwatch/internal/storage"
)

// RedisReadingCache keeps the most recent reading per pond and sensor
// type so the dashboard can render without scanning the readings file.
type RedisReadingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReadingCache(client *redis.Client, ttl time.Duration) *RedisReadingCache {
	return &RedisReadingCache{client: client, ttl: ttl}
}

func (r RedisReadingCache) SetLatest(ctx context.Context, reading storage.SensorReading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshalling reading: %w", err)
	}
	key := formatKey(reading.PondID)
	if err := r.client.HSet(ctx, key, reading.SensorType, data).Err(); err != nil {
		return fmt.Errorf("caching reading: %w", err)
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

// Latest returns the freshest reading per sensor type for one pond. A
// pond with nothing cached yields an empty map.
func (r RedisReadingCache) Latest(ctx context.Context, pondID int64) (map[string]storage.SensorReading, error) {
	entries, err := r.client.HGetAll(ctx, formatKey(pondID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting latest readings: %w", err)
	}
	latest := make(map[string]storage.SensorReading, len(entries))
	for sensorType, raw := range entries {
		var reading storage.SensorReading
		if err := json.Unmarshal([]byte(raw), &reading); err != nil {
			return nil, fmt.Errorf("unmarshalling reading: %w", err)
		}
		latest[sensorType] = reading
	}
	return latest, nil
}

func (r RedisReadingCache) Invalidate(ctx context.Context, pondID int64) error {
	if err := r.client.Del(ctx, formatKey(pondID)).Err(); err != nil {
		return fmt.Errorf("invalidating pond cache: %w", err)
	}
	return nil
}

func formatKey(pondID int64) string {
	return fmt.Sprintf("pondwatch:latest:%d", pondID)
}
