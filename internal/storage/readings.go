package storage

import (
	"path/filepath"
	"sync"
	"time"
)

type SensorReading struct {
	ID         int64          `json:"id"`
	PondID     int64          `json:"pond_id"`
	SensorType string         `json:"sensor_type"`
	Value      float64        `json:"value"`
	Status     string         `json:"status"`
	Metadata   map[string]any `json:"meta_data,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

type ReadingStore struct {
	mu   sync.Mutex
	path string
}

func NewReadingStore(dir string) *ReadingStore {
	return &ReadingStore{path: filepath.Join(dir, "readings.json")}
}

func (s *ReadingStore) Append(reading SensorReading) (SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := readCollection[SensorReading](s.path)
	if err != nil {
		return SensorReading{}, err
	}

	var nextID int64 = 1
	for _, r := range readings {
		if r.ID >= nextID {
			nextID = r.ID + 1
		}
	}
	reading.ID = nextID
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC()
	}

	readings = append(readings, reading)
	if err := writeCollection(s.path, readings); err != nil {
		return SensorReading{}, err
	}
	return reading, nil
}

// ListByPond returns the most recent readings for a pond, newest first,
// capped at limit (0 means no cap).
func (s *ReadingStore) ListByPond(pondID int64, limit int) ([]SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := readCollection[SensorReading](s.path)
	if err != nil {
		return nil, err
	}

	matched := make([]SensorReading, 0)
	for i := len(readings) - 1; i >= 0; i-- {
		if readings[i].PondID != pondID {
			continue
		}
		matched = append(matched, readings[i])
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}
