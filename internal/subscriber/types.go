package subscriber

import (
	"fmt"

	"pondwatch/internal/ws"
)

// AlertEvent is the shape other backend services publish on the alerts
// channel. PondID 0 targets every connected client.
type AlertEvent struct {
	PondID  int64  `json:"pond_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (e *AlertEvent) Validate() error {
	if e.PondID < 0 {
		return fmt.Errorf("invalid pond id: %d", e.PondID)
	}
	if e.Message == "" {
		return fmt.Errorf("empty alert message")
	}
	switch e.Level {
	case ws.LevelInfo, ws.LevelWarning, ws.LevelError, ws.LevelCritical:
		return nil
	}
	return fmt.Errorf("invalid alert level: %q", e.Level)
}
