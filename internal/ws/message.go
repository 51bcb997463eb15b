package ws

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of event carried by a Message.
type MessageType string

const (
	TypeSensorUpdate   MessageType = "sensor_update"
	TypeResourceUpdate MessageType = "resource_update"
	TypeSystemAlert    MessageType = "system_alert"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeAuthentication MessageType = "authentication"
	TypeError          MessageType = "error"
)

// Alert levels used in system alert payloads.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// Message is the envelope written to clients. The wire shape is fixed:
// resource_id and owner_id are serialized as null when unset, never omitted.
type Message struct {
	Type       MessageType `json:"type"`
	Data       any         `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
	ResourceID *int64      `json:"resource_id"`
	OwnerID    *int64      `json:"owner_id"`
}

// NewMessage builds an untagged envelope stamped with the current UTC time.
func NewMessage(t MessageType, data any) Message {
	return Message{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// WithResource returns a copy of the message tagged with a resource id.
func (m Message) WithResource(id int64) Message {
	m.ResourceID = &id
	return m
}

// WithOwner returns a copy of the message tagged with an owner id.
func (m Message) WithOwner(id int64) Message {
	m.OwnerID = &id
	return m
}

func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SensorUpdatePayload carries one sensor reading to every viewer of a pond.
type SensorUpdatePayload struct {
	SensorType string         `json:"sensor_type"`
	Value      float64        `json:"value"`
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"meta_data,omitempty"`
	UserID     *int64         `json:"user_id,omitempty"`
}

// ResourceUpdatePayload reports pond-level state, e.g. the snapshot sent
// right after a client connects.
type ResourceUpdatePayload struct {
	ResourceID int64  `json:"resource_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

type SystemAlertPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

type HeartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// AuthAckPayload acknowledges a successful registration.
type AuthAckPayload struct {
	Status     string `json:"status"`
	ResourceID int64  `json:"resource_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
