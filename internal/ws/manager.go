package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConnectionState is informational; enforcement of authentication happens
// in the caller before a channel ever reaches Connect.
type ConnectionState string

const (
	StateConnected     ConnectionState = "connected"
	StateAuthenticated ConnectionState = "authenticated"
	StateUnauthorized  ConnectionState = "unauthorized"
	StateDisconnected  ConnectionState = "disconnected"
)

// Options tune the liveness behaviour of a Manager.
type Options struct {
	// HeartbeatInterval is the cadence of the per-connection heartbeat task.
	HeartbeatInterval time.Duration
	// CleanupInterval is the cadence of the global idle sweep.
	CleanupInterval time.Duration
	// MaxIdle is how long a connection may go without a successful
	// heartbeat before the sweep reclaims it.
	MaxIdle time.Duration
}

// DefaultOptions matches the cadence the PWA clients expect.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 30 * time.Second,
		CleanupInterval:   60 * time.Second,
		MaxIdle:           5 * time.Minute,
	}
}

// ConnectionInfo is a point-in-time snapshot of one live connection's
// registry metadata.
type ConnectionInfo struct {
	ResourceID    int64           `json:"resource_id"`
	OwnerID       *int64          `json:"owner_id"`
	ConnectedAt   time.Time       `json:"connected_at"`
	LastHeartbeat time.Time       `json:"last_heartbeat"`
	State         ConnectionState `json:"state"`
	MessageCount  int64           `json:"message_count"`
}

// Stats is a point-in-time snapshot of the manager's counters. The
// *WithConnections fields are always derived from live index size.
type Stats struct {
	TotalConnections         int64 `json:"total_connections"`
	ActiveConnections        int64 `json:"active_connections"`
	ResourcesWithConnections int   `json:"resources_with_connections"`
	OwnersWithConnections    int   `json:"owners_with_connections"`
	MessagesSent             int64 `json:"messages_sent"`
	MessagesReceived         int64 `json:"messages_received"`
}

type connMeta struct {
	info            ConnectionInfo
	cancelHeartbeat context.CancelFunc
}

// Manager tracks live client channels, indexes them by the pond they
// monitor and by their authenticated owner, and fans event messages out
// to the right subset. One failing recipient never blocks delivery to the
// rest; a channel whose send fails is dropped from the registry.
//
// A single mutex guards the metadata map, both indices and the counters.
// The lock is never held across a send.
type Manager struct {
	logger *slog.Logger
	opts   Options

	mu         sync.Mutex
	byResource map[int64]map[Channel]struct{}
	byOwner    map[int64]map[Channel]struct{}
	meta       map[Channel]*connMeta

	totalConnections  int64
	activeConnections int64
	messagesSent      int64
	messagesReceived  int64
}

func NewManager(logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		logger:     logger,
		opts:       opts,
		byResource: make(map[int64]map[Channel]struct{}),
		byOwner:    make(map[int64]map[Channel]struct{}),
		meta:       make(map[Channel]*connMeta),
	}
}

// Connect registers a channel as a viewer of resourceID, optionally bound
// to an owner, and acknowledges the registration over the channel. The
// caller must have authenticated the peer and authorized its access to
// the resource beforehand. If the acknowledgment cannot be delivered the
// channel is unregistered again and the error is returned.
//
// Connect starts the per-connection heartbeat task; Disconnect cancels it.
func (m *Manager) Connect(ctx context.Context, ch Channel, resourceID int64, ownerID *int64) error {
	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	now := time.Now().UTC()

	m.mu.Lock()
	bucket, ok := m.byResource[resourceID]
	if !ok {
		bucket = make(map[Channel]struct{})
		m.byResource[resourceID] = bucket
	}
	bucket[ch] = struct{}{}

	if ownerID != nil {
		owned, ok := m.byOwner[*ownerID]
		if !ok {
			owned = make(map[Channel]struct{})
			m.byOwner[*ownerID] = owned
		}
		owned[ch] = struct{}{}
	}

	m.meta[ch] = &connMeta{
		info: ConnectionInfo{
			ResourceID:    resourceID,
			OwnerID:       ownerID,
			ConnectedAt:   now,
			LastHeartbeat: now,
			State:         StateConnected,
		},
		cancelHeartbeat: cancel,
	}
	m.totalConnections++
	m.activeConnections++
	active := m.activeConnections
	m.mu.Unlock()

	m.logger.Info("websocket connected",
		"resource_id", resourceID, "owner_id", ownerID, "active_connections", active)

	ack := NewMessage(TypeAuthentication, AuthAckPayload{
		Status:     "connected",
		ResourceID: resourceID,
	}).WithResource(resourceID)
	if ownerID != nil {
		ack = ack.WithOwner(*ownerID)
	}
	if err := ch.Send(ctx, ack); err != nil {
		m.Disconnect(ch)
		return fmt.Errorf("sending connection ack: %w", err)
	}

	go m.heartbeatLoop(hbCtx, ch)
	return nil
}

// Disconnect removes a channel from the registry and both indices and
// cancels its heartbeat task. It is idempotent: disconnecting a channel
// that is not registered is a no-op.
func (m *Manager) Disconnect(ch Channel) {
	m.mu.Lock()
	meta, ok := m.meta[ch]
	if !ok {
		m.mu.Unlock()
		return
	}

	resourceID := meta.info.ResourceID
	if bucket, ok := m.byResource[resourceID]; ok {
		delete(bucket, ch)
		if len(bucket) == 0 {
			delete(m.byResource, resourceID)
		}
	}
	if meta.info.OwnerID != nil {
		if owned, ok := m.byOwner[*meta.info.OwnerID]; ok {
			delete(owned, ch)
			if len(owned) == 0 {
				delete(m.byOwner, *meta.info.OwnerID)
			}
		}
	}
	delete(m.meta, ch)
	if m.activeConnections > 0 {
		m.activeConnections--
	}
	active := m.activeConnections
	m.mu.Unlock()

	meta.cancelHeartbeat()

	m.logger.Info("websocket disconnected",
		"resource_id", resourceID, "owner_id", meta.info.OwnerID, "active_connections", active)
}

// BroadcastToResource delivers msg to every channel subscribed to
// resourceID. Channels whose send fails are collected during the
// iteration and disconnected after it, so one dead peer cannot abort
// delivery to the rest or corrupt the indices mid-loop.
func (m *Manager) BroadcastToResource(ctx context.Context, resourceID int64, msg Message) {
	m.deliver(ctx, m.snapshotBucket(m.byResource, resourceID), msg)
}

// BroadcastToOwner delivers msg to every channel of one authenticated
// owner, regardless of which resource each channel watches.
func (m *Manager) BroadcastToOwner(ctx context.Context, ownerID int64, msg Message) {
	m.deliver(ctx, m.snapshotBucket(m.byOwner, ownerID), msg)
}

// BroadcastToAll delivers msg to every live channel. The set of resource
// ids is snapshotted once; a resource whose viewers all vanish mid-call
// is simply skipped.
func (m *Manager) BroadcastToAll(ctx context.Context, msg Message) {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.byResource))
	for id := range m.byResource {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.BroadcastToResource(ctx, id, msg)
	}
}

// SendSystemAlert broadcasts a system alert to every connected client.
func (m *Manager) SendSystemAlert(ctx context.Context, text, level string) {
	m.BroadcastToAll(ctx, NewMessage(TypeSystemAlert, SystemAlertPayload{
		Message: text,
		Level:   level,
	}))
}

func (m *Manager) snapshotBucket(index map[int64]map[Channel]struct{}, id int64) []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := index[id]
	targets := make([]Channel, 0, len(bucket))
	for ch := range bucket {
		targets = append(targets, ch)
	}
	return targets
}

// deliver sends msg to each target, isolating per-channel failures.
// Failed channels are disconnected only after the full iteration.
// Delivery is at-most-once: a failed send is not retried.
func (m *Manager) deliver(ctx context.Context, targets []Channel, msg Message) {
	var failed []Channel
	for _, ch := range targets {
		if err := ch.Send(ctx, msg); err != nil {
			m.logger.Warn("dropping connection after failed send", "type", msg.Type, "error", err)
			failed = append(failed, ch)
			continue
		}
		m.mu.Lock()
		if meta, ok := m.meta[ch]; ok {
			meta.info.MessageCount++
		}
		m.messagesSent++
		m.mu.Unlock()
	}
	for _, ch := range failed {
		m.Disconnect(ch)
	}
}

// SendHeartbeat sends one heartbeat to a single channel and, if the send
// succeeds, records the time as the channel's last heartbeat. Called on a
// timer by the per-connection heartbeat task and directly when a client
// pings.
func (m *Manager) SendHeartbeat(ctx context.Context, ch Channel) {
	m.mu.Lock()
	_, live := m.meta[ch]
	m.mu.Unlock()
	if !live {
		return
	}

	now := time.Now().UTC()
	if err := ch.Send(ctx, NewMessage(TypeHeartbeat, HeartbeatPayload{Timestamp: now})); err != nil {
		m.logger.Debug("heartbeat send failed", "error", err)
		return
	}

	m.mu.Lock()
	if meta, ok := m.meta[ch]; ok {
		meta.info.LastHeartbeat = now
	}
	m.mu.Unlock()
}

func (m *Manager) heartbeatLoop(ctx context.Context, ch Channel) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SendHeartbeat(ctx, ch)
		}
	}
}

// CleanupInactive disconnects every channel whose last successful
// heartbeat is older than maxIdle. It backstops connections whose
// transport never surfaced a disconnect. Returns the number reclaimed.
func (m *Manager) CleanupInactive(maxIdle time.Duration) int {
	now := time.Now().UTC()

	m.mu.Lock()
	var stale []Channel
	for ch, meta := range m.meta {
		if now.Sub(meta.info.LastHeartbeat) > maxIdle {
			stale = append(stale, ch)
		}
	}
	m.mu.Unlock()

	for _, ch := range stale {
		m.logger.Info("reclaiming idle connection")
		m.Disconnect(ch)
	}
	return len(stale)
}

// RunCleanup runs the idle sweep on a fixed period until ctx is
// cancelled. It is independent of the per-connection heartbeat tasks and
// is never serialized behind broadcast calls.
func (m *Manager) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("shutting down websocket cleanup loop")
			return
		case <-ticker.C:
			if n := m.CleanupInactive(m.opts.MaxIdle); n > 0 {
				m.logger.Info("cleaned up inactive connections", "count", n)
			}
		}
	}
}

// MarkReceived counts one inbound client message. The read loops in the
// transport layer call this; the manager itself never parses inbound
// frames.
func (m *Manager) MarkReceived() {
	m.mu.Lock()
	m.messagesReceived++
	m.mu.Unlock()
}

// ConnectionInfo returns a snapshot of one channel's metadata. The second
// return value is false when the channel is not registered.
func (m *Manager) ConnectionInfo(ch Channel) (ConnectionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.meta[ch]
	if !ok {
		return ConnectionInfo{}, false
	}
	return meta.info, true
}

// ResourceConnectionCount reports how many channels watch resourceID.
func (m *Manager) ResourceConnectionCount(resourceID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byResource[resourceID])
}

// OwnerConnectionCount reports how many channels ownerID has open.
func (m *Manager) OwnerConnectionCount(ownerID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byOwner[ownerID])
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TotalConnections:         m.totalConnections,
		ActiveConnections:        m.activeConnections,
		ResourcesWithConnections: len(m.byResource),
		OwnersWithConnections:    len(m.byOwner),
		MessagesSent:             m.messagesSent,
		MessagesReceived:         m.messagesReceived,
	}
}
