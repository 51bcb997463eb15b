package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records everything sent to it. Setting fail makes every
// send report a dead peer.
type fakeChannel struct {
	mu   sync.Mutex
	fail bool
	msgs []Message
}

func (c *fakeChannel) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("peer gone")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) received() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

func (c *fakeChannel) lastType() MessageType {
	msgs := c.received()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Type
}

func newTestManager() *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(logger, Options{
		// Long enough that no timer fires during a test run.
		HeartbeatInterval: time.Hour,
		CleanupInterval:   time.Hour,
		MaxIdle:           300 * time.Second,
	})
}

func ptr(v int64) *int64 { return &v }

func TestConnectSendsAck(t *testing.T) {
	m := newTestManager()
	ch := &fakeChannel{}

	require.NoError(t, m.Connect(context.Background(), ch, 7, ptr(42)))

	msgs := ch.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeAuthentication, msgs[0].Type)
	require.NotNil(t, msgs[0].ResourceID)
	assert.Equal(t, int64(7), *msgs[0].ResourceID)

	payload, ok := msgs[0].Data.(AuthAckPayload)
	require.True(t, ok)
	assert.Equal(t, "connected", payload.Status)
	assert.Equal(t, int64(7), payload.ResourceID)
}

func TestConnectAckFailureUnregisters(t *testing.T) {
	m := newTestManager()
	ch := &fakeChannel{fail: true}

	err := m.Connect(context.Background(), ch, 7, nil)
	require.Error(t, err)

	assert.Equal(t, 0, m.ResourceConnectionCount(7))
	assert.Equal(t, int64(0), m.Stats().ActiveConnections)
	_, live := m.ConnectionInfo(ch)
	assert.False(t, live)
}

func TestDisconnectIdempotent(t *testing.T) {
	m := newTestManager()
	ch := &fakeChannel{}
	require.NoError(t, m.Connect(context.Background(), ch, 7, ptr(42)))

	m.Disconnect(ch)
	m.Disconnect(ch)

	stats := m.Stats()
	assert.Equal(t, int64(0), stats.ActiveConnections)
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, 0, stats.ResourcesWithConnections)
	assert.Equal(t, 0, stats.OwnersWithConnections)
}

func TestRegistryInvariantAfterChurn(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	a := &fakeChannel{}
	b := &fakeChannel{}
	c := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, a, 1, ptr(10)))
	require.NoError(t, m.Connect(ctx, b, 1, ptr(10)))
	require.NoError(t, m.Connect(ctx, c, 2, nil))

	assert.Equal(t, 2, m.ResourceConnectionCount(1))
	assert.Equal(t, 1, m.ResourceConnectionCount(2))
	assert.Equal(t, 2, m.OwnerConnectionCount(10))

	m.Disconnect(b)

	assert.Equal(t, 1, m.ResourceConnectionCount(1))
	assert.Equal(t, 1, m.OwnerConnectionCount(10))

	m.Disconnect(a)
	m.Disconnect(c)

	// Empty buckets must be removed, not left dangling.
	m.mu.Lock()
	assert.Empty(t, m.byResource)
	assert.Empty(t, m.byOwner)
	assert.Empty(t, m.meta)
	m.mu.Unlock()

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.TotalConnections)
	assert.Equal(t, int64(0), stats.ActiveConnections)
	assert.Equal(t, 0, m.ResourceConnectionCount(1))
	assert.Equal(t, 0, m.ResourceConnectionCount(2))
	assert.Equal(t, 0, m.OwnerConnectionCount(10))
}

func TestBroadcastToResource(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	a := &fakeChannel{}
	b := &fakeChannel{}
	c := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, a, 7, ptr(42)))
	require.NoError(t, m.Connect(ctx, b, 7, nil))
	require.NoError(t, m.Connect(ctx, c, 7, nil))

	sentBefore := m.Stats().MessagesSent

	msg := NewMessage(TypeSensorUpdate, SensorUpdatePayload{
		SensorType: "oxygen",
		Value:      4.2,
		Status:     "yellow",
		Timestamp:  time.Now().UTC(),
	}).WithResource(7)
	m.BroadcastToResource(ctx, 7, msg)

	for _, ch := range []*fakeChannel{a, b, c} {
		assert.Equal(t, TypeSensorUpdate, ch.lastType())
		info, ok := m.ConnectionInfo(ch)
		require.True(t, ok)
		assert.Equal(t, int64(1), info.MessageCount)
	}
	assert.Equal(t, sentBefore+3, m.Stats().MessagesSent)
}

func TestBroadcastIsolatesFailingRecipient(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	a := &fakeChannel{}
	b := &fakeChannel{}
	c := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, a, 7, nil))
	require.NoError(t, m.Connect(ctx, b, 7, nil))
	require.NoError(t, m.Connect(ctx, c, 7, nil))

	b.mu.Lock()
	b.fail = true
	b.mu.Unlock()

	m.BroadcastToResource(ctx, 7, NewMessage(TypeResourceUpdate, nil))

	assert.Equal(t, TypeResourceUpdate, a.lastType())
	assert.Equal(t, TypeResourceUpdate, c.lastType())

	_, live := m.ConnectionInfo(b)
	assert.False(t, live, "failing recipient must be removed")
	_, live = m.ConnectionInfo(a)
	assert.True(t, live)
	_, live = m.ConnectionInfo(c)
	assert.True(t, live)
	assert.Equal(t, 2, m.ResourceConnectionCount(7))
}

func TestBroadcastToOwnerNoCrossTalk(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	mine := &fakeChannel{}
	other := &fakeChannel{}
	anon := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, mine, 7, ptr(42)))
	require.NoError(t, m.Connect(ctx, other, 7, ptr(99)))
	require.NoError(t, m.Connect(ctx, anon, 7, nil))

	m.BroadcastToOwner(ctx, 42, NewMessage(TypeSystemAlert, SystemAlertPayload{
		Message: "feed stock low",
		Level:   LevelWarning,
	}))

	assert.Equal(t, TypeSystemAlert, mine.lastType())
	assert.Equal(t, TypeAuthentication, other.lastType(), "same pond, different owner: no delivery")
	assert.Equal(t, TypeAuthentication, anon.lastType(), "unowned connection: no delivery")
}

func TestBroadcastToMissingResourceIsNoOp(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	x := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, x, 7, nil))
	m.Disconnect(x)

	sent := m.Stats().MessagesSent
	m.BroadcastToResource(ctx, 7, NewMessage(TypeSensorUpdate, nil))
	assert.Equal(t, sent, m.Stats().MessagesSent)
	assert.Equal(t, 0, m.ResourceConnectionCount(7))
}

func TestSendSystemAlertReachesAllResources(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	a := &fakeChannel{}
	b := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, a, 1, nil))
	require.NoError(t, m.Connect(ctx, b, 2, nil))

	m.SendSystemAlert(ctx, "aerator offline", LevelCritical)

	for _, ch := range []*fakeChannel{a, b} {
		require.Equal(t, TypeSystemAlert, ch.lastType())
		msgs := ch.received()
		payload, ok := msgs[len(msgs)-1].Data.(SystemAlertPayload)
		require.True(t, ok)
		assert.Equal(t, "aerator offline", payload.Message)
		assert.Equal(t, LevelCritical, payload.Level)
	}
}

func TestSendHeartbeatUpdatesMetadata(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	ch := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, ch, 7, nil))

	before, ok := m.ConnectionInfo(ch)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	m.SendHeartbeat(ctx, ch)

	assert.Equal(t, TypeHeartbeat, ch.lastType())
	after, ok := m.ConnectionInfo(ch)
	require.True(t, ok)
	assert.True(t, after.LastHeartbeat.After(before.LastHeartbeat))
}

func TestSendHeartbeatToUnregisteredChannel(t *testing.T) {
	m := newTestManager()
	ch := &fakeChannel{}

	m.SendHeartbeat(context.Background(), ch)
	assert.Empty(t, ch.received())
}

func TestCleanupInactiveThreshold(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	stale := &fakeChannel{}
	fresh := &fakeChannel{}
	require.NoError(t, m.Connect(ctx, stale, 1, nil))
	require.NoError(t, m.Connect(ctx, fresh, 2, nil))

	m.mu.Lock()
	m.meta[stale].info.LastHeartbeat = time.Now().UTC().Add(-400 * time.Second)
	m.meta[fresh].info.LastHeartbeat = time.Now().UTC().Add(-100 * time.Second)
	m.mu.Unlock()

	reclaimed := m.CleanupInactive(300 * time.Second)

	assert.Equal(t, 1, reclaimed)
	_, live := m.ConnectionInfo(stale)
	assert.False(t, live)
	_, live = m.ConnectionInfo(fresh)
	assert.True(t, live)
}

func TestMarkReceived(t *testing.T) {
	m := newTestManager()
	m.MarkReceived()
	m.MarkReceived()
	assert.Equal(t, int64(2), m.Stats().MessagesReceived)
}

func TestConcurrentChurnKeepsRegistryConsistent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(resource int64) {
			defer wg.Done()
			ch := &fakeChannel{}
			if err := m.Connect(ctx, ch, resource, ptr(resource%3)); err != nil {
				return
			}
			m.BroadcastToResource(ctx, resource, NewMessage(TypeSensorUpdate, nil))
			m.Disconnect(ch)
		}(int64(i % 4))
	}
	wg.Wait()

	stats := m.Stats()
	assert.Equal(t, int64(20), stats.TotalConnections)
	assert.Equal(t, int64(0), stats.ActiveConnections)
	assert.Equal(t, 0, stats.ResourcesWithConnections)
	assert.Equal(t, 0, stats.OwnersWithConnections)
}
