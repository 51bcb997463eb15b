package ws

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// writeTimeout bounds a single send so one stalled client cannot hold up
// a fan-out indefinitely.
const writeTimeout = 10 * time.Second

// Channel is the transport half of a live client connection. The manager
// references channels but never owns them: accepting and closing the
// underlying socket is the caller's job. A send error means the peer is
// gone and the manager will drop the channel from its registry.
//
// Implementations must be comparable (the registry keys its maps by
// channel), which in practice means pointer types.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// Conn adapts a coder/websocket connection to the Channel interface.
type Conn struct {
	conn *websocket.Conn
}

func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

func (c *Conn) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, msg)
}

func (c *Conn) Close(code websocket.StatusCode, reason string) error {
	return c.conn.Close(code, reason)
}
