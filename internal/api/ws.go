package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"pondwatch/internal/storage"
	"pondwatch/internal/ws"
)

// Close codes the PWA frontend distinguishes when a connection is
// rejected before registration.
const (
	closeUnauthorized = websocket.StatusCode(4003)
	closePondNotFound = websocket.StatusCode(4004)
)

// clientFrame is what clients may send upstream. Everything else is
// logged and dropped.
type clientFrame struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// wsHandler authenticates and authorizes the request, registers the
// connection with the manager, then services inbound frames until the
// client goes away. All authorization happens before the manager ever
// sees the channel.
func (s *Server) wsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		pondID, err := pathID(r, "pond_id")
		if err != nil {
			http.Error(w, "invalid pond id", http.StatusBadRequest)
			return
		}
		token := r.URL.Query().Get("token")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket accept failed", "error", err)
			return
		}

		userID, err := s.deps.Auth.Verify(token)
		if err != nil {
			_ = conn.Close(closeUnauthorized, "invalid authentication token")
			return
		}
		pond, err := s.deps.Ponds.GetByID(pondID)
		if err != nil {
			_ = conn.Close(closePondNotFound, "pond not found")
			return
		}
		user, err := s.deps.Users.GetByID(userID)
		if err != nil {
			_ = conn.Close(closeUnauthorized, "user not found")
			return
		}
		if !user.IsAdmin && pond.OwnerID != userID {
			_ = conn.Close(closeUnauthorized, "access denied to this pond")
			return
		}

		ch := ws.NewConn(conn)
		if err := s.deps.Manager.Connect(ctx, ch, pondID, &userID); err != nil {
			s.logger.Error("websocket registration failed", "pond_id", pondID, "error", err)
			_ = conn.Close(websocket.StatusInternalError, "registration failed")
			return
		}
		defer s.deps.Manager.Disconnect(ch)
		defer conn.Close(websocket.StatusNormalClosure, "")

		// Initial pond snapshot so the dashboard renders before the
		// first sensor update arrives.
		snapshot := ws.NewMessage(ws.TypeResourceUpdate, ws.ResourceUpdatePayload{
			ResourceID: pond.ID,
			Name:       pond.Name,
			Status:     pond.Status,
			Message:    fmt.Sprintf("Connected to %s monitoring", pond.Name),
		}).WithResource(pond.ID).WithOwner(userID)
		if err := ch.Send(ctx, snapshot); err != nil {
			return
		}

		s.readLoop(r, conn, ch, pond)
	}
}

func (s *Server) readLoop(r *http.Request, conn *websocket.Conn, ch *ws.Conn, pond storage.Pond) {
	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logger.Debug("websocket read loop ended",
				"pond_id", pond.ID, "close_status", websocket.CloseStatus(err), "error", err)
			return
		}
		s.deps.Manager.MarkReceived()

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("received non-JSON frame", "pond_id", pond.ID, "error", err)
			continue
		}

		switch frame.Type {
		case "ping":
			// A client ping gets an immediate heartbeat instead of
			// waiting for the periodic one.
			s.deps.Manager.SendHeartbeat(ctx, ch)
		case "command":
			s.handleCommand(ctx, ch, pond, frame.Command)
		default:
			s.logger.Debug("unknown client frame", "pond_id", pond.ID, "type", frame.Type)
		}
	}
}

func (s *Server) handleCommand(ctx context.Context, ch *ws.Conn, pond storage.Pond, command string) {
	switch command {
	case "get_pond_status":
		current, err := s.deps.Ponds.GetByID(pond.ID)
		if err != nil {
			s.sendError(ctx, ch, pond.ID, "pond status unavailable")
			return
		}
		msg := ws.NewMessage(ws.TypeResourceUpdate, ws.ResourceUpdatePayload{
			ResourceID: current.ID,
			Name:       current.Name,
			Status:     current.Status,
		}).WithResource(current.ID)
		if err := ch.Send(ctx, msg); err != nil {
			s.logger.Debug("failed to answer command", "pond_id", pond.ID, "error", err)
		}
	default:
		s.sendError(ctx, ch, pond.ID, "unknown command")
	}
}

func (s *Server) sendError(ctx context.Context, ch *ws.Conn, pondID int64, text string) {
	msg := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Message: text}).WithResource(pondID)
	if err := ch.Send(ctx, msg); err != nil {
		s.logger.Debug("failed to send error frame", "pond_id", pondID, "error", err)
	}
}
