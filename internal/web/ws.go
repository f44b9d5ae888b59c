package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 3 * time.Second
	leaveTimeout = 2 * time.Second
	readLimit    = 16 << 10
)

// handleWS binds one websocket to the room for its lifetime: Connect on
// accept, one writer draining the outbox, and a reader feeding the inbox.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(readLimit)

	id := arena.ConnID(uuid.NewString())
	out := make(chan arena.Event, s.cfg.OutboxSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := s.room.Send(ctx, arena.Connect{ID: id, Outbox: out}); err != nil {
		_ = conn.Close(websocket.StatusTryAgainLater, "room closed")
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writeLoop(ctx, conn, id, out)
	}()

	s.readLoop(ctx, conn, id)
	cancel()

	lctx, lcancel := context.WithTimeout(context.Background(), leaveTimeout)
	if err := s.room.Send(lctx, arena.Disconnect{ID: id}); err != nil && !errors.Is(err, arena.ErrRoomClosed) {
		obslog.L().Warn("ws_leave_error", zap.String("conn_id", string(id)), zap.Error(err))
	}
	lcancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

// writeLoop ends when the room closes the outbox (leave, drop, shutdown),
// a write fails, or two pings in a row go unanswered.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, id arena.ConnID, out <-chan arena.Event) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	pingFailures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err == nil {
				pingFailures = 0
				continue
			}
			pingFailures++
			if pingFailures >= 2 {
				obslog.L().Info("ws_ping_timeout", zap.String("conn_id", string(id)))
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		case ev, ok := <-out:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "disconnected")
				return
			}
			frame, err := ev.Frame()
			if err != nil {
				obslog.L().Warn("ws_encode_error", zap.String("conn_id", string(id)), zap.String("event", ev.Name), zap.Error(err))
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = wsjson.Write(wctx, conn, frame)
			wcancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("conn_id", string(id)), zap.Error(err))
				return
			}
		}
	}
}

// readLoop maps client frames onto room messages. Malformed frames and
// unknown events are ignored.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id arena.ConnID) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					obslog.L().Debug("ws_read_error", zap.String("conn_id", string(id)), zap.Error(err))
				}
			}
			return
		}

		var f arenadto.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			obslog.L().Debug("ws_bad_frame", zap.String("conn_id", string(id)), zap.Error(err))
			continue
		}

		var msg arena.Msg
		switch f.Event {
		case arena.EventMove:
			msg = arena.Move{ID: id, Req: arena.ParseMove(f.Data)}
		case arena.EventRematch:
			msg = arena.Rematch{ID: id}
		default:
			obslog.L().Debug("ws_unknown_event", zap.String("conn_id", string(id)), zap.String("event", f.Event))
			continue
		}
		if err := s.room.Send(ctx, msg); err != nil {
			return
		}
	}
}
