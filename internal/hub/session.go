package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client protocol actions
const (
	actionJoin  = "join"
	actionLeave = "leave"
	actionPing  = "ping"
)

// clientFrame is what a connected client may send
type clientFrame struct {
	Action  string `json:"action"`
	UserID  string `json:"user_id,omitempty"`
	QueueID string `json:"queue_id,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

// session is one websocket connection with its outbound buffer
type session struct {
	registry *Registry
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
}

func newSession(r *Registry, conn *websocket.Conn) *session {
	return &session{
		registry: r,
		conn:     conn,
		send:     make(chan []byte, r.cfg.SendBufferSize),
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.send)
	})
}

// enqueue hands a frame to the write pump without ever blocking
func (s *session) enqueue(frame Frame) {
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case s.send <- b:
	default:
	}
}

func (s *session) sendError(msg string) {
	s.enqueue(Frame{Event: "error", Data: errorData{Message: msg}})
}

// readPump consumes client frames until the connection dies, then
// releases the session's memberships
func (s *session) readPump() {
	defer func() {
		s.registry.disconnect(s)
		s.conn.Close()
	}()

	cfg := s.registry.cfg
	s.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.registry.log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		s.handle(message)
	}
}

// handle dispatches one client frame
func (s *session) handle(message []byte) {
	var frame clientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		s.sendError("malformed frame")
		return
	}

	switch frame.Action {
	case actionJoin:
		if frame.QueueID == "" || frame.UserID == "" {
			s.sendError("join requires queue_id and user_id")
			return
		}
		s.registry.join(QueueRoom(frame.QueueID), s)
		s.registry.join(UserRoom(frame.UserID), s)
	case actionLeave:
		if frame.QueueID != "" {
			s.registry.leave(QueueRoom(frame.QueueID), s)
		}
		if frame.UserID != "" {
			s.registry.leave(UserRoom(frame.UserID), s)
		}
	case actionPing:
		s.enqueue(Frame{Event: "pong"})
	default:
		s.sendError("unknown action")
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings; exits when the buffer closes or a write fails
func (s *session) writePump() {
	cfg := s.registry.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
