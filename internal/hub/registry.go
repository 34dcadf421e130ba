package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/queueflow/queue-core/internal/metrics"
	"github.com/queueflow/queue-core/pkg/logger"
)

// Room name prefixes. A session may sit in any number of rooms at once.
const (
	queueRoomPrefix = "queue-"
	userRoomPrefix  = "user-"
)

// QueueRoom names the room all watchers of a queue share
func QueueRoom(queueID string) string {
	return queueRoomPrefix + queueID
}

// UserRoom names a user's personal room
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// Config tunes connection keepalive and buffering
type Config struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	SendBufferSize int
	MaxMessageSize int64
}

// DefaultConfig returns production keepalive settings. The ping interval
// must stay below the pong timeout or healthy connections get reaped.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   54 * time.Second,
		SendBufferSize: 256,
		MaxMessageSize: 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = d.SendBufferSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Frame is the envelope every emitted event travels in
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Registry tracks websocket sessions and their room memberships. Both
// maps are guarded by one mutex so a disconnect releases every
// membership atomically; no session can receive a frame for a room it
// already left.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[*session]struct{}
	members map[*session]map[string]struct{}

	cfg Config
	log *logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		rooms:   make(map[string]map[*session]struct{}),
		members: make(map[*session]map[string]struct{}),
		cfg:     cfg.withDefaults(),
		log:     logger.Get(),
	}
}

// join adds a session to a room, creating the room on first entry
func (r *Registry) join(room string, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[s]; !ok {
		return // session already disconnected
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*session]struct{})
	}
	r.rooms[room][s] = struct{}{}
	r.members[s][room] = struct{}{}
}

// leave removes a session from a room; leaving a room the session is
// not in is a no-op
func (r *Registry) leave(room string, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(room, s)
}

func (r *Registry) removeLocked(room string, s *session) {
	if sessions, ok := r.rooms[room]; ok {
		delete(sessions, s)
		if len(sessions) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.members[s]; ok {
		delete(rooms, room)
	}
}

// register makes a session known to the registry before any join
func (r *Registry) register(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[s] = make(map[string]struct{})
	metrics.HubSessions.Add(context.Background(), 1)
}

// disconnect releases all of a session's memberships and closes its
// send channel, exactly once
func (r *Registry) disconnect(s *session) {
	r.mu.Lock()
	rooms, ok := r.members[s]
	if ok {
		for room := range rooms {
			if sessions, found := r.rooms[room]; found {
				delete(sessions, s)
				if len(sessions) == 0 {
					delete(r.rooms, room)
				}
			}
		}
		delete(r.members, s)
	}
	r.mu.Unlock()

	if ok {
		s.close()
		metrics.HubSessions.Add(context.Background(), -1)
	}
}

// broadcast delivers a frame to every session in a room. Delivery is
// fire-and-forget: a session with a full send buffer loses the frame
// rather than blocking the emitter.
func (r *Registry) broadcast(room string, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for s := range r.rooms[room] {
		select {
		case s.send <- frame:
			metrics.FanoutDeliveries.Add(context.Background(), 1)
		default:
			metrics.FanoutDropped.Add(context.Background(), 1)
		}
	}
}

// emit marshals one event into the wire envelope and broadcasts it
func (r *Registry) emit(room, event string, payload any) {
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		r.log.Error("event marshal failed",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	r.broadcast(room, frame)
}

// RoomSize reports how many sessions a room currently holds
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// SessionCount reports connected sessions
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
