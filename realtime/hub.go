// Package realtime keeps every connected client's view in sync with the
// latest mutation. The Hub owns channel membership for live connections; the
// Router maps mutation events onto channels. Both are plain owned objects so
// join/leave/disconnect sequencing is testable without a live transport.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
)

// Message is one event delivered on one channel.
type Message struct {
	Channel domain.Channel `json:"channel"`
	Event   domain.Event   `json:"event"`
}

// Connection is a single live client stream. Outbound delivery is buffered
// and non-blocking: a slow consumer loses events rather than stalling the
// publisher. Realtime events are a best-effort supplement to reads, never a
// substitute.
type Connection struct {
	ID    string
	Actor domain.Actor

	out  chan Message
	once sync.Once
}

// Events exposes the outbound stream for the transport layer to drain.
func (c *Connection) Events() <-chan Message {
	return c.out
}

func (c *Connection) deliver(msg Message) bool {
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.out) })
}

// ConnectHook runs after a connection is enrolled into its lifetime channels.
type ConnectHook func(*Connection)

// Hub is the channel membership registry. Per connection the lifecycle is
// connect (auto-enrolled into user:<id> and role:<role>), any number of task
// channel joins and leaves, then disconnect, which releases every membership
// atomically.
type Hub struct {
	logger     *zap.Logger
	sendBuffer int

	mu        sync.RWMutex
	channels  map[domain.Channel]map[*Connection]struct{}
	conns     map[string]*Connection
	onConnect []ConnectHook
}

// NewHub creates an empty registry.
func NewHub(sendBuffer int, logger *zap.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		sendBuffer: sendBuffer,
		channels:   make(map[domain.Channel]map[*Connection]struct{}),
		conns:      make(map[string]*Connection),
	}
}

// OnConnect registers a hook invoked for every new connection, after its
// lifetime channels are joined. Used for notification inbox replay.
func (h *Hub) OnConnect(hook ConnectHook) {
	if hook == nil {
		return
	}
	h.mu.Lock()
	h.onConnect = append(h.onConnect, hook)
	h.mu.Unlock()
}

// Connect enrolls the actor into its two lifetime channels and announces
// presence to everyone else.
func (h *Hub) Connect(actor domain.Actor) *Connection {
	conn := &Connection{
		ID:    uuid.NewString(),
		Actor: actor,
		out:   make(chan Message, h.sendBuffer),
	}

	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.join(conn, domain.UserChannel(actor.ID))
	h.join(conn, domain.RoleChannel(actor.Role))
	hooks := append([]ConnectHook(nil), h.onConnect...)
	h.mu.Unlock()

	h.logger.Debug("connection opened",
		zap.String("connection_id", conn.ID),
		zap.String("actor_id", actor.ID),
		zap.String("role", string(actor.Role)))

	h.Broadcast(presenceEvent(domain.EventPresenceOnline, actor), conn)

	for _, hook := range hooks {
		hook(conn)
	}
	return conn
}

// Get resolves a connection by id.
func (h *Hub) Get(connID string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

// JoinTask subscribes the connection to a task channel. Joining twice is a
// no-op.
func (h *Hub) JoinTask(conn *Connection, taskID string) {
	if conn == nil || taskID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.conns[conn.ID]; !live {
		return
	}
	h.join(conn, domain.TaskChannel(taskID))
}

// LeaveTask unsubscribes the connection from a task channel. The lifetime
// user and role channels cannot be left.
func (h *Hub) LeaveTask(conn *Connection, taskID string) {
	if conn == nil || taskID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(conn, domain.TaskChannel(taskID))
}

// Disconnect atomically releases all memberships, closes the outbound stream
// and announces the actor going offline. Safe to call more than once.
func (h *Hub) Disconnect(conn *Connection) {
	if conn == nil {
		return
	}

	h.mu.Lock()
	if _, live := h.conns[conn.ID]; !live {
		h.mu.Unlock()
		return
	}
	delete(h.conns, conn.ID)
	for channel, members := range h.channels {
		if _, ok := members[conn]; ok {
			delete(members, conn)
			if len(members) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	h.mu.Unlock()

	conn.close()

	h.logger.Debug("connection closed",
		zap.String("connection_id", conn.ID),
		zap.String("actor_id", conn.Actor.ID))

	h.Broadcast(presenceEvent(domain.EventPresenceOffline, conn.Actor), conn)
}

// Publish delivers the event to every member of the channel and returns how
// many connections received it. Publishing to an empty channel is not an
// error.
func (h *Hub) Publish(channel domain.Channel, event domain.Event) int {
	h.mu.RLock()
	members := make([]*Connection, 0, len(h.channels[channel]))
	for conn := range h.channels[channel] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	msg := Message{Channel: channel, Event: event}
	delivered := 0
	for _, conn := range members {
		if conn.deliver(msg) {
			delivered++
		} else {
			h.logger.Warn("dropping event for slow consumer",
				zap.String("connection_id", conn.ID),
				zap.String("channel", string(channel)),
				zap.String("kind", string(event.Kind)))
		}
	}
	return delivered
}

// Broadcast delivers the event to every connection except the originator.
func (h *Hub) Broadcast(event domain.Event, except *Connection) int {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		if conn != except {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if conn.deliver(Message{Channel: domain.UserChannel(conn.Actor.ID), Event: event}) {
			delivered++
		}
	}
	return delivered
}

// Members reports the member count of a channel.
func (h *Hub) Members(channel domain.Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Connections reports the number of live connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// join and leave assume h.mu is held.
func (h *Hub) join(conn *Connection, channel domain.Channel) {
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Connection]struct{})
		h.channels[channel] = members
	}
	members[conn] = struct{}{}
}

func (h *Hub) leave(conn *Connection, channel domain.Channel) {
	members, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

func presenceEvent(kind domain.EventKind, actor domain.Actor) domain.Event {
	return domain.Event{
		Kind:    kind,
		ActorID: actor.ID,
		Role:    actor.Role,
		Payload: actor,
		At:      timeNow(),
	}
}
