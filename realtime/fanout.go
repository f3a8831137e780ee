package realtime

import (
	"time"

	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
)

// overridable in tests
var timeNow = time.Now

// NotificationStore parks direct notifications for offline recipients and
// replays them on the next connect.
type NotificationStore interface {
	Append(n domain.Notification) error
	PendingFor(userID string) ([]domain.Notification, error)
	Clear(userID string, ids []string) error
}

// Router resolves a mutation event into the set of channels to notify and
// publishes one copy per channel. Publishing is fire-and-forget: a
// disconnected member is not an error and nothing is retried.
type Router struct {
	hub    *Hub
	inbox  NotificationStore
	logger *zap.Logger
}

// NewRouter wires the router to the hub and registers inbox replay for new
// connections.
func NewRouter(hub *Hub, inbox NotificationStore, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{hub: hub, inbox: inbox, logger: logger}
	if inbox != nil {
		hub.OnConnect(r.replayInbox)
	}
	return r
}

// Publish fans the event out according to its kind. It never fails the
// originating mutation; delivery problems are logged and dropped.
func (r *Router) Publish(event domain.Event) {
	if r == nil || r.hub == nil {
		return
	}
	if event.At.IsZero() {
		event.At = timeNow()
	}

	switch event.Kind {
	case domain.EventTaskCreated, domain.EventTaskUpdated, domain.EventTaskDeleted:
		if event.TaskID != "" {
			r.hub.Publish(domain.TaskChannel(event.TaskID), event)
		}
		r.hub.Publish(domain.RoleChannel(domain.RoleAdmin), event)
		r.hub.Publish(domain.RoleChannel(domain.RoleVendor), event)

	case domain.EventCommentAdded, domain.EventSubtaskUpdated:
		r.hub.Publish(domain.TaskChannel(event.TaskID), event)

	case domain.EventBulkUpdated, domain.EventBulkDeleted:
		r.hub.Publish(domain.RoleChannel(domain.RoleAdmin), event)
		if event.Role != domain.RoleAdmin {
			r.hub.Publish(domain.RoleChannel(domain.RoleVendor), event)
		}

	case domain.EventNotification:
		r.notify(event)

	default:
		r.logger.Warn("unroutable event kind", zap.String("kind", string(event.Kind)))
	}
}

// Notify targets a single recipient. Offline recipients get the notification
// parked in the inbox instead.
func (r *Router) Notify(n domain.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = timeNow()
	}
	r.Publish(domain.Event{
		Kind:     domain.EventNotification,
		TaskID:   n.TaskID,
		TargetID: n.UserID,
		Payload:  n,
		At:       n.CreatedAt,
	})
}

func (r *Router) notify(event domain.Event) {
	if event.TargetID == "" {
		return
	}
	delivered := r.hub.Publish(domain.UserChannel(event.TargetID), event)
	if delivered > 0 || r.inbox == nil {
		return
	}

	n, ok := event.Payload.(domain.Notification)
	if !ok {
		return
	}
	if err := r.inbox.Append(n); err != nil {
		r.logger.Error("failed to park notification",
			zap.String("user_id", event.TargetID),
			zap.Error(err))
	}
}

func (r *Router) replayInbox(conn *Connection) {
	pending, err := r.inbox.PendingFor(conn.Actor.ID)
	if err != nil {
		r.logger.Error("inbox replay failed",
			zap.String("user_id", conn.Actor.ID),
			zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	delivered := make([]string, 0, len(pending))
	channel := domain.UserChannel(conn.Actor.ID)
	for _, n := range pending {
		msg := Message{Channel: channel, Event: domain.Event{
			Kind:     domain.EventNotification,
			TaskID:   n.TaskID,
			TargetID: n.UserID,
			Payload:  n,
			At:       n.CreatedAt,
		}}
		if conn.deliver(msg) {
			delivered = append(delivered, n.ID)
		}
	}

	if len(delivered) > 0 {
		if err := r.inbox.Clear(conn.Actor.ID, delivered); err != nil {
			r.logger.Warn("failed to clear replayed notifications", zap.Error(err))
		}
	}
}
