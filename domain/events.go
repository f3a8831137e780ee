package domain

import (
	"fmt"
	"time"
)

// EventKind names a realtime event published after a mutation.
type EventKind string

const (
	EventTaskCreated     EventKind = "task.created"
	EventTaskUpdated     EventKind = "task.updated"
	EventTaskDeleted     EventKind = "task.deleted"
	EventCommentAdded    EventKind = "comment.added"
	EventSubtaskUpdated  EventKind = "subtask.updated"
	EventBulkUpdated     EventKind = "bulk.updated"
	EventBulkDeleted     EventKind = "bulk.deleted"
	EventPresenceOnline  EventKind = "presence.online"
	EventPresenceOffline EventKind = "presence.offline"
	EventNotification    EventKind = "notification"
)

// Channel is a named broadcast group. Membership is transient and tied to a
// live connection, never persisted.
type Channel string

func UserChannel(actorID string) Channel { return Channel("user:" + actorID) }
func RoleChannel(role Role) Channel      { return Channel(fmt.Sprintf("role:%s", role)) }
func TaskChannel(taskID string) Channel  { return Channel("task:" + taskID) }

// Event is the descriptor a mutation hands to the fanout router. Payloads are
// denormalized so subscribers never need to re-fetch state.
type Event struct {
	Kind     EventKind   `json:"kind"`
	TaskID   string      `json:"task_id,omitempty"`
	ActorID  string      `json:"actor_id,omitempty"`
	Role     Role        `json:"actor_role,omitempty"`
	TargetID string      `json:"target_id,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

// Notification is a direct, single-recipient message. Unlike broadcast
// events it survives the recipient being offline: undelivered notifications
// are parked in the inbox and replayed on the next connect.
type Notification struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Kind      EventKind   `json:"kind"`
	TaskID    string      `json:"task_id,omitempty"`
	Message   string      `json:"message"`
	Payload   interface{} `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
