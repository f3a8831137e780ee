package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
)

var (
	adminActor    = domain.Actor{ID: "A1", Role: domain.RoleAdmin, Active: true}
	vendorActor   = domain.Actor{ID: "V1", Role: domain.RoleVendor, Active: true}
	customerActor = domain.Actor{ID: "C1", Role: domain.RoleCustomer, Active: true}
)

func drain(c *Connection) []Message {
	var msgs []Message
	for {
		select {
		case msg, ok := <-c.Events():
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestConnectAutoEnrollsLifetimeChannels(t *testing.T) {
	hub := NewHub(8, nil)
	conn := hub.Connect(vendorActor)

	assert.Equal(t, 1, hub.Members(domain.UserChannel("V1")))
	assert.Equal(t, 1, hub.Members(domain.RoleChannel(domain.RoleVendor)))
	assert.Equal(t, 1, hub.Connections())

	// lifetime channels cannot be left via the task-channel API
	hub.LeaveTask(conn, "V1")
	assert.Equal(t, 1, hub.Members(domain.UserChannel("V1")))
}

func TestJoinLeaveTaskChannel(t *testing.T) {
	hub := NewHub(8, nil)
	conn := hub.Connect(vendorActor)

	hub.JoinTask(conn, "t1")
	hub.JoinTask(conn, "t1") // idempotent
	hub.JoinTask(conn, "t2")
	assert.Equal(t, 1, hub.Members(domain.TaskChannel("t1")))
	assert.Equal(t, 1, hub.Members(domain.TaskChannel("t2")))

	hub.LeaveTask(conn, "t1")
	assert.Equal(t, 0, hub.Members(domain.TaskChannel("t1")))
	assert.Equal(t, 1, hub.Members(domain.TaskChannel("t2")))
}

func TestPublishReachesOnlyMembers(t *testing.T) {
	hub := NewHub(8, nil)
	member := hub.Connect(vendorActor)
	outsider := hub.Connect(customerActor)
	drain(member)
	drain(outsider)

	hub.JoinTask(member, "t1")
	delivered := hub.Publish(domain.TaskChannel("t1"), domain.Event{Kind: domain.EventCommentAdded, TaskID: "t1"})

	assert.Equal(t, 1, delivered)
	msgs := drain(member)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.TaskChannel("t1"), msgs[0].Channel)
	assert.Empty(t, drain(outsider))
}

func TestDisconnectReleasesAllMemberships(t *testing.T) {
	hub := NewHub(8, nil)
	conn := hub.Connect(vendorActor)
	stayer := hub.Connect(adminActor)
	hub.JoinTask(conn, "t1")
	hub.JoinTask(stayer, "t1")

	hub.Disconnect(conn)

	assert.Equal(t, 0, hub.Members(domain.UserChannel("V1")))
	assert.Equal(t, 0, hub.Members(domain.RoleChannel(domain.RoleVendor)))
	assert.Equal(t, 1, hub.Members(domain.TaskChannel("t1")))
	assert.Equal(t, 1, hub.Connections())

	// publishing after close must not error and reaches only remaining members
	drain(stayer)
	delivered := hub.Publish(domain.TaskChannel("t1"), domain.Event{Kind: domain.EventSubtaskUpdated, TaskID: "t1"})
	assert.Equal(t, 1, delivered)
	require.Len(t, drain(stayer), 1)

	// joining after disconnect is ignored
	hub.JoinTask(conn, "t2")
	assert.Equal(t, 0, hub.Members(domain.TaskChannel("t2")))

	// double disconnect is safe
	hub.Disconnect(conn)
}

func TestPresenceBroadcastExcludesOriginator(t *testing.T) {
	hub := NewHub(8, nil)
	first := hub.Connect(adminActor)
	drain(first)

	second := hub.Connect(vendorActor)

	msgs := drain(first)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventPresenceOnline, msgs[0].Event.Kind)
	assert.Equal(t, "V1", msgs[0].Event.ActorID)
	assert.Empty(t, drain(second), "originator must not receive its own presence event")

	hub.Disconnect(second)
	msgs = drain(first)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventPresenceOffline, msgs[0].Event.Kind)
}

func TestSlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1, nil)
	conn := hub.Connect(vendorActor)
	drain(conn)
	hub.JoinTask(conn, "t1")

	first := hub.Publish(domain.TaskChannel("t1"), domain.Event{Kind: domain.EventCommentAdded, TaskID: "t1"})
	second := hub.Publish(domain.TaskChannel("t1"), domain.Event{Kind: domain.EventCommentAdded, TaskID: "t1"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "full buffer drops rather than blocks")
}
