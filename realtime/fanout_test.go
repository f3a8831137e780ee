package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
)

type memoryInbox struct {
	mu    sync.Mutex
	items map[string][]domain.Notification
}

func newMemoryInbox() *memoryInbox {
	return &memoryInbox{items: make(map[string][]domain.Notification)}
}

func (m *memoryInbox) Append(n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[n.UserID] = append(m.items[n.UserID], n)
	return nil
}

func (m *memoryInbox) PendingFor(userID string) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.items[userID]...), nil
}

func (m *memoryInbox) Clear(userID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := m.items[userID][:0]
	for _, n := range m.items[userID] {
		cleared := false
		for _, id := range ids {
			if n.ID == id {
				cleared = true
				break
			}
		}
		if !cleared {
			keep = append(keep, n)
		}
	}
	m.items[userID] = keep
	return nil
}

func kinds(msgs []Message) []domain.EventKind {
	out := make([]domain.EventKind, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Event.Kind)
	}
	return out
}

func TestTaskEventsReachTaskAndStaffChannels(t *testing.T) {
	hub := NewHub(8, nil)
	router := NewRouter(hub, nil, nil)

	admin := hub.Connect(adminActor)
	vendor := hub.Connect(vendorActor)
	customer := hub.Connect(customerActor)
	hub.JoinTask(customer, "t1")
	drain(admin)
	drain(vendor)
	drain(customer)

	router.Publish(domain.Event{Kind: domain.EventTaskUpdated, TaskID: "t1", ActorID: "V1", Role: domain.RoleVendor})

	assert.Equal(t, []domain.EventKind{domain.EventTaskUpdated}, kinds(drain(admin)))
	assert.Equal(t, []domain.EventKind{domain.EventTaskUpdated}, kinds(drain(vendor)))
	assert.Equal(t, []domain.EventKind{domain.EventTaskUpdated}, kinds(drain(customer)),
		"task channel member sees the update even as a customer")
}

func TestCommentEventStaysOnTaskChannel(t *testing.T) {
	hub := NewHub(8, nil)
	router := NewRouter(hub, nil, nil)

	admin := hub.Connect(adminActor)
	watcher := hub.Connect(customerActor)
	hub.JoinTask(watcher, "t1")
	drain(admin)
	drain(watcher)

	router.Publish(domain.Event{Kind: domain.EventCommentAdded, TaskID: "t1", ActorID: "C1"})

	assert.Empty(t, drain(admin), "comments do not hit role channels")
	require.Len(t, drain(watcher), 1)
}

func TestBulkEventSkipsVendorsForAdminActor(t *testing.T) {
	hub := NewHub(8, nil)
	router := NewRouter(hub, nil, nil)

	admin := hub.Connect(adminActor)
	vendor := hub.Connect(vendorActor)
	drain(admin)
	drain(vendor)

	router.Publish(domain.Event{Kind: domain.EventBulkUpdated, ActorID: "A1", Role: domain.RoleAdmin})
	require.Len(t, drain(admin), 1)
	assert.Empty(t, drain(vendor))

	router.Publish(domain.Event{Kind: domain.EventBulkUpdated, ActorID: "V1", Role: domain.RoleVendor})
	require.Len(t, drain(admin), 1)
	require.Len(t, drain(vendor), 1)
}

func TestNotifyDeliversLiveAndParksOffline(t *testing.T) {
	hub := NewHub(8, nil)
	inbox := newMemoryInbox()
	router := NewRouter(hub, inbox, nil)

	online := hub.Connect(vendorActor)
	drain(online)

	router.Notify(domain.Notification{ID: "n1", UserID: "V1", Message: "task assigned"})
	require.Len(t, drain(online), 1)
	pending, _ := inbox.PendingFor("V1")
	assert.Empty(t, pending, "delivered notifications are not parked")

	router.Notify(domain.Notification{ID: "n2", UserID: "C1", Message: "task assigned"})
	pending, _ = inbox.PendingFor("C1")
	require.Len(t, pending, 1)
	assert.Equal(t, "n2", pending[0].ID)
}

func TestInboxReplayOnConnect(t *testing.T) {
	hub := NewHub(8, nil)
	inbox := newMemoryInbox()
	router := NewRouter(hub, inbox, nil)

	router.Notify(domain.Notification{ID: "n1", UserID: "C1", Message: "while you were away"})

	conn := hub.Connect(customerActor)
	msgs := drain(conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventNotification, msgs[0].Event.Kind)

	pending, _ := inbox.PendingFor("C1")
	assert.Empty(t, pending, "replayed notifications are cleared")
}

func TestPublishToEmptyChannelsIsHarmless(t *testing.T) {
	hub := NewHub(8, nil)
	router := NewRouter(hub, nil, nil)

	// no connections at all; every branch of the table must be a no-op
	router.Publish(domain.Event{Kind: domain.EventTaskCreated, TaskID: "t1"})
	router.Publish(domain.Event{Kind: domain.EventBulkDeleted, Role: domain.RoleAdmin})
	router.Publish(domain.Event{Kind: domain.EventNotification, TargetID: "U9"})
}
