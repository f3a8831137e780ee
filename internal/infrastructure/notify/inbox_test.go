package notify

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
)

func openTestInbox(t *testing.T) *Inbox {
	t.Helper()
	inbox, err := Open(filepath.Join(t.TempDir(), "inbox.db"), "notifications")
	require.NoError(t, err)
	t.Cleanup(func() { _ = inbox.Close() })
	return inbox
}

func TestAppendAndPendingOrder(t *testing.T) {
	inbox := openTestInbox(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, inbox.Append(domain.Notification{ID: "n2", UserID: "C1", Message: "second", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, inbox.Append(domain.Notification{ID: "n1", UserID: "C1", Message: "first", CreatedAt: base}))
	require.NoError(t, inbox.Append(domain.Notification{ID: "x1", UserID: "V1", Message: "other recipient", CreatedAt: base}))

	pending, err := inbox.PendingFor("C1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "n1", pending[0].ID, "oldest first")
	assert.Equal(t, "n2", pending[1].ID)

	size, err := inbox.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestClearRemovesOnlyNamedIDs(t *testing.T) {
	inbox := openTestInbox(t)
	now := time.Now()
	require.NoError(t, inbox.Append(domain.Notification{ID: "n1", UserID: "C1", CreatedAt: now}))
	require.NoError(t, inbox.Append(domain.Notification{ID: "n2", UserID: "C1", CreatedAt: now.Add(time.Second)}))

	require.NoError(t, inbox.Clear("C1", []string{"n1"}))

	pending, err := inbox.PendingFor("C1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "n2", pending[0].ID)
}

func TestPruneOlderThan(t *testing.T) {
	inbox := openTestInbox(t)
	now := time.Now()
	require.NoError(t, inbox.Append(domain.Notification{ID: "old", UserID: "C1", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, inbox.Append(domain.Notification{ID: "fresh", UserID: "C1", CreatedAt: now}))

	pruned, err := inbox.PruneOlderThan(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	pending, err := inbox.PendingFor("C1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "fresh", pending[0].ID)
}

func TestPendingForUnknownRecipient(t *testing.T) {
	inbox := openTestInbox(t)
	pending, err := inbox.PendingFor("nobody")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
