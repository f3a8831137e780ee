package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/policy"
	"github.com/taskstream/backend/repository"
)

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]domain.Task)}
}

func (f *fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	copy := task
	return &copy, nil
}

func (f *fakeTaskRepo) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Task
	for _, task := range f.tasks {
		t := task
		if !filter.Scope.Matches(&t) {
			continue
		}
		if !filter.IncludeArchived && t.Archived {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTaskRepo) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = *task
	return task, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now()
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskRepo) UpdateMany(_ context.Context, ids []string, scope policy.Scope, patch repository.TaskPatch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, id := range ids {
		task, ok := f.tasks[id]
		if !ok || !scope.Matches(&task) {
			continue
		}
		if patch.Status != nil {
			task = domain.ApplyStatus(task, *patch.Status, time.Now())
		}
		if patch.Priority != nil {
			task.Priority = *patch.Priority
		}
		if patch.Archived != nil {
			task.Archived = *patch.Archived
		}
		f.tasks[id] = task
		count++
	}
	return count, nil
}

func (f *fakeTaskRepo) DeleteMany(_ context.Context, ids []string, scope policy.Scope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, id := range ids {
		task, ok := f.tasks[id]
		if !ok || !scope.Matches(&task) {
			continue
		}
		delete(f.tasks, id)
		count++
	}
	return count, nil
}

func (f *fakeTaskRepo) Stats(_ context.Context, scope policy.Scope) (*domain.TaskStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &domain.TaskStats{
		ByStatus:   make(map[domain.Status]int64),
		ByPriority: make(map[domain.Priority]int64),
	}
	for _, task := range f.tasks {
		t := task
		if t.Archived || !scope.Matches(&t) {
			continue
		}
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		stats.TimeSpentSeconds += t.TimeSpentSeconds
	}
	return stats, nil
}

type fakeUserRepo struct {
	users map[string]domain.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copy := user
	return &copy, nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *domain.User) error {
	f.users[user.ID] = *user
	return nil
}

type recordingPublisher struct {
	mu            sync.Mutex
	events        []domain.Event
	notifications []domain.Notification
}

func (r *recordingPublisher) Publish(event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingPublisher) lastEvent() *domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return &r.events[len(r.events)-1]
}

var (
	admin    = domain.Actor{ID: "A1", Role: domain.RoleAdmin, Active: true}
	vendor   = domain.Actor{ID: "V1", Role: domain.RoleVendor, Active: true}
	customer = domain.Actor{ID: "C1", Role: domain.RoleCustomer, Active: true}
)

func setup() (*UseCase, *fakeTaskRepo, *recordingPublisher) {
	tasks := newFakeTaskRepo()
	users := &fakeUserRepo{users: map[string]domain.User{
		"A1": {ID: "A1", Role: domain.RoleAdmin, Active: true},
		"V1": {ID: "V1", Role: domain.RoleVendor, Active: true},
		"C1": {ID: "C1", Role: domain.RoleCustomer, Active: true},
	}}
	events := &recordingPublisher{}
	return New(tasks, users, events, nil), tasks, events
}

func TestCreateTaskLifecycle(t *testing.T) {
	uc, _, events := setup()
	ctx := context.Background()
	due := time.Now().Add(72 * time.Hour)

	created, err := uc.Create(ctx, vendor, CreateInput{
		Title:      "Fix bug",
		AssigneeID: "C1",
		DueDate:    &due,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTodo, created.Status)
	assert.Equal(t, domain.PriorityMedium, created.Priority)
	assert.Nil(t, created.CompletedAt)
	assert.Equal(t, "V1", created.CreatedByID)

	evt := events.lastEvent()
	require.NotNil(t, evt)
	assert.Equal(t, domain.EventTaskCreated, evt.Kind)
	require.Len(t, events.notifications, 1)
	assert.Equal(t, "C1", events.notifications[0].UserID)

	done := domain.StatusDone
	updated, err := uc.Update(ctx, vendor, created.ID, UpdateInput{Status: &done})
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)

	inprogress := domain.StatusInProgress
	updated, err = uc.Update(ctx, vendor, created.ID, UpdateInput{Status: &inprogress})
	require.NoError(t, err)
	assert.Nil(t, updated.CompletedAt)
}

func TestCreateRejectsUnknownAssignee(t *testing.T) {
	uc, _, _ := setup()
	_, err := uc.Create(context.Background(), vendor, CreateInput{Title: "x", AssigneeID: "ghost"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidReference))
}

func TestCreateDeniedForCustomer(t *testing.T) {
	uc, _, _ := setup()
	_, err := uc.Create(context.Background(), customer, CreateInput{Title: "x", AssigneeID: "C1"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
}

func TestInactiveActorUnauthorized(t *testing.T) {
	uc, _, _ := setup()
	inactive := domain.Actor{ID: "A1", Role: domain.RoleAdmin, Active: false}

	_, err := uc.List(context.Background(), inactive, ListFilter{})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))

	_, err = uc.Create(context.Background(), inactive, CreateInput{Title: "x", AssigneeID: "C1"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))
}

func TestCustomerMayCommentButNotUpdate(t *testing.T) {
	uc, _, events := setup()
	ctx := context.Background()

	created, err := uc.Create(ctx, vendor, CreateInput{Title: "Fix bug", AssigneeID: "C1"})
	require.NoError(t, err)

	withComment, err := uc.AddComment(ctx, customer, created.ID, "any progress?")
	require.NoError(t, err)
	require.Len(t, withComment.Comments, 1)
	assert.Equal(t, "C1", withComment.Comments[0].AuthorID)
	assert.Equal(t, domain.RoleCustomer, withComment.Comments[0].AuthorRole)
	assert.Equal(t, domain.EventCommentAdded, events.lastEvent().Kind)

	newAssignee := "V1"
	_, err = uc.Update(ctx, customer, created.ID, UpdateInput{AssigneeID: &newAssignee})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	high := domain.PriorityHigh
	_, err = uc.Update(ctx, customer, created.ID, UpdateInput{Priority: &high})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
}

func TestCustomerSubtaskCompletion(t *testing.T) {
	uc, _, events := setup()
	ctx := context.Background()

	created, err := uc.Create(ctx, vendor, CreateInput{
		Title:        "Fix bug",
		AssigneeID:   "C1",
		SubtaskTexts: []string{"reproduce", "patch"},
	})
	require.NoError(t, err)
	require.Len(t, created.Subtasks, 2)

	completed := true
	updated, err := uc.UpdateSubtask(ctx, customer, created.ID, created.Subtasks[0].ID, SubtaskInput{Completed: &completed})
	require.NoError(t, err)
	assert.True(t, updated.Subtasks[0].Completed)
	assert.Equal(t, 50, updated.Progress().Percentage)
	assert.Equal(t, domain.EventSubtaskUpdated, events.lastEvent().Kind)

	_, err = uc.UpdateSubtask(ctx, customer, created.ID, "missing", SubtaskInput{Completed: &completed})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestVendorCannotTouchForeignTask(t *testing.T) {
	uc, _, _ := setup()
	ctx := context.Background()

	created, err := uc.Create(ctx, admin, CreateInput{Title: "Internal", AssigneeID: "C1"})
	require.NoError(t, err)

	_, err = uc.Get(ctx, vendor, created.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	err = uc.Delete(ctx, vendor, created.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
}

func TestBulkUpdateNarrowsToOwnedSubset(t *testing.T) {
	uc, _, events := setup()
	ctx := context.Background()

	owned, err := uc.Create(ctx, vendor, CreateInput{Title: "mine", AssigneeID: "C1"})
	require.NoError(t, err)
	foreign, err := uc.Create(ctx, admin, CreateInput{Title: "not mine", AssigneeID: "C1"})
	require.NoError(t, err)

	done := domain.StatusDone
	count, err := uc.BulkUpdate(ctx, vendor, []string{owned.ID, foreign.ID}, BulkPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "must report the true modified count")

	got, err := uc.Get(ctx, admin, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTodo, got.Status, "foreign task untouched")

	assert.Equal(t, domain.EventBulkUpdated, events.lastEvent().Kind)
	assert.Equal(t, domain.RoleVendor, events.lastEvent().Role)
}

func TestBulkOperationsDeniedForCustomer(t *testing.T) {
	uc, _, _ := setup()
	done := domain.StatusDone

	_, err := uc.BulkUpdate(context.Background(), customer, []string{"t1"}, BulkPatch{Status: &done})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	_, err = uc.BulkDelete(context.Background(), customer, []string{"t1"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
}

func TestBulkDeleteAdminOnly(t *testing.T) {
	uc, _, _ := setup()
	ctx := context.Background()

	owned, err := uc.Create(ctx, vendor, CreateInput{Title: "mine", AssigneeID: "C1"})
	require.NoError(t, err)

	_, err = uc.BulkDelete(ctx, vendor, []string{owned.ID})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	count, err := uc.BulkDelete(ctx, admin, []string{owned.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCustomerListSeesOnlyAssignedTasks(t *testing.T) {
	uc, _, _ := setup()
	ctx := context.Background()

	_, err := uc.Create(ctx, vendor, CreateInput{Title: "for C1", AssigneeID: "C1"})
	require.NoError(t, err)
	_, err = uc.Create(ctx, vendor, CreateInput{Title: "for V1", AssigneeID: "V1"})
	require.NoError(t, err)
	_, err = uc.Create(ctx, admin, CreateInput{Title: "also C1", AssigneeID: "C1"})
	require.NoError(t, err)

	tasks, err := uc.List(ctx, customer, ListFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, "C1", task.AssigneeID)
	}
}

func TestArchivedTasksExcludedFromListAndStats(t *testing.T) {
	uc, _, _ := setup()
	ctx := context.Background()

	keep, err := uc.Create(ctx, admin, CreateInput{Title: "keep", AssigneeID: "C1"})
	require.NoError(t, err)
	gone, err := uc.Create(ctx, admin, CreateInput{Title: "archive me", AssigneeID: "C1"})
	require.NoError(t, err)

	archived := true
	_, err = uc.Update(ctx, admin, gone.ID, UpdateInput{Archived: &archived})
	require.NoError(t, err)

	tasks, err := uc.List(ctx, admin, ListFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, keep.ID, tasks[0].ID)

	stats, err := uc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestGetUnknownTaskNotFound(t *testing.T) {
	uc, _, _ := setup()
	_, err := uc.Get(context.Background(), admin, "missing")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}
