package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStatusSetsCompletedAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task := Task{Status: StatusTodo}

	task = ApplyStatus(task, StatusDone, now)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, now, *task.CompletedAt)
	assert.Equal(t, StatusDone, task.Status)
}

func TestApplyStatusClearsCompletedAt(t *testing.T) {
	now := time.Now()
	task := ApplyStatus(Task{Status: StatusTodo}, StatusDone, now)
	require.NotNil(t, task.CompletedAt)

	task = ApplyStatus(task, StatusInProgress, now.Add(time.Minute))
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, StatusInProgress, task.Status)
}

func TestApplyStatusIdempotent(t *testing.T) {
	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task := ApplyStatus(Task{Status: StatusTodo}, StatusDone, first)

	// Re-applying done later must not move the completion timestamp.
	task = ApplyStatus(task, StatusDone, first.Add(time.Hour))
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, first, *task.CompletedAt)

	task = ApplyStatus(task, StatusTodo, first.Add(2*time.Hour))
	task = ApplyStatus(task, StatusTodo, first.Add(3*time.Hour))
	assert.Nil(t, task.CompletedAt)
}

func TestApplyStatusLeavesOtherFieldsUntouched(t *testing.T) {
	due := time.Now().Add(48 * time.Hour)
	task := Task{
		ID:         "t1",
		Title:      "Fix bug",
		Status:     StatusTodo,
		Priority:   PriorityHigh,
		AssigneeID: "C1",
		DueDate:    &due,
		Tags:       []string{"backend"},
	}

	got := ApplyStatus(task, StatusDone, time.Now())
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, task.Priority, got.Priority)
	assert.Equal(t, task.AssigneeID, got.AssigneeID)
	assert.Equal(t, task.DueDate, got.DueDate)
	assert.Equal(t, task.Tags, got.Tags)
}

func TestProgress(t *testing.T) {
	task := &Task{Subtasks: []Subtask{
		{ID: "s1", Completed: true},
		{ID: "s2", Completed: false},
		{ID: "s3", Completed: true},
	}}

	p := task.Progress()
	assert.Equal(t, 2, p.Completed)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 67, p.Percentage)
}

func TestProgressEmpty(t *testing.T) {
	task := &Task{}
	p := task.Progress()
	assert.Equal(t, 0, p.Total)
	assert.Equal(t, 0, p.Percentage)
}

func TestSubtaskLookup(t *testing.T) {
	task := &Task{Subtasks: []Subtask{{ID: "s1", Text: "write tests"}}}
	require.NotNil(t, task.Subtask("s1"))
	assert.Nil(t, task.Subtask("missing"))
}
