package domain

import (
	"math"
	"time"
)

// Status is the task workflow state. Any status may transition to any other;
// only the done transitions carry side effects (see ApplyStatus).
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// ValidStatus reports whether the value is one of the known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority orders tasks for display and stats; it carries no scheduling
// semantics.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether the value is one of the known priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Subtask is owned exclusively by its parent task and only ever mutated
// through a task mutation.
type Subtask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Comment is append-only: once created it is never edited or removed.
type Comment struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	AuthorID   string    `json:"author_id"`
	AuthorRole Role      `json:"author_role"`
	CreatedAt  time.Time `json:"created_at"`
}

// Task is the shared work item mutated by all roles.
type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Status           Status     `json:"status"`
	Priority         Priority   `json:"priority"`
	AssigneeID       string     `json:"assignee_id"`
	CreatedByID      string     `json:"created_by_id"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Subtasks         []Subtask  `json:"subtasks"`
	Comments         []Comment  `json:"comments"`
	TimeSpentSeconds int64      `json:"time_spent_seconds"`
	Archived         bool       `json:"is_archived"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusDone
}

// ApplyStatus transitions the task to the target status and maintains the
// completion invariant: CompletedAt is set exactly when entering done and
// cleared when leaving it. Idempotent under repeated application of the same
// target status; all other fields pass through untouched.
func ApplyStatus(t Task, status Status, now time.Time) Task {
	t.Status = status
	switch {
	case status == StatusDone && t.CompletedAt == nil:
		completed := now
		t.CompletedAt = &completed
	case status != StatusDone && t.CompletedAt != nil:
		t.CompletedAt = nil
	}
	return t
}

// SubtaskProgress is the derived, read-only completion projection.
type SubtaskProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Progress counts completed subtasks. An empty subtask list yields zero
// percent rather than a division error.
func (t *Task) Progress() SubtaskProgress {
	p := SubtaskProgress{}
	if t == nil {
		return p
	}
	p.Total = len(t.Subtasks)
	for _, st := range t.Subtasks {
		if st.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}

// Subtask returns the subtask with the given id, or nil.
func (t *Task) Subtask(id string) *Subtask {
	if t == nil {
		return nil
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return &t.Subtasks[i]
		}
	}
	return nil
}

// TaskStats aggregates visible, non-archived tasks for an actor.
type TaskStats struct {
	Total            int64              `json:"total"`
	ByStatus         map[Status]int64   `json:"by_status"`
	ByPriority       map[Priority]int64 `json:"by_priority"`
	Overdue          int64              `json:"overdue"`
	TimeSpentSeconds int64              `json:"time_spent_seconds"`
}
