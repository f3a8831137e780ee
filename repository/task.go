package repository

import (
	"context"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/policy"
)

// TaskFilter narrows a task listing. Scope carries the actor's visibility
// predicate so the repository can never return more than the policy allows.
type TaskFilter struct {
	Scope           policy.Scope
	Status          domain.Status
	Priority        domain.Priority
	Tag             string
	IncludeArchived bool
	Limit           int
	Offset          int
}

// TaskPatch is the field set a bulk update may touch.
type TaskPatch struct {
	Status   *domain.Status
	Priority *domain.Priority
	Archived *bool
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Status == nil && p.Priority == nil && p.Archived == nil
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
	// UpdateMany patches the intersection of ids and scope and returns the
	// number of rows actually modified.
	UpdateMany(ctx context.Context, ids []string, scope policy.Scope, patch TaskPatch) (int64, error)
	// DeleteMany removes the intersection of ids and scope and returns the
	// number of rows actually removed.
	DeleteMany(ctx context.Context, ids []string, scope policy.Scope) (int64, error)
	// Stats aggregates non-archived tasks inside the scope.
	Stats(ctx context.Context, scope policy.Scope) (*domain.TaskStats, error)
}
