// Package task is the mutation pipeline: every task write enters here, gets
// gated by the visibility policy, routed through the status state machine
// when needed, persisted once, and reported to the fanout router.
package task

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/policy"
	"github.com/taskstream/backend/repository"
	"github.com/taskstream/backend/usecase"
)

type UseCase struct {
	tasks  repository.TaskRepository
	users  repository.UserRepository
	events usecase.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func New(tasks repository.TaskRepository, users repository.UserRepository, events usecase.EventPublisher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		users:  users,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// CreateInput carries a validated create payload.
type CreateInput struct {
	Title        string
	Description  string
	Priority     domain.Priority
	AssigneeID   string
	DueDate      *time.Time
	Tags         []string
	SubtaskTexts []string
}

// UpdateInput is a field-level patch; nil pointers leave the field untouched.
type UpdateInput struct {
	Title            *string
	Description      *string
	Status           *domain.Status
	Priority         *domain.Priority
	AssigneeID       *string
	DueDate          *time.Time
	Tags             *[]string
	TimeSpentSeconds *int64
	Archived         *bool
}

// BulkPatch is the patch shape shared by bulk updates.
type BulkPatch struct {
	Status   *domain.Status
	Priority *domain.Priority
	Archived *bool
}

// ListFilter narrows a scoped listing.
type ListFilter struct {
	Status          domain.Status
	Priority        domain.Priority
	Tag             string
	IncludeArchived bool
	Limit           int
	Offset          int
}

func (uc *UseCase) Create(ctx context.Context, actor domain.Actor, input CreateInput) (*domain.Task, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}
	if !policy.For(actor).CanCreate(actor) {
		return nil, domain.ErrForbidden
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "title is required")
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(input.Priority) {
		return nil, domain.NewError(domain.ErrCodeValidation, "unknown priority")
	}

	assignee, err := uc.resolveAssignee(ctx, input.AssigneeID)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.StatusTodo,
		Priority:    input.Priority,
		AssigneeID:  assignee.ID,
		CreatedByID: actor.ID,
		DueDate:     input.DueDate,
		Tags:        input.Tags,
		Subtasks:    make([]domain.Subtask, 0, len(input.SubtaskTexts)),
		Comments:    []domain.Comment{},
	}
	for _, text := range input.SubtaskTexts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		task.Subtasks = append(task.Subtasks, domain.Subtask{ID: uuid.NewString(), Text: text})
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	uc.publishTaskEvent(domain.EventTaskCreated, actor, created)
	uc.notifyAssignee(actor, created, "you were assigned a task: "+created.Title)
	return created, nil
}

func (uc *UseCase) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Task, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.For(actor).CanMutate(actor, task, policy.OpRead) {
		return nil, domain.ErrForbidden
	}
	return task, nil
}

func (uc *UseCase) List(ctx context.Context, actor domain.Actor, filter ListFilter) ([]domain.Task, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}
	return uc.tasks.List(ctx, repository.TaskFilter{
		Scope:           policy.For(actor).Scope(actor),
		Status:          filter.Status,
		Priority:        filter.Priority,
		Tag:             filter.Tag,
		IncludeArchived: filter.IncludeArchived,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	})
}

func (uc *UseCase) Update(ctx context.Context, actor domain.Actor, id string, input UpdateInput) (*domain.Task, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}

	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.For(actor).CanMutate(actor, task, policy.OpUpdate) {
		return nil, domain.ErrForbidden
	}

	previousAssignee := task.AssigneeID

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domain.NewError(domain.ErrCodeValidation, "title cannot be empty")
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Priority != nil {
		if !domain.ValidPriority(*input.Priority) {
			return nil, domain.NewError(domain.ErrCodeValidation, "unknown priority")
		}
		task.Priority = *input.Priority
	}
	if input.AssigneeID != nil {
		assignee, err := uc.resolveAssignee(ctx, *input.AssigneeID)
		if err != nil {
			return nil, err
		}
		task.AssigneeID = assignee.ID
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.Tags != nil {
		task.Tags = *input.Tags
	}
	if input.TimeSpentSeconds != nil {
		if *input.TimeSpentSeconds < 0 {
			return nil, domain.NewError(domain.ErrCodeValidation, "time spent cannot be negative")
		}
		task.TimeSpentSeconds = *input.TimeSpentSeconds
	}
	if input.Archived != nil {
		task.Archived = *input.Archived
	}
	if input.Status != nil {
		if !domain.ValidStatus(*input.Status) {
			return nil, domain.NewError(domain.ErrCodeValidation, "unknown status")
		}
		*task = domain.ApplyStatus(*task, *input.Status, uc.now())
	}

	if err := uc.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	uc.publishTaskEvent(domain.EventTaskUpdated, actor, task)
	if task.AssigneeID != previousAssignee {
		uc.notifyAssignee(actor, task, "you were assigned a task: "+task.Title)
	}
	return task, nil
}

func (uc *UseCase) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.Active {
		return domain.ErrUnauthorized
	}

	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !policy.For(actor).CanMutate(actor, task, policy.OpDelete) {
		return domain.ErrForbidden
	}

	if err := uc.tasks.Delete(ctx, id); err != nil {
		return err
	}

	uc.publishTaskEvent(domain.EventTaskDeleted, actor, task)
	return nil
}

// BulkUpdate narrows the requested ids to the actor's scope before patching
// and reports the count of rows actually modified, never the submitted
// count. Customers are rejected outright rather than silently no-oped.
func (uc *UseCase) BulkUpdate(ctx context.Context, actor domain.Actor, ids []string, patch BulkPatch) (int64, error) {
	if !actor.Active {
		return 0, domain.ErrUnauthorized
	}
	vis := policy.For(actor)
	if !vis.CanBulk(actor) {
		return 0, domain.ErrForbidden
	}
	if len(ids) == 0 {
		return 0, domain.NewError(domain.ErrCodeValidation, "no task ids given")
	}
	if patch.Status != nil && !domain.ValidStatus(*patch.Status) {
		return 0, domain.NewError(domain.ErrCodeValidation, "unknown status")
	}
	if patch.Priority != nil && !domain.ValidPriority(*patch.Priority) {
		return 0, domain.NewError(domain.ErrCodeValidation, "unknown priority")
	}

	count, err := uc.tasks.UpdateMany(ctx, ids, vis.Scope(actor), repository.TaskPatch{
		Status:   patch.Status,
		Priority: patch.Priority,
		Archived: patch.Archived,
	})
	if err != nil {
		return 0, err
	}

	uc.publish(domain.Event{
		Kind:    domain.EventBulkUpdated,
		ActorID: actor.ID,
		Role:    actor.Role,
		Payload: map[string]interface{}{"modified": count, "task_ids": ids},
	})
	return count, nil
}

func (uc *UseCase) BulkDelete(ctx context.Context, actor domain.Actor, ids []string) (int64, error) {
	if !actor.Active {
		return 0, domain.ErrUnauthorized
	}
	vis := policy.For(actor)
	if !vis.CanBulkDelete(actor) {
		return 0, domain.ErrForbidden
	}
	if len(ids) == 0 {
		return 0, domain.NewError(domain.ErrCodeValidation, "no task ids given")
	}

	count, err := uc.tasks.DeleteMany(ctx, ids, vis.Scope(actor))
	if err != nil {
		return 0, err
	}

	uc.publish(domain.Event{
		Kind:    domain.EventBulkDeleted,
		ActorID: actor.ID,
		Role:    actor.Role,
		Payload: map[string]interface{}{"deleted": count, "task_ids": ids},
	})
	return count, nil
}

// AddComment is append-only and open to any actor with read access to the
// task, including customers commenting on tasks assigned to them.
func (uc *UseCase) AddComment(ctx context.Context, actor domain.Actor, taskID, text string) (*domain.Task, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "comment text is required")
	}

	// reload the latest parent to shrink the lost-update window
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !policy.For(actor).CanMutate(actor, task, policy.OpAddComment) {
		return nil, domain.ErrForbidden
	}

	comment := domain.Comment{
		ID:         uuid.NewString(),
		Text:       text,
		AuthorID:   actor.ID,
		AuthorRole: actor.Role,
		CreatedAt:  uc.now(),
	}
	task.Comments = append(task.Comments, comment)

	if err := uc.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	uc.publish(domain.Event{
		Kind:    domain.EventCommentAdded,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Role:    actor.Role,
		Payload: map[string]interface{}{"task_id": task.ID, "comment": comment},
	})
	if task.AssigneeID != "" && task.AssigneeID != actor.ID {
		uc.notifyAssignee(actor, task, "new comment on: "+task.Title)
	}
	return task, nil
}

// SubtaskInput patches a single subtask.
type SubtaskInput struct {
	Text      *string
	Completed *bool
}

func (uc *UseCase) UpdateSubtask(ctx context.Context, actor domain.Actor, taskID, subtaskID string, input SubtaskInput) (*domain.Task, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}

	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !policy.For(actor).CanMutate(actor, task, policy.OpUpdateSubtask) {
		return nil, domain.ErrForbidden
	}

	subtask := task.Subtask(subtaskID)
	if subtask == nil {
		return nil, domain.ErrSubtaskNotFound
	}
	if input.Text != nil {
		text := strings.TrimSpace(*input.Text)
		if text == "" {
			return nil, domain.NewError(domain.ErrCodeValidation, "subtask text cannot be empty")
		}
		subtask.Text = text
	}
	if input.Completed != nil {
		subtask.Completed = *input.Completed
	}

	if err := uc.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	uc.publish(domain.Event{
		Kind:    domain.EventSubtaskUpdated,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Role:    actor.Role,
		Payload: map[string]interface{}{
			"task_id":  task.ID,
			"subtask":  *subtask,
			"progress": task.Progress(),
		},
	})
	return task, nil
}

func (uc *UseCase) Stats(ctx context.Context, actor domain.Actor) (*domain.TaskStats, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}
	return uc.tasks.Stats(ctx, policy.For(actor).Scope(actor))
}

func (uc *UseCase) resolveAssignee(ctx context.Context, assigneeID string) (*domain.User, error) {
	if strings.TrimSpace(assigneeID) == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "assignee is required")
	}
	assignee, err := uc.users.GetByID(ctx, assigneeID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrInvalidAssignee
		}
		return nil, err
	}
	return assignee, nil
}

func (uc *UseCase) publishTaskEvent(kind domain.EventKind, actor domain.Actor, task *domain.Task) {
	uc.publish(domain.Event{
		Kind:    kind,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Role:    actor.Role,
		Payload: task,
	})
}

// publish hands the event descriptor to the fanout router. Delivery is
// best-effort and never gates the mutation result.
func (uc *UseCase) publish(event domain.Event) {
	if uc.events == nil {
		return
	}
	event.At = uc.now()
	uc.events.Publish(event)
}

func (uc *UseCase) notifyAssignee(actor domain.Actor, task *domain.Task, message string) {
	if uc.events == nil || task.AssigneeID == "" || task.AssigneeID == actor.ID {
		return
	}
	uc.events.Notify(domain.Notification{
		ID:        uuid.NewString(),
		UserID:    task.AssigneeID,
		Kind:      domain.EventNotification,
		TaskID:    task.ID,
		Message:   message,
		CreatedAt: uc.now(),
	})
}
