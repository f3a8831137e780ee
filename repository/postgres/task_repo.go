package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/policy"
	"github.com/taskstream/backend/repository"
)

const taskColumns = `id, title, description, status, priority, assignee_id, created_by_id,
	due_date, tags, subtasks, comments, time_spent_seconds, is_archived, completed_at,
	created_at, updated_at`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := fmt.Sprintf(`
	SELECT %s
	FROM tasks
	WHERE %s
	  AND ($4 = '' OR status = $4)
	  AND ($5 = '' OR priority = $5)
	  AND ($6 = '' OR $6 = ANY(tags))
	  AND ($7 OR NOT is_archived)
	ORDER BY created_at DESC
	LIMIT $8 OFFSET $9
	`, taskColumns, scopeClause)

	args := append(scopeArgs(filter.Scope),
		string(filter.Status),
		string(filter.Priority),
		filter.Tag,
		filter.IncludeArchived,
		clampLimit(filter.Limit),
		filter.Offset,
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (id, title, description, status, priority, assignee_id, created_by_id,
		due_date, tags, subtasks, comments, time_spent_seconds, is_archived, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		task.AssigneeID,
		task.CreatedByID,
		task.DueDate,
		task.Tags,
		marshalSubtasks(task.Subtasks),
		marshalComments(task.Comments),
		task.TimeSpentSeconds,
		task.Archived,
		task.CompletedAt,
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $2,
		description = $3,
		status = $4,
		priority = $5,
		assignee_id = $6,
		due_date = $7,
		tags = $8,
		subtasks = $9,
		comments = $10,
		time_spent_seconds = $11,
		is_archived = $12,
		completed_at = $13,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		task.AssigneeID,
		task.DueDate,
		task.Tags,
		marshalSubtasks(task.Subtasks),
		marshalComments(task.Comments),
		task.TimeSpentSeconds,
		task.Archived,
		task.CompletedAt,
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) UpdateMany(ctx context.Context, ids []string, scope policy.Scope, patch repository.TaskPatch) (int64, error) {
	if len(ids) == 0 || patch.IsZero() {
		return 0, nil
	}

	// completed_at follows the same rule ApplyStatus enforces in memory: set
	// on entering done, cleared on leaving it, untouched when status is not
	// part of the patch.
	query := fmt.Sprintf(`
	UPDATE tasks
	SET status = COALESCE($5::text, status),
		priority = COALESCE($6::text, priority),
		is_archived = COALESCE($7::boolean, is_archived),
		completed_at = CASE
			WHEN $5::text IS NULL THEN completed_at
			WHEN $5::text = 'done' THEN COALESCE(completed_at, NOW())
			ELSE NULL
		END,
		updated_at = NOW()
	WHERE id = ANY($4) AND %s
	`, scopeClause)

	var status, priority *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	if patch.Priority != nil {
		p := string(*patch.Priority)
		priority = &p
	}

	args := append(scopeArgs(scope), ids, status, priority, patch.Archived)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *taskRepository) DeleteMany(ctx context.Context, ids []string, scope policy.Scope) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM tasks WHERE id = ANY($4) AND %s`, scopeClause)
	args := append(scopeArgs(scope), ids)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *taskRepository) Stats(ctx context.Context, scope policy.Scope) (*domain.TaskStats, error) {
	query := fmt.Sprintf(`
	SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'todo'),
		COUNT(*) FILTER (WHERE status = 'inprogress'),
		COUNT(*) FILTER (WHERE status = 'done'),
		COUNT(*) FILTER (WHERE priority = 'low'),
		COUNT(*) FILTER (WHERE priority = 'medium'),
		COUNT(*) FILTER (WHERE priority = 'high'),
		COUNT(*) FILTER (WHERE due_date IS NOT NULL AND due_date < NOW() AND status != 'done'),
		COALESCE(SUM(time_spent_seconds), 0)
	FROM tasks
	WHERE NOT is_archived AND %s
	`, scopeClause)

	stats := &domain.TaskStats{
		ByStatus:   make(map[domain.Status]int64),
		ByPriority: make(map[domain.Priority]int64),
	}

	var todo, inprogress, done, low, medium, high int64
	if err := r.pool.QueryRow(ctx, query, scopeArgs(scope)...).Scan(
		&stats.Total,
		&todo, &inprogress, &done,
		&low, &medium, &high,
		&stats.Overdue,
		&stats.TimeSpentSeconds,
	); err != nil {
		return nil, err
	}

	stats.ByStatus[domain.StatusTodo] = todo
	stats.ByStatus[domain.StatusInProgress] = inprogress
	stats.ByStatus[domain.StatusDone] = done
	stats.ByPriority[domain.PriorityLow] = low
	stats.ByPriority[domain.PriorityMedium] = medium
	stats.ByPriority[domain.PriorityHigh] = high

	return stats, nil
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		due       *time.Time
		completed *time.Time
		subtasks  []byte
		comments  []byte
		status    string
		priority  string
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&priority,
		&task.AssigneeID,
		&task.CreatedByID,
		&due,
		&task.Tags,
		&subtasks,
		&comments,
		&task.TimeSpentSeconds,
		&task.Archived,
		&completed,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Status = domain.Status(status)
	task.Priority = domain.Priority(priority)
	task.DueDate = due
	task.CompletedAt = completed
	task.Subtasks = unmarshalSubtasks(subtasks)
	task.Comments = unmarshalComments(comments)

	return &task, nil
}
