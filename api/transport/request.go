package transport

type TaskCreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	AssigneeID  string   `json:"assignee_id"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
	Subtasks    []string `json:"subtasks"`
}

// TaskUpdateRequest is a field-level patch; absent fields stay untouched.
type TaskUpdateRequest struct {
	Title            *string   `json:"title"`
	Description      *string   `json:"description"`
	Status           *string   `json:"status"`
	Priority         *string   `json:"priority"`
	AssigneeID       *string   `json:"assignee_id"`
	DueDate          *string   `json:"due_date"`
	Tags             *[]string `json:"tags"`
	TimeSpentSeconds *int64    `json:"time_spent_seconds"`
	Archived         *bool     `json:"is_archived"`
}

type BulkUpdateRequest struct {
	IDs      []string `json:"ids"`
	Status   *string  `json:"status"`
	Priority *string  `json:"priority"`
	Archived *bool    `json:"is_archived"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type SubtaskUpdateRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

type UserUpsertRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active *bool  `json:"is_active"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	TTL    int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}
