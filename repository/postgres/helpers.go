package postgres

import (
	"encoding/json"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/policy"
)

// scopeArgs flattens a policy scope into the three placeholders every task
// query starts with: ($1 = all, $2 = member id, $3 = assignee id). A zero
// scope matches no rows, which is exactly what a denied actor should see.
const scopeClause = `($1 OR ($2 != '' AND (created_by_id = $2 OR assignee_id = $2)) OR ($3 != '' AND assignee_id = $3))`

func scopeArgs(scope policy.Scope) []interface{} {
	return []interface{}{scope.All, scope.MemberID, scope.AssigneeID}
}

func marshalSubtasks(subtasks []domain.Subtask) []byte {
	if subtasks == nil {
		subtasks = []domain.Subtask{}
	}
	b, err := json.Marshal(subtasks)
	if err != nil {
		return []byte("[]")
	}
	return b
}

func marshalComments(comments []domain.Comment) []byte {
	if comments == nil {
		comments = []domain.Comment{}
	}
	b, err := json.Marshal(comments)
	if err != nil {
		return []byte("[]")
	}
	return b
}

func unmarshalSubtasks(data []byte) []domain.Subtask {
	subtasks := []domain.Subtask{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &subtasks)
	}
	return subtasks
}

func unmarshalComments(data []byte) []domain.Comment {
	comments := []domain.Comment{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &comments)
	}
	return comments
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
