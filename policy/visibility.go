// Package policy decides which tasks an actor may see or mutate. Each role
// carries its own Visibility implementation so the rule sets stay
// independently testable; callers dispatch through For and never branch on
// the role themselves.
package policy

import "github.com/taskstream/backend/domain"

// Operation names a gated mutation kind.
type Operation string

const (
	OpRead          Operation = "read"
	OpUpdate        Operation = "update"
	OpAddComment    Operation = "addComment"
	OpUpdateSubtask Operation = "updateSubtask"
	OpDelete        Operation = "delete"
)

// Scope is the listing predicate for an actor. It is both evaluated in-memory
// (Matches) and translated to a repository query filter, so list and detail
// endpoints can never disagree about visibility.
type Scope struct {
	// All grants unrestricted visibility (admin).
	All bool
	// MemberID matches tasks created by or assigned to the actor (vendor).
	MemberID string
	// AssigneeID matches tasks assigned to the actor (customer).
	AssigneeID string
}

// Matches reports whether the task falls inside the scope.
func (s Scope) Matches(t *domain.Task) bool {
	if t == nil {
		return false
	}
	switch {
	case s.All:
		return true
	case s.MemberID != "":
		return t.CreatedByID == s.MemberID || t.AssigneeID == s.MemberID
	case s.AssigneeID != "":
		return t.AssigneeID == s.AssigneeID
	}
	return false
}

// Visibility is the capability set of a single role.
type Visibility interface {
	// Scope returns the listing predicate for the actor.
	Scope(actor domain.Actor) Scope
	// CanMutate gates a single-task operation.
	CanMutate(actor domain.Actor, task *domain.Task, op Operation) bool
	// CanCreate gates task creation.
	CanCreate(actor domain.Actor) bool
	// CanBulk gates participation in bulk operations. The per-task scope
	// still narrows the target set afterwards.
	CanBulk(actor domain.Actor) bool
	// CanBulkDelete gates bulk deletion, which, like single delete, stays
	// admin-only.
	CanBulkDelete(actor domain.Actor) bool
}

// For returns the Visibility for the actor. Inactive actors receive a
// deny-all policy regardless of role.
func For(actor domain.Actor) Visibility {
	if !actor.Active {
		return denyAll{}
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return adminPolicy{}
	case domain.RoleVendor:
		return vendorPolicy{}
	case domain.RoleCustomer:
		return customerPolicy{}
	}
	return denyAll{}
}

// adminPolicy: unrestricted read/update/delete on all tasks.
type adminPolicy struct{}

func (adminPolicy) Scope(domain.Actor) Scope { return Scope{All: true} }

func (adminPolicy) CanMutate(_ domain.Actor, task *domain.Task, _ Operation) bool {
	return task != nil
}

func (adminPolicy) CanCreate(domain.Actor) bool     { return true }
func (adminPolicy) CanBulk(domain.Actor) bool       { return true }
func (adminPolicy) CanBulkDelete(domain.Actor) bool { return true }

// vendorPolicy: full access to tasks the vendor created or is assigned to,
// except delete, which stays admin-only.
type vendorPolicy struct{}

func (vendorPolicy) Scope(actor domain.Actor) Scope {
	return Scope{MemberID: actor.ID}
}

func (p vendorPolicy) CanMutate(actor domain.Actor, task *domain.Task, op Operation) bool {
	if op == OpDelete {
		return false
	}
	return p.Scope(actor).Matches(task)
}

func (vendorPolicy) CanCreate(domain.Actor) bool     { return true }
func (vendorPolicy) CanBulk(domain.Actor) bool       { return true }
func (vendorPolicy) CanBulkDelete(domain.Actor) bool { return false }

// customerPolicy: customers see tasks assigned to them and may only touch
// sub-entities (comments, subtask completion), never task fields.
type customerPolicy struct{}

func (customerPolicy) Scope(actor domain.Actor) Scope {
	return Scope{AssigneeID: actor.ID}
}

func (p customerPolicy) CanMutate(actor domain.Actor, task *domain.Task, op Operation) bool {
	switch op {
	case OpRead, OpAddComment, OpUpdateSubtask:
		return p.Scope(actor).Matches(task)
	}
	return false
}

func (customerPolicy) CanCreate(domain.Actor) bool     { return false }
func (customerPolicy) CanBulk(domain.Actor) bool       { return false }
func (customerPolicy) CanBulkDelete(domain.Actor) bool { return false }

// denyAll covers inactive actors and unknown roles.
type denyAll struct{}

func (denyAll) Scope(domain.Actor) Scope { return Scope{} }

func (denyAll) CanMutate(domain.Actor, *domain.Task, Operation) bool { return false }
func (denyAll) CanCreate(domain.Actor) bool                          { return false }
func (denyAll) CanBulk(domain.Actor) bool                            { return false }
func (denyAll) CanBulkDelete(domain.Actor) bool                      { return false }
