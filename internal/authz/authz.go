// Package authz decides whether a user may act on a single trip node.
//
// Trip roles are scoped to exactly one node. Owning a parent trip grants
// nothing on its sub-trips and owning a sub-trip grants nothing on the parent;
// callers must pass the node the command actually targets.
package authz

import (
	"fmt"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

// Action is an operation a command wants to perform on a trip node.
type Action int

const (
	// EditDetails covers the name and child structure of a node.
	EditDetails Action = iota
	// EditMembers covers the node's role assignments.
	EditMembers
	Delete
	Restore
)

func (a Action) String() string {
	switch a {
	case EditDetails:
		return "edit details"
	case EditMembers:
		return "edit members"
	case Delete:
		return "delete"
	case Restore:
		return "restore"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the outcome of Check.
type Decision int

const (
	Forbidden Decision = iota
	Allow
	// AllowIgnoringMembers lets an EditMembers call through while telling the
	// caller to drop any submitted role changes. Other fields of the same
	// command are still applied.
	AllowIgnoringMembers
)

func (d Decision) String() string {
	switch d {
	case Forbidden:
		return "forbidden"
	case Allow:
		return "allow"
	case AllowIgnoringMembers:
		return "allow (members ignored)"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Allowed reports whether the command may proceed at all.
func (d Decision) Allowed() bool {
	return d == Allow || d == AllowIgnoringMembers
}

// Check evaluates the role rules for user performing action on node:
//  1. a global ADMIN or SUPER_ADMIN may do anything;
//  2. the node's TRIP_OWNER may do anything on that node;
//  3. the node's TRIP_MANAGER may edit details, and may submit a member edit
//     that is then ignored;
//  4. everyone else is forbidden.
//
// A nil node is forbidden. Existence and deleted-state checks are the
// caller's job.
func Check(user domain.User, node *domain.TripNode, action Action) Decision {
	if user.IsAdmin() {
		return Allow
	}
	if node == nil {
		return Forbidden
	}
	role, ok := node.RoleOf(user.ID)
	if !ok {
		return Forbidden
	}
	switch role {
	case domain.RoleTripOwner:
		return Allow
	case domain.RoleTripManager:
		switch action {
		case EditDetails:
			return Allow
		case EditMembers:
			return AllowIgnoringMembers
		}
	}
	return Forbidden
}

// Require is Check for callers that only need an error: it returns nil when
// the action is allowed and a wrapped domain.ErrForbidden otherwise.
func Require(user domain.User, node *domain.TripNode, action Action) (Decision, error) {
	d := Check(user, node, action)
	if !d.Allowed() {
		return d, fmt.Errorf("%w: user %s may not %s this trip", domain.ErrForbidden, user.ID, action)
	}
	return d, nil
}
