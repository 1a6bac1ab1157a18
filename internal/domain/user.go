package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// RoleTag names a role. ADMIN, SUPER_ADMIN and TRAVELLER are global attributes
// of a user; TRIP_OWNER, TRIP_MANAGER and TRIP_MEMBER are scoped to exactly one
// trip node and are never inherited by its ancestors or descendants.
type RoleTag string

const (
	RoleAdmin      RoleTag = "ADMIN"
	RoleSuperAdmin RoleTag = "SUPER_ADMIN"
	RoleTraveller  RoleTag = "TRAVELLER"

	RoleTripOwner   RoleTag = "TRIP_OWNER"
	RoleTripManager RoleTag = "TRIP_MANAGER"
	RoleTripMember  RoleTag = "TRIP_MEMBER"
)

// NodeScoped reports whether r can be assigned on a trip node.
func (r RoleTag) NodeScoped() bool {
	switch r {
	case RoleTripOwner, RoleTripManager, RoleTripMember:
		return true
	}
	return false
}

// ParseNodeRole parses a node-scoped role tag. Surrounding whitespace and case
// are ignored. Global tags and unknown values return ErrMalformedInput.
func ParseNodeRole(s string) (RoleTag, error) {
	tag := RoleTag(strings.ToUpper(strings.TrimSpace(s)))
	if !tag.NodeScoped() {
		return "", fmt.Errorf("%w: unknown trip role %q", ErrMalformedInput, s)
	}
	return tag, nil
}

// User is an authenticated traveller together with their global roles.
type User struct {
	ID    uuid.UUID `json:"userId"`
	Name  string    `json:"name"`
	Roles []RoleTag `json:"roles,omitempty"`
}

// HasRole reports whether the user carries the given global role.
func (u User) HasRole(tag RoleTag) bool {
	return slices.Contains(u.Roles, tag)
}

// IsAdmin reports whether the user holds ADMIN or SUPER_ADMIN.
func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin) || u.HasRole(RoleSuperAdmin)
}

// UserSummary is the public projection of a user carried in frames.
type UserSummary struct {
	ID   uuid.UUID `json:"userId"`
	Name string    `json:"name"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name}
}

// RoleAssignment grants Role to UserID on a single trip node.
type RoleAssignment struct {
	UserID uuid.UUID `json:"userId"`
	Role   RoleTag   `json:"role"`
}

// ValidateAssignments checks that every assignment uses a node-scoped tag and
// that no user appears twice.
func ValidateAssignments(roles []RoleAssignment) error {
	seen := make(map[uuid.UUID]struct{}, len(roles))
	for _, ra := range roles {
		if ra.UserID == uuid.Nil {
			return fmt.Errorf("%w: role assignment without user", ErrMalformedInput)
		}
		if !ra.Role.NodeScoped() {
			return fmt.Errorf("%w: %q cannot be assigned on a trip", ErrMalformedInput, ra.Role)
		}
		if _, dup := seen[ra.UserID]; dup {
			return fmt.Errorf("%w: user %s assigned more than once", ErrMalformedInput, ra.UserID)
		}
		seen[ra.UserID] = struct{}{}
	}
	return nil
}
