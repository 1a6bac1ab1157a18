// Package domain contains the core data types for the Flockr trip planner.
// It holds the trip-node tree and its derived-value algorithms, users and
// roles, chat entities, and the error taxonomy shared by every other
// internal package (authz, repo, service, handler).
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeKind discriminates the two trip node variants.
// The string values match the persisted `kind` column and the wire `nodeType`.
type NodeKind string

const (
	KindComposite NodeKind = "TripComposite"
	KindLeaf      NodeKind = "TripDestinationLeaf"
)

// Destination is the external place a leaf visits, identified by id and name.
type Destination struct {
	ID   uuid.UUID `json:"destinationId"`
	Name string    `json:"name"`
}

// dateLayout is the calendar date format used on the wire and in exports.
const dateLayout = "2006-01-02"

// Moment is a calendar date with an optional time of day, stored as minutes
// past midnight. A nil *Moment means the date is absent.
type Moment struct {
	Date time.Time
	Time *int
}

// NewMoment builds a Moment for date, truncated to the day, with an optional
// time of day in minutes.
func NewMoment(date time.Time, minutes *int) *Moment {
	y, m, d := date.Date()
	return &Moment{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Time: minutes}
}

// Before reports whether m falls strictly before o. A missing time of day
// sorts as the start of the day.
func (m Moment) Before(o Moment) bool {
	if !m.Date.Equal(o.Date) {
		return m.Date.Before(o.Date)
	}
	return m.minutes() < o.minutes()
}

func (m Moment) minutes() int {
	if m.Time == nil {
		return 0
	}
	return *m.Time
}

// DateString formats the date part as YYYY-MM-DD.
func (m Moment) DateString() string {
	return m.Date.Format(dateLayout)
}

// MarshalJSON encodes a Moment as {"date":"YYYY-MM-DD","time":N}.
func (m Moment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date string `json:"date"`
		Time *int   `json:"time,omitempty"`
	}{Date: m.DateString(), Time: m.Time})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *Moment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date string `json:"date"`
		Time *int   `json:"time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := time.Parse(dateLayout, raw.Date)
	if err != nil {
		return fmt.Errorf("%w: date %q", ErrMalformedInput, raw.Date)
	}
	*m = Moment{Date: d, Time: raw.Time}
	return nil
}

// TripNode is one element of the trip hierarchy: either a Composite (sub-trip)
// or a Leaf (a single destination leg). Kind selects which group of fields is
// meaningful; algorithms switch on it exhaustively.
//
// Nodes never own each other. Children are id references resolved through a
// Tree, and ParentID is a lookup-only back-reference.
type TripNode struct {
	ID            uuid.UUID
	Kind          NodeKind
	ParentID      *uuid.UUID
	Deleted       bool
	DeletedExpiry *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Composite fields. Children order drives date resolution and the
	// contiguous-destination check.
	Name     string
	Children []uuid.UUID
	Roles    []RoleAssignment

	// Leaf fields.
	Destination Destination
	Arrival     *Moment
	Departure   *Moment
}

// IsComposite reports whether n is a sub-trip.
func (n *TripNode) IsComposite() bool {
	return n.Kind == KindComposite
}

// RoleOf returns the role userID holds on this exact node.
func (n *TripNode) RoleOf(userID uuid.UUID) (RoleTag, bool) {
	for _, ra := range n.Roles {
		if ra.UserID == userID {
			return ra.Role, true
		}
	}
	return "", false
}

// Members returns the ids of every user holding a role on this node,
// in assignment order.
func (n *TripNode) Members() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(n.Roles))
	for _, ra := range n.Roles {
		out = append(out, ra.UserID)
	}
	return out
}

// HasMember reports whether userID holds any role on this node.
func (n *TripNode) HasMember(userID uuid.UUID) bool {
	_, ok := n.RoleOf(userID)
	return ok
}

// Expired reports whether n is soft-deleted and its restore window has
// passed at now.
func (n *TripNode) Expired(now time.Time) bool {
	return n.Deleted && n.DeletedExpiry != nil && !now.Before(*n.DeletedExpiry)
}

// NodeSpec describes one child in a build or edit command.
// A composite spec references an existing sub-trip by NodeID; a leaf spec
// carries the destination leg to create.
type NodeSpec struct {
	Kind        NodeKind
	NodeID      uuid.UUID
	Destination Destination
	Arrival     *Moment
	Departure   *Moment
}

// TripSpec is the input to Tree.Build.
type TripSpec struct {
	Name  string
	Nodes []NodeSpec
	Roles []RoleAssignment
}

// validateLeaf enforces per-leg rules shared by Build and SetChildren.
//   - a destination must be referenced.
//   - departure, when both are set, must not be before arrival.
func validateLeaf(s NodeSpec) error {
	if s.Destination.ID == uuid.Nil {
		return fmt.Errorf("%w: destination is required", ErrMalformedInput)
	}
	if s.Arrival != nil && s.Departure != nil && s.Departure.Before(*s.Arrival) {
		return fmt.Errorf("%w: departure must not be before arrival", ErrMalformedInput)
	}
	return nil
}
