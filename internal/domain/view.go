package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// TripView is the read projection of a trip node: resolved name and dates,
// nested children, and (for composites) the node's own role assignments.
// It is what GET /trips/{id} returns and what a tripUpdated frame carries.
type TripView struct {
	ID          uuid.UUID        `json:"tripNodeId"`
	NodeType    NodeKind         `json:"nodeType"`
	Name        string           `json:"name"`
	Destination *Destination     `json:"destination,omitempty"`
	Arrival     *Moment          `json:"arrival,omitempty"`
	Departure   *Moment          `json:"departure,omitempty"`
	Deleted     bool             `json:"deleted,omitempty"`
	UserRoles   []RoleAssignment `json:"userRoles,omitempty"`
	TripNodes   []TripView       `json:"tripNodes"`
}

// View projects the node id and its descendants.
func (t *Tree) View(id uuid.UUID) (TripView, error) {
	n, ok := t.nodes[id]
	if !ok {
		return TripView{}, fmt.Errorf("%w: trip node %s", ErrNotFound, id)
	}
	return t.view(n, make(map[uuid.UUID]bool))
}

func (t *Tree) view(n *TripNode, visited map[uuid.UUID]bool) (TripView, error) {
	if visited[n.ID] {
		return TripView{}, fmt.Errorf("%w: cycle at node %s", ErrInternal, n.ID)
	}
	visited[n.ID] = true

	v := TripView{
		ID:        n.ID,
		NodeType:  n.Kind,
		Name:      t.ResolveName(n),
		Arrival:   t.ResolveArrival(n),
		Departure: t.ResolveDeparture(n),
		Deleted:   n.Deleted,
		TripNodes: []TripView{},
	}
	switch n.Kind {
	case KindLeaf:
		d := n.Destination
		v.Destination = &d
	case KindComposite:
		v.UserRoles = n.Roles
		for _, cid := range n.Children {
			c, ok := t.nodes[cid]
			if !ok {
				return TripView{}, fmt.Errorf("%w: child %s of %s missing from arena", ErrInternal, cid, n.ID)
			}
			cv, err := t.view(c, visited)
			if err != nil {
				return TripView{}, err
			}
			v.TripNodes = append(v.TripNodes, cv)
		}
	default:
		return TripView{}, fmt.Errorf("%w: unknown node kind %q", ErrInternal, n.Kind)
	}
	return v, nil
}
