package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Tree is an arena of trip nodes keyed by id. Composites reference their
// children by id, so the arena is the only owner of nodes and the graph can
// be checked for cycles without chasing pointers.
//
// A Tree is not safe for concurrent mutation. Services load one per command
// and discard it afterwards.
type Tree struct {
	nodes map[uuid.UUID]*TripNode
}

// NewTree returns an arena holding nodes. Links are taken as-is from each
// node's Children and ParentID fields.
func NewTree(nodes ...*TripNode) *Tree {
	t := &Tree{nodes: make(map[uuid.UUID]*TripNode, len(nodes))}
	for _, n := range nodes {
		t.nodes[n.ID] = n
	}
	return t
}

// Node returns the node with the given id.
func (t *Tree) Node(id uuid.UUID) (*TripNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Insert adds or replaces n in the arena.
func (t *Tree) Insert(n *TripNode) {
	t.nodes[n.ID] = n
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Flatten returns the leaves reachable from id, depth-first in document
// order, with composites expanded in place. A leaf flattens to itself.
func (t *Tree) Flatten(id uuid.UUID) ([]*TripNode, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: trip node %s", ErrNotFound, id)
	}
	var out []*TripNode
	if err := t.flatten(n, make(map[uuid.UUID]bool), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tree) flatten(n *TripNode, visited map[uuid.UUID]bool, out *[]*TripNode) error {
	if visited[n.ID] {
		return fmt.Errorf("%w: cycle at node %s", ErrInternal, n.ID)
	}
	visited[n.ID] = true

	switch n.Kind {
	case KindLeaf:
		*out = append(*out, n)
		return nil
	case KindComposite:
		for _, cid := range n.Children {
			c, ok := t.nodes[cid]
			if !ok {
				return fmt.Errorf("%w: child %s of %s missing from arena", ErrInternal, cid, n.ID)
			}
			if err := t.flatten(c, visited, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown node kind %q", ErrInternal, n.Kind)
	}
}

// ResolveName returns a composite's stored name or a leaf's destination name.
func (t *Tree) ResolveName(n *TripNode) string {
	switch n.Kind {
	case KindComposite:
		return n.Name
	case KindLeaf:
		return n.Destination.Name
	default:
		return ""
	}
}

// ResolveArrival returns a leaf's own arrival. For a composite it walks the
// children in order and returns the first child's resolved arrival, falling
// back to that child's resolved departure. An empty composite, or one whose
// leaves carry no dates, resolves to nil.
func (t *Tree) ResolveArrival(n *TripNode) *Moment {
	return t.resolveArrival(n, 0)
}

// ResolveDeparture is the mirror of ResolveArrival: children are walked in
// reverse order and departure is preferred over arrival.
func (t *Tree) ResolveDeparture(n *TripNode) *Moment {
	return t.resolveDeparture(n, 0)
}

func (t *Tree) resolveArrival(n *TripNode, depth int) *Moment {
	if depth > len(t.nodes) {
		return nil
	}
	switch n.Kind {
	case KindLeaf:
		return n.Arrival
	case KindComposite:
		for _, cid := range n.Children {
			c, ok := t.nodes[cid]
			if !ok {
				continue
			}
			if m := t.resolveArrival(c, depth+1); m != nil {
				return m
			}
			if m := t.resolveDeparture(c, depth+1); m != nil {
				return m
			}
		}
		return nil
	default:
		return nil
	}
}

func (t *Tree) resolveDeparture(n *TripNode, depth int) *Moment {
	if depth > len(t.nodes) {
		return nil
	}
	switch n.Kind {
	case KindLeaf:
		return n.Departure
	case KindComposite:
		for i := len(n.Children) - 1; i >= 0; i-- {
			c, ok := t.nodes[n.Children[i]]
			if !ok {
				continue
			}
			if m := t.resolveDeparture(c, depth+1); m != nil {
				return m
			}
			if m := t.resolveArrival(c, depth+1); m != nil {
				return m
			}
		}
		return nil
	default:
		return nil
	}
}

// Root walks parent back-references from id to the top-level node.
func (t *Tree) Root(id uuid.UUID) (*TripNode, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: trip node %s", ErrNotFound, id)
	}
	for steps := 0; n.ParentID != nil; steps++ {
		if steps > len(t.nodes) {
			return nil, fmt.Errorf("%w: parent cycle above %s", ErrInternal, id)
		}
		p, ok := t.nodes[*n.ParentID]
		if !ok {
			// Parent outside the loaded arena: treat n as the root we can see.
			return n, nil
		}
		n = p
	}
	return n, nil
}

// isAncestorOrSelf reports whether candidate is id or one of id's ancestors.
func (t *Tree) isAncestorOrSelf(candidate, id uuid.UUID) bool {
	cur, ok := t.nodes[id]
	for steps := 0; ok && steps <= len(t.nodes); steps++ {
		if cur.ID == candidate {
			return true
		}
		if cur.ParentID == nil {
			return false
		}
		cur, ok = t.nodes[*cur.ParentID]
	}
	return false
}

// ValidateContiguity flattens the top-level trip containing id and checks
// that no two adjacent legs visit the same destination.
func (t *Tree) ValidateContiguity(id uuid.UUID) error {
	root, err := t.Root(id)
	if err != nil {
		return err
	}
	leaves, err := t.Flatten(root.ID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(leaves))
	for i, l := range leaves {
		ids[i] = l.Destination.ID
	}
	return checkContiguous(ids)
}

// checkContiguous rejects a destination sequence where two neighbours match.
func checkContiguous(destinations []uuid.UUID) error {
	for i := 1; i < len(destinations); i++ {
		if destinations[i] == destinations[i-1] {
			return fmt.Errorf("%w: destination %s appears in consecutive legs", ErrMalformedInput, destinations[i])
		}
	}
	return nil
}

// Build validates spec and, only when every check passes, creates a new
// top-level composite with its leaf children and attaches the referenced
// sub-trips beneath it. Nothing is inserted into the arena on failure.
//
// Checks, in order: a non-blank name, at least two immediate children, valid
// role assignments, each child spec, and the contiguous-destination rule over
// the fully flattened sequence.
func (t *Tree) Build(spec TripSpec) (*TripNode, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrMalformedInput)
	}
	if len(spec.Nodes) < 2 {
		return nil, fmt.Errorf("%w: a trip needs at least 2 nodes, got %d", ErrMalformedInput, len(spec.Nodes))
	}
	if err := ValidateAssignments(spec.Roles); err != nil {
		return nil, err
	}

	sequence, err := t.specSequence(uuid.Nil, spec.Nodes)
	if err != nil {
		return nil, err
	}
	if err := checkContiguous(sequence); err != nil {
		return nil, err
	}

	root := &TripNode{
		ID:    uuid.New(),
		Kind:  KindComposite,
		Name:  strings.TrimSpace(spec.Name),
		Roles: slices.Clone(spec.Roles),
	}
	for _, s := range spec.Nodes {
		parent := root.ID
		switch s.Kind {
		case KindLeaf:
			leaf := newLeaf(s, parent)
			t.nodes[leaf.ID] = leaf
			root.Children = append(root.Children, leaf.ID)
		case KindComposite:
			t.nodes[s.NodeID].ParentID = &parent
			root.Children = append(root.Children, s.NodeID)
		}
	}
	t.nodes[root.ID] = root
	return root, nil
}

// specSequence validates child specs for attachment under target (uuid.Nil
// for a trip that does not exist yet) and returns the destination id of every
// leaf the specs expand to, in document order.
func (t *Tree) specSequence(target uuid.UUID, specs []NodeSpec) ([]uuid.UUID, error) {
	var sequence []uuid.UUID
	refs := make(map[uuid.UUID]bool)
	for _, s := range specs {
		switch s.Kind {
		case KindLeaf:
			if err := validateLeaf(s); err != nil {
				return nil, err
			}
			sequence = append(sequence, s.Destination.ID)
		case KindComposite:
			sub, ok := t.nodes[s.NodeID]
			attached := sub != nil && sub.ParentID != nil && target != uuid.Nil && *sub.ParentID == target
			if !ok || (sub.Deleted && !attached) {
				return nil, fmt.Errorf("%w: sub-trip %s", ErrNotFound, s.NodeID)
			}
			if !sub.IsComposite() {
				return nil, fmt.Errorf("%w: node %s is not a sub-trip", ErrMalformedInput, s.NodeID)
			}
			if refs[sub.ID] {
				return nil, fmt.Errorf("%w: sub-trip %s listed twice", ErrMalformedInput, sub.ID)
			}
			if target != uuid.Nil && t.isAncestorOrSelf(sub.ID, target) {
				return nil, fmt.Errorf("%w: sub-trip %s would contain itself", ErrMalformedInput, sub.ID)
			}
			if sub.ParentID != nil && *sub.ParentID != target {
				return nil, fmt.Errorf("%w: sub-trip %s already belongs to another trip", ErrMalformedInput, sub.ID)
			}
			refs[sub.ID] = true
			leaves, err := t.Flatten(sub.ID)
			if err != nil {
				return nil, err
			}
			for _, l := range leaves {
				sequence = append(sequence, l.Destination.ID)
			}
		default:
			return nil, fmt.Errorf("%w: unknown node type %q", ErrMalformedInput, s.Kind)
		}
	}
	return sequence, nil
}

func newLeaf(s NodeSpec, parent uuid.UUID) *TripNode {
	return &TripNode{
		ID:          uuid.New(),
		Kind:        KindLeaf,
		ParentID:    &parent,
		Destination: s.Destination,
		Arrival:     s.Arrival,
		Departure:   s.Departure,
	}
}

// SetChildren replaces the children of composite id with the nodes described
// by specs. Leaf specs become new legs; composite specs reference existing
// sub-trips that are either top-level or already children of id. Sub-trips
// dropped from the list become top-level again, and the previous legs are
// removed from the arena and returned so the caller can delete them.
//
// The edit is rejected, leaving the tree untouched, if it has fewer than two
// children, would create a cycle, or breaks the contiguous-destination rule
// anywhere in the enclosing top-level trip. A leaf target is a no-op.
func (t *Tree) SetChildren(id uuid.UUID, specs []NodeSpec) ([]*TripNode, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: trip node %s", ErrNotFound, id)
	}
	switch n.Kind {
	case KindLeaf:
		return nil, nil
	case KindComposite:
	default:
		return nil, fmt.Errorf("%w: unknown node kind %q", ErrInternal, n.Kind)
	}
	if len(specs) < 2 {
		return nil, fmt.Errorf("%w: a trip needs at least 2 nodes, got %d", ErrMalformedInput, len(specs))
	}
	if _, err := t.specSequence(id, specs); err != nil {
		return nil, err
	}

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	keep := make(map[uuid.UUID]bool)
	var next []uuid.UUID
	for _, s := range specs {
		switch s.Kind {
		case KindLeaf:
			leaf := newLeaf(s, id)
			t.nodes[leaf.ID] = leaf
			undo = append(undo, func() { delete(t.nodes, leaf.ID) })
			next = append(next, leaf.ID)
		case KindComposite:
			sub := t.nodes[s.NodeID]
			prev := sub.ParentID
			parent := id
			sub.ParentID = &parent
			undo = append(undo, func() { sub.ParentID = prev })
			keep[sub.ID] = true
			next = append(next, sub.ID)
		}
	}

	var dropped []*TripNode
	for _, cid := range n.Children {
		c, ok := t.nodes[cid]
		if !ok || keep[cid] {
			continue
		}
		switch c.Kind {
		case KindComposite:
			prev := c.ParentID
			c.ParentID = nil
			undo = append(undo, func() { c.ParentID = prev })
		case KindLeaf:
			dropped = append(dropped, c)
		}
	}

	prevChildren := n.Children
	n.Children = next
	undo = append(undo, func() { n.Children = prevChildren })

	if err := t.ValidateContiguity(id); err != nil {
		rollback()
		return nil, err
	}
	for _, d := range dropped {
		delete(t.nodes, d.ID)
	}
	return dropped, nil
}

// AddChild appends an existing node to composite id. Adding to a leaf is a
// no-op. The child must be detached, must not be id or one of its ancestors,
// and the enclosing trip must still satisfy the contiguous-destination rule
// afterwards; otherwise the tree is left unchanged and ErrMalformedInput is
// returned.
func (t *Tree) AddChild(id, childID uuid.UUID) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: trip node %s", ErrNotFound, id)
	}
	switch n.Kind {
	case KindLeaf:
		return nil
	case KindComposite:
	default:
		return fmt.Errorf("%w: unknown node kind %q", ErrInternal, n.Kind)
	}
	child, ok := t.nodes[childID]
	if !ok {
		return fmt.Errorf("%w: trip node %s", ErrNotFound, childID)
	}
	if t.isAncestorOrSelf(childID, id) {
		return fmt.Errorf("%w: node %s would contain itself", ErrMalformedInput, childID)
	}
	if child.ParentID != nil {
		return fmt.Errorf("%w: node %s already has a parent", ErrMalformedInput, childID)
	}

	parent := id
	child.ParentID = &parent
	n.Children = append(n.Children, childID)
	if err := t.ValidateContiguity(id); err != nil {
		n.Children = n.Children[:len(n.Children)-1]
		child.ParentID = nil
		return err
	}
	return nil
}

// RemoveChild detaches childID from composite id. Removing from a leaf is a
// no-op. The detached node stays in the arena as a top-level node. If the
// removal would bring two equal destinations together the tree is left
// unchanged and ErrMalformedInput is returned.
func (t *Tree) RemoveChild(id, childID uuid.UUID) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: trip node %s", ErrNotFound, id)
	}
	switch n.Kind {
	case KindLeaf:
		return nil
	case KindComposite:
	default:
		return fmt.Errorf("%w: unknown node kind %q", ErrInternal, n.Kind)
	}
	idx := slices.Index(n.Children, childID)
	if idx < 0 {
		return fmt.Errorf("%w: node %s is not a child of %s", ErrNotFound, childID, id)
	}

	prev := n.Children
	n.Children = slices.Delete(slices.Clone(prev), idx, idx+1)
	child := t.nodes[childID]
	var prevParent *uuid.UUID
	if child != nil {
		prevParent = child.ParentID
		child.ParentID = nil
	}
	if err := t.ValidateContiguity(id); err != nil {
		n.Children = prev
		if child != nil {
			child.ParentID = prevParent
		}
		return err
	}
	return nil
}
