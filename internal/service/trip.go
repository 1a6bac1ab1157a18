// Package service contains the business logic for the Flockr API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/authz"
	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/notify"
	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
)

// Publisher hands an event to the fan-out engine without waiting for
// delivery. *notify.Engine satisfies it.
type Publisher interface {
	Publish(f notify.Frame, actor uuid.UUID, candidates []uuid.UUID) bool
}

// NodeInput describes one child in a create or edit request.
// Composite inputs reference an existing sub-trip; leaf inputs describe a leg.
type NodeInput struct {
	NodeType      domain.NodeKind
	TripNodeID    uuid.UUID
	DestinationID uuid.UUID
	Arrival       *domain.Moment
	Departure     *domain.Moment
}

// MemberInput grants Role (a node-scoped tag, still unparsed) to UserID.
type MemberInput struct {
	UserID uuid.UUID
	Role   string
}

// CreateTripInput is the payload of TripService.Create.
type CreateTripInput struct {
	Name    string
	Nodes   []NodeInput
	Members []MemberInput
}

// UpdateTripInput is the payload of TripService.Update. A nil Members leaves
// role assignments alone; a non-nil one asks to replace them.
type UpdateTripInput struct {
	Name    string
	Nodes   []NodeInput
	Members []MemberInput
}

// TripService implements business logic for trip node operations.
type TripService struct {
	nodes repo.TripNodeRepo
	users repo.UserRepo
	dests repo.DestinationRepo
	pub   Publisher
	grace time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// NewTripService constructs a TripService. grace is how long a deleted trip
// stays restorable.
func NewTripService(nodes repo.TripNodeRepo, users repo.UserRepo, dests repo.DestinationRepo, pub Publisher, grace time.Duration) *TripService {
	return &TripService{
		nodes: nodes,
		users: users,
		dests: dests,
		pub:   pub,
		grace: grace,
		now:   time.Now,
		log:   slog.Default(),
	}
}

// Create builds a new top-level trip owned by actor.
func (s *TripService) Create(ctx context.Context, actor domain.User, in CreateTripInput) (domain.TripView, error) {
	members, err := parseMembers(in.Members)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	for _, m := range members {
		if m.UserID == actor.ID {
			return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w: the creator is already the owner", domain.ErrForbidden)
		}
	}
	if err := s.requireUsers(ctx, members); err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	tree, err := s.nodes.Load(ctx, subTripIDs(in.Nodes)...)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	specs, err := s.resolveSpecs(ctx, actor, tree, uuid.Nil, in.Nodes)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	roles := append([]domain.RoleAssignment{{UserID: actor.ID, Role: domain.RoleTripOwner}}, members...)
	root, err := tree.Build(domain.TripSpec{Name: in.Name, Nodes: specs, Roles: roles})
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	err = s.nodes.WithTx(ctx, func(r repo.TripNodeRepo) error {
		if err := persistChildren(ctx, r, tree, root, 0, nil, nil); err != nil {
			return err
		}
		return r.ReplaceRoles(ctx, root.ID, root.Roles)
	})
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	view, err := tree.View(root.ID)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	return view, nil
}

// Get returns the view of a live trip node. Only its members and admins may
// read it.
func (s *TripService) Get(ctx context.Context, actor domain.User, id uuid.UUID) (domain.TripView, error) {
	tree, node, err := s.loadLive(ctx, id)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	if !canView(actor, node) {
		return domain.TripView{}, fmt.Errorf("service.TripService.Get: %w", domain.ErrForbidden)
	}
	view, err := tree.View(id)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	return view, nil
}

// Update replaces the name and children of a trip and, when in.Members is
// set, its role assignments. A manager's member changes are dropped while
// the rest of the edit is applied.
func (s *TripService) Update(ctx context.Context, actor domain.User, id uuid.UUID, in UpdateTripInput) (domain.TripView, error) {
	tree, err := s.nodes.Load(ctx, append([]uuid.UUID{id}, subTripIDs(in.Nodes)...)...)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	node, err := liveNode(tree, id, s.now())
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	if !node.IsComposite() {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w: %s is a destination leg, not a trip", domain.ErrMalformedInput, id)
	}
	if _, err := authz.Require(actor, node, authz.EditDetails); err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	var newRoles []domain.RoleAssignment
	if in.Members != nil {
		newRoles, err = s.memberEdit(ctx, actor, node, in.Members)
		if err != nil {
			return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
		}
	}

	specs, err := s.resolveSpecs(ctx, actor, tree, id, in.Nodes)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	name, err := validName(in.Name)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	before := slices.Clone(node.Children)
	dropped, err := tree.SetChildren(id, specs)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	node.Name = name

	var detached []*domain.TripNode
	for _, cid := range before {
		if c, ok := tree.Node(cid); ok && c.IsComposite() && c.ParentID == nil {
			detached = append(detached, c)
		}
	}
	droppedIDs := make([]uuid.UUID, len(dropped))
	for i, d := range dropped {
		droppedIDs[i] = d.ID
	}

	notifyMembers := node.Members()
	if newRoles != nil {
		node.Roles = newRoles
		notifyMembers = append(notifyMembers, node.Members()...)
	}

	err = s.nodes.WithTx(ctx, func(r repo.TripNodeRepo) error {
		if err := persistChildren(ctx, r, tree, node, positionOf(tree, node), detached, droppedIDs); err != nil {
			return err
		}
		if newRoles != nil {
			return r.ReplaceRoles(ctx, node.ID, newRoles)
		}
		return nil
	})
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	view, err := tree.View(id)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	s.pub.Publish(notify.TripUpdated{Trip: view}, actor.ID, notifyMembers)
	return view, nil
}

// memberEdit checks actor may change the members of node and returns the
// validated replacement set, or nil when the edit is to be ignored.
func (s *TripService) memberEdit(ctx context.Context, actor domain.User, node *domain.TripNode, in []MemberInput) ([]domain.RoleAssignment, error) {
	decision, err := authz.Require(actor, node, authz.EditMembers)
	if err != nil {
		return nil, err
	}
	if decision == authz.AllowIgnoringMembers {
		s.log.Debug("ignoring member edit from trip manager", "trip_id", node.ID, "user_id", actor.ID)
		return nil, nil
	}
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: a trip needs at least one member", domain.ErrMalformedInput)
	}
	roles, err := parseMembers(in)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(roles, func(ra domain.RoleAssignment) bool { return ra.Role == domain.RoleTripOwner }) {
		return nil, fmt.Errorf("%w: a trip needs an owner", domain.ErrMalformedInput)
	}
	if err := s.requireUsers(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// Delete soft-deletes a trip node. It stays restorable for the grace period.
func (s *TripService) Delete(ctx context.Context, actor domain.User, id uuid.UUID) error {
	tree, node, err := s.loadLive(ctx, id)
	if err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	if _, err := authz.Require(actor, node, authz.Delete); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}

	expiry := s.now().Add(s.grace)
	if err := s.nodes.SetDeleted(ctx, id, true, &expiry); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	node.Deleted = true
	node.DeletedExpiry = &expiry

	s.publishUpdate(tree, node, actor)
	return nil
}

// Restore undoes a soft delete that has not expired yet. Checks run in a
// fixed order: the node must exist, the actor must be allowed, and only then
// is a node that was never deleted reported as a conflict.
func (s *TripService) Restore(ctx context.Context, actor domain.User, id uuid.UUID) (domain.TripView, error) {
	tree, err := s.nodes.Load(ctx, id)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Restore: %w", err)
	}
	node, ok := tree.Node(id)
	if !ok || node.Expired(s.now()) {
		return domain.TripView{}, fmt.Errorf("service.TripService.Restore: %w: trip node %s", domain.ErrNotFound, id)
	}
	if _, err := authz.Require(actor, node, authz.Restore); err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Restore: %w", err)
	}
	if !node.Deleted {
		return domain.TripView{}, fmt.Errorf("service.TripService.Restore: %w: trip node %s is not deleted", domain.ErrConflict, id)
	}

	if err := s.nodes.SetDeleted(ctx, id, false, nil); err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Restore: %w", err)
	}
	node.Deleted = false
	node.DeletedExpiry = nil

	view, err := tree.View(id)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.TripService.Restore: %w", err)
	}
	s.pub.Publish(notify.TripUpdated{Trip: view}, actor.ID, node.Members())
	return view, nil
}

// ListForUser returns one page of the trips userID belongs to. Users may only
// list their own trips unless they are admins; anyone else gets an empty page.
func (s *TripService) ListForUser(ctx context.Context, actor domain.User, userID uuid.UUID, p domain.PaginationParams) (domain.Page[domain.TripView], error) {
	page := domain.Page[domain.TripView]{Items: []domain.TripView{}, PaginationParams: p}
	if actor.ID != userID && !actor.IsAdmin() {
		return page, nil
	}

	ids, total, err := s.nodes.ListForUser(ctx, userID, p)
	if err != nil {
		return page, fmt.Errorf("service.TripService.ListForUser: %w", err)
	}
	page.Total = total
	if len(ids) == 0 {
		return page, nil
	}

	tree, err := s.nodes.Load(ctx, ids...)
	if err != nil {
		return page, fmt.Errorf("service.TripService.ListForUser: %w", err)
	}
	for _, id := range ids {
		v, err := tree.View(id)
		if err != nil {
			return page, fmt.Errorf("service.TripService.ListForUser: %w", err)
		}
		page.Items = append(page.Items, v)
	}
	return page, nil
}

func (s *TripService) publishUpdate(tree *domain.Tree, node *domain.TripNode, actor domain.User) {
	view, err := tree.View(node.ID)
	if err != nil {
		s.log.Warn("trip view for fan-out failed", "trip_id", node.ID, "error", err)
		return
	}
	s.pub.Publish(notify.TripUpdated{Trip: view}, actor.ID, node.Members())
}

// loadLive loads the trip containing id and returns the node, reporting a
// missing, deleted or expired node as not found.
func (s *TripService) loadLive(ctx context.Context, id uuid.UUID) (*domain.Tree, *domain.TripNode, error) {
	tree, err := s.nodes.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	node, err := liveNode(tree, id, s.now())
	if err != nil {
		return nil, nil, err
	}
	return tree, node, nil
}

func liveNode(tree *domain.Tree, id uuid.UUID, now time.Time) (*domain.TripNode, error) {
	node, ok := tree.Node(id)
	if !ok || node.Deleted || node.Expired(now) {
		return nil, fmt.Errorf("%w: trip node %s", domain.ErrNotFound, id)
	}
	return node, nil
}

// resolveSpecs turns request nodes into tree specs for the children of target
// (uuid.Nil on create). Sub-trips already under target are kept as they are;
// newly attached ones must be in tree, live, and visible to actor. Leaf
// destinations must exist.
func (s *TripService) resolveSpecs(ctx context.Context, actor domain.User, tree *domain.Tree, target uuid.UUID, in []NodeInput) ([]domain.NodeSpec, error) {
	specs := make([]domain.NodeSpec, len(in))
	var destIDs []uuid.UUID
	for i, n := range in {
		switch n.NodeType {
		case domain.KindLeaf:
			if n.DestinationID == uuid.Nil {
				return nil, fmt.Errorf("%w: destination is required", domain.ErrMalformedInput)
			}
			destIDs = append(destIDs, n.DestinationID)
			specs[i] = domain.NodeSpec{Kind: domain.KindLeaf, Arrival: n.Arrival, Departure: n.Departure}
		case domain.KindComposite:
			sub, ok := tree.Node(n.TripNodeID)
			if !ok || (!isChildOf(sub, target) && (sub.Deleted || !canView(actor, sub))) {
				return nil, fmt.Errorf("%w: sub-trip %s", domain.ErrNotFound, n.TripNodeID)
			}
			specs[i] = domain.NodeSpec{Kind: domain.KindComposite, NodeID: n.TripNodeID}
		default:
			return nil, fmt.Errorf("%w: unknown node type %q", domain.ErrMalformedInput, n.NodeType)
		}
	}

	found, err := s.dests.GetMany(ctx, destIDs)
	if err != nil {
		return nil, err
	}
	for i, n := range in {
		if n.NodeType != domain.KindLeaf {
			continue
		}
		d, ok := found[n.DestinationID]
		if !ok {
			return nil, fmt.Errorf("%w: destination %s", domain.ErrNotFound, n.DestinationID)
		}
		specs[i].Destination = d
	}
	return specs, nil
}

// requireUsers reports domain.ErrNotFound if any assigned user does not exist.
func (s *TripService) requireUsers(ctx context.Context, roles []domain.RoleAssignment) error {
	if len(roles) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(roles))
	for i, ra := range roles {
		ids[i] = ra.UserID
	}
	return requireUsers(ctx, s.users, ids)
}

func requireUsers(ctx context.Context, users repo.UserRepo, ids []uuid.UUID) error {
	found, err := users.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	have := make(map[uuid.UUID]bool, len(found))
	for _, u := range found {
		have[u.ID] = true
	}
	for _, id := range ids {
		if !have[id] {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
		}
	}
	return nil
}

func parseMembers(in []MemberInput) ([]domain.RoleAssignment, error) {
	out := make([]domain.RoleAssignment, 0, len(in))
	for _, m := range in {
		role, err := domain.ParseNodeRole(m.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RoleAssignment{UserID: m.UserID, Role: role})
	}
	if err := domain.ValidateAssignments(out); err != nil {
		return nil, err
	}
	return out, nil
}

func subTripIDs(in []NodeInput) []uuid.UUID {
	var ids []uuid.UUID
	for _, n := range in {
		if n.NodeType == domain.KindComposite && n.TripNodeID != uuid.Nil {
			ids = append(ids, n.TripNodeID)
		}
	}
	return ids
}

func validName(name string) (string, error) {
	v := strings.TrimSpace(name)
	if v == "" {
		return "", fmt.Errorf("%w: name is required", domain.ErrMalformedInput)
	}
	return v, nil
}

// isChildOf reports whether n currently sits directly under parent.
func isChildOf(n *domain.TripNode, parent uuid.UUID) bool {
	return parent != uuid.Nil && n.ParentID != nil && *n.ParentID == parent
}

func canView(actor domain.User, node *domain.TripNode) bool {
	return actor.IsAdmin() || node.HasMember(actor.ID)
}

// positionOf returns n's index among its parent's children, or 0 at the top.
func positionOf(tree *domain.Tree, n *domain.TripNode) int {
	if n.ParentID == nil {
		return 0
	}
	p, ok := tree.Node(*n.ParentID)
	if !ok {
		return 0
	}
	return max(slices.Index(p.Children, n.ID), 0)
}

// persistChildren writes parent, then each child at its index, then the
// sub-trips that were detached, and finally removes dropped legs.
func persistChildren(ctx context.Context, r repo.TripNodeRepo, tree *domain.Tree, parent *domain.TripNode, position int, detached []*domain.TripNode, dropped []uuid.UUID) error {
	if err := r.Upsert(ctx, parent, position); err != nil {
		return err
	}
	for i, cid := range parent.Children {
		child, ok := tree.Node(cid)
		if !ok {
			return fmt.Errorf("%w: child %s missing from arena", domain.ErrInternal, cid)
		}
		if err := r.Upsert(ctx, child, i); err != nil {
			return err
		}
	}
	for _, d := range detached {
		if err := r.Upsert(ctx, d, 0); err != nil {
			return err
		}
	}
	if len(dropped) > 0 {
		return r.Delete(ctx, dropped...)
	}
	return nil
}
