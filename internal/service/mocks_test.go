package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/notify"
	"github.com/vikaShenoy/Flockr-sub001/internal/presence"
	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
	"github.com/vikaShenoy/Flockr-sub001/internal/service"
)

// ---- mock repos ------------------------------------------------------------

// mockTripNodeRepo is a hand-written test double for repo.TripNodeRepo.
// Each method is a function field; set only the ones your test needs.
// WithTx runs fn against the mock itself.
type mockTripNodeRepo struct {
	load         func(ctx context.Context, ids ...uuid.UUID) (*domain.Tree, error)
	upsert       func(ctx context.Context, n *domain.TripNode, position int) error
	delete       func(ctx context.Context, ids ...uuid.UUID) error
	replaceRoles func(ctx context.Context, nodeID uuid.UUID, roles []domain.RoleAssignment) error
	setDeleted   func(ctx context.Context, id uuid.UUID, deleted bool, expiry *time.Time) error
	listForUser  func(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) ([]uuid.UUID, int64, error)
	coMembers    func(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	purgeExpired func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockTripNodeRepo) Load(ctx context.Context, ids ...uuid.UUID) (*domain.Tree, error) {
	if m.load == nil {
		return domain.NewTree(), nil
	}
	return m.load(ctx, ids...)
}
func (m *mockTripNodeRepo) Upsert(ctx context.Context, n *domain.TripNode, position int) error {
	if m.upsert == nil {
		return nil
	}
	return m.upsert(ctx, n, position)
}
func (m *mockTripNodeRepo) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if m.delete == nil {
		return nil
	}
	return m.delete(ctx, ids...)
}
func (m *mockTripNodeRepo) ReplaceRoles(ctx context.Context, nodeID uuid.UUID, roles []domain.RoleAssignment) error {
	if m.replaceRoles == nil {
		return nil
	}
	return m.replaceRoles(ctx, nodeID, roles)
}
func (m *mockTripNodeRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, expiry *time.Time) error {
	if m.setDeleted == nil {
		return nil
	}
	return m.setDeleted(ctx, id, deleted, expiry)
}
func (m *mockTripNodeRepo) ListForUser(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) ([]uuid.UUID, int64, error) {
	return m.listForUser(ctx, userID, p)
}
func (m *mockTripNodeRepo) CoMembers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return m.coMembers(ctx, userID)
}
func (m *mockTripNodeRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.purgeExpired(ctx, now)
}
func (m *mockTripNodeRepo) WithTx(_ context.Context, fn func(repo.TripNodeRepo) error) error {
	return fn(m)
}

// compile-time check: mockTripNodeRepo must satisfy repo.TripNodeRepo.
var _ repo.TripNodeRepo = (*mockTripNodeRepo)(nil)

// mockUserRepo is a hand-written test double for repo.UserRepo.
// GetMany answers from known unless getMany is set.
type mockUserRepo struct {
	known   []domain.User
	getMany func(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
}

func (m *mockUserRepo) Create(_ context.Context, u domain.User) (domain.User, error) {
	m.known = append(m.known, u)
	return u, nil
}
func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	for _, u := range m.known {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}
func (m *mockUserRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.User, error) {
	if m.getMany != nil {
		return m.getMany(ctx, ids)
	}
	var out []domain.User
	for _, id := range ids {
		for _, u := range m.known {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

var _ repo.UserRepo = (*mockUserRepo)(nil)

// mockDestinationRepo is a hand-written test double for repo.DestinationRepo.
type mockDestinationRepo struct {
	known []domain.Destination
}

func (m *mockDestinationRepo) Create(_ context.Context, name string) (domain.Destination, error) {
	d := domain.Destination{ID: uuid.New(), Name: name}
	m.known = append(m.known, d)
	return d, nil
}
func (m *mockDestinationRepo) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Destination, error) {
	out := make(map[uuid.UUID]domain.Destination)
	for _, id := range ids {
		for _, d := range m.known {
			if d.ID == id {
				out[id] = d
			}
		}
	}
	return out, nil
}

var _ repo.DestinationRepo = (*mockDestinationRepo)(nil)

// mockChatRepo is a hand-written test double for repo.ChatRepo.
type mockChatRepo struct {
	createGroup   func(ctx context.Context, g domain.ChatGroup) (domain.ChatGroup, error)
	getGroup      func(ctx context.Context, id uuid.UUID) (domain.ChatGroup, error)
	createMessage func(ctx context.Context, m domain.Message) (domain.Message, error)
	getMessage    func(ctx context.Context, id uuid.UUID) (domain.Message, error)
	deleteMessage func(ctx context.Context, id uuid.UUID) error
}

func (m *mockChatRepo) CreateGroup(ctx context.Context, g domain.ChatGroup) (domain.ChatGroup, error) {
	return m.createGroup(ctx, g)
}
func (m *mockChatRepo) GetGroup(ctx context.Context, id uuid.UUID) (domain.ChatGroup, error) {
	return m.getGroup(ctx, id)
}
func (m *mockChatRepo) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	return m.createMessage(ctx, msg)
}
func (m *mockChatRepo) GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	return m.getMessage(ctx, id)
}
func (m *mockChatRepo) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if m.deleteMessage == nil {
		return nil
	}
	return m.deleteMessage(ctx, id)
}

var _ repo.ChatRepo = (*mockChatRepo)(nil)

// ---- mock collaborators ----------------------------------------------------

// published is one call recorded by recordingPublisher.
type published struct {
	frame      notify.Frame
	actor      uuid.UUID
	candidates []uuid.UUID
}

// recordingPublisher captures every Publish call instead of delivering it.
type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *recordingPublisher) Publish(f notify.Frame, actor uuid.UUID, candidates []uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{frame: f, actor: actor, candidates: candidates})
	return true
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.calls...)
}

// fakeConn is a presence.Conn that only remembers whether it was closed.
type fakeConn struct {
	closed bool
}

func (c *fakeConn) Send([]byte) error { return nil }
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

var _ presence.Conn = (*fakeConn)(nil)

// ---- fixtures --------------------------------------------------------------

func newUser(name string, roles ...domain.RoleTag) domain.User {
	return domain.User{ID: uuid.New(), Name: name, Roles: roles}
}

func day(d int) *domain.Moment {
	return domain.NewMoment(time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC), nil)
}

func leafInput(d domain.Destination) service.NodeInput {
	return service.NodeInput{NodeType: domain.KindLeaf, DestinationID: d.ID}
}

func subInput(id uuid.UUID) service.NodeInput {
	return service.NodeInput{NodeType: domain.KindComposite, TripNodeID: id}
}

// storedTrip is a persisted two-leg trip for tests that load an existing node.
type storedTrip struct {
	root   *domain.TripNode
	legs   []*domain.TripNode
	dests  []domain.Destination
	owner  domain.User
	others map[domain.RoleTag]domain.User
}

// newStoredTrip builds a trip A -> B owned by a fresh user, with one manager
// and one member.
func newStoredTrip() storedTrip {
	owner := newUser("owner")
	manager := newUser("manager")
	member := newUser("member")
	a := domain.Destination{ID: uuid.New(), Name: "Auckland"}
	b := domain.Destination{ID: uuid.New(), Name: "Berlin"}

	root := &domain.TripNode{
		ID:   uuid.New(),
		Kind: domain.KindComposite,
		Name: "Europe",
		Roles: []domain.RoleAssignment{
			{UserID: owner.ID, Role: domain.RoleTripOwner},
			{UserID: manager.ID, Role: domain.RoleTripManager},
			{UserID: member.ID, Role: domain.RoleTripMember},
		},
	}
	parent := root.ID
	la := &domain.TripNode{ID: uuid.New(), Kind: domain.KindLeaf, ParentID: &parent, Destination: a, Arrival: day(1), Departure: day(3)}
	lb := &domain.TripNode{ID: uuid.New(), Kind: domain.KindLeaf, ParentID: &parent, Destination: b, Arrival: day(4), Departure: day(6)}
	root.Children = []uuid.UUID{la.ID, lb.ID}

	return storedTrip{
		root:  root,
		legs:  []*domain.TripNode{la, lb},
		dests: []domain.Destination{a, b},
		owner: owner,
		others: map[domain.RoleTag]domain.User{
			domain.RoleTripManager: manager,
			domain.RoleTripMember:  member,
		},
	}
}

func (s storedTrip) tree() *domain.Tree {
	return domain.NewTree(append([]*domain.TripNode{s.root}, s.legs...)...)
}

func (s storedTrip) manager() domain.User { return s.others[domain.RoleTripManager] }
func (s storedTrip) member() domain.User  { return s.others[domain.RoleTripMember] }

func (s storedTrip) users() *mockUserRepo {
	return &mockUserRepo{known: []domain.User{s.owner, s.manager(), s.member()}}
}
