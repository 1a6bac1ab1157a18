package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vikaShenoy/Flockr-sub001/internal/auth"
	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/handler"
	"github.com/vikaShenoy/Flockr-sub001/internal/presence"
	"github.com/vikaShenoy/Flockr-sub001/internal/service"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create      func(ctx context.Context, actor domain.User, in service.CreateTripInput) (domain.TripView, error)
	get         func(ctx context.Context, actor domain.User, id uuid.UUID) (domain.TripView, error)
	update      func(ctx context.Context, actor domain.User, id uuid.UUID, in service.UpdateTripInput) (domain.TripView, error)
	delete      func(ctx context.Context, actor domain.User, id uuid.UUID) error
	restore     func(ctx context.Context, actor domain.User, id uuid.UUID) (domain.TripView, error)
	listForUser func(ctx context.Context, actor domain.User, userID uuid.UUID, p domain.PaginationParams) (domain.Page[domain.TripView], error)
}

func (m *mockTripServicer) Create(ctx context.Context, a domain.User, in service.CreateTripInput) (domain.TripView, error) {
	return m.create(ctx, a, in)
}
func (m *mockTripServicer) Get(ctx context.Context, a domain.User, id uuid.UUID) (domain.TripView, error) {
	return m.get(ctx, a, id)
}
func (m *mockTripServicer) Update(ctx context.Context, a domain.User, id uuid.UUID, in service.UpdateTripInput) (domain.TripView, error) {
	return m.update(ctx, a, id, in)
}
func (m *mockTripServicer) Delete(ctx context.Context, a domain.User, id uuid.UUID) error {
	return m.delete(ctx, a, id)
}
func (m *mockTripServicer) Restore(ctx context.Context, a domain.User, id uuid.UUID) (domain.TripView, error) {
	return m.restore(ctx, a, id)
}
func (m *mockTripServicer) ListForUser(ctx context.Context, a domain.User, userID uuid.UUID, p domain.PaginationParams) (domain.Page[domain.TripView], error) {
	return m.listForUser(ctx, a, userID, p)
}

// compile-time check: mockTripServicer must satisfy handler.TripServicer.
var _ handler.TripServicer = (*mockTripServicer)(nil)

type mockItineraryServicer struct {
	export func(ctx context.Context, actor domain.User, id uuid.UUID) ([]domain.ItineraryRow, error)
}

func (m *mockItineraryServicer) Export(ctx context.Context, a domain.User, id uuid.UUID) ([]domain.ItineraryRow, error) {
	return m.export(ctx, a, id)
}

var _ handler.ItineraryServicer = (*mockItineraryServicer)(nil)

type mockMapServicer struct {
	ping func(ctx context.Context, actor domain.User, tripID uuid.UUID, lat, lng float64) error
}

func (m *mockMapServicer) Ping(ctx context.Context, a domain.User, tripID uuid.UUID, lat, lng float64) error {
	return m.ping(ctx, a, tripID, lat, lng)
}

var _ handler.MapServicer = (*mockMapServicer)(nil)

type mockChatServicer struct {
	createGroup   func(ctx context.Context, actor domain.User, name string, members []uuid.UUID) (domain.ChatGroup, error)
	send          func(ctx context.Context, actor domain.User, groupID uuid.UUID, text string) (domain.Message, error)
	deleteMessage func(ctx context.Context, actor domain.User, messageID uuid.UUID) error
	onlineMembers func(ctx context.Context, actor domain.User, groupID uuid.UUID) ([]uuid.UUID, error)
}

func (m *mockChatServicer) CreateGroup(ctx context.Context, a domain.User, name string, members []uuid.UUID) (domain.ChatGroup, error) {
	return m.createGroup(ctx, a, name, members)
}
func (m *mockChatServicer) Send(ctx context.Context, a domain.User, groupID uuid.UUID, text string) (domain.Message, error) {
	return m.send(ctx, a, groupID, text)
}
func (m *mockChatServicer) DeleteMessage(ctx context.Context, a domain.User, messageID uuid.UUID) error {
	return m.deleteMessage(ctx, a, messageID)
}
func (m *mockChatServicer) OnlineMembers(ctx context.Context, a domain.User, groupID uuid.UUID) ([]uuid.UUID, error) {
	return m.onlineMembers(ctx, a, groupID)
}

var _ handler.ChatServicer = (*mockChatServicer)(nil)

// mockPresenceServicer records connects and disconnects on channels so
// websocket tests can wait for them.
type mockPresenceServicer struct {
	connected    chan presence.Conn
	disconnected chan presence.Conn
}

func newMockPresence() *mockPresenceServicer {
	return &mockPresenceServicer{connected: make(chan presence.Conn, 4), disconnected: make(chan presence.Conn, 4)}
}

func (m *mockPresenceServicer) Connect(_ context.Context, _ domain.User, c presence.Conn) {
	m.connected <- c
}
func (m *mockPresenceServicer) Disconnect(_ context.Context, _ domain.User, c presence.Conn) {
	m.disconnected <- c
}

var _ handler.PresenceServicer = (*mockPresenceServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// testUser is the caller every authenticated test request runs as.
var testUser = domain.User{ID: uuid.New(), Name: "tester"}

// fakeAuth stands in for middleware.NewAuthHandler: every request is
// authenticated as testUser.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), testUser)))
	})
}

// newHTTPHandler wires a Server with the given services behind fakeAuth.
// This mirrors how main.go wires it in production.
func newHTTPHandler(svcs handler.Services) http.Handler {
	return handler.NewServer(svcs, handler.Options{}).Routes(fakeAuth)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, body *bytes.Buffer) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}
