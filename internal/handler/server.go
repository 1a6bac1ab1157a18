// Package handler implements the HTTP handlers for the Flockr API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, chat.go, ws.go, etc.) but all share the same
// Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/presence"
	"github.com/vikaShenoy/Flockr-sub001/internal/realtime"
	"github.com/vikaShenoy/Flockr-sub001/internal/service"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TripServicer interface {
	Create(ctx context.Context, actor domain.User, in service.CreateTripInput) (domain.TripView, error)
	Get(ctx context.Context, actor domain.User, id uuid.UUID) (domain.TripView, error)
	Update(ctx context.Context, actor domain.User, id uuid.UUID, in service.UpdateTripInput) (domain.TripView, error)
	Delete(ctx context.Context, actor domain.User, id uuid.UUID) error
	Restore(ctx context.Context, actor domain.User, id uuid.UUID) (domain.TripView, error)
	ListForUser(ctx context.Context, actor domain.User, userID uuid.UUID, p domain.PaginationParams) (domain.Page[domain.TripView], error)
}

// ItineraryServicer produces the flat export of one trip.
type ItineraryServicer interface {
	Export(ctx context.Context, actor domain.User, id uuid.UUID) ([]domain.ItineraryRow, error)
}

// MapServicer relays map pings.
type MapServicer interface {
	Ping(ctx context.Context, actor domain.User, tripID uuid.UUID, lat, lng float64) error
}

// ChatServicer defines the chat operations.
type ChatServicer interface {
	CreateGroup(ctx context.Context, actor domain.User, name string, members []uuid.UUID) (domain.ChatGroup, error)
	Send(ctx context.Context, actor domain.User, groupID uuid.UUID, text string) (domain.Message, error)
	DeleteMessage(ctx context.Context, actor domain.User, messageID uuid.UUID) error
	OnlineMembers(ctx context.Context, actor domain.User, groupID uuid.UUID) ([]uuid.UUID, error)
}

// PresenceServicer registers and releases live connections.
type PresenceServicer interface {
	Connect(ctx context.Context, user domain.User, conn presence.Conn)
	Disconnect(ctx context.Context, user domain.User, conn presence.Conn)
}

// Services bundles the Server's dependencies. A nil service leaves its
// routes unregistered.
type Services struct {
	Trips     TripServicer
	Itinerary ItineraryServicer
	Maps      MapServicer
	Chats     ChatServicer
	Presence  PresenceServicer
}

// Options configures the parts of the Server that are not services.
type Options struct {
	// Realtime configures websocket upgrades on /ws.
	Realtime realtime.Options
	// Metrics, when set, is served unauthenticated at /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server holds the dependencies shared by every handler.
type Server struct {
	Services
	ws      realtime.Options
	metrics http.Handler
	log     *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(svcs Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{Services: svcs, ws: opts.Realtime, metrics: opts.Metrics, log: opts.Logger}
}

// Routes returns the router for the whole API. /healthz, /openapi.yaml and
// /metrics are public; every other route runs behind authn, which must store
// the caller in the context with auth.WithUser.
func (s *Server) Routes(authn func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(authn)

		if s.Trips != nil {
			r.Post("/trips", s.CreateTrip)
			r.Get("/trips/{id}", s.GetTrip)
			r.Put("/trips/{id}", s.UpdateTrip)
			r.Delete("/trips/{id}", s.DeleteTrip)
			r.Post("/trips/{id}/restore", s.RestoreTrip)
			r.Get("/users/{id}/trips", s.ListUserTrips)
		}
		if s.Itinerary != nil {
			r.Get("/trips/{id}/itinerary", s.GetItinerary)
		}
		if s.Maps != nil {
			r.Post("/trips/{id}/pings", s.PingMap)
		}
		if s.Chats != nil {
			r.Post("/chats", s.CreateChat)
			r.Post("/chats/{id}/messages", s.SendMessage)
			r.Get("/chats/{id}/online", s.ListOnlineMembers)
			r.Delete("/messages/{id}", s.DeleteMessage)
		}
		if s.Presence != nil {
			r.Get("/ws", s.ServeWS)
		}
	})
	return r
}
