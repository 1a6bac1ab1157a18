package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/notify"
	"github.com/vikaShenoy/Flockr-sub001/internal/presence"
	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
)

// Registry is the write side of the presence registry.
// *presence.Registry satisfies it.
type Registry interface {
	Register(userID uuid.UUID, c presence.Conn)
	UnregisterConn(userID uuid.UUID, c presence.Conn) bool
}

// PresenceService tracks live connections and tells co-members when a user
// comes or goes.
type PresenceService struct {
	registry Registry
	nodes    repo.TripNodeRepo
	pub      Publisher
	log      *slog.Logger
}

// NewPresenceService constructs a PresenceService. log may be nil.
func NewPresenceService(registry Registry, nodes repo.TripNodeRepo, pub Publisher, log *slog.Logger) *PresenceService {
	if log == nil {
		log = slog.Default()
	}
	return &PresenceService{registry: registry, nodes: nodes, pub: pub, log: log}
}

// Connect registers conn as user's live connection and announces it.
// A failed co-member lookup is logged; the user stays registered.
func (s *PresenceService) Connect(ctx context.Context, user domain.User, conn presence.Conn) {
	s.registry.Register(user.ID, conn)
	s.log.Info("user connected", "user_id", user.ID)
	s.announce(ctx, user, notify.Connected{User: user.Summary()})
}

// Disconnect removes conn if it is still user's registered connection and
// announces the departure. A connection that was already replaced by a newer
// one is ignored.
func (s *PresenceService) Disconnect(ctx context.Context, user domain.User, conn presence.Conn) {
	if !s.registry.UnregisterConn(user.ID, conn) {
		s.log.Debug("stale connection closed", "user_id", user.ID)
		return
	}
	s.log.Info("user disconnected", "user_id", user.ID)
	s.announce(ctx, user, notify.Disconnected{User: user.Summary()})
}

func (s *PresenceService) announce(ctx context.Context, user domain.User, f notify.Frame) {
	co, err := s.nodes.CoMembers(ctx, user.ID)
	if err != nil {
		s.log.Warn("co-member lookup failed", "user_id", user.ID, "type", f.Type(), "error", err)
		return
	}
	s.pub.Publish(f, user.ID, co)
}
