package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/notify"
	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
)

// MapService relays map pings between members of a trip. Pings are not
// stored; they only reach members who are online.
type MapService struct {
	nodes repo.TripNodeRepo
	pub   Publisher
	now   func() time.Time
}

// NewMapService constructs a MapService.
func NewMapService(nodes repo.TripNodeRepo, pub Publisher) *MapService {
	return &MapService{nodes: nodes, pub: pub, now: time.Now}
}

// Ping shares a location on trip tripID with the trip's other members.
func (s *MapService) Ping(ctx context.Context, actor domain.User, tripID uuid.UUID, lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("service.MapService.Ping: %w: latitude %v out of range", domain.ErrMalformedInput, lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("service.MapService.Ping: %w: longitude %v out of range", domain.ErrMalformedInput, lng)
	}

	tree, err := s.nodes.Load(ctx, tripID)
	if err != nil {
		return fmt.Errorf("service.MapService.Ping: %w", err)
	}
	node, err := liveNode(tree, tripID, s.now())
	if err != nil {
		return fmt.Errorf("service.MapService.Ping: %w", err)
	}
	if !canView(actor, node) {
		return fmt.Errorf("service.MapService.Ping: %w", domain.ErrForbidden)
	}

	s.pub.Publish(notify.MapPing{TripNodeID: tripID, Latitude: lat, Longitude: lng}, actor.ID, node.Members())
	return nil
}
