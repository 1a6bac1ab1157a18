package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
)

// ItineraryService assembles the flat leg-by-leg export of one trip.
type ItineraryService struct {
	nodes repo.TripNodeRepo
	now   func() time.Time
}

// NewItineraryService constructs an ItineraryService backed by the node repo.
func NewItineraryService(nodes repo.TripNodeRepo) *ItineraryService {
	return &ItineraryService{nodes: nodes, now: time.Now}
}

// Export returns one row per leg of the flattened trip, in travel order.
// Only members of the trip and admins may export it.
func (s *ItineraryService) Export(ctx context.Context, actor domain.User, id uuid.UUID) ([]domain.ItineraryRow, error) {
	tree, err := s.nodes.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.ItineraryService.Export: %w", err)
	}
	node, err := liveNode(tree, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("service.ItineraryService.Export: %w", err)
	}
	if !canView(actor, node) {
		return nil, fmt.Errorf("service.ItineraryService.Export: %w", domain.ErrForbidden)
	}

	rows, err := tree.Itinerary(id)
	if err != nil {
		return nil, fmt.Errorf("service.ItineraryService.Export: %w", err)
	}
	return rows, nil
}
