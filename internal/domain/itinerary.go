package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ItineraryRow is a single row in a trip's itinerary export.
// It is a flat, denormalized view: one row per leg of the flattened trip,
// with the trip fields repeated on every row.
//
// SubTrip is the name of the composite that directly contains the leg; it is
// empty when the leg sits directly under the exported trip.
type ItineraryRow struct {
	// Trip fields, repeated for every leg.
	TripID   uuid.UUID
	TripName string

	// Leg fields.
	Position        int
	SubTrip         string
	DestinationID   uuid.UUID
	DestinationName string
	Arrival         *Moment
	Departure       *Moment
}

// Itinerary flattens the trip id into one row per leg, in document order.
func (t *Tree) Itinerary(id uuid.UUID) ([]ItineraryRow, error) {
	trip, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: trip node %s", ErrNotFound, id)
	}
	leaves, err := t.Flatten(id)
	if err != nil {
		return nil, err
	}

	rows := make([]ItineraryRow, 0, len(leaves))
	for i, leaf := range leaves {
		row := ItineraryRow{
			TripID:          trip.ID,
			TripName:        t.ResolveName(trip),
			Position:        i + 1,
			DestinationID:   leaf.Destination.ID,
			DestinationName: leaf.Destination.Name,
			Arrival:         leaf.Arrival,
			Departure:       leaf.Departure,
		}
		if leaf.ParentID != nil && *leaf.ParentID != trip.ID {
			if p, ok := t.nodes[*leaf.ParentID]; ok {
				row.SubTrip = p.Name
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
