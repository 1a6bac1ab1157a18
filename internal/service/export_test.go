package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/service"
)

func TestItineraryService_Export_OK(t *testing.T) {
	st := newStoredTrip()
	svc := service.NewItineraryService(&mockTripNodeRepo{load: loadReturns(st.tree())})

	rows, err := svc.Export(context.Background(), st.member(), st.root.ID)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Europe", rows[0].TripName)
	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, "Auckland", rows[0].DestinationName)
	assert.Equal(t, day(1), rows[0].Arrival)
	assert.Equal(t, 2, rows[1].Position)
	assert.Equal(t, "Berlin", rows[1].DestinationName)
	assert.Empty(t, rows[1].SubTrip)
}

func TestItineraryService_Export_NestedSubTrip(t *testing.T) {
	st := newStoredTrip()
	c := &domain.TripNode{ID: uuid.New(), Kind: domain.KindLeaf, Destination: domain.Destination{ID: uuid.New(), Name: "Cairo"}}
	outer := &domain.TripNode{
		ID:       uuid.New(),
		Kind:     domain.KindComposite,
		Name:     "World",
		Children: []uuid.UUID{st.root.ID, c.ID},
		Roles:    []domain.RoleAssignment{{UserID: st.owner.ID, Role: domain.RoleTripOwner}},
	}
	pid := outer.ID
	st.root.ParentID = &pid
	c.ParentID = &pid
	tree := st.tree()
	tree.Insert(outer)
	tree.Insert(c)
	svc := service.NewItineraryService(&mockTripNodeRepo{load: loadReturns(tree)})

	rows, err := svc.Export(context.Background(), st.owner, outer.ID)

	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Europe", rows[0].SubTrip)
	assert.Equal(t, "Europe", rows[1].SubTrip)
	assert.Empty(t, rows[2].SubTrip)
	assert.Equal(t, "World", rows[2].TripName)
}

func TestItineraryService_Export_Forbidden(t *testing.T) {
	st := newStoredTrip()
	svc := service.NewItineraryService(&mockTripNodeRepo{load: loadReturns(st.tree())})

	_, err := svc.Export(context.Background(), newUser("stranger"), st.root.ID)

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestItineraryService_Export_RepoError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := service.NewItineraryService(&mockTripNodeRepo{
		load: func(context.Context, ...uuid.UUID) (*domain.Tree, error) { return nil, boom },
	})

	_, err := svc.Export(context.Background(), newUser("a"), uuid.New())

	assert.ErrorIs(t, err, boom)
}
