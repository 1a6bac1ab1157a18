package handler_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/handler"
)

// itineraryFixture returns two legs, the second inside a named sub-trip.
func itineraryFixture() []domain.ItineraryRow {
	tripID := uuid.New()
	nine := 9 * 60
	return []domain.ItineraryRow{
		{
			TripID:          tripID,
			TripName:        "Pacific Coast Tour",
			Position:        1,
			DestinationID:   uuid.New(),
			DestinationName: "Big Sur",
			Arrival:         domain.NewMoment(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), &nine),
			Departure:       domain.NewMoment(time.Date(2024, 6, 18, 0, 0, 0, 0, time.UTC), nil),
		},
		{
			TripID:          tripID,
			TripName:        "Pacific Coast Tour",
			Position:        2,
			SubTrip:         "Oregon",
			DestinationID:   uuid.New(),
			DestinationName: "Crater Lake",
		},
	}
}

func newItineraryHandler(rows []domain.ItineraryRow, err error) http.Handler {
	return newHTTPHandler(handler.Services{Itinerary: &mockItineraryServicer{
		export: func(context.Context, domain.User, uuid.UUID) ([]domain.ItineraryRow, error) {
			return rows, err
		},
	}})
}

// ---- GET /trips/{id}/itinerary, JSON ---------------------------------------

func TestGetItinerary_DefaultJSON(t *testing.T) {
	rows := itineraryFixture()

	req := httptest.NewRequest(http.MethodGet, "/trips/"+rows[0].TripID.String()+"/itinerary", nil)
	rec := httptest.NewRecorder()
	newItineraryHandler(rows, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "Big Sur", got[0]["destinationName"])
	assert.Equal(t, "2024-06-15", got[0]["arrivalDate"])
	assert.EqualValues(t, 540, got[0]["arrivalTime"])
	assert.NotContains(t, got[0], "subTrip")
	assert.Equal(t, "Oregon", got[1]["subTrip"])
	assert.NotContains(t, got[1], "arrivalDate")
}

func TestGetItinerary_EmptyIsArray(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/trips/"+uuid.New().String()+"/itinerary", nil)
	rec := httptest.NewRecorder()
	newItineraryHandler(nil, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

// ---- GET /trips/{id}/itinerary, CSV ----------------------------------------

func TestGetItinerary_CSV(t *testing.T) {
	rows := itineraryFixture()

	req := httptest.NewRequest(http.MethodGet, "/trips/"+rows[0].TripID.String()+"/itinerary?format=csv", nil)
	rec := httptest.NewRecorder()
	newItineraryHandler(rows, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "itinerary-")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one record per leg")
	assert.Equal(t, "trip_id", records[0][0])
	assert.Equal(t, []string{
		rows[0].TripID.String(), "Pacific Coast Tour", "1", "",
		rows[0].DestinationID.String(), "Big Sur",
		"2024-06-15", "09:00", "2024-06-18", "",
	}, records[1])
	assert.Equal(t, "Oregon", records[2][3])
}

func TestGetItinerary_UnknownFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/trips/"+uuid.New().String()+"/itinerary?format=xml", nil)
	rec := httptest.NewRecorder()
	newItineraryHandler(nil, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetItinerary_Forbidden(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/trips/"+uuid.New().String()+"/itinerary", nil)
	rec := httptest.NewRecorder()
	newItineraryHandler(nil, domain.ErrForbidden).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
