package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/vikaShenoy/Flockr-sub001/internal/service"
)

func viewFixture() domain.TripView {
	return domain.TripView{
		ID:       uuid.New(),
		NodeType: domain.KindComposite,
		Name:     "Summer Tour",
		Arrival:  domain.NewMoment(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), nil),
		UserRoles: []domain.RoleAssignment{
			{UserID: testUser.ID, Role: domain.RoleTripOwner},
		},
		TripNodes: []domain.TripView{},
	}
}

// ---- POST /trips -----------------------------------------------------------

func TestCreateTrip_201(t *testing.T) {
	fixture := viewFixture()
	destA, destB := uuid.New(), uuid.New()
	friend := uuid.New()
	var got service.CreateTripInput
	svc := &mockTripServicer{
		create: func(_ context.Context, a domain.User, in service.CreateTripInput) (domain.TripView, error) {
			assert.Equal(t, testUser.ID, a.ID)
			got = in
			return fixture, nil
		},
	}

	body := jsonBody(t, map[string]any{
		"name": "Summer Tour",
		"tripNodes": []map[string]any{
			{"nodeType": "TripDestinationLeaf", "destinationId": destA, "arrivalDate": "2025-06-01", "arrivalTime": 540},
			{"nodeType": "TripDestinationLeaf", "destinationId": destB, "departureDate": "2025-06-05"},
		},
		"userRoles": []map[string]any{{"userId": friend, "role": "TRIP_MEMBER"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/trips", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp domain.TripView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.ID, resp.ID)
	assert.Equal(t, "Summer Tour", resp.Name)

	require.Len(t, got.Nodes, 2)
	assert.Equal(t, destA, got.Nodes[0].DestinationID)
	require.NotNil(t, got.Nodes[0].Arrival)
	assert.Equal(t, "2025-06-01", got.Nodes[0].Arrival.DateString())
	require.NotNil(t, got.Nodes[0].Arrival.Time)
	assert.Equal(t, 540, *got.Nodes[0].Arrival.Time)
	assert.Nil(t, got.Nodes[1].Arrival)
	assert.Equal(t, []service.MemberInput{{UserID: friend, Role: "TRIP_MEMBER"}}, got.Members)
}

func TestCreateTrip_400(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not JSON", body: `{`},
		{name: "unknown field", body: `{"name":"x","bogus":1}`},
		{name: "time without date", body: `{"name":"x","tripNodes":[{"nodeType":"TripDestinationLeaf","arrivalTime":10}]}`},
		{name: "bad date", body: `{"name":"x","tripNodes":[{"nodeType":"TripDestinationLeaf","arrivalDate":"June 1st"}]}`},
		{name: "time out of range", body: `{"name":"x","tripNodes":[{"nodeType":"TripDestinationLeaf","arrivalDate":"2025-06-01","arrivalTime":1440}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// create is left nil: reaching the service would panic.
			req := httptest.NewRequest(http.MethodPost, "/trips", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			newHTTPHandler(handler.Services{Trips: &mockTripServicer{}}).ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "malformed_input", decodeError(t, rec.Body).Error.Code)
		})
	}
}

func TestCreateTrip_ServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantBody string
	}{
		{err: fmt.Errorf("service.TripService.Create: %w: a trip needs at least 2 nodes, got 1", domain.ErrMalformedInput), wantCode: http.StatusBadRequest, wantBody: "a trip needs at least 2 nodes, got 1"},
		{err: fmt.Errorf("service.TripService.Create: %w: the creator is already the owner", domain.ErrForbidden), wantCode: http.StatusForbidden, wantBody: "the creator is already the owner"},
		{err: fmt.Errorf("service.TripService.Create: %w: destination x", domain.ErrNotFound), wantCode: http.StatusNotFound, wantBody: "destination x"},
		{err: fmt.Errorf("service.TripService.Create: %w", domain.ErrConflict), wantCode: http.StatusConflict, wantBody: "conflict"},
		{err: errors.New("pq: connection refused"), wantCode: http.StatusInternalServerError, wantBody: "internal server error"},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.wantCode), func(t *testing.T) {
			svc := &mockTripServicer{
				create: func(context.Context, domain.User, service.CreateTripInput) (domain.TripView, error) {
					return domain.TripView{}, tc.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/trips", strings.NewReader(`{"name":"x","tripNodes":[]}`))
			rec := httptest.NewRecorder()

			newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

			require.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantBody, decodeError(t, rec.Body).Error.Message)
		})
	}
}

// ---- GET /trips/{id} -------------------------------------------------------

func TestGetTrip_200(t *testing.T) {
	fixture := viewFixture()
	svc := &mockTripServicer{
		get: func(_ context.Context, _ domain.User, id uuid.UUID) (domain.TripView, error) {
			assert.Equal(t, fixture.ID, id)
			return fixture, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/trips/"+fixture.ID.String(), nil)
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Equal(t, fixture.ID.String(), raw["tripNodeId"])
	assert.Equal(t, "TripComposite", raw["nodeType"])
	assert.Equal(t, map[string]any{"date": "2025-06-01"}, raw["arrival"])
	assert.Equal(t, []any{}, raw["tripNodes"], "children must be an array, not null")
}

func TestGetTrip_BadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/trips/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Services{Trips: &mockTripServicer{}}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTrip_404(t *testing.T) {
	svc := &mockTripServicer{
		get: func(context.Context, domain.User, uuid.UUID) (domain.TripView, error) {
			return domain.TripView{}, domain.ErrNotFound
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/trips/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec.Body).Error.Code)
}

// ---- PUT /trips/{id} -------------------------------------------------------

func TestUpdateTrip_MembersAbsentVersusEmpty(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantNil    bool
		wantMember int
	}{
		{name: "absent", body: `{"name":"x","tripNodes":[]}`, wantNil: true},
		{name: "empty", body: `{"name":"x","tripNodes":[],"userRoles":[]}`},
		{name: "one", body: fmt.Sprintf(`{"name":"x","tripNodes":[],"userRoles":[{"userId":%q,"role":"TRIP_OWNER"}]}`, uuid.New()), wantMember: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got service.UpdateTripInput
			svc := &mockTripServicer{
				update: func(_ context.Context, _ domain.User, _ uuid.UUID, in service.UpdateTripInput) (domain.TripView, error) {
					got = in
					return viewFixture(), nil
				},
			}
			req := httptest.NewRequest(http.MethodPut, "/trips/"+uuid.New().String(), strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.wantNil, got.Members == nil)
			assert.Len(t, got.Members, tc.wantMember)
		})
	}
}

func TestUpdateTrip_403(t *testing.T) {
	svc := &mockTripServicer{
		update: func(context.Context, domain.User, uuid.UUID, service.UpdateTripInput) (domain.TripView, error) {
			return domain.TripView{}, fmt.Errorf("service.TripService.Update: %w", domain.ErrForbidden)
		},
	}
	req := httptest.NewRequest(http.MethodPut, "/trips/"+uuid.New().String(), strings.NewReader(`{"name":"x","tripNodes":[]}`))
	rec := httptest.NewRecorder()

	newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ---- DELETE /trips/{id} and restore ----------------------------------------

func TestDeleteTrip_204(t *testing.T) {
	svc := &mockTripServicer{
		delete: func(context.Context, domain.User, uuid.UUID) error { return nil },
	}

	req := httptest.NewRequest(http.MethodDelete, "/trips/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRestoreTrip(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{err: nil, wantCode: http.StatusOK},
		{err: domain.ErrConflict, wantCode: http.StatusConflict},
		{err: domain.ErrNotFound, wantCode: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.wantCode), func(t *testing.T) {
			svc := &mockTripServicer{
				restore: func(context.Context, domain.User, uuid.UUID) (domain.TripView, error) {
					return viewFixture(), tc.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/trips/"+uuid.New().String()+"/restore", nil)
			rec := httptest.NewRecorder()

			newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

// ---- GET /users/{id}/trips -------------------------------------------------

func TestListUserTrips_200(t *testing.T) {
	userID := uuid.New()
	svc := &mockTripServicer{
		listForUser: func(_ context.Context, _ domain.User, id uuid.UUID, p domain.PaginationParams) (domain.Page[domain.TripView], error) {
			assert.Equal(t, userID, id)
			assert.Equal(t, 2, p.Page)
			assert.Equal(t, 5, p.Limit)
			return domain.Page[domain.TripView]{Items: []domain.TripView{viewFixture()}, Total: 6, PaginationParams: p}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users/"+userID.String()+"/trips?page=2&limit=5", nil)
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Services{Trips: svc}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.TripListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, handler.Pagination{Page: 2, Limit: 5, Total: 6}, resp.Pagination)
}

func TestListUserTrips_BadPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users/"+uuid.New().String()+"/trips?page=abc", nil)
	rec := httptest.NewRecorder()
	newHTTPHandler(handler.Services{Trips: &mockTripServicer{}}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- POST /trips/{id}/pings ------------------------------------------------

func TestPingMap(t *testing.T) {
	tripID := uuid.New()
	var gotLat, gotLng float64
	svc := &mockMapServicer{
		ping: func(_ context.Context, _ domain.User, id uuid.UUID, lat, lng float64) error {
			assert.Equal(t, tripID, id)
			gotLat, gotLng = lat, lng
			return nil
		},
	}
	h := newHTTPHandler(handler.Services{Maps: svc})

	req := httptest.NewRequest(http.MethodPost, "/trips/"+tripID.String()+"/pings", strings.NewReader(`{"latitude":-41.29,"longitude":174.78}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.InDelta(t, -41.29, gotLat, 1e-9)
	assert.InDelta(t, 174.78, gotLng, 1e-9)

	req = httptest.NewRequest(http.MethodPost, "/trips/"+tripID.String()+"/pings", strings.NewReader(`{"latitude":1}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "longitude is required")
}
