package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
	"github.com/vikaShenoy/Flockr-sub001/internal/service"
)

// TripNodeRequest is one child in a create or update body. Composite
// children set TripNodeID; leaf children set DestinationID and optional dates.
type TripNodeRequest struct {
	NodeType      domain.NodeKind     `json:"nodeType"`
	TripNodeID    *uuid.UUID          `json:"tripNodeId,omitempty"`
	DestinationID *uuid.UUID          `json:"destinationId,omitempty"`
	ArrivalDate   *openapi_types.Date `json:"arrivalDate,omitempty"`
	ArrivalTime   *int                `json:"arrivalTime,omitempty"`
	DepartureDate *openapi_types.Date `json:"departureDate,omitempty"`
	DepartureTime *int                `json:"departureTime,omitempty"`
}

// UserRoleRequest assigns a node-scoped role to a user.
type UserRoleRequest struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role"`
}

// TripRequest is the body of POST /trips and PUT /trips/{id}. On update an
// absent userRoles leaves the members alone.
type TripRequest struct {
	Name      string            `json:"name"`
	TripNodes []TripNodeRequest `json:"tripNodes"`
	UserRoles []UserRoleRequest `json:"userRoles,omitempty"`
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// TripListResponse is the body of GET /users/{id}/trips.
type TripListResponse struct {
	Data       []domain.TripView `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// PingRequest is the body of POST /trips/{id}/pings.
type PingRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body TripRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	nodes, err := toNodeInputs(body.TripNodes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.Trips.Create(r.Context(), user, service.CreateTripInput{
		Name:    body.Name,
		Nodes:   nodes,
		Members: toMemberInputs(body.UserRoles),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	view, err := s.Trips.Get(r.Context(), user, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateTrip handles PUT /trips/{id}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	var body TripRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	nodes, err := toNodeInputs(body.TripNodes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.Trips.Update(r.Context(), user, id, service.UpdateTripInput{
		Name:    body.Name,
		Nodes:   nodes,
		Members: toMemberInputs(body.UserRoles),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	if err := s.Trips.Delete(r.Context(), user, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreTrip handles POST /trips/{id}/restore.
func (s *Server) RestoreTrip(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	view, err := s.Trips.Restore(r.Context(), user, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListUserTrips handles GET /users/{id}/trips.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListUserTrips(w http.ResponseWriter, r *http.Request) {
	user, userID, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	var page, limit *int
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid page: %s", domain.ErrMalformedInput, err.Error()))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid limit: %s", domain.ErrMalformedInput, err.Error()))
		return
	}
	params := domain.NewPaginationParams(page, limit)

	result, err := s.Trips.ListForUser(r.Context(), user, userID, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TripListResponse{
		Data: result.Items,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: result.Total,
		},
	})
}

// PingMap handles POST /trips/{id}/pings.
func (s *Server) PingMap(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	var body PingRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		s.writeError(w, r, fmt.Errorf("%w: latitude and longitude are required", domain.ErrMalformedInput))
		return
	}
	if err := s.Maps.Ping(r.Context(), user, id, *body.Latitude, *body.Longitude); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actorAndID resolves the caller and the {id} path parameter, writing the
// error response itself when either is missing.
func (s *Server) actorAndID(w http.ResponseWriter, r *http.Request) (domain.User, uuid.UUID, bool) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return domain.User{}, uuid.Nil, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return domain.User{}, uuid.Nil, false
	}
	return user, id, true
}

// --- mapping helpers --------------------------------------------------------

// toNodeInputs converts request children into service inputs.
// Returns an error if a time of day is given without its date or is out of range.
func toNodeInputs(in []TripNodeRequest) ([]service.NodeInput, error) {
	out := make([]service.NodeInput, len(in))
	for i, n := range in {
		ni := service.NodeInput{NodeType: n.NodeType}
		if n.TripNodeID != nil {
			ni.TripNodeID = *n.TripNodeID
		}
		if n.DestinationID != nil {
			ni.DestinationID = *n.DestinationID
		}
		var err error
		if ni.Arrival, err = toMoment("arrival", n.ArrivalDate, n.ArrivalTime); err != nil {
			return nil, err
		}
		if ni.Departure, err = toMoment("departure", n.DepartureDate, n.DepartureTime); err != nil {
			return nil, err
		}
		out[i] = ni
	}
	return out, nil
}

// toMoment combines a wire date and optional minutes-past-midnight.
func toMoment(field string, date *openapi_types.Date, minutes *int) (*domain.Moment, error) {
	if date == nil {
		if minutes != nil {
			return nil, fmt.Errorf("%w: %sTime given without %sDate", domain.ErrMalformedInput, field, field)
		}
		return nil, nil
	}
	if minutes != nil && (*minutes < 0 || *minutes >= 24*60) {
		return nil, fmt.Errorf("%w: %sTime must be minutes past midnight", domain.ErrMalformedInput, field)
	}
	return domain.NewMoment(date.Time, minutes), nil
}

// toMemberInputs keeps nil distinct from empty: nil means "not part of this
// request", an empty list is an explicit (and invalid) empty member set.
func toMemberInputs(in []UserRoleRequest) []service.MemberInput {
	if in == nil {
		return nil
	}
	out := make([]service.MemberInput, len(in))
	for i, m := range in {
		out[i] = service.MemberInput{UserID: m.UserID, Role: m.Role}
	}
	return out
}
