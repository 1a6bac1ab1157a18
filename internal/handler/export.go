package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"trip_id", "trip_name", "position", "sub_trip",
	"destination_id", "destination_name",
	"arrival_date", "arrival_time", "departure_date", "departure_time",
}

// ItineraryRow is one leg of the JSON itinerary export.
type ItineraryRow struct {
	TripID          uuid.UUID           `json:"tripNodeId"`
	TripName        string              `json:"tripName"`
	Position        int                 `json:"position"`
	SubTrip         *string             `json:"subTrip,omitempty"`
	DestinationID   uuid.UUID           `json:"destinationId"`
	DestinationName string              `json:"destinationName"`
	ArrivalDate     *openapi_types.Date `json:"arrivalDate,omitempty"`
	ArrivalTime     *int                `json:"arrivalTime,omitempty"`
	DepartureDate   *openapi_types.Date `json:"departureDate,omitempty"`
	DepartureTime   *int                `json:"departureTime,omitempty"`
}

// GetItinerary handles GET /trips/{id}/itinerary.
// It returns one row per leg of the flattened trip, in travel order.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetItinerary(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "csv" {
		s.writeError(w, r, fmt.Errorf("%w: unknown format %q", domain.ErrMalformedInput, format))
		return
	}

	rows, err := s.Itinerary.Export(r.Context(), user, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if format == "csv" {
		body := buildCSV(rows)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="itinerary-%s.csv"`, id))
		w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = body.WriteTo(w)
		return
	}
	writeJSON(w, http.StatusOK, buildJSONRows(rows))
}

// buildJSONRows converts domain rows to the JSON response rows.
func buildJSONRows(rows []domain.ItineraryRow) []ItineraryRow {
	out := make([]ItineraryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, domainRowToJSONRow(r))
	}
	return out
}

// buildCSV encodes domain rows as CSV.
func buildCSV(rows []domain.ItineraryRow) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// bytes.Buffer.Write never returns an error, so neither can these.
	_ = w.Write(csvHeaders)
	for _, r := range rows {
		_ = w.Write(domainRowToCSVRecord(r))
	}
	w.Flush()
	return &buf
}

// domainRowToJSONRow maps a domain.ItineraryRow to the wire row.
// An empty sub-trip name becomes a nil pointer (omitted in JSON).
func domainRowToJSONRow(r domain.ItineraryRow) ItineraryRow {
	row := ItineraryRow{
		TripID:          r.TripID,
		TripName:        r.TripName,
		Position:        r.Position,
		DestinationID:   r.DestinationID,
		DestinationName: r.DestinationName,
	}
	if r.SubTrip != "" {
		row.SubTrip = &r.SubTrip
	}
	if r.Arrival != nil {
		row.ArrivalDate = &openapi_types.Date{Time: r.Arrival.Date}
		row.ArrivalTime = r.Arrival.Time
	}
	if r.Departure != nil {
		row.DepartureDate = &openapi_types.Date{Time: r.Departure.Date}
		row.DepartureTime = r.Departure.Time
	}
	return row
}

// domainRowToCSVRecord encodes a domain.ItineraryRow as a flat string slice.
// Missing dates and times are encoded as empty strings.
func domainRowToCSVRecord(r domain.ItineraryRow) []string {
	arrDate, arrTime := formatMoment(r.Arrival)
	depDate, depTime := formatMoment(r.Departure)
	return []string{
		r.TripID.String(),
		r.TripName,
		strconv.Itoa(r.Position),
		r.SubTrip,
		r.DestinationID.String(),
		r.DestinationName,
		arrDate,
		arrTime,
		depDate,
		depTime,
	}
}

// formatMoment returns the YYYY-MM-DD date and HH:MM time of m, or "" for
// whichever part is missing.
func formatMoment(m *domain.Moment) (string, string) {
	if m == nil {
		return "", ""
	}
	if m.Time == nil {
		return m.DateString(), ""
	}
	return m.DateString(), fmt.Sprintf("%02d:%02d", *m.Time/60, *m.Time%60)
}
