package session

import (
	"fmt"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

// Ticket identifies one reverse-geocode lookup started by a session.
type Ticket struct {
	Session    string
	Generation uint64
	Latitude   domain.MicroDegrees
	Longitude  domain.MicroDegrees
}

// StartGeocode begins a lookup for the scratch coordinates and returns its
// ticket. Any earlier lookup of this session becomes stale.
func (s *Session) StartGeocode() (Ticket, error) {
	if s.state != Editing {
		return Ticket{}, fmt.Errorf("%w: geocode in state %s", domain.ErrInvalidState, s.state)
	}
	if !s.scratch.HasGPS() {
		return Ticket{}, fmt.Errorf("%w: site has no coordinates to look up", domain.ErrInvalidState)
	}

	s.generation++
	s.inFlight = true
	return Ticket{
		Session:    s.id,
		Generation: s.generation,
		Latitude:   s.scratch.Latitude,
		Longitude:  s.scratch.Longitude,
	}, nil
}

// GeocodePending reports whether a lookup is awaiting delivery.
func (s *Session) GeocodePending() bool { return s.inFlight }

// ApplyGeocode delivers a lookup result. It is applied through SetField,
// exactly as if the user had typed it, only when t is the current ticket
// and the session is still editing. Stale results are dropped and
// ApplyGeocode reports false.
//
// Empty parts of place are ignored.
func (s *Session) ApplyGeocode(t Ticket, place domain.Place) (bool, error) {
	if !s.Current(t) {
		return false, nil
	}
	s.inFlight = false

	if place.Name != "" {
		if err := s.SetField(domain.FieldName, place.Name); err != nil {
			return true, err
		}
	}
	if place.Description != "" {
		if err := s.SetField(domain.FieldDescription, place.Description); err != nil {
			return true, err
		}
	}
	return true, nil
}

// FailGeocode clears the pending flag for a failed lookup. It reports
// whether t was still current.
func (s *Session) FailGeocode(t Ticket) bool {
	if !s.Current(t) {
		return false
	}
	s.inFlight = false
	return true
}

// Current reports whether t is the ticket of the latest lookup of a
// session that is still editing.
func (s *Session) Current(t Ticket) bool {
	return s.state == Editing && t.Session == s.id && t.Generation == s.generation && s.inFlight
}
