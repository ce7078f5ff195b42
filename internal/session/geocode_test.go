package session

import (
	"errors"
	"testing"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

func TestGeocodeAppliesThroughSetField(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef", Latitude: 10000000, Longitude: -20000000})
	s := begin(t, cat, rec, Existing(id))
	published := len(rec.events)

	ticket, err := s.StartGeocode()
	if err != nil {
		t.Fatalf("StartGeocode() error = %v", err)
	}
	if !s.GeocodePending() {
		t.Error("GeocodePending() = false after start")
	}

	applied, err := s.ApplyGeocode(ticket, domain.Place{Name: "Bonaire", Description: "Kralendijk"})
	if err != nil || !applied {
		t.Fatalf("ApplyGeocode() = %v, %v", applied, err)
	}

	got := s.Scratch()
	if got.Name != "Bonaire" || got.Description != "Kralendijk" {
		t.Errorf("scratch = %+v", got)
	}
	if !s.Modified() {
		t.Error("geocode result must mark the session modified")
	}
	if n := len(rec.events) - published; n != 2 {
		t.Errorf("geocode published %d field notifications, want 2", n)
	}
	if s.GeocodePending() {
		t.Error("GeocodePending() = true after delivery")
	}
}

func TestGeocodeStaleResultsAreDropped(t *testing.T) {
	tests := []struct {
		name  string
		after func(t *testing.T, s *Session, first Ticket)
	}{
		{
			name: "superseded by a new lookup",
			after: func(t *testing.T, s *Session, _ Ticket) {
				if _, err := s.StartGeocode(); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "session discarded",
			after: func(t *testing.T, s *Session, _ Ticket) {
				if err := s.Discard(); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "session committed",
			after: func(t *testing.T, s *Session, _ Ticket) {
				if _, err := s.Commit(); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "already delivered",
			after: func(t *testing.T, s *Session, first Ticket) {
				if _, err := s.ApplyGeocode(first, domain.Place{}); err != nil {
					t.Fatal(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, rec := setup(t)
			id, _ := cat.Insert(domain.Site{Name: "Reef", Latitude: 1, Longitude: 1})
			s := begin(t, cat, rec, Existing(id))

			first, err := s.StartGeocode()
			if err != nil {
				t.Fatal(err)
			}
			tt.after(t, s, first)
			published := len(rec.events)

			applied, err := s.ApplyGeocode(first, domain.Place{Name: "Stale"})
			if err != nil {
				t.Fatalf("ApplyGeocode() error = %v", err)
			}
			if applied {
				t.Error("stale result was applied")
			}
			if s.Scratch().Name == "Stale" {
				t.Error("stale result clobbered the scratch copy")
			}
			if len(rec.events) != published {
				t.Error("stale result published a notification")
			}
		})
	}
}

func TestGeocodeRequiresCoordinates(t *testing.T) {
	cat, rec := setup(t)
	s := begin(t, cat, rec, Create("Somewhere", 0))

	if _, err := s.StartGeocode(); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("StartGeocode() without GPS error = %v, want ErrInvalidState", err)
	}

	if _, err := New("idle", cat).StartGeocode(); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("StartGeocode() on unbound session error = %v", err)
	}
}

func TestFailGeocode(t *testing.T) {
	cat, rec := setup(t)
	s := begin(t, cat, rec, Create("x", 0))
	mustSet(t, s, domain.FieldCoordinates, "1 2")

	ticket, _ := s.StartGeocode()
	if !s.FailGeocode(ticket) {
		t.Error("FailGeocode() on current ticket = false")
	}
	if s.GeocodePending() {
		t.Error("GeocodePending() = true after failure")
	}
	if s.FailGeocode(ticket) {
		t.Error("FailGeocode() twice = true")
	}
}
