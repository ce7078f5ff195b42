package domain

import (
	"math"
	"time"
)

// SiteID identifies a site in the catalog.
// Zero is the null reference and is never allocated.
type SiteID uint32

// NoSite is the null site reference.
const NoSite SiteID = 0

// MicroDegrees is a signed fixed-point angle in millionths of a degree.
type MicroDegrees int32

// MicroDegreesFromFloat converts decimal degrees, rounding to the nearest micro-degree.
func MicroDegreesFromFloat(deg float64) MicroDegrees {
	return MicroDegrees(math.Round(deg * 1e6))
}

// Float returns the angle in decimal degrees.
func (d MicroDegrees) Float() float64 {
	return float64(d) / 1e6
}

// Site represents a named, optionally geolocated place where dives happen.
//
// A Site is uniquely identified by its ID. Description and Notes are optional
// and an empty string means "not set". Coordinates are independently optional:
// a zero latitude and longitude means the site has no GPS fix.
type Site struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is allocated by the catalog on insert and never reused.
	ID SiteID `json:"id"`

	// ─────────────────────────────
	// Editable fields
	// ─────────────────────────────

	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Latitude    MicroDegrees `json:"latitude"`
	Longitude   MicroDegrees `json:"longitude"`

	// ─────────────────────────────
	// Bookkeeping
	// ─────────────────────────────

	// CreatedAt is the time the site was inserted into the catalog.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is updated on every committed write-back.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasGPS reports whether the site carries a GPS fix.
func (s Site) HasGPS() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// IsEmpty reports whether the site has no name, description, notes or coordinates.
// Empty sites must not persist in the catalog.
func (s Site) IsEmpty() bool {
	return s.Name == "" && s.Description == "" && s.Notes == "" && !s.HasGPS()
}

// SameGPS reports whether both sites have a GPS fix at exactly the same position.
func (s Site) SameGPS(other Site) bool {
	return s.HasGPS() && s.Latitude == other.Latitude && s.Longitude == other.Longitude
}

// DiveID identifies a logged dive.
type DiveID uint32

// Dive is the part of a dive record the site catalog cares about:
// its foreign reference to a site.
type Dive struct {
	ID     DiveID    `json:"id"`
	Number int       `json:"number"`
	When   time.Time `json:"when,omitempty"`
	SiteID SiteID    `json:"site_id"`
}

// Place is a reverse-geocoding answer for a position.
type Place struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
