package redis

import (
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

const (
	// KeyPrefixSite is the prefix for site keys
	KeyPrefixSite = "divesite:site:"
	// KeyPrefixDive is the prefix for dive keys
	KeyPrefixDive = "divesite:dive:"
	// KeyPrefixPlace is the prefix for cached reverse-geocode answers
	KeyPrefixPlace = "divesite:place:"
	// KeyAllSites is the key for the set of all site IDs
	KeyAllSites = "divesite:sites:all"
	// KeyAllDives is the key for the set of all dive IDs
	KeyAllDives = "divesite:dives:all"
	// KeyLastID holds the highest site id ever allocated
	KeyLastID = "divesite:sites:last_id"
)

// SiteKey returns the Redis key for a site by ID
func SiteKey(id domain.SiteID) string {
	return KeyPrefixSite + strconv.FormatUint(uint64(id), 10)
}

// DiveKey returns the Redis key for a dive by ID
func DiveKey(id domain.DiveID) string {
	return KeyPrefixDive + strconv.FormatUint(uint64(id), 10)
}

// PlaceKey returns the cache key for a position
func PlaceKey(lat, lon domain.MicroDegrees) string {
	return fmt.Sprintf("%s%d:%d", KeyPrefixPlace, lat, lon)
}
