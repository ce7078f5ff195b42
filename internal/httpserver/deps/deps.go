package deps

import (
	"time"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/editor"
	"github.com/MrSnakeDoc/divesite/internal/logger"
	"github.com/MrSnakeDoc/divesite/internal/metrics"
	"github.com/MrSnakeDoc/divesite/internal/store"
)

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time // for testing, defaults to time.Now
	AllowedHosts  []string         // Host headers allowed to access the server
	AllowedCIDRS  []string         // IPs allowed to access infra/readyz/metrics endpoints
	TrustProxy    bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Editor        *editor.Editor   // serializes every catalog mutation
	Catalog       *catalog.Catalog // read side
	Store         store.Store      // nil for the memory backend
	StoreKind     string           // "memory" | "redis" | "sqlite"
	Metrics       *metrics.Metrics // nil disables /metrics
	Geocoding     bool             // a reverse geocoder is configured
	GeocodeBurst  int              // per-client burst on the geocode endpoint
	GeocodePerMin int              // per-client refill on the geocode endpoint
}

// Now returns the configured clock.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
