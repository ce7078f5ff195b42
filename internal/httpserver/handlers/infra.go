package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Sites      *int   `json:"sites,omitempty"`
	Dives      *int   `json:"dives,omitempty"`
	Sessions   *int   `json:"sessions,omitempty"`
	LastID     uint32 `json:"last_id,omitempty"`
	LastReload string `json:"last_reload,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Impact     string `json:"impact,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sites := d.Catalog.Count()
		dives := len(d.Catalog.Dives())
		sessions := len(d.Editor.Sessions())

		lastReload := d.Catalog.LastReload()
		lastReloadStr := "never"
		if !lastReload.IsZero() {
			lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
		}

		components := map[string]componentStatus{
			"catalog": {
				OK:         true,
				Sites:      &sites,
				Dives:      &dives,
				LastID:     uint32(d.Catalog.LastID()),
				LastReload: lastReloadStr,
			},
			"editor": {
				OK:       true,
				Sessions: &sessions,
			},
			"store":    checkStore(r.Context(), d),
			"geocoder": checkGeocoder(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Store down = edits are kept in memory only and lost on restart
	if store, exists := components["store"]; exists && !store.OK {
		return "degraded"
	}
	if geo, exists := components["geocoder"]; exists && !geo.OK {
		return "limited"
	}
	return "operational"
}

func checkStore(parent context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     true,
			Mode:   d.StoreKind,
			Impact: "changes-lost-on-restart",
		}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StoreKind,
			Impact: "persistence-disabled",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   d.StoreKind,
		Impact: "persistence-enabled",
	}
}

func checkGeocoder(d deps.Deps) componentStatus {
	if !d.Geocoding {
		return componentStatus{
			OK:     false,
			Impact: "reverse-geocoding-disabled",
			Error:  "not configured",
		}
	}
	return componentStatus{OK: true, Mode: "nominatim"}
}
