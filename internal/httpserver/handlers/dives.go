package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
)

type divesResponse struct {
	Dives []domain.Dive `json:"dives"`
	Count int           `json:"count"`
}

func ListDives(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dives := d.Catalog.Dives()
		writeJSON(w, http.StatusOK, divesResponse{Dives: dives, Count: len(dives)})
	}
}

// RecordDive adds or replaces a dive record.
func RecordDive(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dive domain.Dive
		if err := decodeJSON(w, r, &dive); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if dive.ID == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "dive id is required"})
			return
		}
		if err := d.Editor.RecordDive(dive); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, dive)
	}
}

type assignRequest struct {
	SiteID domain.SiteID `json:"site_id"`
}

// AssignDive points a dive at a site; site_id 0 clears it.
func AssignDive(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := diveIDParam(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		var req assignRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Editor.AssignDive(id, req.SiteID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		dive, err := d.Catalog.Dive(id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, dive)
	}
}
