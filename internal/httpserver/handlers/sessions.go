package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/editor"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/session"
)

type beginRequest struct {
	SiteID domain.SiteID `json:"site_id,omitempty"`
	Create *string       `json:"create,omitempty"`
	DiveID domain.DiveID `json:"dive_id,omitempty"`
}

func (b beginRequest) reference() (session.Reference, error) {
	switch {
	case b.Create != nil && b.SiteID != domain.NoSite:
		return session.Reference{}, fmt.Errorf("%w: site_id and create are mutually exclusive", errBadRequest)
	case b.Create != nil:
		return session.Create(*b.Create, b.DiveID), nil
	case b.SiteID != domain.NoSite:
		return session.Reference{SiteID: b.SiteID, Dive: b.DiveID}, nil
	default:
		return session.Reference{}, fmt.Errorf("%w: one of site_id or create is required", errBadRequest)
	}
}

type sessionsResponse struct {
	Sessions []editor.View `json:"sessions"`
}

type geocodeResponse struct {
	Session    string `json:"session_id"`
	Generation uint64 `json:"generation"`
	Pending    bool   `json:"pending"`
}

// BeginSession opens an edit session on an existing site or a site to create.
func BeginSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req beginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		ref, err := req.reference()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		v, err := d.Editor.Begin(ref)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	}
}

func ListSessions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sessionsResponse{Sessions: d.Editor.Sessions()})
	}
}

func GetSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := d.Editor.Session(chi.URLParam(r, "sid"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

type setFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SetField edits one field of the session's scratch copy.
func SetField(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setFieldRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		field, err := domain.ParseField(req.Field)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		v, err := d.Editor.SetField(chi.URLParam(r, "sid"), field, req.Value)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// Geocode starts a reverse lookup. The answer lands in the session later;
// clients poll GET /sessions/{sid} until geocode_pending is false.
func Geocode(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := d.Editor.Geocode(chi.URLParam(r, "sid"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, geocodeResponse{
			Session:    t.Session,
			Generation: t.Generation,
			Pending:    true,
		})
	}
}

func CommitSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Editor.Commit(chi.URLParam(r, "sid"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func DiscardSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Editor.Discard(chi.URLParam(r, "sid")); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
