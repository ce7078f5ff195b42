package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/logger"
)

type siteResponse struct {
	domain.Site
	GPS   string          `json:"gps,omitempty"`
	Dives []domain.DiveID `json:"dives,omitempty"`
}

type sitesResponse struct {
	Sites []siteResponse `json:"sites"`
	Count int            `json:"count"`
}

func toSiteResponse(c *catalog.Catalog, s domain.Site) siteResponse {
	resp := siteResponse{Site: s, Dives: c.DivesAt(s.ID)}
	if s.HasGPS() {
		resp.GPS = domain.FormatGPS(s.Latitude, s.Longitude)
	}
	return resp
}

func toSitesResponse(c *catalog.Catalog, sites []domain.Site) sitesResponse {
	out := make([]siteResponse, len(sites))
	for i, s := range sites {
		out[i] = toSiteResponse(c, s)
	}
	return sitesResponse{Sites: out, Count: len(out)}
}

// ListSites returns the catalog in insertion order, or by name with ?sort=name.
func ListSites(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sites := d.Catalog.All()
		if r.URL.Query().Get("sort") == "name" {
			sort.SliceStable(sites, func(i, j int) bool {
				return strings.ToLower(sites[i].Name) < strings.ToLower(sites[j].Name)
			})
		}
		writeJSON(w, http.StatusOK, toSitesResponse(d.Catalog, sites))
	}
}

func GetSite(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := siteIDParam(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		site, err := d.Catalog.Lookup(id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSiteResponse(d.Catalog, site))
	}
}

// SameGPS lists the other sites sharing the site's exact position.
func SameGPS(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := siteIDParam(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		sites, err := d.Catalog.WithSameGPS(id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSitesResponse(d.Catalog, sites))
	}
}

type candidateResponse struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	SiteID uint32 `json:"site_id,omitempty"`
}

type resolveResponse struct {
	Query      string              `json:"query"`
	Candidates []candidateResponse `json:"candidates"`
}

// ResolveSites returns the picker candidates for ?q=. It never changes anything.
func ResolveSites(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		candidates := d.Editor.Resolve(query)
		out := make([]candidateResponse, len(candidates))
		for i, c := range candidates {
			out[i] = candidateResponse{Kind: c.Kind.String(), Name: c.Name}
			if c.Site != nil {
				out[i].SiteID = uint32(c.Site.ID)
			}
		}
		writeJSON(w, http.StatusOK, resolveResponse{Query: query, Candidates: out})
	}
}

type mergeRequest struct {
	Sources []domain.SiteID `json:"sources"`
	Confirm bool            `json:"confirm"`
}

// MergeSites folds the sources into the site in the path. The caller must
// send "confirm": true; the merge cannot be undone.
func MergeSites(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := siteIDParam(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		var req mergeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if !req.Confirm {
			writeJSON(w, http.StatusPreconditionRequired, errorResponse{
				Error: "merge is irreversible: resend with \"confirm\": true",
			})
			return
		}

		res, err := d.Editor.Merge(target, req.Sources)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("sites merged via api",
			logger.Uint32("target", uint32(target)),
			logger.Int("sources", len(res.Removed)))
		writeJSON(w, http.StatusOK, res)
	}
}
