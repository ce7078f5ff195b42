package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/mw"
)

func init() { Register(registerSites) }

func registerSites(r chi.Router, d deps.Deps) {
	r.Route("/api/sites", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Get("/", handlers.ListSites(d))
		r.Get("/resolve", handlers.ResolveSites(d))
		r.Get("/{id}", handlers.GetSite(d))
		r.Get("/{id}/same-gps", handlers.SameGPS(d))
		r.Post("/{id}/merge", handlers.MergeSites(d))
	})
}
