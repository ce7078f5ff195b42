package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/mw"
)

func init() { Register(registerDives) }

func registerDives(r chi.Router, d deps.Deps) {
	r.Route("/api/dives", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Get("/", handlers.ListDives(d))
		r.Post("/", handlers.RecordDive(d))
		r.Put("/{id}/site", handlers.AssignDive(d))
	})
}
