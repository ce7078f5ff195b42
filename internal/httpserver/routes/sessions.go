package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/mw"
)

func init() { Register(registerSessions) }

func registerSessions(r chi.Router, d deps.Deps) {
	geocodeLimit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.GeocodeBurst,
		RefillPerIPPerMin: d.GeocodePerMin,
		MaxEntries:        4096,
		TrustProxy:        d.TrustProxy,
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Get("/", handlers.ListSessions(d))
		r.Post("/", handlers.BeginSession(d))
		r.Get("/{sid}", handlers.GetSession(d))
		r.Patch("/{sid}", handlers.SetField(d))
		r.With(geocodeLimit).Post("/{sid}/geocode", handlers.Geocode(d))
		r.Post("/{sid}/commit", handlers.CommitSession(d))
		r.Post("/{sid}/discard", handlers.DiscardSession(d))
		r.Delete("/{sid}", handlers.DiscardSession(d))
	})
}
