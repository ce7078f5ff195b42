package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/mw"
)

func init() { Register(registerOps) }

func registerOps(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	restricted := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	restricted.Get("/readyz", handlers.Readyz(d))
	restricted.Get("/infra", handlers.Infra(d))
	if d.Metrics != nil {
		restricted.Method("GET", "/metrics", d.Metrics.Handler())
	}
}
