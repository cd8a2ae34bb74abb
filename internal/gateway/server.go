package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())

	r.Route("/api", func(r chi.Router) {
		r.Post("/detect", g.handleDetect())
		r.Get("/stats", g.handleStats())
		r.Get("/history", g.handleHistory())
		r.Get("/deliveries", g.handleDeliveries())
		r.Post("/channels/test", g.handleTestChannels())
		r.Put("/threshold", g.handleSetThreshold())
	})

	return r
}
