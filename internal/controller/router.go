package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sharetube/watchroom/pkg/metrics"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", c.getHealth)
		r.Get("/rooms", c.getRooms)
		r.Get("/ws", c.serveWS)
	})

	return r
}
