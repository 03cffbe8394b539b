package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"peerhub/internal/gateway"
	"peerhub/internal/metrics"
)

func New(h *gateway.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/webrtc/config", h.GetWebRTCConfig)
		r.Post("/run", h.RunCode)
		r.Get("/profile/{userId}", h.GetProfile)
	})

	r.Get("/ws", h.CollabWS)

	return r
}
