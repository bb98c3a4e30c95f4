package handlers

import "github.com/go-chi/chi/v5"

func RegisterMessageRoutes(r chi.Router, h *MessageHandler) {
	r.Route("/api/messages", func(r chi.Router) {
		r.Post("/", h.SendMessage)
		r.Get("/", h.ListMessages)
		r.Get("/stats", h.GetStats)
	})
}
