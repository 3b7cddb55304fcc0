package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/popeskul/whatsapp-followup/internal/handler"
)

func setupRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.GetHealth)

	// Twilio posts inbound WhatsApp messages here and expects TwiML back.
	r.Post("/webhook/whatsapp", h.WhatsAppWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/follow-ups", h.StartFollowUp)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Get("/{phoneNumber}", h.GetContact)
			r.Get("/{phoneNumber}/messages", h.ListContactMessages)
			r.Patch("/{id}/status", h.UpdateContactStatus)
			r.Delete("/{id}", h.DeleteContact)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", h.ListMessages)
			r.Get("/{id}", h.GetMessage)
		})
	})

	return r
}
