package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c *Controller) Mux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Get("/api/room/{room-id}", c.GetRoom)
	r.Get("/api/room/{room-id}/messages", c.GetMessages)
	r.Post("/api/room/{room-id}/messages", c.SendMessage)
	r.Post("/api/room/{room-id}/queue", c.QueueSongs)

	r.HandleFunc("/ws/room/{room-id}", c.StreamMessages)

	return r
}
