package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xenn00/conference-system/internal/handlers"
	hub_handler "github.com/xenn00/conference-system/internal/handlers/hub-handler"
)

func HubRouter(r chi.Router, auth func(http.Handler) http.Handler, hubHandler *hub_handler.HubHandler) {
	r.Route("/api/v1/hub", func(r chi.Router) {
		r.Use(auth)
		r.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetStats))

		// Room routes
		r.Route("/rooms/{roomId}", func(r chi.Router) {
			r.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetRoomStats))
			r.Get("/clients", handlers.WrapHandler(hubHandler.HandleGetRoomClients))
			r.Post("/kick", handlers.WrapHandler(hubHandler.HandleKickUser))
		})

		// User routes
		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/status", handlers.WrapHandler(hubHandler.HandleGetUserStatus))
			r.Get("/connections", handlers.WrapHandler(hubHandler.HandleGetUserConnections))
			r.Post("/disconnect", handlers.WrapHandler(hubHandler.HandleDisconnectUser))
		})
	})
}
