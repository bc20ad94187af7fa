package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xenn00/conference-system/internal/handlers"
	conference_handler "github.com/xenn00/conference-system/internal/handlers/conference-handler"
)

func ConferenceRouter(r chi.Router, auth func(http.Handler) http.Handler, deps Deps) {
	conferenceHandler := conference_handler.NewConferenceHandler(deps.Service, deps.Producer)

	r.Route("/api/v1/conferences", func(r chi.Router) {
		// anyone holding the link can look the conference up
		r.Get("/link/{link}", handlers.WrapHandler(conferenceHandler.GetConferenceByLink))

		r.Group(func(protected chi.Router) {
			protected.Use(auth)
			protected.Post("/", handlers.WrapHandler(conferenceHandler.CreateConference))

			protected.Route("/{conferenceId}", func(r chi.Router) {
				r.Get("/", handlers.WrapHandler(conferenceHandler.GetConference))
				r.Post("/join", handlers.WrapHandler(conferenceHandler.JoinConference))
				r.Post("/leave", handlers.WrapHandler(conferenceHandler.LeaveConference))
				r.Post("/end", handlers.WrapHandler(conferenceHandler.EndConference))
				r.Put("/participant", handlers.WrapHandler(conferenceHandler.UpdateParticipant))

				r.Get("/messages", handlers.WrapHandler(conferenceHandler.ListMessages))
				r.Post("/messages", handlers.WrapHandler(conferenceHandler.PostMessage))

				r.Get("/summary", handlers.WrapHandler(conferenceHandler.GetSummary))
				r.Post("/summary/auto", handlers.WrapHandler(conferenceHandler.GenerateAutoSummary))
				r.Put("/summary/manual", handlers.WrapHandler(conferenceHandler.EditManualSummary))
			})
		})
	})
}
