package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	hub_handler "github.com/xenn00/conference-system/internal/handlers/hub-handler"
	"github.com/xenn00/conference-system/internal/middleware"
	"github.com/xenn00/conference-system/internal/queue"
	conference_service "github.com/xenn00/conference-system/internal/use-case/conference-case"
	"github.com/xenn00/conference-system/internal/websocket"
	"github.com/xenn00/conference-system/state"
)

// Deps are the long-lived components shared between the router and the
// background workers.
type Deps struct {
	Hub       *websocket.Hub
	WebSocket http.Handler
	Service   conference_service.ConferenceServiceContract
	Producer  queue.Producer
}

func NewRouter(state *state.AppState, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	r.Use(middleware.WithRequestId)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	hubHandler := hub_handler.NewHubHandler(deps.Hub)
	r.Get("/health", hubHandler.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", deps.WebSocket)

	auth := middleware.JWTAuth(state.JwtSecret.Public, state.Redis)
	ConferenceRouter(r, auth, deps)
	HubRouter(r, auth, hubHandler)
	return r
}
