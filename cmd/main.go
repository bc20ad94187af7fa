package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/config"
	"github.com/xenn00/conference-system/internal/queue"
	message_repo "github.com/xenn00/conference-system/internal/repo/message"
	"github.com/xenn00/conference-system/internal/routers"
	"github.com/xenn00/conference-system/internal/summarizer"
	conference_service "github.com/xenn00/conference-system/internal/use-case/conference-case"
	"github.com/xenn00/conference-system/internal/websocket"
	"github.com/xenn00/conference-system/internal/worker"
	worker_handler "github.com/xenn00/conference-system/internal/worker/worker-handler"
	"github.com/xenn00/conference-system/state"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// initialize the application
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if !config.Conf.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	appState, err := state.InitAppState(ctx, stop)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application state")
	}
	defer appState.Close()

	if db := appState.MongoDatabase(); db != nil {
		if err := message_repo.NewMongoMessageRepo(db).EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create message indexes")
		}
	}

	var completer summarizer.TextCompleter
	if c := summarizer.NewOpenAICompleter(config.Conf.SUMMARY.OpenAIKey, config.Conf.SUMMARY.Model, config.Conf.SUMMARY.MaxTokens); c != nil {
		completer = c
	} else {
		log.Warn().Msg("OpenAI key not configured, auto summaries are disabled")
	}

	service := conference_service.NewConferenceService(appState, completer)
	producer := queue.NewProducer(appState.Redis)

	wsHub := websocket.NewHub()
	go wsHub.Run(0)
	defer wsHub.Close()
	log.Info().Msg("Websocket hub initialized")

	relay := websocket.NewRelay(wsHub, service, worker.QueuedPresence{Producer: producer})
	authFunc := websocket.JWTWebSocketAuth(appState.JwtSecret.Public, appState.Redis)

	wsHandler := websocket.NewWebSocketHandler(wsHub, relay, authFunc)
	wsHandler.MaxConnections = config.Conf.WEBSOCKET.MaxConnections
	wsHandler.ConnectionsPerIP = config.Conf.WEBSOCKET.ConnectionsPerIP
	log.Info().Msg("Websocket handler initialized")

	r := routers.NewRouter(appState, routers.Deps{
		Hub:       wsHub,
		WebSocket: wsHandler,
		Service:   service,
		Producer:  producer,
	})

	workerPool := worker.NewWorkerPool(appState.Redis, appState.MongoDatabase(), config.Conf.WORKER.Count, worker_handler.NewWorkerHandler(wsHub, service))
	workerPool.Start(ctx)

	server := &http.Server{
		Addr:        config.Conf.App.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// websocket connections outlive any write timeout
		IdleTimeout: 60 * time.Second,
	}

	// serve the application
	go func() {
		log.Info().Msgf("Starting server on http://localhost%s", config.Conf.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(fmt.Sprintf("ListenAndServe failed: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown initiated...")
	// gracefully shutdown the application
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	} else {
		log.Info().Msg("Server exited gracefully.")
	}
	workerPool.Stop()
}
