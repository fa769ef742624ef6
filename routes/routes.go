package routes

import (
	"net/http"
	"time"

	_ "github.com/Dosada05/competition-engine/docs"
	"github.com/Dosada05/competition-engine/handlers"
	"github.com/Dosada05/competition-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	participantHandler *handlers.ParticipantHandler,
	matchHandler *handlers.MatchHandler,
	adminHandler *handlers.AdminHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// websocket живёт дольше любого таймаута запроса
	router.With(authenticate).Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", tournamentHandler.ListHandler)
			r.With(authenticate).Post("/", tournamentHandler.CreateHandler)

			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", tournamentHandler.GetByIDHandler)
				r.Get("/standings", tournamentHandler.StandingsHandler)
				r.Get("/matches", matchHandler.ListByTournamentHandler)
				r.Get("/participants", participantHandler.List)

				r.Group(func(r chi.Router) {
					r.Use(authenticate)

					r.Patch("/status", tournamentHandler.UpdateStatusHandler)
					r.Post("/fixtures", tournamentHandler.GenerateFixturesHandler)
					r.Post("/knockout", tournamentHandler.SeedKnockoutHandler)
					r.Get("/payouts", tournamentHandler.PayoutsHandler)

					r.Post("/admins", adminHandler.Grant)
					r.Delete("/admins/{userID}", adminHandler.Revoke)

					r.Post("/participants", participantHandler.Join)
					r.Post("/participants/{participantID}/approve", participantHandler.Approve)
					r.Put("/participants/{participantID}/group", participantHandler.AssignGroup)
					r.Post("/participants/{participantID}/clear-strikes", participantHandler.ClearStrikes)
					r.Post("/participants/{participantID}/strikes", participantHandler.AddStrike)
				})
			})
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", matchHandler.GetHandler)
			r.Get("/bans/{userID}", matchHandler.BanStatusHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Post("/ready", matchHandler.ToggleReadyHandler)
				r.Post("/score", matchHandler.SubmitScoreHandler)
				r.Post("/confirm", matchHandler.ConfirmScoreHandler)
				r.Post("/dispute", matchHandler.DisputeScoreHandler)

				r.Post("/force-confirm", matchHandler.ForceConfirmHandler)
				r.Post("/override", matchHandler.OverrideScoreHandler)
				r.Post("/auto-resolve", matchHandler.AutoResolveHandler)
			})
		})
	})
}
