package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/magpie-software/pical/internal/config"
	"github.com/magpie-software/pical/internal/handlers"
	"github.com/magpie-software/pical/internal/middleware"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/services"
)

type Server struct {
	router *chi.Mux
	config config.Config
}

func New(database *sql.DB, cfg config.Config, refreshService *services.RefreshService) *Server {
	eventRepo := repository.NewEventRepository(database)
	recurringRepo := repository.NewRecurringEventRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)
	tokenRepo := repository.NewAPITokenRepository(database)

	sessions := middleware.NewSessions(cfg.SessionSecret)

	authHandler := handlers.NewAuthHandler(sessions, cfg.AccessKey)
	eventHandler := handlers.NewEventHandler(eventRepo, cfg.Location)
	recurringHandler := handlers.NewRecurringEventHandler(recurringRepo, settingsRepo, cfg.Location)
	agendaHandler := handlers.NewAgendaHandler(eventRepo, recurringRepo, settingsRepo, cfg.Location, cfg.HorizonDays)
	adminHandler := handlers.NewAdminHandler(settingsRepo, tokenRepo, refreshService, cfg.Location)
	icalHandler := handlers.NewICalHandler(eventRepo, recurringRepo, tokenRepo, cfg.Location)

	router := chi.NewRouter()

	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Compress(5))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Post("/login", authHandler.Login)
	router.Post("/logout", authHandler.Logout)

	router.Get("/ical", icalHandler.Feed)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(sessions))

		r.Get("/api/agenda", agendaHandler.Agenda)

		r.Get("/api/events", eventHandler.List)
		r.Get("/api/events/{id}", eventHandler.Get)
		r.Post("/api/events", eventHandler.Create)
		r.Put("/api/events/{id}", eventHandler.Update)
		r.Delete("/api/events/{id}", eventHandler.Delete)

		r.Get("/api/recurring", recurringHandler.List)
		r.Get("/api/recurring/{id}", recurringHandler.Get)
		r.Get("/api/recurring/{id}/occurrences", recurringHandler.Occurrences)
		r.Post("/api/recurring", recurringHandler.Create)
		r.Put("/api/recurring/{id}", recurringHandler.Update)
		r.Delete("/api/recurring/{id}", recurringHandler.Delete)
		r.Post("/api/recurring/reorder", recurringHandler.Reorder)

		r.Get("/api/settings", adminHandler.Settings)
		r.Post("/api/settings", adminHandler.UpdateSettings)
		r.Post("/api/refresh", adminHandler.Refresh)

		r.Post("/api/tokens", adminHandler.CreateToken)
		r.Delete("/api/tokens/{id}", adminHandler.DeleteToken)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.APITokenAuth(tokenRepo))

		r.Get("/api/v1/agenda", agendaHandler.Agenda)
		r.Get("/api/v1/events", eventHandler.List)
		r.Get("/api/v1/events/{id}", eventHandler.Get)
		r.Get("/api/v1/recurring", recurringHandler.List)
		r.Get("/api/v1/recurring/{id}", recurringHandler.Get)
	})

	return &Server{router: router, config: cfg}
}

func (server *Server) Start() error {
	address := ":" + server.config.Port
	slog.Info("starting server", "address", address)
	return http.ListenAndServe(address, server.router)
}

func (server *Server) Handler() http.Handler {
	return server.router
}
