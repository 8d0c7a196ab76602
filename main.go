package main

import (
	"log/slog"
	"os"

	"github.com/magpie-software/pical/internal/config"
	"github.com/magpie-software/pical/internal/database"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/server"
	"github.com/magpie-software/pical/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	configureLogging(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	eventRepo := repository.NewEventRepository(db)
	recurringRepo := repository.NewRecurringEventRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	refreshService := services.NewRefreshService(eventRepo, recurringRepo, settingsRepo, cfg.Location)
	notificationService := services.NewNotificationService(eventRepo, recurringRepo, settingsRepo, services.SlogNotifier{})

	scheduler := services.NewScheduler(refreshService, notificationService, cfg.Location)
	if err := scheduler.Start(); err != nil {
		slog.Error("starting scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	srv := server.New(db, cfg, refreshService)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func configureLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
