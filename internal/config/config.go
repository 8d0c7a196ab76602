package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabasePath  string
	Port          string
	LogLevel      string
	SessionSecret string
	AccessKey     string
	Timezone      string
	HorizonDays   int

	Location *time.Location
}

func Load() (Config, error) {
	config := Config{
		DatabasePath:  envOrDefault("DATABASE_PATH", "./data/pical.db"),
		Port:          envOrDefault("PORT", "8080"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		AccessKey:     os.Getenv("ACCESS_KEY"),
		Timezone:      envOrDefault("TIMEZONE", "Local"),
	}

	if config.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}
	if config.AccessKey == "" {
		return Config{}, fmt.Errorf("ACCESS_KEY is required")
	}

	horizon := envOrDefault("AGENDA_HORIZON_DAYS", "21")
	days, err := strconv.Atoi(horizon)
	if err != nil || days < 1 {
		return Config{}, fmt.Errorf("invalid AGENDA_HORIZON_DAYS: %q", horizon)
	}
	config.HorizonDays = days

	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("loading timezone %q: %w", config.Timezone, err)
	}
	config.Location = location

	return config, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
