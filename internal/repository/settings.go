package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Setting keys persisted in the settings table.
const (
	SettingAutoPurgePastEvents       = "auto_purge_past_events"
	SettingAutoExpireRecurring       = "auto_expire_recurring"
	SettingSmartAgendaGrouping       = "smart_agenda_grouping"
	SettingRecurringManualOrder      = "recurring_manual_order"
	SettingAgendaNotifications       = "agenda_notifications_enabled"
	SettingRecurringNotifications    = "recurring_notifications_enabled"
	SettingAgendaNotificationTime    = "agenda_notification_time"
	SettingRecurringNotificationTime = "recurring_notification_time"
	SettingLastRefreshDate           = "last_refresh_date"
)

type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	GetBool(ctx context.Context, key string, fallback bool) (bool, error)
	Set(ctx context.Context, key string, value string) error
}

type SQLiteSettingsRepository struct {
	database *sql.DB
}

func NewSettingsRepository(database *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{database: database}
}

func (repository *SQLiteSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := repository.database.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key,
	).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

func (repository *SQLiteSettingsRepository) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	value, err := repository.Get(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return value == "true" || value == "1", nil
}

func (repository *SQLiteSettingsRepository) Set(ctx context.Context, key string, value string) error {
	_, err := repository.database.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?",
		key, value, value,
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}
