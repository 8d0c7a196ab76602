package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/services"
)

// AdminHandler exposes user settings, API token management, and the manual
// refresh trigger.
type AdminHandler struct {
	settingsRepo repository.SettingsRepository
	tokenRepo    repository.APITokenRepository
	refresh      *services.RefreshService
	location     *time.Location
}

func NewAdminHandler(
	settingsRepo repository.SettingsRepository,
	tokenRepo repository.APITokenRepository,
	refresh *services.RefreshService,
	location *time.Location,
) *AdminHandler {
	return &AdminHandler{
		settingsRepo: settingsRepo,
		tokenRepo:    tokenRepo,
		refresh:      refresh,
		location:     location,
	}
}

var settingKeys = []string{
	repository.SettingAutoPurgePastEvents,
	repository.SettingAutoExpireRecurring,
	repository.SettingSmartAgendaGrouping,
	repository.SettingRecurringManualOrder,
	repository.SettingAgendaNotifications,
	repository.SettingRecurringNotifications,
	repository.SettingAgendaNotificationTime,
	repository.SettingRecurringNotificationTime,
	repository.SettingLastRefreshDate,
}

func (handler *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := make(map[string]string, len(settingKeys))
	for _, key := range settingKeys {
		if value, err := handler.settingsRepo.Get(ctx, key); err == nil {
			settings[key] = value
		}
	}
	writeJSON(w, http.StatusOK, settings)
}

func (handler *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	known := make(map[string]bool, len(settingKeys))
	for _, key := range settingKeys {
		known[key] = true
	}

	for key, value := range payload {
		if !known[key] || key == repository.SettingLastRefreshDate {
			writeError(w, http.StatusBadRequest, "unknown setting: "+key)
			return
		}
		if err := handler.settingsRepo.Set(ctx, key, value); err != nil {
			slog.Error("updating setting", "key", key, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update settings")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Refresh runs the retention pass on demand, for clients that want the
// collections settled immediately after changing a setting.
func (handler *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := handler.refresh.Run(r.Context(), time.Now().In(handler.location))
	if err != nil {
		slog.Error("manual refresh", "error", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"purged_events":         len(result.RemovedEventIDs),
		"expired_recurring":     len(result.RemovedRecurringIDs),
		"decremented_recurring": len(result.UpdatedRecurringIDs),
	})
}

func (handler *AdminHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name"`
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if payload.Scope == "" {
		payload.Scope = "api"
	}
	if payload.Scope != "api" && payload.Scope != "ical" {
		writeError(w, http.StatusBadRequest, "scope must be api or ical")
		return
	}

	rawToken := generateToken()
	token := models.APIToken{
		Name:      payload.Name,
		TokenHash: repository.HashToken(rawToken),
		Scope:     payload.Scope,
	}

	created, err := handler.tokenRepo.Create(r.Context(), token)
	if err != nil {
		slog.Error("creating token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    created.ID,
		"name":  created.Name,
		"scope": created.Scope,
		"token": rawToken,
	})
}

func (handler *AdminHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := handler.tokenRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete token")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
