package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/services"
)

type RecurringEventHandler struct {
	recurringRepo repository.RecurringEventRepository
	settingsRepo  repository.SettingsRepository
	location      *time.Location
}

func NewRecurringEventHandler(
	recurringRepo repository.RecurringEventRepository,
	settingsRepo repository.SettingsRepository,
	location *time.Location,
) *RecurringEventHandler {
	return &RecurringEventHandler{
		recurringRepo: recurringRepo,
		settingsRepo:  settingsRepo,
		location:      location,
	}
}

type recurringPayload struct {
	Title    string `json:"title"`
	Location string `json:"location"`
	Notes    string `json:"notes"`

	PatternKind string `json:"pattern_kind"`
	Weekday     int    `json:"weekday"`
	Ordinal     int    `json:"ordinal"`
	DayOfMonth  int    `json:"day_of_month"`

	StopKind  string     `json:"stop_kind,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Remaining *int       `json:"remaining,omitempty"`
}

func (payload recurringPayload) toModel() (models.RecurringEvent, error) {
	var pattern models.RecurrencePattern
	var err error
	switch models.PatternKind(payload.PatternKind) {
	case models.PatternWeekly:
		pattern = models.NewWeeklyPattern(time.Weekday(payload.Weekday))
	case models.PatternMonthlyOrdinal:
		pattern, err = models.NewMonthlyOrdinalPattern(models.OrdinalWeek(payload.Ordinal), time.Weekday(payload.Weekday))
	case models.PatternMonthlyDate:
		pattern, err = models.NewMonthlyDatePattern(payload.DayOfMonth)
	default:
		return models.RecurringEvent{}, &badRequestError{"pattern_kind must be weekly, monthly_ordinal, or monthly_date"}
	}
	if err != nil {
		return models.RecurringEvent{}, &badRequestError{err.Error()}
	}

	event := models.RecurringEvent{
		Title:    payload.Title,
		Location: payload.Location,
		Notes:    payload.Notes,
		Pattern:  pattern,
	}

	switch models.StopKind(payload.StopKind) {
	case "":
	case models.StopEndDate:
		if payload.EndDate == nil {
			return models.RecurringEvent{}, &badRequestError{"end_date is required for an end_date stop condition"}
		}
		event.StopCondition = models.StopOnDate(*payload.EndDate)
	case models.StopOccurrenceCount:
		if payload.Remaining == nil || *payload.Remaining < 0 {
			return models.RecurringEvent{}, &badRequestError{"remaining must be a non-negative count"}
		}
		event.StopCondition = models.StopAfter(*payload.Remaining)
	default:
		return models.RecurringEvent{}, &badRequestError{"stop_kind must be end_date or occurrence_count"}
	}

	return event, nil
}

func (handler *RecurringEventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := handler.recurringRepo.FindAll(r.Context())
	if err != nil {
		slog.Error("finding recurring events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load recurring events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (handler *RecurringEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := handler.recurringRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "recurring event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (handler *RecurringEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload recurringPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	event, err := payload.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A series saved with an end date already in the past is not stored
	// when auto-expire is on; the next refresh would delete it anyway.
	autoExpire, _ := handler.settingsRepo.GetBool(ctx, repository.SettingAutoExpireRecurring, false)
	if !services.ApplyStopConditionOnWrite(event, time.Now().In(handler.location), autoExpire) {
		writeError(w, http.StatusUnprocessableEntity, "end date is already in the past")
		return
	}

	created, err := handler.recurringRepo.Create(ctx, event)
	if err != nil {
		slog.Error("creating recurring event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create recurring event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (handler *RecurringEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, err := handler.recurringRepo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "recurring event not found")
		return
	}

	var payload recurringPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	event, err := payload.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	event.ID = existing.ID
	event.Position = existing.Position
	event.CreatedAt = existing.CreatedAt

	// An edit that moves the end date into the past removes the series
	// when auto-expire is on, mirroring create.
	autoExpire, _ := handler.settingsRepo.GetBool(ctx, repository.SettingAutoExpireRecurring, false)
	if !services.ApplyStopConditionOnWrite(event, time.Now().In(handler.location), autoExpire) {
		if err := handler.recurringRepo.Delete(ctx, event.ID); err != nil {
			slog.Error("removing expired recurring event on update", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update recurring event")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := handler.recurringRepo.Update(ctx, event); err != nil {
		slog.Error("updating recurring event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update recurring event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (handler *RecurringEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := handler.recurringRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting recurring event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete recurring event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *RecurringEventHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OrderedIDs []string `json:"ordered_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := handler.recurringRepo.Reorder(r.Context(), payload.OrderedIDs); err != nil {
		slog.Error("reordering recurring events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reorder recurring events")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Occurrences previews the days a single series falls on within a horizon,
// for the series detail view.
func (handler *RecurringEventHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	event, err := handler.recurringRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "recurring event not found")
		return
	}

	days := 21
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil {
			days = parsed
		}
	}

	today := services.StartOfDay(time.Now().In(handler.location))
	window := services.DateRange{Lower: today, Upper: today.AddDate(0, 0, days)}
	occurrences, err := services.RecurringOccurrencesInRange(event, window)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, occurrences)
}
