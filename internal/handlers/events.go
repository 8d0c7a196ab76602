package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/services"
)

type EventHandler struct {
	eventRepo repository.EventRepository
	location  *time.Location
}

func NewEventHandler(eventRepo repository.EventRepository, location *time.Location) *EventHandler {
	return &EventHandler{eventRepo: eventRepo, location: location}
}

type eventPayload struct {
	Title        string     `json:"title"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	IncludesTime bool       `json:"includes_time"`
	Location     string     `json:"location"`
	Notes        string     `json:"notes"`
	Recurrence   string     `json:"recurrence"`
}

func (payload eventPayload) toModel(location *time.Location) (models.Event, error) {
	event := models.Event{
		Title:        payload.Title,
		StartTime:    payload.StartTime.In(location),
		EndTime:      payload.EndTime,
		IncludesTime: payload.IncludesTime,
		Location:     payload.Location,
		Notes:        payload.Notes,
		Recurrence:   models.Recurrence(payload.Recurrence),
	}
	if event.Recurrence == "" {
		event.Recurrence = models.RecurrenceNone
	}
	switch event.Recurrence {
	case models.RecurrenceNone, models.RecurrenceWeekly, models.RecurrenceMonthly:
	default:
		return models.Event{}, errInvalidRecurrence
	}
	// Timeless events are pinned to midnight so occurrences carry no
	// time-of-day.
	if !event.IncludesTime {
		event.StartTime = services.StartOfDay(event.StartTime)
		event.EndTime = nil
	}
	return event, nil
}

var errInvalidRecurrence = &badRequestError{"recurrence must be none, weekly, or monthly"}

type badRequestError struct{ message string }

func (err *badRequestError) Error() string { return err.message }

func (handler *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := repository.EventFilter{}
	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		after, err := time.ParseInLocation("2006-01-02", afterStr, handler.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be a YYYY-MM-DD date")
			return
		}
		filter.StartAfter = &after
	}
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		before, err := time.ParseInLocation("2006-01-02", beforeStr, handler.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be a YYYY-MM-DD date")
			return
		}
		filter.StartBefore = &before
	}

	events, err := handler.eventRepo.FindAll(ctx, filter)
	if err != nil {
		slog.Error("finding events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (handler *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := handler.eventRepo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (handler *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	event, err := payload.toModel(handler.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := handler.eventRepo.Create(r.Context(), event)
	if err != nil {
		slog.Error("creating event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (handler *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, err := handler.eventRepo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	event, err := payload.toModel(handler.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	event.ID = existing.ID
	event.CreatedAt = existing.CreatedAt

	if err := handler.eventRepo.Update(ctx, event); err != nil {
		slog.Error("updating event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (handler *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := handler.eventRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("deleting event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
