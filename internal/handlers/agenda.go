package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/services"
)

type AgendaHandler struct {
	eventRepo     repository.EventRepository
	recurringRepo repository.RecurringEventRepository
	settingsRepo  repository.SettingsRepository
	location      *time.Location
	horizonDays   int
}

func NewAgendaHandler(
	eventRepo repository.EventRepository,
	recurringRepo repository.RecurringEventRepository,
	settingsRepo repository.SettingsRepository,
	location *time.Location,
	horizonDays int,
) *AgendaHandler {
	return &AgendaHandler{
		eventRepo:     eventRepo,
		recurringRepo: recurringRepo,
		settingsRepo:  settingsRepo,
		location:      location,
		horizonDays:   horizonDays,
	}
}

type agendaOccurrence struct {
	OccurrenceID string `json:"occurrence_id"`
	models.EventOccurrence
	TimeLabel string                `json:"time_label"`
	Bucket    services.AgendaBucket `json:"bucket,omitempty"`
}

type agendaSection struct {
	Date        time.Time          `json:"date"`
	Occurrences []agendaOccurrence `json:"occurrences"`
}

type agendaResponse struct {
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Sections    []agendaSection `json:"sections"`
}

// Agenda projects the next N days of occurrences, grouped per day. Smart
// buckets (Today / This Week / Later) are attached when the setting is on.
func (handler *AgendaHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := handler.horizonDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}
	if days < 0 {
		writeError(w, http.StatusBadRequest, "days must not be negative")
		return
	}

	events, err := handler.eventRepo.FindAll(ctx, repository.EventFilter{})
	if err != nil {
		slog.Error("finding events for agenda", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	recurring, err := handler.recurringRepo.FindAll(ctx)
	if err != nil {
		slog.Error("finding recurring events for agenda", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load recurring events")
		return
	}

	today := services.StartOfDay(time.Now().In(handler.location))
	window := services.DateRange{Lower: today, Upper: today.AddDate(0, 0, days)}

	occurrences, err := services.Project(events, recurring, window)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDateRange) || errors.Is(err, services.ErrUnboundedWindow) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("projecting agenda", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to project agenda")
		return
	}

	smartGrouping, _ := handler.settingsRepo.GetBool(ctx, repository.SettingSmartAgendaGrouping, false)

	response := agendaResponse{WindowStart: window.Lower, WindowEnd: window.Upper}
	for _, section := range services.AgendaSections(occurrences) {
		out := agendaSection{Date: section.Date}
		for _, occurrence := range section.Occurrences {
			entry := agendaOccurrence{
				OccurrenceID:    occurrence.OccurrenceID(),
				EventOccurrence: occurrence,
				TimeLabel:       services.TimeLabel(occurrence),
			}
			if smartGrouping {
				entry.Bucket = services.BucketFor(occurrence.StartDate, today)
			}
			out.Occurrences = append(out.Occurrences, entry)
		}
		response.Sections = append(response.Sections, out)
	}

	writeJSON(w, http.StatusOK, response)
}
