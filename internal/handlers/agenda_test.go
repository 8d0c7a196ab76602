package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/testutil"
)

func setupAgendaHandler(t *testing.T) (*AgendaHandler, repository.EventRepository, repository.RecurringEventRepository, repository.SettingsRepository) {
	t.Helper()
	database := testutil.NewTestDatabase(t)
	eventRepo := repository.NewEventRepository(database)
	recurringRepo := repository.NewRecurringEventRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)

	handler := NewAgendaHandler(eventRepo, recurringRepo, settingsRepo, time.UTC, 21)
	return handler, eventRepo, recurringRepo, settingsRepo
}

func serveAgenda(handler *AgendaHandler, target string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Get("/api/agenda", handler.Agenda)

	request := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeAgenda(t *testing.T, recorder *httptest.ResponseRecorder) agendaResponse {
	t.Helper()
	var response agendaResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decoding agenda response: %v", err)
	}
	return response
}

func TestAgendaHandler_ProjectsUpcomingOccurrences(t *testing.T) {
	handler, eventRepo, recurringRepo, _ := setupAgendaHandler(t)
	ctx := context.Background()

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	_, err := eventRepo.Create(ctx, models.Event{
		Title:        "Dentist",
		StartTime:    tomorrow,
		IncludesTime: true,
	})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	_, err = recurringRepo.Create(ctx, models.RecurringEvent{
		Title:   "Daily-ish sync",
		Pattern: models.NewWeeklyPattern(tomorrow.Weekday()),
	})
	if err != nil {
		t.Fatalf("creating recurring event: %v", err)
	}

	recorder := serveAgenda(handler, "/api/agenda")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	response := decodeAgenda(t, recorder)
	if len(response.Sections) == 0 {
		t.Fatal("expected at least one agenda section")
	}

	var sawEvent, sawSeries bool
	for _, section := range response.Sections {
		for _, occurrence := range section.Occurrences {
			if occurrence.Title == "Dentist" {
				sawEvent = true
				if occurrence.OccurrenceID == "" {
					t.Error("expected a stable occurrence id")
				}
			}
			if occurrence.Title == "Daily-ish sync" {
				sawSeries = true
				if occurrence.TimeLabel != "All day" {
					t.Errorf("recurring occurrence should be all day, got %q", occurrence.TimeLabel)
				}
			}
		}
	}
	if !sawEvent {
		t.Error("agenda missing the one-off event")
	}
	if !sawSeries {
		t.Error("agenda missing the recurring series")
	}
}

func TestAgendaHandler_ExcludesExhaustedSeries(t *testing.T) {
	handler, _, recurringRepo, _ := setupAgendaHandler(t)
	ctx := context.Background()

	_, err := recurringRepo.Create(ctx, models.RecurringEvent{
		Title:         "Spent series",
		Pattern:       models.NewWeeklyPattern(time.Now().UTC().Weekday()),
		StopCondition: models.StopAfter(0),
	})
	if err != nil {
		t.Fatalf("creating recurring event: %v", err)
	}

	recorder := serveAgenda(handler, "/api/agenda")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}

	response := decodeAgenda(t, recorder)
	for _, section := range response.Sections {
		for _, occurrence := range section.Occurrences {
			if occurrence.Title == "Spent series" {
				t.Fatal("a series with no occurrences left must not appear in the agenda")
			}
		}
	}
}

func TestAgendaHandler_SmartGroupingBuckets(t *testing.T) {
	handler, eventRepo, _, settingsRepo := setupAgendaHandler(t)
	ctx := context.Background()

	if err := settingsRepo.Set(ctx, repository.SettingSmartAgendaGrouping, "true"); err != nil {
		t.Fatalf("enabling smart grouping: %v", err)
	}

	_, err := eventRepo.Create(ctx, models.Event{
		Title:        "Soon",
		StartTime:    time.Now().UTC().Add(time.Hour),
		IncludesTime: true,
	})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}

	recorder := serveAgenda(handler, "/api/agenda")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}

	response := decodeAgenda(t, recorder)
	var found bool
	for _, section := range response.Sections {
		for _, occurrence := range section.Occurrences {
			if occurrence.Title == "Soon" {
				found = true
				if occurrence.Bucket == "" {
					t.Error("expected a bucket when smart grouping is enabled")
				}
			}
		}
	}
	if !found {
		t.Fatal("agenda missing the event")
	}
}

func TestAgendaHandler_RejectsBadDays(t *testing.T) {
	handler, _, _, _ := setupAgendaHandler(t)

	for _, target := range []string{"/api/agenda?days=abc", "/api/agenda?days=-1"} {
		recorder := serveAgenda(handler, target)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for %s, got %d", target, recorder.Code)
		}
	}
}

func TestAgendaHandler_RejectsOversizedWindow(t *testing.T) {
	handler, _, _, _ := setupAgendaHandler(t)

	recorder := serveAgenda(handler, "/api/agenda?days=10000")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for an oversized window, got %d", recorder.Code)
	}
}
