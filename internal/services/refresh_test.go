package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/services"
	"github.com/magpie-software/pical/internal/testutil"
)

func TestRefreshService_RunPersistsOutcome(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	eventRepo := repository.NewEventRepository(db)
	recurringRepo := repository.NewRecurringEventRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	ctx := context.Background()

	settingsRepo.Set(ctx, repository.SettingAutoPurgePastEvents, "true")
	settingsRepo.Set(ctx, repository.SettingAutoExpireRecurring, "true")
	settingsRepo.Set(ctx, repository.SettingLastRefreshDate, "2026-03-09")

	past, err := eventRepo.Create(ctx, models.Event{
		Title: "Yesterday", StartTime: time.Date(2026, time.March, 8, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("creating past event: %v", err)
	}
	future, err := eventRepo.Create(ctx, models.Event{
		Title: "Later this week", StartTime: time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("creating future event: %v", err)
	}

	// March 9 2026 is a Monday: the Monday series occurred since the last
	// refresh, the Tuesday one did not.
	spent, err := recurringRepo.Create(ctx, models.RecurringEvent{
		Title:         "Final session",
		Pattern:       models.NewWeeklyPattern(time.Monday),
		StopCondition: models.StopAfter(1),
	})
	if err != nil {
		t.Fatalf("creating spent series: %v", err)
	}
	untouched, err := recurringRepo.Create(ctx, models.RecurringEvent{
		Title:         "Tuesday club",
		Pattern:       models.NewWeeklyPattern(time.Tuesday),
		StopCondition: models.StopAfter(3),
	})
	if err != nil {
		t.Fatalf("creating untouched series: %v", err)
	}

	service := services.NewRefreshService(eventRepo, recurringRepo, settingsRepo, time.UTC)
	reference := time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)

	result, err := service.Run(ctx, reference)
	if err != nil {
		t.Fatalf("running refresh: %v", err)
	}
	if len(result.RemovedEventIDs) != 1 || result.RemovedEventIDs[0] != past.ID {
		t.Errorf("expected the past event to be purged, got %v", result.RemovedEventIDs)
	}
	if len(result.RemovedRecurringIDs) != 1 || result.RemovedRecurringIDs[0] != spent.ID {
		t.Errorf("expected the spent series to be removed, got %v", result.RemovedRecurringIDs)
	}

	if _, err := eventRepo.FindByID(ctx, past.ID); err == nil {
		t.Error("the purged event must be gone from storage")
	}
	if _, err := eventRepo.FindByID(ctx, future.ID); err != nil {
		t.Errorf("the future event must survive: %v", err)
	}
	if _, err := recurringRepo.FindByID(ctx, spent.ID); err == nil {
		t.Error("the spent series must be gone from storage")
	}
	survivor, err := recurringRepo.FindByID(ctx, untouched.ID)
	if err != nil {
		t.Fatalf("finding surviving series: %v", err)
	}
	if survivor.StopCondition == nil || survivor.StopCondition.Remaining != 3 {
		t.Errorf("the Tuesday series must keep its count, got %+v", survivor.StopCondition)
	}

	stamp, err := settingsRepo.Get(ctx, repository.SettingLastRefreshDate)
	if err != nil {
		t.Fatalf("reading last refresh date: %v", err)
	}
	if stamp != "2026-03-10" {
		t.Errorf("expected last refresh '2026-03-10', got '%s'", stamp)
	}
}

func TestRefreshService_RunTwiceSameDayIsIdempotent(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	eventRepo := repository.NewEventRepository(db)
	recurringRepo := repository.NewRecurringEventRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	ctx := context.Background()

	settingsRepo.Set(ctx, repository.SettingAutoExpireRecurring, "true")
	settingsRepo.Set(ctx, repository.SettingLastRefreshDate, "2026-03-09")

	series, err := recurringRepo.Create(ctx, models.RecurringEvent{
		Title:         "Team sync",
		Pattern:       models.NewWeeklyPattern(time.Monday),
		StopCondition: models.StopAfter(5),
	})
	if err != nil {
		t.Fatalf("creating series: %v", err)
	}

	service := services.NewRefreshService(eventRepo, recurringRepo, settingsRepo, time.UTC)
	reference := time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)

	if _, err := service.Run(ctx, reference); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	afterFirst, err := recurringRepo.FindByID(ctx, series.ID)
	if err != nil {
		t.Fatalf("finding series: %v", err)
	}
	if afterFirst.StopCondition.Remaining != 4 {
		t.Fatalf("expected remaining 4 after the first pass, got %d", afterFirst.StopCondition.Remaining)
	}

	result, err := service.Run(ctx, reference)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if len(result.UpdatedRecurringIDs) != 0 {
		t.Errorf("a repeated pass must decrement nothing, got %v", result.UpdatedRecurringIDs)
	}
	afterSecond, err := recurringRepo.FindByID(ctx, series.ID)
	if err != nil {
		t.Fatalf("finding series: %v", err)
	}
	if afterSecond.StopCondition.Remaining != 4 {
		t.Errorf("expected remaining to stay 4, got %d", afterSecond.StopCondition.Remaining)
	}
}
