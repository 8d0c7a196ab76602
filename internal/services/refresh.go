package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/mo"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
)

const lastRefreshLayout = "2006-01-02"

// RefreshService runs the retention pass against the stored collections.
// Run serializes callers with a mutex: the cron job and the manual API
// trigger may race, and concurrent unserialized passes over the same
// collections are undefined.
type RefreshService struct {
	eventRepo     repository.EventRepository
	recurringRepo repository.RecurringEventRepository
	settingsRepo  repository.SettingsRepository
	location      *time.Location

	mutex sync.Mutex
}

func NewRefreshService(
	eventRepo repository.EventRepository,
	recurringRepo repository.RecurringEventRepository,
	settingsRepo repository.SettingsRepository,
	location *time.Location,
) *RefreshService {
	return &RefreshService{
		eventRepo:     eventRepo,
		recurringRepo: recurringRepo,
		settingsRepo:  settingsRepo,
		location:      location,
	}
}

// Run loads a snapshot of the collections, applies the pure retention pass,
// and writes the outcome back. The pass itself cannot fail; persistence
// failures after it are logged and do not invalidate the returned result,
// which reflects the authoritative in-memory state.
func (service *RefreshService) Run(ctx context.Context, referenceDate time.Time) (RefreshResult, error) {
	service.mutex.Lock()
	defer service.mutex.Unlock()

	referenceDate = referenceDate.In(service.location)

	purge, err := service.settingsRepo.GetBool(ctx, repository.SettingAutoPurgePastEvents, false)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("reading purge setting: %w", err)
	}
	autoExpire, err := service.settingsRepo.GetBool(ctx, repository.SettingAutoExpireRecurring, false)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("reading auto-expire setting: %w", err)
	}
	manualOrder, err := service.settingsRepo.GetBool(ctx, repository.SettingRecurringManualOrder, false)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("reading manual-order setting: %w", err)
	}

	events, err := service.eventRepo.FindAll(ctx, repository.EventFilter{})
	if err != nil {
		return RefreshResult{}, fmt.Errorf("loading events: %w", err)
	}
	recurring, err := service.recurringRepo.FindAll(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("loading recurring events: %w", err)
	}

	result := DailyRefresh(events, recurring, RefreshOptions{
		ReferenceDate:       referenceDate,
		LastRefresh:         service.lastRefresh(ctx),
		PurgePastEvents:     purge,
		AutoExpireRecurring: autoExpire,
		SortRecurring:       !manualOrder,
	})

	if err := service.eventRepo.DeleteMany(ctx, result.RemovedEventIDs); err != nil {
		slog.Error("purging events", "error", err)
	}
	if err := service.recurringRepo.DeleteMany(ctx, result.RemovedRecurringIDs); err != nil {
		slog.Error("removing expired recurring events", "error", err)
	}
	for _, id := range result.UpdatedRecurringIDs {
		for _, series := range result.RecurringEvents {
			if series.ID != id {
				continue
			}
			if err := service.recurringRepo.Update(ctx, series); err != nil {
				slog.Error("saving decremented recurring event", "id", id, "error", err)
			}
			break
		}
	}

	day := StartOfDay(referenceDate).Format(lastRefreshLayout)
	if err := service.settingsRepo.Set(ctx, repository.SettingLastRefreshDate, day); err != nil {
		slog.Error("recording last refresh date", "error", err)
	}

	slog.Info("daily refresh complete",
		"reference_date", day,
		"purged_events", len(result.RemovedEventIDs),
		"expired_recurring", len(result.RemovedRecurringIDs),
		"decremented_recurring", len(result.UpdatedRecurringIDs),
	)
	return result, nil
}

func (service *RefreshService) lastRefresh(ctx context.Context) mo.Option[time.Time] {
	value, err := service.settingsRepo.Get(ctx, repository.SettingLastRefreshDate)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("reading last refresh date", "error", err)
		}
		return mo.None[time.Time]()
	}
	parsed, err := time.ParseInLocation(lastRefreshLayout, value, service.location)
	if err != nil {
		slog.Warn("parsing last refresh date", "value", value, "error", err)
		return mo.None[time.Time]()
	}
	return mo.Some(parsed)
}

// ApplyStopConditionOnWrite mirrors the retention policy at write time: a
// series saved with an end date already in the past is dropped immediately
// when auto-expire is on, so edits to end dates take effect without waiting
// for the next daily pass.
func ApplyStopConditionOnWrite(event models.RecurringEvent, referenceDate time.Time, autoExpire bool) bool {
	if !autoExpire || event.StopCondition == nil || event.StopCondition.Kind != models.StopEndDate {
		return true
	}
	return !StartOfDay(event.StopCondition.EndDate).Before(StartOfDay(referenceDate))
}
