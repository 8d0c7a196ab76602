package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
)

// Digest is one reminder message for a calendar day. FireAt is the moment
// the notifier should deliver it; delivery policy beyond that is the
// notifier's concern.
type Digest struct {
	Title  string
	Body   string
	FireAt time.Time
}

// Notifier delivers daily digests. There is no feedback channel to the
// engine.
type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
}

// SlogNotifier writes digests to the structured log. It stands in for a
// push-delivery integration.
type SlogNotifier struct{}

func (SlogNotifier) Notify(_ context.Context, digest Digest) error {
	slog.Info("reminder", "title", digest.Title, "fire_at", digest.FireAt, "body", digest.Body)
	return nil
}

// DigestOptions mirror the notification settings: which digests are enabled
// and their delivery times as seconds from midnight.
type DigestOptions struct {
	AgendaEnabled    bool
	RecurringEnabled bool
	AgendaSeconds    int
	RecurringSeconds int
}

// BuildDigests assembles the reminders for one calendar day: one-off events
// falling on the day and active recurring series whose pattern occurs on it.
// When both digests are enabled at the same delivery time they merge into a
// single combined message.
func BuildDigests(date time.Time, events []models.Event, recurring []models.RecurringEvent, opts DigestOptions) []Digest {
	var agendaToday []models.Event
	if opts.AgendaEnabled {
		for _, event := range events {
			if IsSameDay(event.StartTime, date) {
				agendaToday = append(agendaToday, event)
			}
		}
	}

	var recurringToday []models.RecurringEvent
	if opts.RecurringEnabled {
		for _, series := range recurring {
			if IsActive(series.StopCondition, date) && OccursOn(series.Pattern, date) {
				recurringToday = append(recurringToday, series)
			}
		}
	}

	sameTime := opts.AgendaEnabled && opts.RecurringEnabled && opts.AgendaSeconds == opts.RecurringSeconds

	if sameTime {
		if len(agendaToday) == 0 && len(recurringToday) == 0 {
			return nil
		}
		return []Digest{{
			Title:  "Today's Plan",
			Body:   combinedBody(agendaToday, recurringToday),
			FireAt: fireTime(date, opts.AgendaSeconds),
		}}
	}

	var digests []Digest
	if len(agendaToday) > 0 {
		digests = append(digests, Digest{
			Title:  "Agenda items for today",
			Body:   agendaBody(agendaToday),
			FireAt: fireTime(date, opts.AgendaSeconds),
		})
	}
	if len(recurringToday) > 0 {
		digests = append(digests, Digest{
			Title:  "Recurring events today",
			Body:   recurringBody(recurringToday),
			FireAt: fireTime(date, opts.RecurringSeconds),
		})
	}
	return digests
}

func agendaBody(events []models.Event) string {
	lines := make([]string, 0, len(events))
	for _, event := range events {
		if event.IncludesTime {
			lines = append(lines, fmt.Sprintf("• %s %s", event.Title, event.StartTime.Format(time.Kitchen)))
		} else {
			lines = append(lines, fmt.Sprintf("• %s (All day)", event.Title))
		}
	}
	return strings.Join(lines, "\n")
}

func recurringBody(recurring []models.RecurringEvent) string {
	lines := make([]string, 0, len(recurring))
	for _, series := range recurring {
		lines = append(lines, "• "+series.Title)
	}
	return strings.Join(lines, "\n")
}

func combinedBody(events []models.Event, recurring []models.RecurringEvent) string {
	var parts []string
	if len(events) > 0 {
		parts = append(parts, "Agenda:\n"+agendaBody(events))
	}
	if len(recurring) > 0 {
		parts = append(parts, "Recurring:\n"+recurringBody(recurring))
	}
	return strings.Join(parts, "\n\n")
}

func fireTime(date time.Time, secondsFromMidnight int) time.Time {
	if secondsFromMidnight < 0 {
		secondsFromMidnight = 0
	}
	if secondsFromMidnight > 86399 {
		secondsFromMidnight = 86399
	}
	return StartOfDay(date).Add(time.Duration(secondsFromMidnight) * time.Second)
}

// NotificationService loads the collections and settings, builds the day's
// digests, and hands them to the notifier.
type NotificationService struct {
	eventRepo     repository.EventRepository
	recurringRepo repository.RecurringEventRepository
	settingsRepo  repository.SettingsRepository
	notifier      Notifier
}

func NewNotificationService(
	eventRepo repository.EventRepository,
	recurringRepo repository.RecurringEventRepository,
	settingsRepo repository.SettingsRepository,
	notifier Notifier,
) *NotificationService {
	return &NotificationService{
		eventRepo:     eventRepo,
		recurringRepo: recurringRepo,
		settingsRepo:  settingsRepo,
		notifier:      notifier,
	}
}

func (service *NotificationService) SendDaily(ctx context.Context, date time.Time) error {
	agendaEnabled, err := service.settingsRepo.GetBool(ctx, repository.SettingAgendaNotifications, false)
	if err != nil {
		return fmt.Errorf("reading agenda notification setting: %w", err)
	}
	recurringEnabled, err := service.settingsRepo.GetBool(ctx, repository.SettingRecurringNotifications, false)
	if err != nil {
		return fmt.Errorf("reading recurring notification setting: %w", err)
	}
	if !agendaEnabled && !recurringEnabled {
		return nil
	}

	events, err := service.eventRepo.FindAll(ctx, repository.EventFilter{})
	if err != nil {
		return fmt.Errorf("loading events for notifications: %w", err)
	}
	recurring, err := service.recurringRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("loading recurring events for notifications: %w", err)
	}

	opts := DigestOptions{
		AgendaEnabled:    agendaEnabled,
		RecurringEnabled: recurringEnabled,
		AgendaSeconds:    service.notificationSeconds(ctx, repository.SettingAgendaNotificationTime),
		RecurringSeconds: service.notificationSeconds(ctx, repository.SettingRecurringNotificationTime),
	}

	for _, digest := range BuildDigests(date, events, recurring, opts) {
		if err := service.notifier.Notify(ctx, digest); err != nil {
			slog.Error("delivering digest", "title", digest.Title, "error", err)
		}
	}
	return nil
}

func (service *NotificationService) notificationSeconds(ctx context.Context, key string) int {
	value, err := service.settingsRepo.Get(ctx, key)
	if err != nil {
		return defaultNotificationSeconds
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err != nil {
		return defaultNotificationSeconds
	}
	return seconds
}

// 8:00 AM.
const defaultNotificationSeconds = 8 * 60 * 60
