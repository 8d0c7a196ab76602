package handlers

import (
	"log/slog"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/magpie-software/pical/internal/models"
	"github.com/magpie-software/pical/internal/repository"
	"github.com/magpie-software/pical/internal/services"
)

// ICalHandler serves the agenda as an iCalendar feed for subscription by
// external calendar apps. Recurring series export their pattern as an RRULE
// anchored on the next day they occur.
type ICalHandler struct {
	eventRepo     repository.EventRepository
	recurringRepo repository.RecurringEventRepository
	tokenRepo     repository.APITokenRepository
	location      *time.Location
}

func NewICalHandler(
	eventRepo repository.EventRepository,
	recurringRepo repository.RecurringEventRepository,
	tokenRepo repository.APITokenRepository,
	location *time.Location,
) *ICalHandler {
	return &ICalHandler{
		eventRepo:     eventRepo,
		recurringRepo: recurringRepo,
		tokenRepo:     tokenRepo,
		location:      location,
	}
}

func (handler *ICalHandler) Feed(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	found, err := handler.tokenRepo.FindByTokenHash(r.Context(), repository.HashToken(token))
	if err != nil || found.Scope != "ical" ||
		(found.ExpiresAt != nil && found.ExpiresAt.Before(time.Now())) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()

	events, err := handler.eventRepo.FindAll(ctx, repository.EventFilter{})
	if err != nil {
		slog.Error("finding events for ical", "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	recurring, err := handler.recurringRepo.FindAll(ctx)
	if err != nil {
		slog.Error("finding recurring events for ical", "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	calendar := ics.NewCalendar()
	calendar.SetMethod(ics.MethodPublish)
	calendar.SetProductId("-//Pical//Pical//EN")
	calendar.SetName("Pical")

	for _, event := range events {
		entry := calendar.AddEvent(event.ID + "@pical")
		entry.SetDtStampTime(event.UpdatedAt.UTC())
		entry.SetSummary(event.Title)
		if event.Location != "" {
			entry.SetLocation(event.Location)
		}
		if event.Notes != "" {
			entry.SetDescription(event.Notes)
		}
		if event.IncludesTime {
			entry.SetStartAt(event.StartTime)
			if event.EndTime != nil {
				entry.SetEndAt(*event.EndTime)
			}
		} else {
			entry.SetAllDayStartAt(event.StartTime)
			entry.SetAllDayEndAt(event.StartTime.AddDate(0, 0, 1))
		}
		switch event.Recurrence {
		case models.RecurrenceWeekly:
			entry.AddRrule("FREQ=WEEKLY")
		case models.RecurrenceMonthly:
			entry.AddRrule("FREQ=MONTHLY")
		}
	}

	today := services.StartOfDay(time.Now().In(handler.location))
	for _, series := range recurring {
		if !services.IsActive(series.StopCondition, today) {
			continue
		}
		rule, err := patternRule(series.Pattern)
		if err != nil {
			slog.Warn("building rrule for series", "id", series.ID, "error", err)
			continue
		}

		entry := calendar.AddEvent(series.ID + "@pical")
		entry.SetDtStampTime(series.UpdatedAt.UTC())
		entry.SetSummary(series.Title)
		if series.Location != "" {
			entry.SetLocation(series.Location)
		}
		if series.Notes != "" {
			entry.SetDescription(series.Notes)
		}
		entry.SetAllDayStartAt(nextOccurrenceDay(series.Pattern, today))
		entry.AddRrule(rule)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=pical.ics")
	w.Write([]byte(calendar.Serialize()))
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// patternRule renders a recurrence pattern as an RRULE value.
func patternRule(pattern models.RecurrencePattern) (string, error) {
	var option rrule.ROption
	switch pattern.Kind {
	case models.PatternWeekly:
		option = rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{rruleWeekdays[pattern.Weekday]},
		}
	case models.PatternMonthlyOrdinal:
		nth := int(pattern.Ordinal)
		if pattern.Ordinal == models.OrdinalLast {
			nth = -1
		}
		option = rrule.ROption{
			Freq:      rrule.MONTHLY,
			Byweekday: []rrule.Weekday{rruleWeekdays[pattern.Weekday].Nth(nth)},
		}
	case models.PatternMonthlyDate:
		option = rrule.ROption{
			Freq:       rrule.MONTHLY,
			Bymonthday: []int{pattern.DayOfMonth},
		}
	}

	rule, err := rrule.NewRRule(option)
	if err != nil {
		return "", err
	}
	return rule.String(), nil
}

// nextOccurrenceDay walks forward from today to the first day the pattern
// matches. Monthly-date patterns for short months can look ahead several
// months, so the walk is capped at the expansion horizon.
func nextOccurrenceDay(pattern models.RecurrencePattern, today time.Time) time.Time {
	day := today
	for i := 0; i < services.MaxHorizonDays; i++ {
		if services.OccursOn(pattern, day) {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return today
}
