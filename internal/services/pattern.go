package services

import (
	"errors"
	"time"

	"github.com/magpie-software/pical/internal/models"
)

var (
	ErrInvalidDateRange = errors.New("date range lower bound is after upper bound")
	ErrUnboundedWindow  = errors.New("date range exceeds the maximum expansion horizon")
)

// MaxHorizonDays caps occurrence expansion so a bad caller cannot request an
// effectively unbounded walk. Two years covers every real agenda view.
const MaxHorizonDays = 731

// DateRange is a closed calendar interval: both bounds are included.
type DateRange struct {
	Lower time.Time
	Upper time.Time
}

func (r DateRange) validate() error {
	if r.Lower.After(r.Upper) {
		return ErrInvalidDateRange
	}
	// Counted in calendar days, not wall-clock hours, so a maximal window
	// spanning a DST transition is still accepted.
	if StartOfDay(r.Lower).AddDate(0, 0, MaxHorizonDays).Before(StartOfDay(r.Upper)) {
		return ErrUnboundedWindow
	}
	return nil
}

func (r DateRange) contains(date time.Time) bool {
	return !date.Before(r.Lower) && !date.After(r.Upper)
}

// OccursOn reports whether a recurrence pattern is active on the given
// calendar day. Months shorter than a monthly-date pattern's day simply
// never match; there is no rollover to month end.
func OccursOn(pattern models.RecurrencePattern, date time.Time) bool {
	switch pattern.Kind {
	case models.PatternWeekly:
		return date.Weekday() == pattern.Weekday

	case models.PatternMonthlyOrdinal:
		if date.Weekday() != pattern.Weekday {
			return false
		}
		if pattern.Ordinal == models.OrdinalLast {
			return date.Day()+7 > daysInMonth(date.Year(), date.Month())
		}
		nth := (date.Day()-1)/7 + 1
		return nth == int(pattern.Ordinal)

	case models.PatternMonthlyDate:
		return date.Day() == pattern.DayOfMonth
	}
	return false
}

// EventOccurrencesInRange expands a one-off or anchor-recurring event into
// concrete occurrences within the closed range. A non-recurring event yields
// its own timestamp when it falls inside the range, anchor included.
func EventOccurrencesInRange(event models.Event, window DateRange) ([]models.EventOccurrence, error) {
	if err := window.validate(); err != nil {
		return nil, err
	}

	switch event.Recurrence {
	case models.RecurrenceNone:
		if !window.contains(event.StartTime) {
			return nil, nil
		}
		return []models.EventOccurrence{occurrenceFor(event, event.StartTime)}, nil
	case models.RecurrenceWeekly:
		return steppedOccurrences(event, window, StepWeek), nil
	case models.RecurrenceMonthly:
		return steppedOccurrences(event, window, StepMonth), nil
	}
	return nil, nil
}

func steppedOccurrences(event models.Event, window DateRange, step Step) []models.EventOccurrence {
	first, ok := FirstOccurrenceAtOrAfter(event.StartTime, window.Lower, window.Upper, step).Get()
	if !ok {
		return nil
	}

	var occurrences []models.EventOccurrence
	for current := first; !current.After(window.Upper); current = step.advance(current) {
		occurrences = append(occurrences, occurrenceFor(event, current))
	}
	return occurrences
}

func occurrenceFor(event models.Event, start time.Time) models.EventOccurrence {
	occurrence := models.EventOccurrence{
		EventID:     event.ID,
		StartDate:   start,
		Title:       event.Title,
		Location:    event.Location,
		Notes:       event.Notes,
		IsRecurring: event.Recurrence != models.RecurrenceNone,
		HasTime:     event.IncludesTime,
	}
	if event.EndTime != nil && start.Equal(event.StartTime) {
		occurrence.EndDate = event.EndTime
	}
	return occurrence
}

// RecurringOccurrencesInRange walks each day of the closed range and emits
// one occurrence per day the pattern matches. The range validator bounds the
// walk, so iteration is always finite.
func RecurringOccurrencesInRange(event models.RecurringEvent, window DateRange) ([]models.EventOccurrence, error) {
	if err := window.validate(); err != nil {
		return nil, err
	}

	var occurrences []models.EventOccurrence
	for day := StartOfDay(window.Lower); !day.After(window.Upper); day = day.AddDate(0, 0, 1) {
		if !OccursOn(event.Pattern, day) {
			continue
		}
		occurrences = append(occurrences, models.EventOccurrence{
			EventID:     event.ID,
			StartDate:   day,
			Title:       event.Title,
			Location:    event.Location,
			Notes:       event.Notes,
			IsRecurring: true,
			HasTime:     false,
		})
	}
	return occurrences, nil
}
