package services

import (
	"errors"
	"testing"
	"time"

	"github.com/magpie-software/pical/internal/models"
)

// March 2026: the 1st is a Sunday, Mondays fall on 2/9/16/23/30, and the
// first Saturday is the 7th.

func mustMonthlyOrdinalPattern(t *testing.T, ordinal models.OrdinalWeek, weekday time.Weekday) models.RecurrencePattern {
	t.Helper()
	pattern, err := models.NewMonthlyOrdinalPattern(ordinal, weekday)
	if err != nil {
		t.Fatalf("building pattern: %v", err)
	}
	return pattern
}

func mustMonthlyDatePattern(t *testing.T, day int) models.RecurrencePattern {
	t.Helper()
	pattern, err := models.NewMonthlyDatePattern(day)
	if err != nil {
		t.Fatalf("building pattern: %v", err)
	}
	return pattern
}

func TestOccursOn(t *testing.T) {
	tests := []struct {
		name    string
		pattern models.RecurrencePattern
		date    time.Time
		want    bool
	}{
		{
			name:    "weekly matches its weekday",
			pattern: models.NewWeeklyPattern(time.Monday),
			date:    date(2026, time.March, 9),
			want:    true,
		},
		{
			name:    "weekly rejects other weekdays",
			pattern: models.NewWeeklyPattern(time.Monday),
			date:    date(2026, time.March, 10),
			want:    false,
		},
		{
			name:    "first saturday matches",
			pattern: mustMonthlyOrdinalPattern(t, models.OrdinalFirst, time.Saturday),
			date:    date(2026, time.March, 7),
			want:    true,
		},
		{
			name:    "first saturday rejects second saturday",
			pattern: mustMonthlyOrdinalPattern(t, models.OrdinalFirst, time.Saturday),
			date:    date(2026, time.March, 14),
			want:    false,
		},
		{
			name:    "third monday matches",
			pattern: mustMonthlyOrdinalPattern(t, models.OrdinalThird, time.Monday),
			date:    date(2026, time.March, 16),
			want:    true,
		},
		{
			name:    "last monday matches the 30th",
			pattern: mustMonthlyOrdinalPattern(t, models.OrdinalLast, time.Monday),
			date:    date(2026, time.March, 30),
			want:    true,
		},
		{
			name:    "last monday rejects the 23rd",
			pattern: mustMonthlyOrdinalPattern(t, models.OrdinalLast, time.Monday),
			date:    date(2026, time.March, 23),
			want:    false,
		},
		{
			name:    "monthly date matches",
			pattern: mustMonthlyDatePattern(t, 15),
			date:    date(2026, time.March, 15),
			want:    true,
		},
		{
			name:    "day 31 never matches in april",
			pattern: mustMonthlyDatePattern(t, 31),
			date:    date(2026, time.April, 30),
			want:    false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := OccursOn(test.pattern, test.date); got != test.want {
				t.Errorf("OccursOn(%v, %v) = %v, want %v", test.pattern, test.date, got, test.want)
			}
		})
	}
}

func TestEventOccurrencesInRange_NonRecurring(t *testing.T) {
	window := DateRange{Lower: date(2026, time.March, 1), Upper: date(2026, time.March, 21)}

	inside := models.Event{
		ID:           "evt-1",
		Title:        "Dentist",
		StartTime:    time.Date(2026, time.March, 9, 14, 30, 0, 0, time.UTC),
		IncludesTime: true,
		Recurrence:   models.RecurrenceNone,
	}
	occurrences, err := EventOccurrencesInRange(inside, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occurrences))
	}
	if !occurrences[0].StartDate.Equal(inside.StartTime) {
		t.Errorf("expected start %v, got %v", inside.StartTime, occurrences[0].StartDate)
	}
	if occurrences[0].IsRecurring {
		t.Error("one-off occurrence should not be marked recurring")
	}

	outside := inside
	outside.StartTime = date(2026, time.April, 1)
	occurrences, err = EventOccurrencesInRange(outside, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 0 {
		t.Errorf("expected no occurrences outside the window, got %d", len(occurrences))
	}
}

func TestEventOccurrencesInRange_AnchorOnWindowBoundary(t *testing.T) {
	// The range is closed: an anchor on the lower bound yields an
	// occurrence on the anchor itself.
	event := models.Event{
		ID:         "evt-2",
		Title:      "Kickoff",
		StartTime:  date(2026, time.March, 1),
		Recurrence: models.RecurrenceNone,
	}
	window := DateRange{Lower: date(2026, time.March, 1), Upper: date(2026, time.March, 21)}

	occurrences, err := EventOccurrencesInRange(event, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occurrences))
	}
}

func TestEventOccurrencesInRange_WeeklyDensity(t *testing.T) {
	// A weekly event over a 28-day aligned window yields exactly 4
	// occurrences, all on the anchor's weekday.
	event := models.Event{
		ID:         "evt-3",
		Title:      "Guitar lesson",
		StartTime:  date(2026, time.March, 2),
		Recurrence: models.RecurrenceWeekly,
	}
	window := DateRange{Lower: date(2026, time.March, 2), Upper: date(2026, time.March, 29)}

	occurrences, err := EventOccurrencesInRange(event, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(occurrences))
	}
	for _, occurrence := range occurrences {
		if occurrence.StartDate.Weekday() != time.Monday {
			t.Errorf("expected a Monday, got %v", occurrence.StartDate)
		}
		if !occurrence.IsRecurring {
			t.Error("stepped occurrence should be marked recurring")
		}
	}
}

func TestEventOccurrencesInRange_WeeklyAnchorBeforeWindow(t *testing.T) {
	event := models.Event{
		ID:         "evt-4",
		Title:      "Standup",
		StartTime:  date(2026, time.February, 2),
		Recurrence: models.RecurrenceWeekly,
	}
	window := DateRange{Lower: date(2026, time.March, 1), Upper: date(2026, time.March, 14)}

	occurrences, err := EventOccurrencesInRange(event, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occurrences))
	}
	if !occurrences[0].StartDate.Equal(date(2026, time.March, 2)) {
		t.Errorf("expected first occurrence on March 2, got %v", occurrences[0].StartDate)
	}
}

func TestEventOccurrencesInRange_MonthlyStepsByAnchorDate(t *testing.T) {
	event := models.Event{
		ID:         "evt-5",
		Title:      "Rent",
		StartTime:  date(2026, time.January, 15),
		Recurrence: models.RecurrenceMonthly,
	}
	window := DateRange{Lower: date(2026, time.March, 1), Upper: date(2026, time.April, 30)}

	occurrences, err := EventOccurrencesInRange(event, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occurrences))
	}
	if occurrences[0].StartDate.Day() != 15 || occurrences[1].StartDate.Day() != 15 {
		t.Errorf("expected occurrences on the 15th, got %v and %v",
			occurrences[0].StartDate, occurrences[1].StartDate)
	}
}

func TestEventOccurrencesInRange_MonthlyAnchorAtMonthEnd(t *testing.T) {
	// A day-31 anchor clamps in shorter months rather than spilling into
	// the next one: February must not be skipped.
	event := models.Event{
		ID:         "evt-8",
		Title:      "Month close",
		StartTime:  date(2026, time.January, 31),
		Recurrence: models.RecurrenceMonthly,
	}
	window := DateRange{Lower: date(2026, time.January, 1), Upper: date(2026, time.April, 30)}

	occurrences, err := EventOccurrencesInRange(event, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Time{
		date(2026, time.January, 31),
		date(2026, time.February, 28),
		date(2026, time.March, 28),
		date(2026, time.April, 28),
	}
	if len(occurrences) != len(want) {
		t.Fatalf("expected %d occurrences, got %d", len(want), len(occurrences))
	}
	for i, day := range want {
		if !occurrences[i].StartDate.Equal(day) {
			t.Errorf("occurrence %d: expected %v, got %v", i, day, occurrences[i].StartDate)
		}
	}
}

func TestEventOccurrencesInRange_TimelessEvent(t *testing.T) {
	event := models.Event{
		ID:           "evt-6",
		Title:        "Errand loop",
		StartTime:    date(2026, time.March, 9),
		IncludesTime: false,
		Recurrence:   models.RecurrenceNone,
	}
	window := DateRange{Lower: date(2026, time.March, 1), Upper: date(2026, time.March, 21)}

	occurrences, err := EventOccurrencesInRange(event, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occurrences))
	}
	if occurrences[0].HasTime {
		t.Error("timeless event must produce an occurrence without an explicit time")
	}
}

func TestRecurringOccurrencesInRange_MonthlyDate31SkipsApril(t *testing.T) {
	series := models.RecurringEvent{
		ID:      "rec-1",
		Title:   "Month close",
		Pattern: mustMonthlyDatePattern(t, 31),
	}
	window := DateRange{Lower: date(2026, time.March, 1), Upper: date(2026, time.May, 31)}

	occurrences, err := RecurringOccurrencesInRange(series, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 2 {
		t.Fatalf("expected 2 occurrences (March and May only), got %d", len(occurrences))
	}
	if !occurrences[0].StartDate.Equal(date(2026, time.March, 31)) {
		t.Errorf("expected March 31, got %v", occurrences[0].StartDate)
	}
	if !occurrences[1].StartDate.Equal(date(2026, time.May, 31)) {
		t.Errorf("expected May 31, got %v", occurrences[1].StartDate)
	}
}

func TestRecurringOccurrencesInRange_Weekly(t *testing.T) {
	series := models.RecurringEvent{
		ID:      "rec-2",
		Title:   "Team sync",
		Pattern: models.NewWeeklyPattern(time.Monday),
	}
	window := DateRange{Lower: date(2026, time.March, 2), Upper: date(2026, time.March, 29)}

	occurrences, err := RecurringOccurrencesInRange(series, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 4 {
		t.Fatalf("expected 4 Mondays, got %d", len(occurrences))
	}
	for _, occurrence := range occurrences {
		if occurrence.HasTime {
			t.Error("pattern occurrences carry no time-of-day")
		}
	}
}

func TestOccurrenceWindowValidation(t *testing.T) {
	event := models.Event{ID: "evt-7", StartTime: date(2026, time.March, 9)}

	_, err := EventOccurrencesInRange(event, DateRange{
		Lower: date(2026, time.March, 21), Upper: date(2026, time.March, 1),
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}

	_, err = EventOccurrencesInRange(event, DateRange{
		Lower: date(2026, time.March, 1), Upper: date(2030, time.March, 1),
	})
	if !errors.Is(err, ErrUnboundedWindow) {
		t.Errorf("expected ErrUnboundedWindow, got %v", err)
	}

	series := models.RecurringEvent{ID: "rec-3", Pattern: models.NewWeeklyPattern(time.Monday)}
	_, err = RecurringOccurrencesInRange(series, DateRange{
		Lower: date(2026, time.March, 21), Upper: date(2026, time.March, 1),
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestWindowHorizonCountsCalendarDays(t *testing.T) {
	event := models.Event{ID: "evt-9", StartTime: date(2026, time.March, 9)}
	lower := date(2026, time.January, 1)

	_, err := EventOccurrencesInRange(event, DateRange{
		Lower: lower, Upper: lower.AddDate(0, 0, MaxHorizonDays),
	})
	if err != nil {
		t.Errorf("a window of exactly the horizon must validate, got %v", err)
	}

	_, err = EventOccurrencesInRange(event, DateRange{
		Lower: lower, Upper: lower.AddDate(0, 0, MaxHorizonDays+1),
	})
	if !errors.Is(err, ErrUnboundedWindow) {
		t.Errorf("expected ErrUnboundedWindow one day past the horizon, got %v", err)
	}
}

func TestWindowHorizonAcrossDSTTransition(t *testing.T) {
	// A maximal window that crosses a fall-back transition lasts an hour
	// longer than MaxHorizonDays of wall-clock time but spans exactly
	// MaxHorizonDays calendar days, and must still validate.
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading location: %v", err)
	}

	lower := time.Date(2025, time.November, 1, 0, 0, 0, 0, newYork)
	upper := lower.AddDate(0, 0, MaxHorizonDays)

	event := models.Event{ID: "evt-10", StartTime: lower}
	if _, err := EventOccurrencesInRange(event, DateRange{Lower: lower, Upper: upper}); err != nil {
		t.Errorf("DST-spanning window of the horizon length must validate, got %v", err)
	}
}
