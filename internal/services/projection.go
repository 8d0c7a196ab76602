package services

import (
	"sort"
	"time"

	"github.com/magpie-software/pical/internal/models"
)

// AgendaSection groups the occurrences of one calendar day.
type AgendaSection struct {
	Date        time.Time                `json:"date"`
	Occurrences []models.EventOccurrence `json:"occurrences"`
}

// AgendaBucket is the smart grouping used instead of per-day headers when
// the user enables it.
type AgendaBucket string

const (
	BucketToday    AgendaBucket = "Today"
	BucketThisWeek AgendaBucket = "This Week"
	BucketLater    AgendaBucket = "Later"
)

// BucketFor assigns a date to a smart agenda bucket relative to today.
// "This Week" means within the six days after today.
func BucketFor(date, today time.Time) AgendaBucket {
	day := StartOfDay(date)
	start := StartOfDay(today)
	switch {
	case !day.After(start):
		return BucketToday
	case day.Before(start.AddDate(0, 0, 7)):
		return BucketThisWeek
	}
	return BucketLater
}

// Project flattens the event and recurring collections into a time-ordered
// occurrence sequence for the window. Series that are inactive as of the
// window start are excluded even when the retention pass has not removed
// them yet. Ties on start date keep source order.
func Project(events []models.Event, recurring []models.RecurringEvent, window DateRange) ([]models.EventOccurrence, error) {
	if err := window.validate(); err != nil {
		return nil, err
	}

	var projected []models.EventOccurrence
	for _, event := range events {
		occurrences, err := EventOccurrencesInRange(event, window)
		if err != nil {
			return nil, err
		}
		projected = append(projected, occurrences...)
	}

	for _, series := range recurring {
		if !IsActive(series.StopCondition, window.Lower) {
			continue
		}
		occurrences, err := RecurringOccurrencesInRange(series, window)
		if err != nil {
			return nil, err
		}
		projected = append(projected, occurrences...)
	}

	sort.SliceStable(projected, func(i, j int) bool {
		return projected[i].StartDate.Before(projected[j].StartDate)
	})
	return projected, nil
}

// TimeLabel renders an occurrence's time-of-day for display. Occurrences
// without an explicit time always read "All day", never a zero time string.
func TimeLabel(occurrence models.EventOccurrence) string {
	if !occurrence.HasTime {
		return "All day"
	}
	return occurrence.StartDate.Format(time.Kitchen)
}

// AgendaSections groups a projection by calendar day, ascending.
func AgendaSections(occurrences []models.EventOccurrence) []AgendaSection {
	grouped := make(map[time.Time][]models.EventOccurrence)
	for _, occurrence := range occurrences {
		day := StartOfDay(occurrence.StartDate)
		grouped[day] = append(grouped[day], occurrence)
	}

	days := make([]time.Time, 0, len(grouped))
	for day := range grouped {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	sections := make([]AgendaSection, 0, len(days))
	for _, day := range days {
		sections = append(sections, AgendaSection{Date: day, Occurrences: grouped[day]})
	}
	return sections
}
