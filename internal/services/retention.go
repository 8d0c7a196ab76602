package services

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/magpie-software/pical/internal/models"
)

// RefreshOptions carries every external input of the retention pass. The
// pass reads nothing from ambient state, so identical options over identical
// collections always produce identical results.
type RefreshOptions struct {
	// ReferenceDate is "today"; only its calendar day matters.
	ReferenceDate time.Time

	// LastRefresh is the reference date of the previous completed pass.
	// Occurrence counts are decremented once for each day in
	// [LastRefresh, ReferenceDate), so running the pass twice on the same
	// day decrements nothing the second time, and running it after a gap
	// catches up on exactly the skipped days. When absent, only the day
	// immediately before ReferenceDate is considered.
	LastRefresh mo.Option[time.Time]

	// PurgePastEvents removes one-off events dated before ReferenceDate.
	PurgePastEvents bool

	// AutoExpireRecurring governs both end-date removal and occurrence
	// count decrementing. Exhausted counters are removed regardless: a
	// series with zero occurrences left is never displayed.
	AutoExpireRecurring bool

	// SortRecurring re-sorts the recurring collection by title. Leave it
	// off when the user maintains a manual ordering.
	SortRecurring bool
}

// RefreshResult is the outcome of one retention pass. The collections are
// the new authoritative state; the ID slices tell the persistence layer
// which rows to delete or rewrite.
type RefreshResult struct {
	Events          []models.Event
	RecurringEvents []models.RecurringEvent

	RemovedEventIDs     []string
	RemovedRecurringIDs []string
	UpdatedRecurringIDs []string
}

// DailyRefresh performs the daily maintenance pass over in-memory
// collections: purging past one-off events, expiring finished recurring
// series, decrementing occurrence counters for elapsed days, and re-sorting.
// It is a pure function and safe to call any number of times for the same
// reference date given a correctly threaded LastRefresh.
func DailyRefresh(events []models.Event, recurring []models.RecurringEvent, opts RefreshOptions) RefreshResult {
	today := StartOfDay(opts.ReferenceDate)

	var result RefreshResult
	for _, event := range events {
		if opts.PurgePastEvents && event.Recurrence == models.RecurrenceNone && StartOfDay(event.StartTime).Before(today) {
			result.RemovedEventIDs = append(result.RemovedEventIDs, event.ID)
			continue
		}
		result.Events = append(result.Events, event)
	}

	decrementDays := elapsedDays(opts.LastRefresh, today)

	for _, series := range recurring {
		keep, updated := refreshSeries(&series, today, decrementDays, opts.AutoExpireRecurring)
		if !keep {
			result.RemovedRecurringIDs = append(result.RemovedRecurringIDs, series.ID)
			continue
		}
		if updated {
			result.UpdatedRecurringIDs = append(result.UpdatedRecurringIDs, series.ID)
		}
		result.RecurringEvents = append(result.RecurringEvents, series)
	}

	SortEvents(result.Events)
	if opts.SortRecurring {
		SortRecurringEvents(result.RecurringEvents)
	}
	return result
}

// refreshSeries applies stop-condition maintenance to one series, updating
// its stop condition in place when a decrement lands.
func refreshSeries(series *models.RecurringEvent, today time.Time, decrementDays []time.Time, autoExpire bool) (keep bool, updated bool) {
	stop := series.StopCondition
	if stop == nil {
		return true, false
	}

	switch stop.Kind {
	case models.StopEndDate:
		if autoExpire && StartOfDay(stop.EndDate).Before(today) {
			return false, false
		}
		return true, false

	case models.StopOccurrenceCount:
		if stop.Remaining <= 0 {
			return false, false
		}
		if !autoExpire {
			return true, false
		}
		current := stop
		changed := false
		for _, day := range decrementDays {
			next, alive := ApplyDailyDecrement(series.Pattern, current, day)
			if next != current {
				changed = true
				current = next
			}
			if !alive {
				return false, false
			}
		}
		if changed {
			series.StopCondition = current
		}
		return true, changed
	}
	return true, false
}

// elapsedDays lists the calendar days whose occurrences still need to be
// counted: every day from the last refresh (inclusive) up to but excluding
// today. With no recorded last refresh only yesterday is counted.
func elapsedDays(lastRefresh mo.Option[time.Time], today time.Time) []time.Time {
	from := today.AddDate(0, 0, -1)
	if last, ok := lastRefresh.Get(); ok {
		from = StartOfDay(last)
	}
	var days []time.Time
	for day := from; day.Before(today); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

// SortEvents orders one-off events chronologically. Equal start times order
// by end time when both have one, events with an end time ahead of events
// without, and finally by title.
func SortEvents(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		lhs, rhs := events[i], events[j]
		if !lhs.StartTime.Equal(rhs.StartTime) {
			return lhs.StartTime.Before(rhs.StartTime)
		}
		switch {
		case lhs.EndTime != nil && rhs.EndTime != nil:
			return lhs.EndTime.Before(*rhs.EndTime)
		case lhs.EndTime != nil:
			return true
		case rhs.EndTime != nil:
			return false
		}
		return lhs.Title < rhs.Title
	})
}

// SortRecurringEvents orders series by title, case-insensitively.
func SortRecurringEvents(recurring []models.RecurringEvent) {
	sort.SliceStable(recurring, func(i, j int) bool {
		return strings.ToLower(recurring[i].Title) < strings.ToLower(recurring[j].Title)
	})
}
