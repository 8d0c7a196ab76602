package services

import (
	"time"

	"github.com/magpie-software/pical/internal/models"
)

// IsActive reports whether a recurring series is still alive as of the
// reference date. End dates compare at day granularity: a series ending
// today is still active for the whole of today.
func IsActive(stop *models.StopCondition, referenceDate time.Time) bool {
	if stop == nil {
		return true
	}
	switch stop.Kind {
	case models.StopEndDate:
		return !StartOfDay(referenceDate).After(StartOfDay(stop.EndDate))
	case models.StopOccurrenceCount:
		return stop.Remaining > 0
	}
	return true
}

// ApplyDailyDecrement accounts for one elapsed calendar day. When the
// pattern occurred on previousDay and the stop condition is an occurrence
// count, the remaining count drops by one, floored at zero. The second
// return value is false once the series has no occurrences left. End-date
// conditions are never mutated here; IsActive owns their liveness.
func ApplyDailyDecrement(pattern models.RecurrencePattern, stop *models.StopCondition, previousDay time.Time) (*models.StopCondition, bool) {
	if stop == nil || stop.Kind != models.StopOccurrenceCount {
		return stop, true
	}
	if stop.Remaining <= 0 {
		return stop, false
	}
	if !OccursOn(pattern, previousDay) {
		return stop, true
	}

	next := stop.Remaining - 1
	if next < 0 {
		next = 0
	}
	updated := models.StopAfter(next)
	return updated, next > 0
}
