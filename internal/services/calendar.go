package services

import (
	"time"

	"github.com/samber/mo"
)

// Step is the unit used when advancing a recurring anchor.
type Step int

const (
	StepWeek Step = iota
	StepMonth
)

// advance moves one step forward. Month steps clamp to the last day of
// shorter months instead of rolling over, so a day-31 anchor lands on
// Feb 28 rather than Mar 3.
func (step Step) advance(date time.Time) time.Time {
	switch step {
	case StepWeek:
		return date.AddDate(0, 0, 7)
	case StepMonth:
		year, month, day := date.Date()
		hour, minute, second := date.Clock()
		month++
		if limit := daysInMonth(year, month); day > limit {
			day = limit
		}
		return time.Date(year, month, day, hour, minute, second, date.Nanosecond(), date.Location())
	}
	return date.AddDate(0, 0, 1)
}

// StartOfDay truncates an instant to midnight in its own location.
func StartOfDay(date time.Time) time.Time {
	year, month, day := date.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, date.Location())
}

// IsSameDay reports whether two instants fall on the same calendar day.
// Both are interpreted in the first argument's location so the whole engine
// sees a single authoritative calendar per run.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// FirstOccurrenceAtOrAfter returns the anchor itself when it is already at
// or past lowerBound, otherwise the anchor advanced by whole steps until it
// reaches lowerBound. None is returned when the anchor is already past
// upperBound, since no stepped date can land inside the caller's window.
func FirstOccurrenceAtOrAfter(anchor, lowerBound, upperBound time.Time, step Step) mo.Option[time.Time] {
	if anchor.After(upperBound) {
		return mo.None[time.Time]()
	}
	current := anchor
	for current.Before(lowerBound) {
		next := step.advance(current)
		if !next.After(current) {
			// Stepping failed to move forward; bail out rather than spin.
			return mo.None[time.Time]()
		}
		current = next
	}
	if current.After(upperBound) {
		return mo.None[time.Time]()
	}
	return mo.Some(current)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
