package models

import (
	"fmt"
	"time"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Event is a one-off agenda entry. Events with Recurrence set to weekly or
// monthly repeat from their StartTime anchor at a fixed interval.
type Event struct {
	ID           string
	Title        string
	StartTime    time.Time
	EndTime      *time.Time
	IncludesTime bool
	Location     string
	Notes        string
	Recurrence   Recurrence
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PatternKind string

const (
	PatternWeekly         PatternKind = "weekly"
	PatternMonthlyOrdinal PatternKind = "monthly_ordinal"
	PatternMonthlyDate    PatternKind = "monthly_date"
)

type OrdinalWeek int

const (
	OrdinalFirst OrdinalWeek = iota + 1
	OrdinalSecond
	OrdinalThird
	OrdinalFourth
	OrdinalLast
)

func (ordinal OrdinalWeek) String() string {
	switch ordinal {
	case OrdinalFirst:
		return "first"
	case OrdinalSecond:
		return "second"
	case OrdinalThird:
		return "third"
	case OrdinalFourth:
		return "fourth"
	case OrdinalLast:
		return "last"
	}
	return "unknown"
}

// RecurrencePattern is a closed tagged union: only the fields belonging to
// Kind are meaningful. Build values through the constructors so evaluator
// code never sees a malformed pattern.
type RecurrencePattern struct {
	Kind       PatternKind  `json:"kind"`
	Weekday    time.Weekday `json:"weekday,omitempty"`
	Ordinal    OrdinalWeek  `json:"ordinal,omitempty"`
	DayOfMonth int          `json:"day_of_month,omitempty"`
}

func NewWeeklyPattern(weekday time.Weekday) RecurrencePattern {
	return RecurrencePattern{Kind: PatternWeekly, Weekday: weekday}
}

func NewMonthlyOrdinalPattern(ordinal OrdinalWeek, weekday time.Weekday) (RecurrencePattern, error) {
	if ordinal < OrdinalFirst || ordinal > OrdinalLast {
		return RecurrencePattern{}, fmt.Errorf("ordinal week out of range: %d", int(ordinal))
	}
	return RecurrencePattern{Kind: PatternMonthlyOrdinal, Ordinal: ordinal, Weekday: weekday}, nil
}

func NewMonthlyDatePattern(dayOfMonth int) (RecurrencePattern, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return RecurrencePattern{}, fmt.Errorf("day of month out of range: %d", dayOfMonth)
	}
	return RecurrencePattern{Kind: PatternMonthlyDate, DayOfMonth: dayOfMonth}, nil
}

func (pattern RecurrencePattern) Description() string {
	switch pattern.Kind {
	case PatternWeekly:
		return "Every " + pattern.Weekday.String()
	case PatternMonthlyOrdinal:
		return capitalize(pattern.Ordinal.String()) + " " + pattern.Weekday.String()
	case PatternMonthlyDate:
		return fmt.Sprintf("Day %d%s", pattern.DayOfMonth, ordinalSuffix(pattern.DayOfMonth))
	}
	return "Unknown"
}

func ordinalSuffix(day int) string {
	switch day {
	case 1, 21, 31:
		return "st"
	case 2, 22:
		return "nd"
	case 3, 23:
		return "rd"
	}
	return "th"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

type StopKind string

const (
	StopEndDate         StopKind = "end_date"
	StopOccurrenceCount StopKind = "occurrence_count"
)

// StopCondition terminates a recurring series, either on a calendar date or
// after a remaining number of occurrences. A nil *StopCondition means the
// series never expires.
type StopCondition struct {
	Kind      StopKind  `json:"kind"`
	EndDate   time.Time `json:"end_date,omitzero"`
	Remaining int       `json:"remaining,omitempty"`
}

func StopOnDate(endDate time.Time) *StopCondition {
	return &StopCondition{Kind: StopEndDate, EndDate: endDate}
}

func StopAfter(remaining int) *StopCondition {
	return &StopCondition{Kind: StopOccurrenceCount, Remaining: remaining}
}

// RecurringEvent is a pattern-based series with no anchor timestamp: the
// pattern alone decides which days it occurs on. Position preserves the
// user's manual ordering in the recurring list.
type RecurringEvent struct {
	ID            string
	Title         string
	Location      string
	Notes         string
	Pattern       RecurrencePattern
	StopCondition *StopCondition
	Position      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// APIToken authorizes programmatic access. Scope is "api" for the JSON API
// or "ical" for the calendar feed.
type APIToken struct {
	ID        string
	Name      string
	TokenHash string
	Scope     string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// OccurrenceKey identifies one concrete occurrence of an event. The same
// (event, start) pair always maps to the same key across recomputation,
// which keeps list diffing stable in clients.
type OccurrenceKey struct {
	EventID   string
	StartUnix int64
}

// EventOccurrence is one concrete calendar instance, derived on demand and
// never persisted.
type EventOccurrence struct {
	EventID     string     `json:"event_id"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Title       string     `json:"title"`
	Location    string     `json:"location,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	IsRecurring bool       `json:"is_recurring"`
	HasTime     bool       `json:"has_time"`
}

func (occurrence EventOccurrence) Key() OccurrenceKey {
	return OccurrenceKey{EventID: occurrence.EventID, StartUnix: occurrence.StartDate.Unix()}
}

// OccurrenceID is the serialized form of Key handed to API clients.
func (occurrence EventOccurrence) OccurrenceID() string {
	return fmt.Sprintf("%s-%d", occurrence.EventID, occurrence.StartDate.Unix())
}
