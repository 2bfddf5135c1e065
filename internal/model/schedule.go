package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/pawdose/medtrack-api/pkg/errors"
)

// IntervalUnit is the unit of an interval-mode schedule step.
type IntervalUnit string

const (
	UnitMinute IntervalUnit = "minute"
	UnitHour   IntervalUnit = "hour"
	UnitDay    IntervalUnit = "day"
	UnitWeek   IntervalUnit = "week"
	UnitMonth  IntervalUnit = "month"
)

func (u IntervalUnit) Valid() bool {
	switch u {
	case UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth:
		return true
	}
	return false
}

// Weekday uses Monday=0 .. Sunday=6 numbering everywhere in this codebase.
// time.Weekday counts from Sunday=0; convert at the boundary, never inline.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdayOf converts a timestamp's weekday to Monday=0 numbering.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &tod.Hour, &tod.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if !tod.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return tod, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

// Schedule describes a medication's administration rule. It is immutable
// once attached to a medication; updates replace the whole value.
//
// Exactly one generation mode is active: fixed-time when TimesOfDay is
// non-empty, interval otherwise. AsNeeded (PRN) suppresses generation
// entirely regardless of the other fields.
type Schedule struct {
	IntervalQuantity int          `json:"interval_quantity"`
	IntervalUnit     IntervalUnit `json:"interval_unit"`
	TimesOfDay       []TimeOfDay  `json:"times_of_day,omitempty"`
	WeekdayFilter    []Weekday    `json:"weekday_filter,omitempty"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          *time.Time   `json:"end_date,omitempty"`
	AsNeeded         bool         `json:"as_needed"`
}

// FixedTime reports whether the schedule generates from times of day
// rather than a recurring interval.
func (s *Schedule) FixedTime() bool {
	return len(s.TimesOfDay) > 0
}

// Validate enforces the schedule invariants. It runs at medication
// create/update time, before any occurrence generation is attempted.
func (s *Schedule) Validate() error {
	if s.StartDate.IsZero() {
		return errors.InvalidSchedule("start date is required")
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return errors.InvalidSchedule("end date precedes start date")
	}

	if s.FixedTime() {
		for _, tod := range s.TimesOfDay {
			if !tod.Valid() {
				return errors.InvalidSchedule(fmt.Sprintf("time of day %s out of range", tod))
			}
		}
		if !sort.SliceIsSorted(s.TimesOfDay, func(i, j int) bool {
			return s.TimesOfDay[i].Before(s.TimesOfDay[j])
		}) {
			return errors.InvalidSchedule("times of day must be ascending")
		}
		for i := 1; i < len(s.TimesOfDay); i++ {
			if s.TimesOfDay[i] == s.TimesOfDay[i-1] {
				return errors.InvalidSchedule(fmt.Sprintf("duplicate time of day %s", s.TimesOfDay[i]))
			}
		}
		seen := make(map[Weekday]bool, len(s.WeekdayFilter))
		for _, wd := range s.WeekdayFilter {
			if wd < Monday || wd > Sunday {
				return errors.InvalidSchedule(fmt.Sprintf("weekday %d out of range", wd))
			}
			if seen[wd] {
				return errors.InvalidSchedule(fmt.Sprintf("duplicate weekday %d", wd))
			}
			seen[wd] = true
		}
		return nil
	}

	if len(s.WeekdayFilter) > 0 {
		return errors.InvalidSchedule("weekday filter requires times of day")
	}
	if s.IntervalQuantity < 1 {
		return errors.InvalidSchedule("interval quantity must be at least 1")
	}
	if !s.IntervalUnit.Valid() {
		return errors.InvalidSchedule(fmt.Sprintf("unknown interval unit %q", s.IntervalUnit))
	}
	return nil
}

// WeekdayAllowed reports whether the filter admits the given weekday.
// An empty filter admits every day.
func (s *Schedule) WeekdayAllowed(wd Weekday) bool {
	if len(s.WeekdayFilter) == 0 {
		return true
	}
	for _, allowed := range s.WeekdayFilter {
		if allowed == wd {
			return true
		}
	}
	return false
}
