// Package schedule turns a medication schedule into the sequence of
// instants a dose should be administered at. Generation is pure: the same
// schedule, timezone and window always produce the same sequence, so the
// materializer and the tests can both replay it without a database.
package schedule

import (
	"time"

	"github.com/pawdose/medtrack-api/internal/model"
)

// Sequence is a finite, restartable stream of occurrence instants, strictly
// ascending, each within the requested window intersected with the
// schedule's active window.
type Sequence struct {
	sched *model.Schedule
	loc   *time.Location

	// effective bounds, already intersected with the active window
	effStart time.Time
	effEnd   time.Time
	empty    bool
}

// Generate validates the schedule and prepares the occurrence sequence for
// the given window. The window bounds are inclusive. The timezone is the
// medication owner's; times of day are interpreted in it.
//
// An as-needed (PRN) schedule yields an empty sequence unconditionally:
// PRN dose events exist only through manual logging.
func Generate(sched *model.Schedule, loc *time.Location, windowStart, windowEnd time.Time) (*Sequence, error) {
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &Sequence{sched: sched, loc: loc}

	if sched.AsNeeded || windowEnd.Before(windowStart) {
		s.empty = true
		return s, nil
	}

	activeStart := startOfDay(sched.StartDate, loc)
	s.effStart = windowStart
	if activeStart.After(s.effStart) {
		s.effStart = activeStart
	}

	s.effEnd = windowEnd
	if sched.EndDate != nil {
		// inclusive date bound: the whole end day is eligible
		activeEnd := startOfDay(*sched.EndDate, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
		if activeEnd.Before(s.effEnd) {
			s.effEnd = activeEnd
		}
	}

	if s.effEnd.Before(s.effStart) {
		s.empty = true
	}
	return s, nil
}

// Iter returns a fresh iterator over the sequence.
func (s *Sequence) Iter() *Iter {
	it := &Iter{seq: s}
	if s.empty {
		it.done = true
		return it
	}
	if s.sched.FixedTime() {
		it.day = startOfDay(s.effStart.In(s.loc), s.loc)
	} else {
		// The interval grid is anchored at the schedule's start date:
		// sweeps with different window starts land on the same instants,
		// so the store's unique key can dedupe repeated materialization.
		it.cur = s.firstOnGrid()
	}
	return it
}

// All drains a fresh iterator into a slice.
func (s *Sequence) All() []time.Time {
	var out []time.Time
	for it := s.Iter(); ; {
		t, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

// Iter walks a Sequence. Not safe for concurrent use; create one per
// consumer.
type Iter struct {
	seq  *Sequence
	done bool

	// interval mode
	cur time.Time

	// fixed-time mode
	day time.Time
	idx int
}

// Next returns the next occurrence instant, or false when the sequence is
// exhausted.
func (it *Iter) Next() (time.Time, bool) {
	if it.done {
		return time.Time{}, false
	}
	if it.seq.sched.FixedTime() {
		return it.nextFixed()
	}
	return it.nextInterval()
}

func (it *Iter) nextInterval() (time.Time, bool) {
	if it.cur.After(it.seq.effEnd) {
		it.done = true
		return time.Time{}, false
	}
	t := it.cur
	it.cur = addInterval(it.cur, it.seq.sched.IntervalQuantity, it.seq.sched.IntervalUnit)
	return t, true
}

func (it *Iter) nextFixed() (time.Time, bool) {
	sched := it.seq.sched
	for {
		if it.day.After(it.seq.effEnd) {
			it.done = true
			return time.Time{}, false
		}
		if !sched.WeekdayAllowed(model.WeekdayOf(it.day)) {
			it.advanceDay()
			continue
		}
		if it.idx >= len(sched.TimesOfDay) {
			it.advanceDay()
			continue
		}
		tod := sched.TimesOfDay[it.idx]
		it.idx++
		instant := time.Date(it.day.Year(), it.day.Month(), it.day.Day(), tod.Hour, tod.Minute, 0, 0, it.seq.loc)
		if instant.Before(it.seq.effStart) {
			continue
		}
		if instant.After(it.seq.effEnd) {
			// times of day are ascending, so the rest of today is out of
			// range too; later days can only be further out
			it.done = true
			return time.Time{}, false
		}
		return instant, true
	}
}

func (it *Iter) advanceDay() {
	it.day = it.day.AddDate(0, 0, 1)
	it.idx = 0
}

// firstOnGrid returns the earliest grid point at or after the effective
// start. The grid starts at StartDate and steps by the interval, so a
// brand-new medication's first dose still lands on its prescribed start.
func (s *Sequence) firstOnGrid() time.Time {
	start := s.sched.StartDate
	if !start.Before(s.effStart) {
		return start
	}
	if d := intervalDuration(s.sched.IntervalQuantity, s.sched.IntervalUnit); d > 0 {
		steps := s.effStart.Sub(start) / d
		t := start.Add(steps * d)
		if t.Before(s.effStart) {
			t = t.Add(d)
		}
		return t
	}
	// month steps compound with day-of-month clamping; walk the grid
	t := start
	for t.Before(s.effStart) {
		t = addMonthsClamped(t, s.sched.IntervalQuantity)
	}
	return t
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// addInterval steps a timestamp by quantity units. Minute through week are
// exact elapsed-time addition; months follow calendar addition with the
// day-of-month clamped to the target month's last valid day, so Jan 31
// plus one month lands on Feb 28 or 29, never on an invalid date.
func addInterval(t time.Time, quantity int, unit model.IntervalUnit) time.Time {
	if unit == model.UnitMonth {
		return addMonthsClamped(t, quantity)
	}
	return t.Add(intervalDuration(quantity, unit))
}

// intervalDuration returns the fixed step size of a unit, or 0 for months,
// whose length varies.
func intervalDuration(quantity int, unit model.IntervalUnit) time.Duration {
	switch unit {
	case model.UnitMinute:
		return time.Duration(quantity) * time.Minute
	case model.UnitHour:
		return time.Duration(quantity) * time.Hour
	case model.UnitDay:
		return time.Duration(quantity) * 24 * time.Hour
	case model.UnitWeek:
		return time.Duration(quantity) * 7 * 24 * time.Hour
	}
	return 0
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	// day 1 never overflows, so time.Date normalizes the month safely
	first := time.Date(y, time.Month(int(m)+months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
