package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/pkg/errors"
)

func instant(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func generate(t *testing.T, sched model.Schedule, loc *time.Location, from, to time.Time) []time.Time {
	t.Helper()
	seq, err := Generate(&sched, loc, from, to)
	require.NoError(t, err)
	return seq.All()
}

func TestGenerate_IntervalEveryEightHours(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 8,
		IntervalUnit:     model.UnitHour,
		StartDate:        instant(2024, 1, 1, 0, 0),
	}

	got := generate(t, sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 1, 2, 0, 0))

	// both window boundaries are inclusive
	want := []time.Time{
		instant(2024, 1, 1, 0, 0),
		instant(2024, 1, 1, 8, 0),
		instant(2024, 1, 1, 16, 0),
		instant(2024, 1, 2, 0, 0),
	}
	assert.Equal(t, want, got)
}

func TestGenerate_IntervalConsecutiveSpacing(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 90,
		IntervalUnit:     model.UnitMinute,
		StartDate:        instant(2024, 3, 1, 0, 0),
	}

	got := generate(t, sched, time.UTC, instant(2024, 3, 1, 0, 0), instant(2024, 3, 2, 0, 0))
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 90*time.Minute, got[i].Sub(got[i-1]))
	}
}

func TestGenerate_MonthEndClamping(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitMonth,
		StartDate:        instant(2024, 1, 31, 9, 0),
	}

	got := generate(t, sched, time.UTC, instant(2024, 1, 31, 9, 0), instant(2024, 3, 31, 9, 0))

	want := []time.Time{
		instant(2024, 1, 31, 9, 0),
		instant(2024, 2, 29, 9, 0), // leap year; clamped, never March 2
		instant(2024, 3, 29, 9, 0),
	}
	assert.Equal(t, want, got)
}

func TestGenerate_IntervalAlignsToStartDateGrid(t *testing.T) {
	// a window opening mid-chain picks up the existing grid; it never
	// starts a fresh chain at the window edge
	sched := model.Schedule{
		IntervalQuantity: 8,
		IntervalUnit:     model.UnitHour,
		StartDate:        instant(2024, 1, 1, 0, 0),
	}

	got := generate(t, sched, time.UTC, instant(2024, 1, 10, 3, 0), instant(2024, 1, 11, 0, 0))

	want := []time.Time{
		instant(2024, 1, 10, 8, 0),
		instant(2024, 1, 10, 16, 0),
		instant(2024, 1, 11, 0, 0),
	}
	assert.Equal(t, want, got)
}

func TestGenerate_OverlappingWindowsShareGrid(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	}

	first := generate(t, sched, time.UTC, instant(2024, 3, 4, 10, 0), instant(2024, 3, 7, 10, 0))
	second := generate(t, sched, time.UTC, instant(2024, 3, 5, 10, 3), instant(2024, 3, 8, 10, 3))

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	// the overlap is instant-for-instant identical
	assert.Equal(t, first[1:], second[:2])
}

func TestGenerate_MonthGridFromPastStart(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitMonth,
		StartDate:        instant(2024, 1, 31, 9, 0),
	}

	// window far past the start date: occurrences stay on the compounding
	// clamped grid
	got := generate(t, sched, time.UTC, instant(2024, 4, 1, 0, 0), instant(2024, 6, 1, 0, 0))

	want := []time.Time{
		instant(2024, 4, 29, 9, 0),
		instant(2024, 5, 29, 9, 0),
	}
	assert.Equal(t, want, got)
}

func TestGenerate_IntervalAnchorsAtActiveStart(t *testing.T) {
	// active window starts inside the requested window: the first dose
	// lands on the prescribed start, not mid-interval from the window edge
	sched := model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 5, 0, 0),
	}

	got := generate(t, sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 1, 7, 0, 0))
	require.NotEmpty(t, got)
	assert.Equal(t, instant(2024, 1, 5, 0, 0), got[0])
}

func TestGenerate_FixedTimesWithWeekdayFilter(t *testing.T) {
	sched := model.Schedule{
		TimesOfDay:    []model.TimeOfDay{{Hour: 8}, {Hour: 20}},
		WeekdayFilter: []model.Weekday{model.Monday, model.Wednesday, model.Friday},
		StartDate:     instant(2024, 1, 1, 0, 0),
	}

	// 2024-01-01 is a Monday; one full week
	got := generate(t, sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 1, 7, 23, 59))

	require.Len(t, got, 6)
	for _, occ := range got {
		wd := model.WeekdayOf(occ)
		assert.Contains(t, []model.Weekday{model.Monday, model.Wednesday, model.Friday}, wd)
		assert.Contains(t, []int{8, 20}, occ.Hour())
		assert.Equal(t, 0, occ.Minute())
	}
}

func TestGenerate_FixedTimesRespectWindowBounds(t *testing.T) {
	sched := model.Schedule{
		TimesOfDay: []model.TimeOfDay{{Hour: 8}, {Hour: 20}},
		StartDate:  instant(2024, 1, 1, 0, 0),
	}

	// window opens mid-morning: the 08:00 dose on day one is out
	got := generate(t, sched, time.UTC, instant(2024, 1, 1, 12, 0), instant(2024, 1, 2, 12, 0))

	want := []time.Time{
		instant(2024, 1, 1, 20, 0),
		instant(2024, 1, 2, 8, 0),
	}
	assert.Equal(t, want, got)
}

func TestGenerate_FixedTimesInOwnerTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	sched := model.Schedule{
		TimesOfDay: []model.TimeOfDay{{Hour: 8}},
		StartDate:  instant(2024, 1, 1, 0, 0),
	}

	got := generate(t, sched, loc, instant(2024, 1, 1, 0, 0), instant(2024, 1, 1, 23, 59))
	require.Len(t, got, 1)
	// 08:00 EST is 13:00 UTC
	assert.True(t, got[0].Equal(instant(2024, 1, 1, 13, 0)))
}

func TestGenerate_StrictlyAscending(t *testing.T) {
	sched := model.Schedule{
		TimesOfDay: []model.TimeOfDay{{Hour: 6}, {Hour: 12}, {Hour: 22, Minute: 30}},
		StartDate:  instant(2024, 1, 1, 0, 0),
	}

	got := generate(t, sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 1, 14, 0, 0))
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].After(got[i-1]))
	}
}

func TestGenerate_AsNeededAlwaysEmpty(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitHour,
		StartDate:        instant(2024, 1, 1, 0, 0),
		AsNeeded:         true,
	}

	got := generate(t, sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 12, 31, 0, 0))
	assert.Empty(t, got)
}

func TestGenerate_DisjointWindows(t *testing.T) {
	end := instant(2024, 1, 10, 0, 0)
	sched := model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
		EndDate:          &end,
	}

	// active window entirely before the requested window
	got := generate(t, sched, time.UTC, instant(2024, 2, 1, 0, 0), instant(2024, 2, 28, 0, 0))
	assert.Empty(t, got)

	// active window entirely after the requested window
	sched.StartDate = instant(2024, 6, 1, 0, 0)
	sched.EndDate = nil
	got = generate(t, sched, time.UTC, instant(2024, 2, 1, 0, 0), instant(2024, 2, 28, 0, 0))
	assert.Empty(t, got)
}

func TestGenerate_ActiveWindowEndDateInclusive(t *testing.T) {
	end := instant(2024, 1, 3, 0, 0)
	sched := model.Schedule{
		TimesOfDay: []model.TimeOfDay{{Hour: 20}},
		StartDate:  instant(2024, 1, 1, 0, 0),
		EndDate:    &end,
	}

	got := generate(t, sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 1, 31, 0, 0))

	// the end date's own 20:00 dose is still in
	want := []time.Time{
		instant(2024, 1, 1, 20, 0),
		instant(2024, 1, 2, 20, 0),
		instant(2024, 1, 3, 20, 0),
	}
	assert.Equal(t, want, got)
}

func TestGenerate_InvalidScheduleRejected(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 0,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	}
	_, err := Generate(&sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 1, 2, 0, 0))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidSchedule))
}

func TestGenerate_Restartable(t *testing.T) {
	sched := model.Schedule{
		IntervalQuantity: 6,
		IntervalUnit:     model.UnitHour,
		StartDate:        instant(2024, 1, 1, 0, 0),
	}
	seq, err := Generate(&sched, time.UTC, instant(2024, 1, 1, 0, 0), instant(2024, 1, 3, 0, 0))
	require.NoError(t, err)

	first := seq.All()
	second := seq.All()
	assert.Equal(t, first, second)
}
