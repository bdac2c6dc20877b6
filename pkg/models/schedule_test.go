package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIntervalScheduleValidation(t *testing.T) {
	_, err := NewIntervalSchedule(0, IntervalUnitMinutes)
	assert.Error(t, err)

	_, err = NewIntervalSchedule(-5, IntervalUnitMinutes)
	assert.Error(t, err)

	_, err = NewIntervalSchedule(5, IntervalUnit("WEEKS"))
	assert.Error(t, err)

	_, err = NewIntervalSchedule(5, IntervalUnitHours)
	assert.NoError(t, err)
}

func TestIntervalScheduleNextTimeToExecute(t *testing.T) {
	enabled := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sched, err := NewIntervalSchedule(60, IntervalUnitMinutes)
	require.NoError(t, err)

	// 150 minutes after enabling, 30 minutes remain in the current interval.
	sched = sched.WithClock(fixedClock(enabled.Add(150 * time.Minute)))
	next := sched.NextTimeToExecute(enabled)
	require.NotNil(t, next)
	assert.Equal(t, 30*time.Minute, *next)

	// Exactly on an interval boundary, a full interval remains.
	sched = sched.WithClock(fixedClock(enabled.Add(120 * time.Minute)))
	next = sched.NextTimeToExecute(enabled)
	require.NotNil(t, next)
	assert.Equal(t, 60*time.Minute, *next)
}

func TestIntervalSchedulePeriods(t *testing.T) {
	sched, err := NewIntervalSchedule(2, IntervalUnitHours)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	start, end := sched.PeriodStartingAt(&at)
	assert.Equal(t, at, start)
	assert.Equal(t, at.Add(2*time.Hour), end)

	// A period ending where the previous one ended starts there too.
	start2, end2 := sched.PeriodEndingAt(&end)
	assert.Equal(t, start.Add(2*time.Hour), end2)
	assert.Equal(t, at, start2)
}

func TestIntervalScheduleRunningOnTime(t *testing.T) {
	sched, err := NewIntervalSchedule(10, IntervalUnitMinutes)
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sched = sched.WithClock(fixedClock(now))

	assert.True(t, sched.RunningOnTime(nil))

	recent := now.Add(-5 * time.Minute)
	assert.True(t, sched.RunningOnTime(&recent))

	stale := now.Add(-25 * time.Minute)
	assert.False(t, sched.RunningOnTime(&stale))
}

func TestCronScheduleValidation(t *testing.T) {
	_, err := NewCronSchedule("not a cron", "UTC")
	assert.Error(t, err)

	_, err = NewCronSchedule("0 * * * *", "Not/AZone")
	assert.Error(t, err)

	_, err = NewCronSchedule("0 * * * *", "UTC")
	assert.NoError(t, err)
}

func TestCronScheduleNextTimeToExecute(t *testing.T) {
	sched, err := NewCronSchedule("0 * * * *", "UTC")
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	sched = sched.WithClock(fixedClock(now))

	next := sched.NextTimeToExecute(time.Time{})
	require.NotNil(t, next)
	assert.Equal(t, 30*time.Minute, *next)
}

func TestCronSchedulePeriodEndingAt(t *testing.T) {
	sched, err := NewCronSchedule("0 * * * *", "UTC")
	require.NoError(t, err)

	end := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	start, gotEnd := sched.PeriodEndingAt(&end)
	assert.Equal(t, end, gotEnd)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), start)
}

func TestCronScheduleExpectedNextExecutionTime(t *testing.T) {
	sched, err := NewCronSchedule("0 * * * *", "UTC")
	require.NoError(t, err)

	prev := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	next := sched.ExpectedNextExecutionTime(time.Time{}, &prev)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), *next)
}
