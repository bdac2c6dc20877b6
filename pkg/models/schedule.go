package models

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType identifies the schedule variant of a monitor
type ScheduleType string

const (
	ScheduleTypeCron     ScheduleType = "cron"
	ScheduleTypeInterval ScheduleType = "interval"
)

// IntervalUnit is the unit of an interval schedule
type IntervalUnit string

const (
	IntervalUnitMinutes IntervalUnit = "MINUTES"
	IntervalUnitHours   IntervalUnit = "HOURS"
	IntervalUnitDays    IntervalUnit = "DAYS"
)

// Schedule computes execution instants and period boundaries for a monitor.
// Implementations are pure given the injected clock and hold no mutable state.
type Schedule interface {
	// NextTimeToExecute returns the time remaining until the next firing
	// measured from the schedule's current clock, or nil if the schedule
	// can never fire again.
	NextTimeToExecute(enabledTime time.Time) *time.Duration

	// ExpectedNextExecutionTime returns the instant the next run should fire
	// at, given the previously expected execution time. The first call passes
	// the monitor's enabledTime as expectedPrevious.
	ExpectedNextExecutionTime(enabledTime time.Time, expectedPrevious *time.Time) *time.Time

	// PeriodStartingAt returns the (start, end) window beginning at startTime.
	PeriodStartingAt(startTime *time.Time) (time.Time, time.Time)

	// PeriodEndingAt returns the (start, end) window ending at endTime.
	PeriodEndingAt(endTime *time.Time) (time.Time, time.Time)

	// RunningOnTime reports whether the last actual execution lines up with
	// the schedule. Used for drift reporting, not alerting.
	RunningOnTime(lastExecutionTime *time.Time) bool
}

// CronSchedule fires on a standard five-field cron expression evaluated in
// a fixed timezone.
type CronSchedule struct {
	Expression string         `json:"expression"`
	Timezone   string         `json:"timezone"`
	location   *time.Location `json:"-"`
	sched      cron.Schedule  `json:"-"`
	now        func() time.Time
}

// NewCronSchedule parses the expression and timezone up front so a malformed
// schedule is rejected at configuration time rather than at firing time.
func NewCronSchedule(expression, timezone string) (*CronSchedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %s is not supported: %w", timezone, err)
	}
	sched, err := cron.ParseStandard(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return &CronSchedule{
		Expression: expression,
		Timezone:   timezone,
		location:   loc,
		sched:      sched,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy using the given clock. Tests use this to pin "now".
func (c *CronSchedule) WithClock(now func() time.Time) *CronSchedule {
	cp := *c
	cp.now = now
	return &cp
}

func (c *CronSchedule) Type() ScheduleType { return ScheduleTypeCron }

func (c *CronSchedule) NextTimeToExecute(enabledTime time.Time) *time.Duration {
	now := c.now().In(c.location)
	next := c.sched.Next(now)
	if next.IsZero() {
		return nil
	}
	d := next.Sub(now)
	return &d
}

func (c *CronSchedule) ExpectedNextExecutionTime(enabledTime time.Time, expectedPrevious *time.Time) *time.Time {
	from := c.now()
	if expectedPrevious != nil {
		from = *expectedPrevious
	}
	next := c.sched.Next(from.In(c.location))
	if next.IsZero() {
		return nil
	}
	next = next.UTC()
	return &next
}

func (c *CronSchedule) PeriodStartingAt(startTime *time.Time) (time.Time, time.Time) {
	var realStart time.Time
	if startTime != nil {
		realStart = *startTime
	} else {
		// First run: the period starts at the last time the cron would
		// have fired.
		prev, ok := c.prevExecution(c.now())
		if !ok {
			now := c.now()
			return now, now
		}
		realStart = prev
	}
	end := c.sched.Next(realStart.In(c.location))
	if end.IsZero() {
		return realStart, realStart
	}
	return realStart, end.UTC()
}

func (c *CronSchedule) PeriodEndingAt(endTime *time.Time) (time.Time, time.Time) {
	var realEnd time.Time
	if endTime != nil {
		realEnd = *endTime
	} else {
		next := c.sched.Next(c.now().In(c.location))
		if next.IsZero() {
			now := c.now()
			return now, now
		}
		realEnd = next.UTC()
	}
	start, ok := c.prevExecution(realEnd)
	if !ok {
		return realEnd, realEnd
	}
	return start, realEnd
}

func (c *CronSchedule) RunningOnTime(lastExecutionTime *time.Time) bool {
	if lastExecutionTime == nil {
		return true
	}
	expected, ok := c.prevExecution(c.now())
	if !ok {
		return false
	}
	return expected.Truncate(time.Second).Equal(lastExecutionTime.Truncate(time.Second))
}

// prevExecution finds the last execution strictly before t. The cron
// library only exposes Next, so this binary searches the preceding year for
// the latest instant whose next execution is still before t.
func (c *CronSchedule) prevExecution(t time.Time) (time.Time, bool) {
	t = t.In(c.location)
	lo, hi := t.Add(-366*24*time.Hour), t
	if !c.sched.Next(lo).Before(t) {
		return time.Time{}, false
	}
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if next := c.sched.Next(mid); !next.IsZero() && next.Before(t) {
			lo = mid
		} else {
			hi = mid
		}
	}
	prev := c.sched.Next(lo)
	if prev.IsZero() || !prev.Before(t) {
		return time.Time{}, false
	}
	return prev.UTC(), true
}

// IntervalSchedule fires every fixed interval measured from the monitor's
// enabled time.
type IntervalSchedule struct {
	Interval int          `json:"interval"`
	Unit     IntervalUnit `json:"unit"`
	now      func() time.Time
}

// NewIntervalSchedule validates the amount and unit. Only minutes, hours and
// days are supported, matching the configuration surface.
func NewIntervalSchedule(interval int, unit IntervalUnit) (*IntervalSchedule, error) {
	switch unit {
	case IntervalUnitMinutes, IntervalUnitHours, IntervalUnitDays:
	default:
		return nil, fmt.Errorf("interval unit %s is not supported", unit)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %d", interval)
	}
	return &IntervalSchedule{Interval: interval, Unit: unit, now: time.Now}, nil
}

// WithClock returns a copy using the given clock.
func (s *IntervalSchedule) WithClock(now func() time.Time) *IntervalSchedule {
	cp := *s
	cp.now = now
	return &cp
}

func (s *IntervalSchedule) Type() ScheduleType { return ScheduleTypeInterval }

func (s *IntervalSchedule) duration() time.Duration {
	switch s.Unit {
	case IntervalUnitHours:
		return time.Duration(s.Interval) * time.Hour
	case IntervalUnitDays:
		return time.Duration(s.Interval) * 24 * time.Hour
	default:
		return time.Duration(s.Interval) * time.Minute
	}
}

func (s *IntervalSchedule) NextTimeToExecute(enabledTime time.Time) *time.Duration {
	interval := s.duration()
	elapsed := s.now().Sub(enabledTime)
	// The remainder of the elapsed time is how long we have already been
	// waiting inside the current interval.
	remaining := interval - elapsed%interval
	return &remaining
}

func (s *IntervalSchedule) ExpectedNextExecutionTime(enabledTime time.Time, expectedPrevious *time.Time) *time.Time {
	prev := enabledTime
	if expectedPrevious != nil {
		prev = *expectedPrevious
	}
	interval := s.duration()
	now := s.now()
	remaining := interval - now.Sub(prev)%interval
	next := now.Add(remaining)
	return &next
}

func (s *IntervalSchedule) PeriodStartingAt(startTime *time.Time) (time.Time, time.Time) {
	start := s.now()
	if startTime != nil {
		start = *startTime
	}
	return start, start.Add(s.duration())
}

func (s *IntervalSchedule) PeriodEndingAt(endTime *time.Time) (time.Time, time.Time) {
	end := s.now()
	if endTime != nil {
		end = *endTime
	}
	return end.Add(-s.duration()), end
}

func (s *IntervalSchedule) RunningOnTime(lastExecutionTime *time.Time) bool {
	if lastExecutionTime == nil {
		return true
	}
	delta := s.now().Sub(*lastExecutionTime)
	return delta > 0 && delta < s.duration()
}
