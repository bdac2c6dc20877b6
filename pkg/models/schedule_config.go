package models

import (
	"encoding/json"
	"fmt"
)

// CronConfig is the stored form of a cron schedule.
type CronConfig struct {
	Expression string `json:"expression"`
	Timezone   string `json:"timezone"`
}

// PeriodConfig is the stored form of an interval schedule.
type PeriodConfig struct {
	Interval int          `json:"interval"`
	Unit     IntervalUnit `json:"unit"`
}

// ScheduleConfig is the serializable form of a Schedule: exactly one of
// Cron or Period must be set.
type ScheduleConfig struct {
	Cron   *CronConfig   `json:"cron,omitempty"`
	Period *PeriodConfig `json:"period,omitempty"`
}

// Build constructs the runtime Schedule from its stored form.
func (c ScheduleConfig) Build() (Schedule, error) {
	switch {
	case c.Cron != nil && c.Period != nil:
		return nil, fmt.Errorf("schedule must be either cron or period, not both")
	case c.Cron != nil:
		return NewCronSchedule(c.Cron.Expression, c.Cron.Timezone)
	case c.Period != nil:
		return NewIntervalSchedule(c.Period.Interval, c.Period.Unit)
	default:
		return nil, fmt.Errorf("schedule is missing")
	}
}

// ConfigOf returns the stored form of a runtime schedule.
func ConfigOf(s Schedule) (ScheduleConfig, error) {
	switch sched := s.(type) {
	case *CronSchedule:
		return ScheduleConfig{Cron: &CronConfig{Expression: sched.Expression, Timezone: sched.Timezone}}, nil
	case *IntervalSchedule:
		return ScheduleConfig{Period: &PeriodConfig{Interval: sched.Interval, Unit: sched.Unit}}, nil
	default:
		return ScheduleConfig{}, fmt.Errorf("unknown schedule type %T", s)
	}
}

// ParseScheduleConfig parses the stored JSON form.
func ParseScheduleConfig(raw string) (ScheduleConfig, error) {
	var c ScheduleConfig
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ScheduleConfig{}, fmt.Errorf("malformed schedule config: %w", err)
	}
	return c, nil
}
