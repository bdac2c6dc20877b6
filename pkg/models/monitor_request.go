package models

import (
	"fmt"
	"time"
)

// MonitorRequest is the API payload for creating or updating a monitor.
type MonitorRequest struct {
	Name     string         `json:"name"`
	Enabled  bool           `json:"enabled"`
	Schedule ScheduleConfig `json:"schedule"`
	Inputs   []SearchInput  `json:"inputs"`
	Triggers []Trigger      `json:"triggers"`
	User     string         `json:"user,omitempty"`
}

// ToMonitor builds the runtime monitor from the request.
func (r *MonitorRequest) ToMonitor(now time.Time) (*Monitor, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("monitor name is required")
	}
	schedule, err := r.Schedule.Build()
	if err != nil {
		return nil, err
	}
	monitor := &Monitor{
		Name:     r.Name,
		Enabled:  r.Enabled,
		Schedule: schedule,
		Inputs:   r.Inputs,
		Triggers: r.Triggers,
		User:     r.User,
	}
	if r.Enabled {
		monitor.EnabledTime = &now
	}
	return monitor, nil
}
