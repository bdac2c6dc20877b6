package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// NoID marks a monitor or alert that has not been persisted. Ad-hoc test
// executions run with NoID and never write alert state.
const NoID = ""

// NoVersion is the version of a document that has not been persisted.
const NoVersion int64 = -1

// NoSchemaVersion is used before the document schema version is known.
const NoSchemaVersion = 0

// SearchInput is a query executed over the monitor's period window. The
// query may reference {{.PeriodStart}} and {{.PeriodEnd}} which are bound
// at collection time.
type SearchInput struct {
	Streams []string `json:"streams"`
	Query   string   `json:"query"`
}

// Monitor is a configured periodic check: a schedule, one or more inputs
// and an ordered list of triggers. Monitors are read-only to the engine;
// they are created and updated through the configuration API.
type Monitor struct {
	ID             string        `json:"id"`
	Version        int64         `json:"version"`
	Name           string        `json:"name"`
	Enabled        bool          `json:"enabled"`
	EnabledTime    *time.Time    `json:"enabledTime,omitempty"`
	Schedule       Schedule      `json:"schedule"`
	Inputs         []SearchInput `json:"inputs"`
	Triggers       []Trigger     `json:"triggers"`
	User           string        `json:"user,omitempty"`
	LastUpdateTime time.Time     `json:"lastUpdateTime"`
	SchemaVersion  int           `json:"schemaVersion"`
}

// MarshalJSON serializes the schedule in its {cron|period} stored form so a
// fetched monitor can be sent back unchanged as an update request.
func (m Monitor) MarshalJSON() ([]byte, error) {
	type plain Monitor
	var cfg *ScheduleConfig
	if m.Schedule != nil {
		built, err := ConfigOf(m.Schedule)
		if err != nil {
			return nil, err
		}
		cfg = &built
	}
	return json.Marshal(struct {
		plain
		Schedule *ScheduleConfig `json:"schedule,omitempty"`
	}{plain(m), cfg})
}

// Validate enforces the monitor invariants. EnabledTime must be set exactly
// when the monitor is enabled.
func (m *Monitor) Validate() error {
	if m.Enabled && m.EnabledTime == nil {
		return fmt.Errorf("monitor %q is enabled but has no enabled time", m.Name)
	}
	if !m.Enabled && m.EnabledTime != nil {
		return fmt.Errorf("monitor %q is disabled but has an enabled time", m.Name)
	}
	for _, t := range m.Triggers {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
