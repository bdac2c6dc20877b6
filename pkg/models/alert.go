package models

import (
	"fmt"
	"time"
)

// AlertState is the lifecycle state of an alert.
type AlertState string

const (
	AlertStateActive       AlertState = "ACTIVE"
	AlertStateAcknowledged AlertState = "ACKNOWLEDGED"
	AlertStateCompleted    AlertState = "COMPLETED"
	AlertStateError        AlertState = "ERROR"
	AlertStateDeleted      AlertState = "DELETED"
)

// MaxErrorHistory bounds the per-alert error history; new errors are
// prepended and the oldest entries dropped.
const MaxErrorHistory = 10

// AlertError is one entry in an alert's error history.
type AlertError struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ActionExecutionResult records the last execution of one action for an
// alert, including how many times the action has been throttled since.
type ActionExecutionResult struct {
	ActionID          string     `json:"actionId"`
	LastExecutionTime *time.Time `json:"lastExecutionTime,omitempty"`
	ThrottledCount    int        `json:"throttledCount"`
}

// Alert is the persistent record of a trigger's current or historical
// firing state. At most one non-terminal alert exists per (monitor,
// trigger) pair. Alerts are immutable values: lifecycle transitions
// produce new copies.
type Alert struct {
	ID                     string                  `json:"id"`
	Version                int64                   `json:"version"`
	SchemaVersion          int                     `json:"schemaVersion"`
	MonitorID              string                  `json:"monitorId"`
	MonitorName            string                  `json:"monitorName"`
	MonitorVersion         int64                   `json:"monitorVersion"`
	TriggerID              string                  `json:"triggerId"`
	TriggerName            string                  `json:"triggerName"`
	State                  AlertState              `json:"state"`
	StartTime              time.Time               `json:"startTime"`
	EndTime                *time.Time              `json:"endTime,omitempty"`
	LastNotificationTime   *time.Time              `json:"lastNotificationTime,omitempty"`
	AcknowledgedTime       *time.Time              `json:"acknowledgedTime,omitempty"`
	ErrorMessage           string                  `json:"errorMessage,omitempty"`
	ErrorHistory           []AlertError            `json:"errorHistory"`
	Severity               Severity                `json:"severity"`
	ActionExecutionResults []ActionExecutionResult `json:"actionExecutionResults"`
}

// NewAlert builds a fresh alert for a (monitor, trigger) pair.
func NewAlert(monitor *Monitor, trigger *Trigger, startTime time.Time, state AlertState) *Alert {
	t := startTime
	return &Alert{
		ID:                   NoID,
		Version:              NoVersion,
		SchemaVersion:        NoSchemaVersion,
		MonitorID:            monitor.ID,
		MonitorName:          monitor.Name,
		MonitorVersion:       monitor.Version,
		TriggerID:            trigger.ID,
		TriggerName:          trigger.Name,
		Severity:             trigger.Severity,
		State:                state,
		StartTime:            startTime,
		LastNotificationTime: &t,
	}
}

// IsAcknowledged reports whether a user has acknowledged this alert.
func (a *Alert) IsAcknowledged() bool {
	return a.State == AlertStateAcknowledged
}

// Validate checks the alert's state invariants. An error message is only
// legal on ERROR and DELETED alerts.
func (a *Alert) Validate() error {
	if a.ErrorMessage != "" && a.State != AlertStateError && a.State != AlertStateDeleted {
		return fmt.Errorf("alert with an error message in state %s", a.State)
	}
	if len(a.ErrorHistory) > MaxErrorHistory {
		return fmt.Errorf("alert error history exceeds %d entries", MaxErrorHistory)
	}
	return nil
}

// Copy returns a shallow copy with its own history and action-result slices
// so transitions never alias the previous value.
func (a *Alert) Copy() *Alert {
	cp := *a
	cp.ErrorHistory = append([]AlertError(nil), a.ErrorHistory...)
	cp.ActionExecutionResults = append([]ActionExecutionResult(nil), a.ActionExecutionResults...)
	return &cp
}

// UpdateErrorHistory prepends err (if any) to history, keeping at most
// MaxErrorHistory entries, most recent first.
func UpdateErrorHistory(history []AlertError, err *AlertError) []AlertError {
	if err == nil {
		return history
	}
	updated := append([]AlertError{*err}, history...)
	if len(updated) > MaxErrorHistory {
		updated = updated[:MaxErrorHistory]
	}
	return updated
}
