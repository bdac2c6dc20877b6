package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// errText flattens an error for serialized run results so callers of the
// execute API see failures instead of a silently truncated result.
func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// InputRunResults holds the documents produced by input collection, one
// entry per monitor input, plus per-trigger composite-aggregation after-keys
// to resume paginated queries on the next run. Any collection failure is
// captured in Error rather than thrown past the boundary.
type InputRunResults struct {
	Results   []map[string]interface{} `json:"results"`
	AfterKeys map[string]string        `json:"afterKeys,omitempty"`
	Error     error                    `json:"-"`
}

func (r InputRunResults) MarshalJSON() ([]byte, error) {
	type plain InputRunResults
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(r), errText(r.Error)})
}

// ActionRunResult is the transient outcome of running one action.
type ActionRunResult struct {
	ActionID      string            `json:"actionId"`
	ActionName    string            `json:"actionName"`
	Output        map[string]string `json:"output"`
	Throttled     bool              `json:"throttled"`
	ExecutionTime *time.Time        `json:"executionTime,omitempty"`
	Error         error             `json:"-"`
}

func (r ActionRunResult) MarshalJSON() ([]byte, error) {
	type plain ActionRunResult
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(r), errText(r.Error)})
}

// TriggerRunResult is the transient outcome of evaluating one trigger,
// including the results of any actions that ran.
type TriggerRunResult struct {
	TriggerName   string                      `json:"triggerName"`
	Triggered     bool                        `json:"triggered"`
	Error         error                       `json:"-"`
	ActionResults map[string]*ActionRunResult `json:"actionResults"`
}

func (r TriggerRunResult) MarshalJSON() ([]byte, error) {
	type plain TriggerRunResult
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(r), errText(r.Error)})
}

// AlertError converts the trigger's execution error (if any) into an error
// history entry.
func (r *TriggerRunResult) AlertError(now time.Time) *AlertError {
	if r.Error == nil {
		return nil
	}
	return &AlertError{Timestamp: now, Message: fmt.Sprintf("Failed evaluating trigger:\n%v", r.Error)}
}

// MonitorRunResult is the caller-visible summary of one monitor run. It is
// never persisted directly; it feeds alert composition and the API response.
type MonitorRunResult struct {
	MonitorName    string                       `json:"monitorName"`
	PeriodStart    time.Time                    `json:"periodStart"`
	PeriodEnd      time.Time                    `json:"periodEnd"`
	Error          error                        `json:"-"`
	InputResults   InputRunResults              `json:"inputResults"`
	TriggerResults map[string]*TriggerRunResult `json:"triggerResults"`
}

func (r MonitorRunResult) MarshalJSON() ([]byte, error) {
	type plain MonitorRunResult
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(r), errText(r.Error)})
}

// AlertError returns the run-level error to record on alerts, preferring a
// monitor-level failure over an input collection failure.
func (r *MonitorRunResult) AlertError(now time.Time) *AlertError {
	if r.Error != nil {
		return &AlertError{Timestamp: now, Message: fmt.Sprintf("Failed running monitor:\n%v", r.Error)}
	}
	if r.InputResults.Error != nil {
		return &AlertError{Timestamp: now, Message: fmt.Sprintf("Failed fetching inputs:\n%v", r.InputResults.Error)}
	}
	return nil
}

// RunError returns the error relevant to a trigger's execution context:
// run-level failures shadow input failures, which shadow the trigger's own.
func (r *MonitorRunResult) RunError(triggerID string) error {
	if r.Error != nil {
		return r.Error
	}
	if r.InputResults.Error != nil {
		return r.InputResults.Error
	}
	if tr, ok := r.TriggerResults[triggerID]; ok {
		return tr.Error
	}
	return nil
}
