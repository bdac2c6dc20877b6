package services

import (
	"time"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

// TriggerExecutionContext is the read-only view handed to condition
// evaluation and message templates for one trigger of one run.
type TriggerExecutionContext struct {
	Monitor     *models.Monitor
	Trigger     *models.Trigger
	Results     []map[string]interface{}
	PeriodStart time.Time
	PeriodEnd   time.Time
	// Alert is the current non-terminal alert for this trigger, if any.
	Alert *models.Alert
	// Error is the run-level error in effect when the trigger was evaluated.
	Error error
}

// templateData flattens the context for subject/message templates.
func (c *TriggerExecutionContext) templateData() map[string]interface{} {
	data := map[string]interface{}{
		"MonitorName": c.Monitor.Name,
		"MonitorID":   c.Monitor.ID,
		"TriggerName": c.Trigger.Name,
		"Severity":    string(c.Trigger.Severity),
		"PeriodStart": c.PeriodStart,
		"PeriodEnd":   c.PeriodEnd,
		"Results":     c.Results,
	}
	if c.Alert != nil {
		data["AlertState"] = string(c.Alert.State)
	}
	if c.Error != nil {
		data["Error"] = c.Error.Error()
	}
	return data
}
