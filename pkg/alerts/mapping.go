package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

// alertToRow flattens an alert into alerts-stream columns. Error history
// and action execution results are stored as JSON strings.
func alertToRow(a *models.Alert) ([]string, []interface{}) {
	historyJSON, _ := json.Marshal(a.ErrorHistory)
	actionsJSON, _ := json.Marshal(a.ActionExecutionResults)

	columns := []string{
		"id", "version", "schema_version",
		"monitor_id", "monitor_name", "monitor_version",
		"trigger_id", "trigger_name",
		"state", "severity",
		"start_time", "end_time", "last_notification_time", "acknowledged_time",
		"error_message", "error_history", "action_execution_results",
	}
	values := []interface{}{
		a.ID, a.Version, int32(a.SchemaVersion),
		a.MonitorID, a.MonitorName, a.MonitorVersion,
		a.TriggerID, a.TriggerName,
		string(a.State), string(a.Severity),
		a.StartTime, a.EndTime, a.LastNotificationTime, a.AcknowledgedTime,
		a.ErrorMessage, string(historyJSON), string(actionsJSON),
	}
	return columns, values
}

// rowToAlert rebuilds an alert from a query result row.
func rowToAlert(row map[string]interface{}) (*models.Alert, error) {
	id := getString(row, "id")
	if id == "" {
		return nil, fmt.Errorf("alert row missing id")
	}

	alert := &models.Alert{
		ID:                   id,
		Version:              getInt64(row, "version"),
		SchemaVersion:        int(getInt64(row, "schema_version")),
		MonitorID:            getString(row, "monitor_id"),
		MonitorName:          getString(row, "monitor_name"),
		MonitorVersion:       getInt64(row, "monitor_version"),
		TriggerID:            getString(row, "trigger_id"),
		TriggerName:          getString(row, "trigger_name"),
		State:                models.AlertState(getString(row, "state")),
		Severity:             models.Severity(getString(row, "severity")),
		StartTime:            getTime(row, "start_time"),
		EndTime:              getTimePtr(row, "end_time"),
		LastNotificationTime: getTimePtr(row, "last_notification_time"),
		AcknowledgedTime:     getTimePtr(row, "acknowledged_time"),
		ErrorMessage:         getString(row, "error_message"),
	}

	if raw := getString(row, "error_history"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &alert.ErrorHistory); err != nil {
			return nil, fmt.Errorf("alert %s has malformed error history: %w", id, err)
		}
	}
	if raw := getString(row, "action_execution_results"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &alert.ActionExecutionResults); err != nil {
			return nil, fmt.Errorf("alert %s has malformed action results: %w", id, err)
		}
	}
	return alert, nil
}

// getString extracts a string value from a result row
func getString(row map[string]interface{}, key string) string {
	if val, ok := row[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
		if sp, ok := val.(*string); ok && sp != nil {
			return *sp
		}
	}
	return ""
}

// getInt64 extracts an integer value from a result row
func getInt64(row map[string]interface{}, key string) int64 {
	if val, ok := row[key]; ok && val != nil {
		switch v := val.(type) {
		case int64:
			return v
		case int32:
			return int64(v)
		case int:
			return int64(v)
		case uint64:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// getTime extracts a time value from a result row
func getTime(row map[string]interface{}, key string) time.Time {
	if t := getTimePtr(row, key); t != nil {
		return *t
	}
	return time.Time{}
}

// getTimePtr extracts a nullable time value from a result row
func getTimePtr(row map[string]interface{}, key string) *time.Time {
	val, ok := row[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return &v
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		return v
	case string:
		layouts := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04:05",
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	}
	return nil
}
