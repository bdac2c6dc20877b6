package timeplus

// Stream names
const (
	// MonitorsStream is the mutable stream that stores monitor definitions
	MonitorsStream = "tp_monitors"

	// AlertsStream is the mutable stream that stores live alerts
	AlertsStream = "tp_alerts"

	// AlertHistoryStream is the append stream that archives completed and
	// deleted alerts
	AlertHistoryStream = "tp_alert_history"
)

// GetMonitorsSchema returns the schema for the monitors stream. Schedule,
// inputs and triggers are stored as JSON strings.
func GetMonitorsSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "version", Type: "int64"},
		{Name: "name", Type: "string"},
		{Name: "enabled", Type: "bool"},
		{Name: "enabled_time", Type: "datetime64", Nullable: true},
		{Name: "schedule", Type: "string"},
		{Name: "inputs", Type: "string"},
		{Name: "triggers", Type: "string"},
		{Name: "user", Type: "string"},
		{Name: "last_update_time", Type: "datetime64"},
		{Name: "schema_version", Type: "int32"},
	}
}

// MonitorsPrimaryKeys returns the primary key columns of the monitors stream.
func MonitorsPrimaryKeys() []string {
	return []string{"id"}
}

// GetAlertsSchema returns the schema for the live alerts stream. Error
// history and action execution results are stored as JSON strings.
func GetAlertsSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "version", Type: "int64"},
		{Name: "schema_version", Type: "int32"},
		{Name: "monitor_id", Type: "string"},
		{Name: "monitor_name", Type: "string"},
		{Name: "monitor_version", Type: "int64"},
		{Name: "trigger_id", Type: "string"},
		{Name: "trigger_name", Type: "string"},
		{Name: "state", Type: "string"},
		{Name: "severity", Type: "string"},
		{Name: "start_time", Type: "datetime64"},
		{Name: "end_time", Type: "datetime64", Nullable: true},
		{Name: "last_notification_time", Type: "datetime64", Nullable: true},
		{Name: "acknowledged_time", Type: "datetime64", Nullable: true},
		{Name: "error_message", Type: "string"},
		{Name: "error_history", Type: "string"},
		{Name: "action_execution_results", Type: "string"},
	}
}

// AlertsPrimaryKeys returns the primary key columns of the alerts stream.
func AlertsPrimaryKeys() []string {
	return []string{"id"}
}

// GetAlertHistorySchema returns the schema for the alert history stream.
// It mirrors the alerts schema; archived rows are append-only.
func GetAlertHistorySchema() []Column {
	return GetAlertsSchema()
}
