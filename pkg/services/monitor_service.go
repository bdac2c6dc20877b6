package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/timeplus"
)

// MonitorService manages monitor definitions and keeps the scheduler in
// sync with them.
type MonitorService struct {
	tpClient  timeplus.TimeplusClient
	scheduler *Scheduler
	runner    *MonitorRunner
}

// NewMonitorService creates the service and resumes the schedule loops of
// every enabled monitor found in the store.
func NewMonitorService(tpClient timeplus.TimeplusClient, scheduler *Scheduler, runner *MonitorRunner) (*MonitorService, error) {
	service := &MonitorService{
		tpClient:  tpClient,
		scheduler: scheduler,
		runner:    runner,
	}
	if err := service.resumeEnabledMonitors(context.Background()); err != nil {
		logrus.Warnf("Error resuming enabled monitors: %v", err)
	}
	return service, nil
}

func (s *MonitorService) resumeEnabledMonitors(ctx context.Context) error {
	monitors, err := s.GetMonitors(ctx)
	if err != nil {
		return err
	}
	for _, monitor := range monitors {
		if monitor.Enabled {
			logrus.Infof("Resuming monitor: %s", monitor.Name)
			s.scheduler.Schedule(monitor)
		}
	}
	return nil
}

// GetMonitors returns all monitors.
func (s *MonitorService) GetMonitors(ctx context.Context) ([]*models.Monitor, error) {
	query := fmt.Sprintf("SELECT * FROM table(`%s`)", timeplus.MonitorsStream)
	rows, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitors: %w", err)
	}

	monitors := make([]*models.Monitor, 0, len(rows))
	for _, row := range rows {
		monitor, err := mapToMonitor(row)
		if err != nil {
			logrus.Warnf("Skipping malformed monitor row: %v", err)
			continue
		}
		monitors = append(monitors, monitor)
	}
	return monitors, nil
}

// GetMonitor returns a monitor by ID.
func (s *MonitorService) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	query := fmt.Sprintf("SELECT * FROM table(`%s`) WHERE id = %s LIMIT 1",
		timeplus.MonitorsStream, timeplus.FormatValue(id))
	rows, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitor: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("monitor with ID %s not found", id)
	}
	return mapToMonitor(rows[0])
}

// CreateMonitor validates, persists and schedules a new monitor.
func (s *MonitorService) CreateMonitor(ctx context.Context, monitor *models.Monitor) (*models.Monitor, error) {
	now := time.Now().UTC()
	monitor.ID = uuid.New().String()
	monitor.Version = 1
	monitor.LastUpdateTime = now
	if monitor.Enabled && monitor.EnabledTime == nil {
		monitor.EnabledTime = &now
	}
	assignTriggerIDs(monitor)

	if err := monitor.Validate(); err != nil {
		return nil, err
	}
	if err := s.persistMonitor(ctx, monitor); err != nil {
		return nil, fmt.Errorf("failed to persist monitor: %w", err)
	}
	s.scheduler.Schedule(monitor)
	return monitor, nil
}

// UpdateMonitor replaces a monitor definition, reconciles its alerts and
// reschedules it.
func (s *MonitorService) UpdateMonitor(ctx context.Context, id string, updated *models.Monitor) (*models.Monitor, error) {
	existing, err := s.GetMonitor(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated.ID = existing.ID
	updated.Version = existing.Version + 1
	updated.LastUpdateTime = now
	if updated.Enabled {
		if existing.Enabled {
			updated.EnabledTime = existing.EnabledTime
		} else {
			updated.EnabledTime = &now
		}
	} else {
		updated.EnabledTime = nil
	}
	assignTriggerIDs(updated)

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.persistMonitor(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to persist updated monitor: %w", err)
	}

	s.runner.MonitorUpdated(ctx, updated)
	s.scheduler.Schedule(updated)
	return updated, nil
}

// DeleteMonitor unschedules the monitor, moves its live alerts to history
// and removes the definition.
func (s *MonitorService) DeleteMonitor(ctx context.Context, id string) error {
	if _, err := s.GetMonitor(ctx, id); err != nil {
		return err
	}
	s.scheduler.Unschedule(id)
	s.runner.MonitorDeleted(ctx, id)

	query := fmt.Sprintf("DELETE FROM `%s` WHERE id = %s",
		timeplus.MonitorsStream, timeplus.FormatValue(id))
	if err := s.tpClient.ExecuteDDL(ctx, query); err != nil {
		return fmt.Errorf("failed to delete monitor %s: %w", id, err)
	}
	logrus.Infof("Deleted monitor %s", id)
	return nil
}

// ExecuteMonitor runs a monitor immediately over the period ending now.
// Dryrun evaluates everything but writes no alerts and sends no messages.
func (s *MonitorService) ExecuteMonitor(ctx context.Context, monitor *models.Monitor, dryrun bool) *models.MonitorRunResult {
	now := time.Now()
	periodStart, periodEnd := monitor.Schedule.PeriodEndingAt(&now)
	return s.runner.RunMonitor(ctx, monitor, periodStart, periodEnd, dryrun)
}

// assignTriggerIDs fills in missing trigger and action IDs.
func assignTriggerIDs(monitor *models.Monitor) {
	for i := range monitor.Triggers {
		if monitor.Triggers[i].ID == "" {
			monitor.Triggers[i].ID = uuid.New().String()
		}
		for j := range monitor.Triggers[i].Actions {
			if monitor.Triggers[i].Actions[j].ID == "" {
				monitor.Triggers[i].Actions[j].ID = uuid.New().String()
			}
		}
	}
}

// persistMonitor upserts the monitor row. Schedule, inputs and triggers
// are stored as JSON strings.
func (s *MonitorService) persistMonitor(ctx context.Context, monitor *models.Monitor) error {
	scheduleConfig, err := models.ConfigOf(monitor.Schedule)
	if err != nil {
		return err
	}
	scheduleJSON, err := json.Marshal(scheduleConfig)
	if err != nil {
		return err
	}
	inputsJSON, err := json.Marshal(monitor.Inputs)
	if err != nil {
		return err
	}
	triggersJSON, err := json.Marshal(monitor.Triggers)
	if err != nil {
		return err
	}

	columns := []string{
		"id", "version", "name", "enabled", "enabled_time",
		"schedule", "inputs", "triggers", "user", "last_update_time", "schema_version",
	}
	values := []interface{}{
		monitor.ID, monitor.Version, monitor.Name, monitor.Enabled, monitor.EnabledTime,
		string(scheduleJSON), string(inputsJSON), string(triggersJSON),
		monitor.User, monitor.LastUpdateTime, int32(monitor.SchemaVersion),
	}
	return s.tpClient.InsertIntoStream(ctx, timeplus.MonitorsStream, columns, values)
}

// mapToMonitor rebuilds a monitor from a query result row.
func mapToMonitor(row map[string]interface{}) (*models.Monitor, error) {
	id := getString(row, "id")
	if id == "" {
		return nil, fmt.Errorf("monitor row missing id")
	}

	monitor := &models.Monitor{
		ID:             id,
		Version:        getInt64(row, "version"),
		Name:           getString(row, "name"),
		Enabled:        getBool(row, "enabled"),
		EnabledTime:    getTimePtr(row, "enabled_time"),
		User:           getString(row, "user"),
		LastUpdateTime: getTime(row, "last_update_time"),
		SchemaVersion:  int(getInt64(row, "schema_version")),
	}

	scheduleConfig, err := models.ParseScheduleConfig(getString(row, "schedule"))
	if err != nil {
		return nil, fmt.Errorf("monitor %s: %w", id, err)
	}
	monitor.Schedule, err = scheduleConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("monitor %s: %w", id, err)
	}

	if raw := getString(row, "inputs"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &monitor.Inputs); err != nil {
			return nil, fmt.Errorf("monitor %s has malformed inputs: %w", id, err)
		}
	}
	if raw := getString(row, "triggers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &monitor.Triggers); err != nil {
			return nil, fmt.Errorf("monitor %s has malformed triggers: %w", id, err)
		}
	}
	return monitor, nil
}
