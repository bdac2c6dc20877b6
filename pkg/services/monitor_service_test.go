package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/timeplus"
)

func newTestMonitorService(t *testing.T, tpClient *mockTimeplusClient) (*MonitorService, *Scheduler) {
	t.Helper()
	runner := newTestRunner(&mockStore{}, tpClient, &mockPublisher{})
	scheduler := NewScheduler(runner)
	t.Cleanup(func() {
		scheduler.Stop()
		runner.Stop()
	})

	// Resume pass at construction time finds nothing.
	tpClient.On("ExecuteQuery", mock.Anything, mock.MatchedBy(func(q string) bool {
		return q == "SELECT * FROM table(`tp_monitors`)"
	})).Return([]map[string]interface{}{}, nil).Once()

	svc, err := NewMonitorService(tpClient, scheduler, runner)
	require.NoError(t, err)
	return svc, scheduler
}

func TestCreateMonitorPersistsAndSchedules(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	svc, scheduler := newTestMonitorService(t, tpClient)

	var columns []string
	var values []interface{}
	tpClient.On("InsertIntoStream", mock.Anything, timeplus.MonitorsStream, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			columns = args.Get(2).([]string)
			values = args.Get(3).([]interface{})
		}).
		Return(nil).Once()

	sched, err := models.NewIntervalSchedule(5, models.IntervalUnitMinutes)
	require.NoError(t, err)
	monitor := &models.Monitor{
		Name:     "disk watch",
		Enabled:  true,
		Schedule: sched,
		Triggers: []models.Trigger{{Name: "disk full", Severity: models.SeverityOne, Condition: "true"}},
	}

	created, err := svc.CreateMonitor(context.Background(), monitor)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Version)
	require.NotNil(t, created.EnabledTime)
	assert.NotEmpty(t, created.Triggers[0].ID)
	assert.True(t, scheduler.IsScheduled(created.ID))

	require.Equal(t, len(columns), len(values))
	byColumn := make(map[string]interface{})
	for i, col := range columns {
		byColumn[col] = values[i]
	}
	assert.Equal(t, created.ID, byColumn["id"])

	var storedSchedule models.ScheduleConfig
	require.NoError(t, json.Unmarshal([]byte(byColumn["schedule"].(string)), &storedSchedule))
	require.NotNil(t, storedSchedule.Period)
	assert.Equal(t, 5, storedSchedule.Period.Interval)
}

func TestCreateMonitorRejectsInvalid(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	svc, _ := newTestMonitorService(t, tpClient)

	sched, err := models.NewIntervalSchedule(5, models.IntervalUnitMinutes)
	require.NoError(t, err)
	monitor := &models.Monitor{
		Name:     "no condition",
		Enabled:  true,
		Schedule: sched,
		Triggers: []models.Trigger{{Name: "broken"}},
	}

	_, err = svc.CreateMonitor(context.Background(), monitor)
	assert.Error(t, err)
	tpClient.AssertNotCalled(t, "InsertIntoStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMapToMonitorRoundTrip(t *testing.T) {
	enabled := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	scheduleJSON, _ := json.Marshal(models.ScheduleConfig{
		Period: &models.PeriodConfig{Interval: 10, Unit: models.IntervalUnitMinutes},
	})
	triggersJSON, _ := json.Marshal([]models.Trigger{
		{ID: "t1", Name: "p99 high", Severity: models.SeverityTwo, Condition: "len(results) > 0"},
	})
	inputsJSON, _ := json.Marshal([]models.SearchInput{
		{Streams: []string{"metrics"}, Query: "SELECT 1"},
	})

	row := map[string]interface{}{
		"id":               "m1",
		"version":          int64(4),
		"name":             "latency watch",
		"enabled":          true,
		"enabled_time":     enabled,
		"schedule":         string(scheduleJSON),
		"inputs":           string(inputsJSON),
		"triggers":         string(triggersJSON),
		"user":             "ops",
		"last_update_time": enabled,
		"schema_version":   int32(1),
	}

	monitor, err := mapToMonitor(row)
	require.NoError(t, err)
	assert.Equal(t, "m1", monitor.ID)
	assert.Equal(t, int64(4), monitor.Version)
	assert.True(t, monitor.Enabled)
	require.NotNil(t, monitor.EnabledTime)
	require.Len(t, monitor.Triggers, 1)
	assert.Equal(t, "p99 high", monitor.Triggers[0].Name)
	require.NotNil(t, monitor.Schedule)

	next := monitor.Schedule.NextTimeToExecute(enabled)
	require.NotNil(t, next)
	assert.True(t, *next <= 10*time.Minute)
}

func TestMapToMonitorRejectsBadSchedule(t *testing.T) {
	row := map[string]interface{}{
		"id":       "m1",
		"schedule": "{not json",
	}
	_, err := mapToMonitor(row)
	assert.Error(t, err)
}

func TestDeleteMonitorUnschedulesAndMovesAlerts(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	runnerStore := &mockStore{}
	runner := newTestRunner(runnerStore, tpClient, &mockPublisher{})
	scheduler := NewScheduler(runner)
	defer func() {
		scheduler.Stop()
		runner.Stop()
	}()

	tpClient.On("ExecuteQuery", mock.Anything, mock.MatchedBy(func(q string) bool {
		return q == "SELECT * FROM table(`tp_monitors`)"
	})).Return([]map[string]interface{}{}, nil).Once()
	svc, err := NewMonitorService(tpClient, scheduler, runner)
	require.NoError(t, err)

	scheduleJSON, _ := json.Marshal(models.ScheduleConfig{
		Period: &models.PeriodConfig{Interval: 10, Unit: models.IntervalUnitMinutes},
	})
	monitorRow := map[string]interface{}{
		"id":       "m1",
		"name":     "latency watch",
		"schedule": string(scheduleJSON),
	}
	tpClient.On("ExecuteQuery", mock.Anything, mock.MatchedBy(func(q string) bool {
		return q == "SELECT * FROM table(`tp_monitors`) WHERE id = 'm1' LIMIT 1"
	})).Return([]map[string]interface{}{monitorRow}, nil).Once()

	runnerStore.On("SearchAlerts", mock.Anything, "m1", mock.Anything).
		Return([]*models.Alert{}, nil).Once()
	tpClient.On("ExecuteDDL", mock.Anything, "DELETE FROM `tp_monitors` WHERE id = 'm1'").
		Return(nil).Once()

	require.NoError(t, svc.DeleteMonitor(context.Background(), "m1"))
	tpClient.AssertExpectations(t)
	runnerStore.AssertExpectations(t)
}
