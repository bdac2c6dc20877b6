package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/timeplus-io/tp-monitor-engine/pkg/alerts"
	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/notification"
	"github.com/timeplus-io/tp-monitor-engine/pkg/retry"
	"github.com/timeplus-io/tp-monitor-engine/pkg/services"
	"github.com/timeplus-io/tp-monitor-engine/pkg/timeplus"
)

// mockTimeplusClient is a mock implementation of timeplus.TimeplusClient
type mockTimeplusClient struct {
	mock.Mock
}

func (m *mockTimeplusClient) StreamExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockTimeplusClient) CreateStream(ctx context.Context, name string, schema []timeplus.Column) error {
	return m.Called(ctx, name, schema).Error(0)
}

func (m *mockTimeplusClient) EnsureMutableStream(ctx context.Context, name string, schema []timeplus.Column, primaryKeys []string) error {
	return m.Called(ctx, name, schema, primaryKeys).Error(0)
}

func (m *mockTimeplusClient) DeleteStream(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockTimeplusClient) ExecuteQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *mockTimeplusClient) ExecuteDDL(ctx context.Context, query string) error {
	return m.Called(ctx, query).Error(0)
}

func (m *mockTimeplusClient) InsertIntoStream(ctx context.Context, streamName string, columns []string, values []interface{}) error {
	return m.Called(ctx, streamName, columns, values).Error(0)
}

func (m *mockTimeplusClient) BulkWrite(ctx context.Context, requests []timeplus.WriteRequest) []timeplus.WriteResult {
	args := m.Called(ctx, requests)
	if args.Get(0) == nil {
		return make([]timeplus.WriteResult, len(requests))
	}
	return args.Get(0).([]timeplus.WriteResult)
}

func (m *mockTimeplusClient) Close() error {
	return m.Called().Error(0)
}

func setupTestRouter(t *testing.T, tpClient *mockTimeplusClient) *mux.Router {
	t.Helper()

	store := alerts.NewTimeplusStore(tpClient, true)
	alertService := services.NewAlertService(store,
		retry.ConstantBackoff(time.Millisecond, 1),
		retry.ExponentialBackoff(time.Millisecond, 1))
	runner := services.NewMonitorRunner(
		alertService,
		services.NewInputService(tpClient),
		services.NewTriggerService(services.NewExprEvaluator()),
		services.NewActionService(
			notification.NewHTTPPublisher(time.Second, notification.Restrictions{}),
			services.NewStaticDestinations(nil)),
	)
	scheduler := services.NewScheduler(runner)
	t.Cleanup(func() {
		scheduler.Stop()
		runner.Stop()
	})

	// Resume pass at construction time finds no monitors.
	tpClient.On("ExecuteQuery", mock.Anything, "SELECT * FROM table(`tp_monitors`)").
		Return([]map[string]interface{}{}, nil).Once()
	monitorService, err := services.NewMonitorService(tpClient, scheduler, runner)
	require.NoError(t, err)

	router := mux.NewRouter()
	NewAPIHandler(monitorService, alertService).RegisterRoutes(router)
	return router
}

func TestGetMonitorsEmpty(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	router := setupTestRouter(t, tpClient)

	tpClient.On("ExecuteQuery", mock.Anything, "SELECT * FROM table(`tp_monitors`)").
		Return([]map[string]interface{}{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/monitors", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGetMonitorNotFound(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	router := setupTestRouter(t, tpClient)

	tpClient.On("ExecuteQuery", mock.Anything,
		"SELECT * FROM table(`tp_monitors`) WHERE id = 'missing' LIMIT 1").
		Return([]map[string]interface{}{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/monitors/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestCreateMonitor(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	router := setupTestRouter(t, tpClient)

	tpClient.On("InsertIntoStream", mock.Anything, timeplus.MonitorsStream, mock.Anything, mock.Anything).
		Return(nil).Once()

	body := `{
		"name": "latency watch",
		"enabled": true,
		"schedule": {"period": {"interval": 5, "unit": "MINUTES"}},
		"triggers": [{"name": "p99 high", "severity": "2", "condition": "len(results) > 0"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/monitors", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"latency watch"`)
	// The schedule round-trips in its request form, so the response body can
	// be sent back as an update.
	assert.Contains(t, rec.Body.String(), `"schedule":{"period":{"interval":5,"unit":"MINUTES"}}`)
	tpClient.AssertExpectations(t)
}

func TestExecuteMonitorReportsInputFailure(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	router := setupTestRouter(t, tpClient)

	scheduleJSON, _ := json.Marshal(models.ScheduleConfig{
		Period: &models.PeriodConfig{Interval: 10, Unit: models.IntervalUnitMinutes},
	})
	inputsJSON, _ := json.Marshal([]models.SearchInput{
		{Streams: []string{"metrics"}, Query: "SELECT count() AS cnt FROM table(metrics)"},
	})
	triggersJSON, _ := json.Marshal([]models.Trigger{
		{ID: "t1", Name: "p99 high", Severity: models.SeverityTwo, Condition: "len(results) > 0"},
	})
	monitorRow := map[string]interface{}{
		"id":       "m1",
		"name":     "latency watch",
		"schedule": string(scheduleJSON),
		"inputs":   string(inputsJSON),
		"triggers": string(triggersJSON),
	}

	tpClient.On("ExecuteQuery", mock.Anything,
		"SELECT * FROM table(`tp_monitors`) WHERE id = 'm1' LIMIT 1").
		Return([]map[string]interface{}{monitorRow}, nil).Once()
	tpClient.On("ExecuteQuery", mock.Anything,
		"SELECT * FROM table(`tp_alerts`) WHERE monitor_id = 'm1' LIMIT 500").
		Return([]map[string]interface{}{}, nil).Once()
	tpClient.On("ExecuteQuery", mock.Anything, "SELECT count() AS cnt FROM table(metrics)").
		Return(nil, errors.New("query timeout")).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/monitors/m1/execute?dryrun=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The run failed to collect inputs; the result must say so.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"input 0 of monitor`)
	assert.Contains(t, rec.Body.String(), "query timeout")
	tpClient.AssertExpectations(t)
}

func TestCreateMonitorBadSchedule(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	router := setupTestRouter(t, tpClient)

	body := `{"name": "broken", "schedule": {}}`
	req := httptest.NewRequest(http.MethodPost, "/api/monitors", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "schedule is missing")
}

func TestGetAlerts(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	router := setupTestRouter(t, tpClient)

	tpClient.On("ExecuteQuery", mock.Anything,
		"SELECT * FROM table(`tp_alerts`) WHERE monitor_id = 'm1' LIMIT 500").
		Return([]map[string]interface{}{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/monitors/m1/alerts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	tpClient := &mockTimeplusClient{}
	router := setupTestRouter(t, tpClient)

	tpClient.On("ExecuteQuery", mock.Anything,
		"SELECT * FROM table(`tp_alerts`) WHERE monitor_id = 'm1' LIMIT 500").
		Return([]map[string]interface{}{}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/monitors/m1/alerts/a1/acknowledge", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to acknowledge alert")
}
