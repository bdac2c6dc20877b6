package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/timeplus-io/tp-monitor-engine/pkg/alerts"
	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/timeplus"
)

// mockStore is a mock implementation of alerts.Store
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SearchAlerts(ctx context.Context, monitorID string, size int) ([]*models.Alert, error) {
	args := m.Called(ctx, monitorID, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Alert), args.Error(1)
}

func (m *mockStore) BulkWrite(ctx context.Context, items []alerts.WriteItem) []alerts.ItemResult {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return make([]alerts.ItemResult, len(items))
	}
	return args.Get(0).([]alerts.ItemResult)
}

func (m *mockStore) HistoryEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}

// mockTimeplusClient is a mock implementation of timeplus.TimeplusClient
type mockTimeplusClient struct {
	mock.Mock
}

func (m *mockTimeplusClient) StreamExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockTimeplusClient) CreateStream(ctx context.Context, name string, schema []timeplus.Column) error {
	args := m.Called(ctx, name, schema)
	return args.Error(0)
}

func (m *mockTimeplusClient) EnsureMutableStream(ctx context.Context, name string, schema []timeplus.Column, primaryKeys []string) error {
	args := m.Called(ctx, name, schema, primaryKeys)
	return args.Error(0)
}

func (m *mockTimeplusClient) DeleteStream(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockTimeplusClient) ExecuteQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *mockTimeplusClient) ExecuteDDL(ctx context.Context, query string) error {
	args := m.Called(ctx, query)
	return args.Error(0)
}

func (m *mockTimeplusClient) InsertIntoStream(ctx context.Context, streamName string, columns []string, values []interface{}) error {
	args := m.Called(ctx, streamName, columns, values)
	return args.Error(0)
}

func (m *mockTimeplusClient) BulkWrite(ctx context.Context, requests []timeplus.WriteRequest) []timeplus.WriteResult {
	args := m.Called(ctx, requests)
	if args.Get(0) == nil {
		return make([]timeplus.WriteResult, len(requests))
	}
	return args.Get(0).([]timeplus.WriteResult)
}

func (m *mockTimeplusClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// mockPublisher is a mock implementation of notification.Publisher
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, dest *models.Destination, subject, message string) (string, error) {
	args := m.Called(ctx, dest, subject, message)
	return args.String(0), args.Error(1)
}
