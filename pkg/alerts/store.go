// Package alerts persists alerts in Timeplus: a mutable stream keyed by
// alert ID for live alerts and an append stream for history.
package alerts

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/timeplus"
)

// Op is a store-level alert write operation.
type Op string

const (
	// OpUpsert writes the alert into the live stream, replacing any row
	// with the same ID.
	OpUpsert Op = "upsert"
	// OpDelete removes the alert from the live stream.
	OpDelete Op = "delete"
	// OpHistory appends the alert to the history stream.
	OpHistory Op = "history"
)

// WriteItem is one alert write in a bulk request.
type WriteItem struct {
	Op    Op
	Alert *models.Alert
}

// ItemResult reports the outcome of one WriteItem. Retryable marks the
// overload failure class; callers retry only that subset.
type ItemResult struct {
	Err       error
	Retryable bool
}

// Store is the alert persistence boundary.
type Store interface {
	// SearchAlerts returns the live alerts for a monitor, up to size rows.
	SearchAlerts(ctx context.Context, monitorID string, size int) ([]*models.Alert, error)
	// BulkWrite applies each item independently and reports per-item results.
	BulkWrite(ctx context.Context, items []WriteItem) []ItemResult
	// HistoryEnabled reports whether completed alerts are archived.
	HistoryEnabled() bool
}

// TimeplusStore is the Timeplus-backed Store.
type TimeplusStore struct {
	client         timeplus.TimeplusClient
	historyEnabled bool
}

// NewTimeplusStore creates a store over the given client.
func NewTimeplusStore(client timeplus.TimeplusClient, historyEnabled bool) *TimeplusStore {
	return &TimeplusStore{client: client, historyEnabled: historyEnabled}
}

// HistoryEnabled reports whether completed alerts are archived.
func (s *TimeplusStore) HistoryEnabled() bool {
	return s.historyEnabled
}

// SearchAlerts returns the live alerts for a monitor, or every live alert
// when monitorID is empty.
func (s *TimeplusStore) SearchAlerts(ctx context.Context, monitorID string, size int) ([]*models.Alert, error) {
	filter := ""
	if monitorID != "" {
		filter = fmt.Sprintf(" WHERE monitor_id = %s", timeplus.FormatValue(monitorID))
	}
	query := fmt.Sprintf("SELECT * FROM table(`%s`)%s LIMIT %d",
		timeplus.AlertsStream, filter, size)
	rows, err := s.client.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search alerts for monitor %s: %w", monitorID, err)
	}

	result := make([]*models.Alert, 0, len(rows))
	for _, row := range rows {
		alert, err := rowToAlert(row)
		if err != nil {
			logrus.Warnf("Skipping malformed alert row: %v", err)
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

// BulkWrite applies each item independently and reports per-item results.
func (s *TimeplusStore) BulkWrite(ctx context.Context, items []WriteItem) []ItemResult {
	requests := make([]timeplus.WriteRequest, len(items))
	for i, item := range items {
		switch item.Op {
		case OpDelete:
			requests[i] = timeplus.WriteRequest{
				Op:     timeplus.WriteOpDelete,
				Stream: timeplus.AlertsStream,
				ID:     item.Alert.ID,
			}
		case OpHistory:
			columns, values := alertToRow(item.Alert)
			requests[i] = timeplus.WriteRequest{
				Op:      timeplus.WriteOpInsert,
				Stream:  timeplus.AlertHistoryStream,
				Columns: columns,
				Values:  values,
			}
		default:
			columns, values := alertToRow(item.Alert)
			requests[i] = timeplus.WriteRequest{
				Op:      timeplus.WriteOpInsert,
				Stream:  timeplus.AlertsStream,
				Columns: columns,
				Values:  values,
			}
		}
	}

	writeResults := s.client.BulkWrite(ctx, requests)
	results := make([]ItemResult, len(items))
	for i, wr := range writeResults {
		results[i] = ItemResult{Err: wr.Err, Retryable: wr.Retryable}
	}
	return results
}
