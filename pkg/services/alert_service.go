package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/tp-monitor-engine/pkg/alerts"
	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/retry"
)

// maxAlertsPerMonitor bounds how many live alerts one monitor load fetches.
const maxAlertsPerMonitor = 500

// AlertService owns the alert lifecycle: loading current alerts, composing
// the next state after a run, and persisting transitions.
type AlertService struct {
	store      alerts.Store
	savePolicy retry.BackoffPolicy
	movePolicy retry.BackoffPolicy
	now        func() time.Time
}

// NewAlertService creates an alert service. savePolicy drives run
// persistence; movePolicy drives moving alerts on monitor delete/update.
func NewAlertService(store alerts.Store, savePolicy, movePolicy retry.BackoffPolicy) *AlertService {
	return &AlertService{
		store:      store,
		savePolicy: savePolicy,
		movePolicy: movePolicy,
		now:        time.Now,
	}
}

// LoadCurrentAlerts returns the current non-terminal alert per trigger.
// Loading must succeed before a run may proceed: running without the
// current state would duplicate alerts and notifications.
func (s *AlertService) LoadCurrentAlerts(ctx context.Context, monitor *models.Monitor) (map[string]*models.Alert, error) {
	if monitor.ID == models.NoID {
		// Ad-hoc monitors were never persisted and own no alerts.
		return map[string]*models.Alert{}, nil
	}
	found, err := s.store.SearchAlerts(ctx, monitor.ID, maxAlertsPerMonitor)
	if err != nil {
		return nil, fmt.Errorf("failed to load current alerts for monitor %s: %w", monitor.ID, err)
	}

	current := make(map[string]*models.Alert)
	for _, alert := range found {
		if existing, ok := current[alert.TriggerID]; ok {
			logrus.Warnf("Monitor %s has multiple live alerts for trigger %s; keeping the most recent",
				monitor.ID, alert.TriggerID)
			if alert.StartTime.After(existing.StartTime) {
				current[alert.TriggerID] = alert
			}
			continue
		}
		current[alert.TriggerID] = alert
	}
	return current, nil
}

// ComposeAlert computes the next alert state for one trigger after a run.
// It is a pure function of the execution context, the trigger result and
// the run-level error; returning nil means nothing to persist.
func (s *AlertService) ComposeAlert(ctx *TriggerExecutionContext,
	result *models.TriggerRunResult, alertError *models.AlertError) *models.Alert {

	now := s.now()
	current := ctx.Alert
	mergedActionResults := mergeActionResults(current, result)

	// Healthy and not triggered: complete the current alert, if any.
	if alertError == nil && !result.Triggered {
		if current == nil {
			return nil
		}
		completed := current.Copy()
		completed.State = models.AlertStateCompleted
		completed.EndTime = &now
		completed.ErrorMessage = ""
		completed.ActionExecutionResults = mergedActionResults
		return completed
	}

	// Still firing but acknowledged and healthy: leave the alert untouched.
	if alertError == nil && current != nil && current.IsAcknowledged() {
		return nil
	}

	state := models.AlertStateActive
	errorMessage := ""
	if alertError != nil {
		state = models.AlertStateError
		errorMessage = alertError.Message
	}

	if current != nil {
		updated := current.Copy()
		updated.State = state
		updated.LastNotificationTime = &now
		updated.ErrorMessage = errorMessage
		updated.ErrorHistory = models.UpdateErrorHistory(current.ErrorHistory, alertError)
		updated.ActionExecutionResults = mergedActionResults
		return updated
	}

	fresh := models.NewAlert(ctx.Monitor, ctx.Trigger, now, state)
	fresh.ErrorMessage = errorMessage
	fresh.ErrorHistory = models.UpdateErrorHistory(nil, alertError)
	fresh.ActionExecutionResults = mergedActionResults
	return fresh
}

// mergeActionResults folds this run's action outcomes into the alert's
// per-action execution records. Throttled runs bump the throttle counter;
// executed runs refresh the last execution time; unknown actions get a new
// record.
func mergeActionResults(current *models.Alert, result *models.TriggerRunResult) []models.ActionExecutionResult {
	var existing []models.ActionExecutionResult
	if current != nil {
		existing = current.ActionExecutionResults
	}

	merged := make([]models.ActionExecutionResult, len(existing))
	copy(merged, existing)

	for actionID, runResult := range result.ActionResults {
		found := false
		for i := range merged {
			if merged[i].ActionID != actionID {
				continue
			}
			found = true
			if runResult.Throttled {
				merged[i].ThrottledCount++
			} else {
				merged[i].LastExecutionTime = runResult.ExecutionTime
			}
			break
		}
		if !found {
			record := models.ActionExecutionResult{ActionID: actionID}
			if runResult.Throttled {
				record.ThrottledCount = 1
			} else {
				record.LastExecutionTime = runResult.ExecutionTime
			}
			merged = append(merged, record)
		}
	}
	return merged
}

// SaveAlerts persists composed alerts. ACTIVE and ERROR alerts are upserted
// as-is: the engine is the only writer of these states so the last run
// always wins. COMPLETED alerts leave the live stream, archived first when
// history is enabled. ACKNOWLEDGED and DELETED must never reach this path.
// Alerts that could not be written are reported back to the caller.
func (s *AlertService) SaveAlerts(ctx context.Context, composed []*models.Alert) error {
	items := make([]alerts.WriteItem, 0, len(composed))
	for _, alert := range composed {
		switch alert.State {
		case models.AlertStateActive, models.AlertStateError:
			if alert.ID == models.NoID {
				alert = alert.Copy()
				alert.ID = uuid.New().String()
			}
			items = append(items, alerts.WriteItem{Op: alerts.OpUpsert, Alert: alert})
		case models.AlertStateCompleted:
			if alert.ID == models.NoID {
				// Never persisted, nothing to complete.
				continue
			}
			if s.store.HistoryEnabled() {
				items = append(items, alerts.WriteItem{Op: alerts.OpHistory, Alert: alert})
			}
			items = append(items, alerts.WriteItem{Op: alerts.OpDelete, Alert: alert})
		default:
			// The composer never produces these states; reaching here is a
			// programming error, not a runtime condition.
			panic(fmt.Sprintf("unexpected alert state %s in saveAlerts", alert.State))
		}
	}
	return s.writeWithRetry(ctx, items, s.savePolicy)
}

// writeWithRetry bulk-writes items, retrying only the subset that failed
// with a retryable (overload) classification. Non-retryable failures abort
// retrying their item immediately; the first failure of either kind is
// returned so callers surface lost writes instead of reporting success.
func (s *AlertService) writeWithRetry(ctx context.Context, items []alerts.WriteItem, policy retry.BackoffPolicy) error {
	pending := items
	delays := policy.Delays()
	var failed error

	for attempt := 0; len(pending) > 0; attempt++ {
		results := s.store.BulkWrite(ctx, pending)

		var retryable []alerts.WriteItem
		var retryErr error
		for i, res := range results {
			if res.Err == nil {
				continue
			}
			if res.Retryable {
				retryable = append(retryable, pending[i])
				retryErr = res.Err
			} else {
				logrus.Errorf("Failed to write alert %s: %v", pending[i].Alert.ID, res.Err)
				if failed == nil {
					failed = fmt.Errorf("failed to write alert %s: %w", pending[i].Alert.ID, res.Err)
				}
			}
		}
		if len(retryable) == 0 {
			return failed
		}
		if attempt >= len(delays) {
			for _, item := range retryable {
				logrus.Errorf("Giving up writing alert %s after %d attempts", item.Alert.ID, attempt+1)
			}
			if failed == nil {
				failed = fmt.Errorf("failed to write %d alerts after %d attempts: %w",
					len(retryable), attempt+1, retryErr)
			}
			return failed
		}
		logrus.Warnf("Retrying %d alert writes in %v", len(retryable), delays[attempt])
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[attempt]):
		}
		pending = retryable
	}
	return failed
}

// ListAlerts returns the live alerts for a monitor, or every live alert
// when monitorID is empty.
func (s *AlertService) ListAlerts(ctx context.Context, monitorID string) ([]*models.Alert, error) {
	return s.store.SearchAlerts(ctx, monitorID, maxAlertsPerMonitor)
}

// AcknowledgeAlert transitions an ACTIVE alert to ACKNOWLEDGED. Only active
// alerts can be acknowledged; the engine owns every other transition.
func (s *AlertService) AcknowledgeAlert(ctx context.Context, monitorID, alertID string) (*models.Alert, error) {
	found, err := s.store.SearchAlerts(ctx, monitorID, maxAlertsPerMonitor)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts for monitor %s: %w", monitorID, err)
	}
	for _, alert := range found {
		if alert.ID != alertID {
			continue
		}
		if alert.State != models.AlertStateActive {
			return nil, fmt.Errorf("alert %s is %s, only active alerts can be acknowledged", alertID, alert.State)
		}
		now := s.now()
		acked := alert.Copy()
		acked.State = models.AlertStateAcknowledged
		acked.AcknowledgedTime = &now
		results := s.store.BulkWrite(ctx, []alerts.WriteItem{{Op: alerts.OpUpsert, Alert: acked}})
		if results[0].Err != nil {
			return nil, fmt.Errorf("failed to acknowledge alert %s: %w", alertID, results[0].Err)
		}
		return acked, nil
	}
	return nil, fmt.Errorf("alert %s not found for monitor %s", alertID, monitorID)
}

// MoveAlerts clears live alerts that no longer have an owner: all of them
// when the monitor was deleted (monitor == nil), or those whose trigger was
// removed when it was updated. Moved alerts are archived with DELETED state
// when history is enabled.
func (s *AlertService) MoveAlerts(ctx context.Context, monitorID string, monitor *models.Monitor) error {
	found, err := s.store.SearchAlerts(ctx, monitorID, maxAlertsPerMonitor)
	if err != nil {
		return fmt.Errorf("failed to load alerts to move for monitor %s: %w", monitorID, err)
	}

	remaining := make(map[string]bool)
	if monitor != nil {
		for _, trigger := range monitor.Triggers {
			remaining[trigger.ID] = true
		}
	}

	now := s.now()
	items := make([]alerts.WriteItem, 0)
	for _, alert := range found {
		if remaining[alert.TriggerID] {
			continue
		}
		moved := alert.Copy()
		moved.State = models.AlertStateDeleted
		moved.EndTime = &now
		if s.store.HistoryEnabled() {
			items = append(items, alerts.WriteItem{Op: alerts.OpHistory, Alert: moved})
		}
		items = append(items, alerts.WriteItem{Op: alerts.OpDelete, Alert: moved})
	}
	if len(items) == 0 {
		return nil
	}

	logrus.Infof("Moving %d alerts for monitor %s", len(items), monitorID)
	return s.writeWithRetry(ctx, items, s.movePolicy)
}
