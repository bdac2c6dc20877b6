package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

// MonitorRunner orchestrates one monitor execution: load current alerts,
// collect inputs, evaluate every trigger, run actionable actions and
// persist the resulting alert transitions. All collaborators are explicit
// constructor dependencies.
type MonitorRunner struct {
	alertService   *AlertService
	inputService   *InputService
	triggerService *TriggerService
	actionService  *ActionService

	// Supervising context: cancelling it stops all in-flight runs.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Composite-aggregation cursors carried between runs, per monitor.
	afterKeysMutex sync.Mutex
	afterKeys      map[string]map[string]string
}

// NewMonitorRunner creates a runner. Stop must be called to wait for
// in-flight runs during shutdown.
func NewMonitorRunner(alertService *AlertService, inputService *InputService,
	triggerService *TriggerService, actionService *ActionService) *MonitorRunner {

	ctx, cancel := context.WithCancel(context.Background())
	return &MonitorRunner{
		alertService:   alertService,
		inputService:   inputService,
		triggerService: triggerService,
		actionService:  actionService,
		ctx:            ctx,
		cancel:         cancel,
		afterKeys:      make(map[string]map[string]string),
	}
}

// Stop cancels all in-flight runs and waits for them to finish.
func (r *MonitorRunner) Stop() {
	r.cancel()
	r.wg.Wait()
}

// RunJob launches a scheduled run in the background. The period ends at the
// scheduled fire time.
func (r *MonitorRunner) RunJob(monitor *models.Monitor, fireTime time.Time) {
	periodStart, periodEnd := monitor.Schedule.PeriodEndingAt(&fireTime)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.RunMonitor(r.ctx, monitor, periodStart, periodEnd, false)
	}()
}

// RunMonitor executes one monitor over one period window. Failing to load
// the current alert state aborts the run: composing against unknown state
// would duplicate alerts and notifications. Input and trigger failures are
// folded into the result and surface as ERROR alerts instead.
func (r *MonitorRunner) RunMonitor(ctx context.Context, monitor *models.Monitor,
	periodStart, periodEnd time.Time, dryrun bool) *models.MonitorRunResult {

	logrus.Debugf("Running monitor %q over [%s, %s]", monitor.Name, periodStart, periodEnd)
	result := &models.MonitorRunResult{
		MonitorName:    monitor.Name,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TriggerResults: make(map[string]*models.TriggerRunResult),
	}

	currentAlerts, err := r.alertService.LoadCurrentAlerts(ctx, monitor)
	if err != nil {
		result.Error = err
		logrus.Errorf("Aborting run of monitor %q: %v", monitor.Name, err)
		return result
	}

	result.InputResults = r.inputService.CollectInputs(ctx, monitor, periodStart, periodEnd, r.loadAfterKeys(monitor.ID))
	if result.InputResults.Error != nil {
		logrus.Warnf("Input collection failed for monitor %q: %v", monitor.Name, result.InputResults.Error)
	}
	r.storeAfterKeys(monitor.ID, result.InputResults.AfterKeys)

	updatedAlerts := make([]*models.Alert, 0, len(monitor.Triggers))
	for i := range monitor.Triggers {
		trigger := &monitor.Triggers[i]
		execCtx := &TriggerExecutionContext{
			Monitor:     monitor,
			Trigger:     trigger,
			Results:     result.InputResults.Results,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Alert:       currentAlerts[trigger.ID],
			Error:       result.InputResults.Error,
		}

		triggerResult := r.triggerService.RunTrigger(execCtx)
		result.TriggerResults[trigger.ID] = triggerResult

		if r.triggerService.IsTriggerActionable(execCtx, triggerResult) {
			for j := range trigger.Actions {
				action := &trigger.Actions[j]
				actionResult := r.actionService.RunAction(ctx, execCtx, action, dryrun)
				if actionResult.Error != nil {
					logrus.Errorf("Action %q of trigger %q failed: %v", action.Name, trigger.Name, actionResult.Error)
				}
				triggerResult.ActionResults[action.ID] = actionResult
			}
		}

		alertError := result.AlertError(periodEnd)
		if alertError == nil {
			alertError = triggerResult.AlertError(periodEnd)
		}
		if updated := r.alertService.ComposeAlert(execCtx, triggerResult, alertError); updated != nil {
			updatedAlerts = append(updatedAlerts, updated)
		}
	}

	// Persistence is skipped for dryruns, for ad-hoc monitors that were
	// never saved, and once the run has been cancelled.
	if dryrun || monitor.ID == models.NoID {
		return result
	}
	if ctx.Err() != nil {
		logrus.Warnf("Run of monitor %q cancelled before persisting alerts", monitor.Name)
		return result
	}
	if err := r.alertService.SaveAlerts(ctx, updatedAlerts); err != nil {
		// A run whose alert transitions were lost must not report success.
		result.Error = err
		logrus.Errorf("Failed to persist alerts of monitor %q: %v", monitor.Name, err)
	}
	return result
}

// MonitorUpdated reconciles live alerts after a monitor change: alerts for
// removed triggers are moved to history.
func (r *MonitorRunner) MonitorUpdated(ctx context.Context, monitor *models.Monitor) {
	if err := r.alertService.MoveAlerts(ctx, monitor.ID, monitor); err != nil {
		logrus.Errorf("Failed to move alerts for updated monitor %s: %v", monitor.ID, err)
	}
	r.clearAfterKeys(monitor.ID)
}

// MonitorDeleted moves all of the monitor's live alerts to history.
func (r *MonitorRunner) MonitorDeleted(ctx context.Context, monitorID string) {
	if err := r.alertService.MoveAlerts(ctx, monitorID, nil); err != nil {
		logrus.Errorf("Failed to move alerts for deleted monitor %s: %v", monitorID, err)
	}
	r.clearAfterKeys(monitorID)
}

func (r *MonitorRunner) loadAfterKeys(monitorID string) map[string]string {
	r.afterKeysMutex.Lock()
	defer r.afterKeysMutex.Unlock()
	return r.afterKeys[monitorID]
}

func (r *MonitorRunner) storeAfterKeys(monitorID string, keys map[string]string) {
	if monitorID == models.NoID {
		return
	}
	r.afterKeysMutex.Lock()
	defer r.afterKeysMutex.Unlock()
	if len(keys) == 0 {
		delete(r.afterKeys, monitorID)
		return
	}
	r.afterKeys[monitorID] = keys
}

func (r *MonitorRunner) clearAfterKeys(monitorID string) {
	r.afterKeysMutex.Lock()
	defer r.afterKeysMutex.Unlock()
	delete(r.afterKeys, monitorID)
}
