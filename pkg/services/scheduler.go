package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

// Scheduler owns one goroutine per enabled monitor, sleeping until the
// schedule's next fire time and handing the run to the MonitorRunner.
type Scheduler struct {
	runner *MonitorRunner

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Map of monitor ID to cancellation function for its schedule loop
	monitorContexts     map[string]context.CancelFunc
	monitorContextMutex sync.RWMutex
}

// NewScheduler creates a scheduler over the given runner.
func NewScheduler(runner *MonitorRunner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:          runner,
		ctx:             ctx,
		cancel:          cancel,
		monitorContexts: make(map[string]context.CancelFunc),
	}
}

// Schedule starts (or restarts) the schedule loop for a monitor. Disabled
// monitors are unscheduled.
func (s *Scheduler) Schedule(monitor *models.Monitor) {
	s.Unschedule(monitor.ID)
	if !monitor.Enabled {
		return
	}

	loopCtx, cancel := context.WithCancel(s.ctx)
	s.monitorContextMutex.Lock()
	s.monitorContexts[monitor.ID] = cancel
	s.monitorContextMutex.Unlock()

	s.wg.Add(1)
	go s.run(loopCtx, monitor)
	logrus.Infof("Scheduled monitor %q", monitor.Name)
}

// Unschedule stops the schedule loop for a monitor, if one is running.
func (s *Scheduler) Unschedule(monitorID string) {
	s.monitorContextMutex.Lock()
	cancel, ok := s.monitorContexts[monitorID]
	if ok {
		delete(s.monitorContexts, monitorID)
	}
	s.monitorContextMutex.Unlock()
	if ok {
		cancel()
	}
}

// IsScheduled reports whether a monitor currently has a schedule loop.
func (s *Scheduler) IsScheduled(monitorID string) bool {
	s.monitorContextMutex.RLock()
	defer s.monitorContextMutex.RUnlock()
	_, ok := s.monitorContexts[monitorID]
	return ok
}

// Stop cancels every schedule loop and waits for them to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, monitor *models.Monitor) {
	defer s.wg.Done()

	enabledTime := time.Now()
	if monitor.EnabledTime != nil {
		enabledTime = *monitor.EnabledTime
	}

	for {
		next := monitor.Schedule.NextTimeToExecute(enabledTime)
		if next == nil {
			logrus.Infof("Monitor %q will never fire again, stopping its schedule loop", monitor.Name)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*next):
		}
		s.runner.RunJob(monitor, time.Now())
	}
}
