package services

import (
	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

// TriggerService evaluates trigger conditions and decides whether their
// actions should run.
type TriggerService struct {
	evaluator ConditionEvaluator
}

// NewTriggerService creates a trigger service with the given evaluator.
func NewTriggerService(evaluator ConditionEvaluator) *TriggerService {
	return &TriggerService{evaluator: evaluator}
}

// RunTrigger evaluates one trigger. An evaluation failure reports the
// trigger as fired with the error attached, so the alert lifecycle surfaces
// broken conditions instead of silently resolving their alerts.
func (s *TriggerService) RunTrigger(ctx *TriggerExecutionContext) *models.TriggerRunResult {
	result := &models.TriggerRunResult{
		TriggerName:   ctx.Trigger.Name,
		ActionResults: make(map[string]*models.ActionRunResult),
	}
	triggered, err := s.evaluator.Evaluate(ctx.Trigger.Condition, ctx)
	if err != nil {
		result.Triggered = true
		result.Error = err
		return result
	}
	result.Triggered = triggered
	return result
}

// IsTriggerActionable reports whether a trigger's actions should run.
// Actions are suppressed only when the user has acknowledged the alert and
// the run is error-free; errors reopen notification so operators see them.
func (s *TriggerService) IsTriggerActionable(ctx *TriggerExecutionContext, result *models.TriggerRunResult) bool {
	if !result.Triggered {
		return false
	}
	suppress := ctx.Alert != nil && ctx.Alert.IsAcknowledged() &&
		result.Error == nil && ctx.Error == nil
	return !suppress
}
