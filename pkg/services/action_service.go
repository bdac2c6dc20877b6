package services

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/notification"
)

// DestinationResolver looks up a destination by ID.
type DestinationResolver interface {
	GetDestination(ctx context.Context, id string) (*models.Destination, error)
}

// StaticDestinations is a resolver over a fixed destination set, loaded
// from configuration at startup.
type StaticDestinations struct {
	byID map[string]*models.Destination
}

// NewStaticDestinations indexes the given destinations by ID.
func NewStaticDestinations(destinations []models.Destination) *StaticDestinations {
	byID := make(map[string]*models.Destination, len(destinations))
	for i := range destinations {
		byID[destinations[i].ID] = &destinations[i]
	}
	return &StaticDestinations{byID: byID}
}

// GetDestination returns the destination with the given ID.
func (s *StaticDestinations) GetDestination(_ context.Context, id string) (*models.Destination, error) {
	dest, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("destination %s not found", id)
	}
	return dest, nil
}

// ActionService renders and dispatches trigger actions, applying per-action
// throttling against the alert's execution history.
type ActionService struct {
	publisher    notification.Publisher
	destinations DestinationResolver
	now          func() time.Time
}

// NewActionService creates an action service.
func NewActionService(publisher notification.Publisher, destinations DestinationResolver) *ActionService {
	return &ActionService{
		publisher:    publisher,
		destinations: destinations,
		now:          time.Now,
	}
}

// isActionActionable reports whether the action's throttle window has
// elapsed. Actions with no throttle, or alerts with no record of a prior
// execution, are always actionable.
func (s *ActionService) isActionActionable(alert *models.Alert, action *models.Action) bool {
	if !action.ThrottleEnabled() || alert == nil {
		return true
	}
	for _, r := range alert.ActionExecutionResults {
		if r.ActionID == action.ID && r.LastExecutionTime != nil {
			return s.now().Sub(*r.LastExecutionTime) >= action.Throttle.Duration()
		}
	}
	return true
}

// RunAction renders the action's templates and dispatches the message.
// Every failure is converted into the returned result so one broken action
// never aborts the others. Dryrun renders but does not dispatch.
func (s *ActionService) RunAction(ctx context.Context, execCtx *TriggerExecutionContext,
	action *models.Action, dryrun bool) *models.ActionRunResult {

	result := &models.ActionRunResult{
		ActionID:   action.ID,
		ActionName: action.Name,
		Output:     make(map[string]string),
	}

	if !s.isActionActionable(execCtx.Alert, action) {
		result.Throttled = true
		return result
	}

	subject, err := renderTemplate(action.SubjectTemplate, execCtx)
	if err != nil {
		result.Error = fmt.Errorf("failed to render subject of action %q: %w", action.Name, err)
		return result
	}
	message, err := renderTemplate(action.MessageTemplate, execCtx)
	if err != nil {
		result.Error = fmt.Errorf("failed to render message of action %q: %w", action.Name, err)
		return result
	}
	if message == "" {
		result.Error = fmt.Errorf("action %q produced an empty message", action.Name)
		return result
	}
	result.Output["subject"] = subject
	result.Output["message"] = message

	now := s.now()
	result.ExecutionTime = &now

	if dryrun {
		return result
	}

	dest, err := s.destinations.GetDestination(ctx, action.DestinationID)
	if err != nil {
		result.Error = fmt.Errorf("action %q: %w", action.Name, err)
		return result
	}
	messageID, err := s.publisher.Publish(ctx, dest, subject, message)
	if err != nil {
		result.Error = fmt.Errorf("action %q: %w", action.Name, err)
		return result
	}
	result.Output["messageId"] = messageID
	return result
}

func renderTemplate(source string, execCtx *TriggerExecutionContext) (string, error) {
	if source == "" {
		return "", nil
	}
	tmpl, err := template.New("action").Parse(source)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, execCtx.templateData()); err != nil {
		return "", err
	}
	return buf.String(), nil
}
