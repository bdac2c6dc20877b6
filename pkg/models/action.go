package models

import "time"

// Throttle is a minimum re-notification interval for an action. A disabled
// throttle never suppresses execution.
type Throttle struct {
	Value   int          `json:"value"`
	Unit    IntervalUnit `json:"unit"`
	Enabled bool         `json:"enabled"`
}

// Duration converts the throttle window to a time.Duration.
func (t *Throttle) Duration() time.Duration {
	switch t.Unit {
	case IntervalUnitHours:
		return time.Duration(t.Value) * time.Hour
	case IntervalUnitDays:
		return time.Duration(t.Value) * 24 * time.Hour
	default:
		return time.Duration(t.Value) * time.Minute
	}
}

// Action is a configured notification: a destination plus subject/message
// templates, optionally throttled.
type Action struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	DestinationID   string    `json:"destinationId"`
	SubjectTemplate string    `json:"subjectTemplate,omitempty"`
	MessageTemplate string    `json:"messageTemplate"`
	Throttle        *Throttle `json:"throttle,omitempty"`
}

// ThrottleEnabled reports whether this action carries an active throttle.
func (a *Action) ThrottleEnabled() bool {
	return a.Throttle != nil && a.Throttle.Enabled
}
