package models

import "fmt"

// Severity levels for triggers and their alerts. Stored as strings so
// user-defined levels sort naturally ("1" is most severe).
type Severity string

const (
	SeverityOne   Severity = "1"
	SeverityTwo   Severity = "2"
	SeverityThree Severity = "3"
	SeverityFour  Severity = "4"
	SeverityFive  Severity = "5"
)

// BucketSelector configures bucket-level evaluation for aggregation
// triggers: a sub-query selecting result buckets under ParentPath. The
// query template may reference {{.AfterKey}}; CompositeAgg names the result
// column whose last value becomes the next run's cursor.
type BucketSelector struct {
	Query        string `json:"query"`
	ParentPath   string `json:"parentPath"`
	CompositeAgg string `json:"compositeAgg,omitempty"`
}

// Trigger is a named condition bound to a monitor, with the actions to run
// when the condition is actionable. Triggers are immutable within a run.
type Trigger struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Severity       Severity        `json:"severity"`
	Condition      string          `json:"condition"`
	Actions        []Action        `json:"actions"`
	BucketSelector *BucketSelector `json:"bucketSelector,omitempty"`
}

func (t *Trigger) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("trigger %s has no name", t.ID)
	}
	if t.Condition == "" {
		return fmt.Errorf("trigger %q has no condition", t.Name)
	}
	return nil
}
