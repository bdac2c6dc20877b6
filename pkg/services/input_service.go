package services

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/timeplus"
)

// InputService collects a monitor's input query results for one period
// window. Failures never escape: they are folded into the returned
// InputRunResults so the run can still compose error alerts.
type InputService struct {
	tpClient timeplus.TimeplusClient
}

// NewInputService creates an input service over the given query executor.
func NewInputService(tpClient timeplus.TimeplusClient) *InputService {
	return &InputService{tpClient: tpClient}
}

// inputWindow is the data bound into input query templates. AfterKey is
// only set for bucket-selector queries resuming pagination.
type inputWindow struct {
	PeriodStart string
	PeriodEnd   string
	AfterKey    string
}

// CollectInputs runs every input query with the period window bound into
// its template, then runs each trigger's bucket-selector query. Selector
// templates may reference {{.AfterKey}}, the cursor produced by the
// previous run; the new cursor is read from the last returned row's
// composite-aggregation column. An exhausted page set clears the cursor so
// the next run starts over.
func (s *InputService) CollectInputs(ctx context.Context, monitor *models.Monitor,
	periodStart, periodEnd time.Time, afterKeys map[string]string) models.InputRunResults {

	results := models.InputRunResults{}

	window := inputWindow{
		PeriodStart: periodStart.UTC().Format("2006-01-02 15:04:05.000"),
		PeriodEnd:   periodEnd.UTC().Format("2006-01-02 15:04:05.000"),
	}

	for i, input := range monitor.Inputs {
		query, err := renderInputQuery(input.Query, window)
		if err != nil {
			results.Error = fmt.Errorf("input %d of monitor %q: %w", i, monitor.Name, err)
			return results
		}
		rows, err := s.tpClient.ExecuteQuery(ctx, query)
		if err != nil {
			results.Error = fmt.Errorf("input %d of monitor %q: %w", i, monitor.Name, err)
			return results
		}
		results.Results = append(results.Results, rows...)
	}

	for i := range monitor.Triggers {
		trigger := &monitor.Triggers[i]
		selector := trigger.BucketSelector
		if selector == nil || selector.Query == "" {
			continue
		}

		w := window
		w.AfterKey = afterKeys[trigger.ID]
		query, err := renderInputQuery(selector.Query, w)
		if err != nil {
			results.Error = fmt.Errorf("bucket selector of trigger %q: %w", trigger.Name, err)
			return results
		}
		rows, err := s.tpClient.ExecuteQuery(ctx, query)
		if err != nil {
			results.Error = fmt.Errorf("bucket selector of trigger %q: %w", trigger.Name, err)
			return results
		}
		results.Results = append(results.Results, rows...)

		if selector.CompositeAgg == "" || len(rows) == 0 {
			continue
		}
		key := cursorValue(rows[len(rows)-1][selector.CompositeAgg])
		if key == "" {
			continue
		}
		if results.AfterKeys == nil {
			results.AfterKeys = make(map[string]string)
		}
		results.AfterKeys[trigger.ID] = key
	}
	return results
}

func cursorValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func renderInputQuery(queryTemplate string, window inputWindow) (string, error) {
	tmpl, err := template.New("input").Parse(queryTemplate)
	if err != nil {
		return "", fmt.Errorf("malformed input query template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, window); err != nil {
		return "", fmt.Errorf("failed to bind period window: %w", err)
	}
	return buf.String(), nil
}
