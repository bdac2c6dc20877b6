package timeplus

import (
	"context"
)

// SetupStreams creates all required streams in Timeplus.
func (c *Client) SetupStreams(ctx context.Context) error {
	if err := c.EnsureMutableStream(ctx, MonitorsStream, GetMonitorsSchema(), MonitorsPrimaryKeys()); err != nil {
		return err
	}
	if err := c.EnsureMutableStream(ctx, AlertsStream, GetAlertsSchema(), AlertsPrimaryKeys()); err != nil {
		return err
	}
	return c.CreateStream(ctx, AlertHistoryStream, GetAlertHistorySchema())
}
