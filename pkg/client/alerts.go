package client

import (
	"context"
	"net/url"

	"github.com/rescuemate/alertsync/internal/domain/alert"
)

// ListAlerts retrieves alerts ordered ascending by id. A non-empty afterID
// requests only alerts with ids greater than it (incremental fetch); an
// empty afterID requests the full collection.
func (c *Client) ListAlerts(ctx context.Context, afterID string) ([]alert.Alert, error) {
	path := "/api/alerts"
	if afterID != "" {
		query := url.Values{}
		query.Set("afterId", afterID)
		path += "?" + query.Encode()
	}

	var alerts []alert.Alert
	if err := c.doRequest(ctx, "GET", path, nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// CreateAlert submits an incident report. The server assigns id and
// timestamp and responds 201 with the stored alert.
func (c *Client) CreateAlert(ctx context.Context, payload alert.Payload) (*alert.Alert, error) {
	var created alert.Alert
	if err := c.doRequest(ctx, "POST", "/api/alerts", payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Reset wipes server-side state. Test use only.
func (c *Client) Reset(ctx context.Context) error {
	return c.doRequest(ctx, "POST", "/api/reset", nil, nil)
}
