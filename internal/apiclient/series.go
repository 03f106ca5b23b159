package apiclient

import (
	"context"
	"net/url"
)

// ListSeries returns all meeting series visible to the session
func (c *Client) ListSeries(ctx context.Context, sid string) ([]Series, error) {
	var series []Series
	if err := c.get(ctx, sid, "/api/v1/meeting-series", nil, RequestOptions{}, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// GetSeries fetches one series with its meetings
func (c *Client) GetSeries(ctx context.Context, sid, seriesID string) (*Series, error) {
	var series Series
	if err := c.get(ctx, sid, "/api/v1/meeting-series/"+url.PathEscape(seriesID), nil, RequestOptions{}, &series); err != nil {
		return nil, err
	}
	return &series, nil
}
