package apiclient

import (
	"context"
	"net/url"
	"strconv"
)

// GetDashboardStats fetches the dashboard summary counters
func (c *Client) GetDashboardStats(ctx context.Context, sid string) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.get(ctx, sid, "/api/v1/dashboard/stats", nil, RequestOptions{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetRecentMeetings fetches the most recently updated meetings for the
// dashboard activity feed
func (c *Client) GetRecentMeetings(ctx context.Context, sid string, limit int) ([]Meeting, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var meetings []Meeting
	if err := c.get(ctx, sid, "/api/v1/dashboard/recent-meetings", query, RequestOptions{}, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}
