package apiclient

import (
	"context"
	"net/url"
)

// QuickSearch runs a free-text search over the session's meetings
func (c *Client) QuickSearch(ctx context.Context, sid, query string) ([]Meeting, error) {
	var meetings []Meeting
	params := url.Values{"q": {query}}
	if err := c.get(ctx, sid, "/api/v1/search/meetings/quick", params, RequestOptions{}, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

// SearchMeetings runs an advanced search with filters
func (c *Client) SearchMeetings(ctx context.Context, sid string, req SearchRequest) (*MeetingPage, error) {
	var page MeetingPage
	if err := c.postJSON(ctx, sid, "/api/v1/search/meetings", req, RequestOptions{}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchByCategory lists meetings in a category
func (c *Client) SearchByCategory(ctx context.Context, sid, category string) ([]Meeting, error) {
	var meetings []Meeting
	if err := c.get(ctx, sid, "/api/v1/search/meetings/category/"+url.PathEscape(category), nil, RequestOptions{}, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}
