package apiclient

import (
	"context"
	"net/url"
)

// Invitation endpoints are usable by unauthenticated visitors, so they skip
// all auth-refresh handling: a 401 here is information for the join page,
// not a session signal.

// ValidateJoinToken checks whether an invitation token is usable
func (c *Client) ValidateJoinToken(ctx context.Context, sid, token string) (*JoinValidation, error) {
	var validation JoinValidation
	query := url.Values{"token": {token}}
	err := c.get(ctx, sid, "/api/public/meetings/join/validate", query, RequestOptions{SkipAuthRefresh: true}, &validation)
	if err != nil {
		return nil, err
	}
	return &validation, nil
}

// JoinTokenDetails fetches the meeting summary behind an invitation token
func (c *Client) JoinTokenDetails(ctx context.Context, sid, token string) (*JoinTokenDetails, error) {
	var details JoinTokenDetails
	query := url.Values{"token": {token}}
	err := c.get(ctx, sid, "/api/public/meetings/join/token-details", query, RequestOptions{SkipAuthRefresh: true}, &details)
	if err != nil {
		return nil, err
	}
	return &details, nil
}

// JoinMeeting redeems an invitation token, joining the session's user to the
// meeting
func (c *Client) JoinMeeting(ctx context.Context, sid, token string) (*Meeting, error) {
	var meeting Meeting
	payload := map[string]string{"token": token}
	err := c.postJSON(ctx, sid, "/api/public/meetings/join", payload, RequestOptions{}, &meeting)
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}
