package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// ListMeetings returns the session's meetings, newest first
func (c *Client) ListMeetings(ctx context.Context, sid string, page, pageSize int) (*MeetingPage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		query.Set("pageSize", strconv.Itoa(pageSize))
	}

	var meetings MeetingPage
	if err := c.get(ctx, sid, "/api/v1/meetings", query, RequestOptions{}, &meetings); err != nil {
		return nil, err
	}
	return &meetings, nil
}

// GetMeeting fetches a single meeting
func (c *Client) GetMeeting(ctx context.Context, sid, meetingID string) (*Meeting, error) {
	var meeting Meeting
	if err := c.get(ctx, sid, "/api/v1/meetings/"+url.PathEscape(meetingID), nil, RequestOptions{}, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// CreateMeeting creates a meeting, the first step of the creation wizard
func (c *Client) CreateMeeting(ctx context.Context, sid string, req CreateMeetingRequest) (*Meeting, error) {
	var meeting Meeting
	if err := c.postJSON(ctx, sid, "/api/v1/meetings", req, RequestOptions{}, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// DeleteMeeting removes a meeting
func (c *Client) DeleteMeeting(ctx context.Context, sid, meetingID string) error {
	return c.do(ctx, sid, requestSpec{
		method: http.MethodDelete,
		path:   "/api/v1/meetings/" + url.PathEscape(meetingID),
	}, nil)
}

// UploadAudio uploads a meeting recording as multipart form data
func (c *Client) UploadAudio(ctx context.Context, sid, meetingID, filename string, audio io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("reading audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing upload form: %w", err)
	}

	return c.do(ctx, sid, requestSpec{
		method:      http.MethodPost,
		path:        "/api/v1/meetings/" + url.PathEscape(meetingID) + "/upload-audio",
		body:        buf.Bytes(),
		contentType: writer.FormDataContentType(),
	}, nil)
}

// InviteParticipants invites a list of email addresses to a meeting
func (c *Client) InviteParticipants(ctx context.Context, sid, meetingID string, emails []string) error {
	payload := map[string]any{"emails": emails}
	return c.postJSON(ctx, sid, "/api/v1/meetings/"+url.PathEscape(meetingID)+"/invite", payload, RequestOptions{}, nil)
}

// StartProcessing kicks off minutes extraction for a meeting
func (c *Client) StartProcessing(ctx context.Context, sid, meetingID string) error {
	return c.postJSON(ctx, sid, "/api/v1/meetings/"+url.PathEscape(meetingID)+"/process", nil, RequestOptions{}, nil)
}

// GetProcessingStatus reads the current pipeline state for a meeting
func (c *Client) GetProcessingStatus(ctx context.Context, sid, meetingID string) (*ProcessingStatus, error) {
	var status ProcessingStatus
	if err := c.get(ctx, sid, "/api/v1/meetings/"+url.PathEscape(meetingID)+"/processing-status", nil, RequestOptions{}, &status); err != nil {
		return nil, err
	}
	if status.MeetingID == "" {
		status.MeetingID = meetingID
	}
	return &status, nil
}

// GetTranscript fetches a meeting's transcript
func (c *Client) GetTranscript(ctx context.Context, sid, meetingID string) (*Transcript, error) {
	var transcript Transcript
	if err := c.get(ctx, sid, "/api/v1/meetings/"+url.PathEscape(meetingID)+"/transcript", nil, RequestOptions{}, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// GetActionItems fetches a meeting's extracted action items
func (c *Client) GetActionItems(ctx context.Context, sid, meetingID string) ([]ActionItem, error) {
	var items []ActionItem
	if err := c.get(ctx, sid, "/api/v1/meetings/"+url.PathEscape(meetingID)+"/action-items", nil, RequestOptions{}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetAttendees fetches a meeting's participant list
func (c *Client) GetAttendees(ctx context.Context, sid, meetingID string) ([]Attendee, error) {
	var attendees []Attendee
	if err := c.get(ctx, sid, "/api/v1/meetings/"+url.PathEscape(meetingID)+"/attendees", nil, RequestOptions{}, &attendees); err != nil {
		return nil, err
	}
	return attendees, nil
}

// DownloadDocument streams a generated meeting document. The caller must
// close the returned body.
func (c *Client) DownloadDocument(ctx context.Context, sid, meetingID, documentID string) (io.ReadCloser, string, error) {
	resp, err := c.doRaw(ctx, sid, requestSpec{
		method: http.MethodGet,
		path:   "/api/v1/meetings/" + url.PathEscape(meetingID) + "/documents/" + url.PathEscape(documentID) + "/download",
	})
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
