package apiclient

import (
	"encoding/json"
	"time"
)

// Role is a user's role within the product
type Role string

const (
	RoleOwner       Role = "OWNER"
	RoleParticipant Role = "PARTICIPANT"
	RoleViewer      Role = "VIEWER"
)

// User is the current-user record returned by the verification endpoint.
// It is only ever populated from a successful server response, never from
// local state.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	ProfilePictureURL string     `json:"profilePictureUrl,omitempty"`
	Role              Role       `json:"role"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
	EmailVerified     bool       `json:"emailVerified"`
}

// MeetingStatus is the processing lifecycle state of a meeting
type MeetingStatus string

const (
	MeetingScheduled  MeetingStatus = "SCHEDULED"
	MeetingInProgress MeetingStatus = "IN_PROGRESS"
	MeetingProcessing MeetingStatus = "PROCESSING"
	MeetingCompleted  MeetingStatus = "COMPLETED"
	MeetingFailed     MeetingStatus = "FAILED"
)

// Meeting is a meeting record. The backend is inconsistent about the
// identifier field name (meetingId, id, or _id depending on the endpoint),
// so unmarshalling normalizes them into ID.
type Meeting struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	MeetingDateTime  *time.Time    `json:"meetingDateTime,omitempty"`
	DurationMinutes  int           `json:"durationMinutes,omitempty"`
	Status           MeetingStatus `json:"status,omitempty"`
	Location         string        `json:"location,omitempty"`
	SeriesID         string        `json:"seriesId,omitempty"`
	OrganizerName    string        `json:"organizerName,omitempty"`
	ParticipantCount int           `json:"participantCount,omitempty"`
	ActionItemCount  int           `json:"actionItemCount,omitempty"`
	HasTranscript    bool          `json:"hasTranscript,omitempty"`
	CreatedAt        *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time    `json:"updatedAt,omitempty"`
}

// UnmarshalJSON normalizes meetingId / id / _id into the single ID field
func (m *Meeting) UnmarshalJSON(data []byte) error {
	type alias Meeting
	aux := struct {
		*alias
		MeetingID string `json:"meetingId"`
		MongoID   string `json:"_id"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if m.ID == "" {
		if aux.MeetingID != "" {
			m.ID = aux.MeetingID
		} else {
			m.ID = aux.MongoID
		}
	}
	return nil
}

// CreateMeetingRequest is the payload for creating a meeting
type CreateMeetingRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	MeetingDateTime *time.Time `json:"meetingDateTime,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Location        string     `json:"location,omitempty"`
	SeriesID        string     `json:"seriesId,omitempty"`
}

// ProcessingStatus is the state of a meeting's minutes-extraction pipeline
type ProcessingStatus struct {
	MeetingID string        `json:"meetingId"`
	Status    MeetingStatus `json:"status"`
	Progress  int           `json:"progress,omitempty"`
	Step      string        `json:"step,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Terminal reports whether processing has finished, successfully or not
func (p *ProcessingStatus) Terminal() bool {
	return p.Status != MeetingProcessing && p.Status != MeetingInProgress
}

// TranscriptSegment is one speaker turn in a meeting transcript
type TranscriptSegment struct {
	Speaker      string  `json:"speaker"`
	Text         string  `json:"text"`
	StartSeconds float64 `json:"startSeconds,omitempty"`
	EndSeconds   float64 `json:"endSeconds,omitempty"`
}

// Transcript is a meeting's full transcript
type Transcript struct {
	MeetingID string              `json:"meetingId"`
	Language  string              `json:"language,omitempty"`
	Segments  []TranscriptSegment `json:"segments"`
}

// ActionItem is a task extracted from a meeting
type ActionItem struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
}

// Attendee is a meeting participant
type Attendee struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// Series is a recurring meeting series
type Series struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	MeetingCount int       `json:"meetingCount,omitempty"`
	Meetings     []Meeting `json:"meetings,omitempty"`
}

// JoinValidation is the result of validating an invitation token
type JoinValidation struct {
	Valid        bool   `json:"valid"`
	RequiresAuth bool   `json:"requiresAuth"`
	Reason       string `json:"reason,omitempty"`
}

// JoinTokenDetails describes the meeting behind an invitation token
type JoinTokenDetails struct {
	MeetingTitle    string     `json:"meetingTitle"`
	OrganizerName   string     `json:"organizerName,omitempty"`
	MeetingDateTime *time.Time `json:"meetingDateTime,omitempty"`
	RequiresAuth    bool       `json:"requiresAuth"`
	Expired         bool       `json:"expired"`
}

// DashboardStats is the dashboard summary block
type DashboardStats struct {
	TotalMeetings        int `json:"totalMeetings"`
	UpcomingMeetings     int `json:"upcomingMeetings"`
	PendingActionItems   int `json:"pendingActionItems"`
	CompletedActionItems int `json:"completedActionItems"`
}

// SearchRequest is the advanced-search payload
type SearchRequest struct {
	Query      string   `json:"query,omitempty"`
	Categories []string `json:"categories,omitempty"`
	From       string   `json:"from,omitempty"`
	To         string   `json:"to,omitempty"`
	Status     string   `json:"status,omitempty"`
	Page       int      `json:"page,omitempty"`
	PageSize   int      `json:"pageSize,omitempty"`
}

// MeetingPage is a paginated list of meetings
type MeetingPage struct {
	Meetings []Meeting `json:"meetings"`
	Total    int       `json:"total"`
	Page     int       `json:"page,omitempty"`
	PageSize int       `json:"pageSize,omitempty"`
}
