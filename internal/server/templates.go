package server

import (
	"embed"
	"html/template"

	"github.com/meetscribe/minutes-front/internal/apiclient"
)

//go:embed templates/*.html
var templatesFS embed.FS

func mustParse(name string) *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/"+name))
}

var (
	landingPageTemplate      = mustParse("landing.html")
	authPageTemplate         = mustParse("auth.html")
	oauthErrorPageTemplate   = mustParse("oauth_error.html")
	dashboardPageTemplate    = mustParse("dashboard.html")
	meetingsPageTemplate     = mustParse("meetings.html")
	meetingPageTemplate      = mustParse("meeting.html")
	meetingNewPageTemplate   = mustParse("meeting_new.html")
	joinPageTemplate         = mustParse("join.html")
	searchPageTemplate       = mustParse("search.html")
	seriesPageTemplate       = mustParse("series.html")
	seriesDetailPageTemplate = mustParse("series_detail.html")
)

// LandingPageData represents the data for the landing page
type LandingPageData struct {
	Authenticated bool
}

// AuthPageData represents the data for the login page
type AuthPageData struct {
	Providers   []ProviderData
	Redirect    string
	CSRFToken   string
	Message     string
	MessageType string // "success" or "error"
}

// ProviderData represents a single login provider button
type ProviderData struct {
	Name        string
	DisplayName string
}

// OAuthErrorPageData represents the data for the OAuth failure page
type OAuthErrorPageData struct {
	Title     string
	Message   string
	RetryURL  string
	ShowRetry bool
}

// DashboardPageData represents the data for the dashboard
type DashboardPageData struct {
	User           *apiclient.User
	Stats          apiclient.DashboardStats
	RecentMeetings []apiclient.Meeting
	CSRFToken      string
}

// MeetingsPageData represents the data for the meeting list page
type MeetingsPageData struct {
	User     *apiclient.User
	Meetings []apiclient.Meeting
	Page     int
	PrevPage int
	NextPage int
	HasPrev  bool
	HasNext  bool
}

// MeetingPageData represents the data for the meeting detail page
type MeetingPageData struct {
	User        *apiclient.User
	Meeting     *apiclient.Meeting
	Status      *apiclient.ProcessingStatus
	Transcript  *apiclient.Transcript
	ActionItems []apiclient.ActionItem
	Attendees   []apiclient.Attendee
	CSRFToken   string
	Message     string
	MessageType string
}

// MeetingNewPageData represents the data for the create-meeting wizard
type MeetingNewPageData struct {
	User        *apiclient.User
	Meeting     *apiclient.Meeting
	Step        int
	CSRFToken   string
	Message     string
	MessageType string
}

// JoinPageData represents the data for the join-by-invite page
type JoinPageData struct {
	Token       string
	Details     *apiclient.JoinTokenDetails
	Valid       bool
	Reason      string
	CSRFToken   string
	Message     string
	MessageType string
}

// SearchPageData represents the data for the search page
type SearchPageData struct {
	User        *apiclient.User
	Query       string
	Category    string
	Results     []apiclient.Meeting
	Searched    bool
	Message     string
	MessageType string
}

// SeriesPageData represents the data for the series list page
type SeriesPageData struct {
	User   *apiclient.User
	Series []apiclient.Series
}

// SeriesDetailPageData represents the data for a single series page
type SeriesDetailPageData struct {
	User     *apiclient.User
	Series   *apiclient.Series
	Meetings []apiclient.Meeting
}
