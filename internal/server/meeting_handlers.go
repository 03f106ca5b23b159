package server

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/cookie"
	"github.com/meetscribe/minutes-front/internal/crypto"
	"github.com/meetscribe/minutes-front/internal/emailutil"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
	"github.com/meetscribe/minutes-front/internal/sse"
)

const (
	meetingsPageSize = 20
	recentLimit      = 5

	// subRequestTimeout caps each dashboard sub-request so one slow
	// endpoint can't hold the whole page
	subRequestTimeout = 15 * time.Second

	// processingPollInterval is how often the SSE stream polls the
	// pipeline status
	processingPollInterval = 5 * time.Second

	maxUploadBytes = 200 << 20 // 200 MiB audio limit
)

// MeetingHandlers serves the dashboard and all meeting pages
type MeetingHandlers struct {
	api  *apiclient.Client
	csrf *crypto.CSRFProtection
}

// NewMeetingHandlers creates meeting handlers with dependency injection
func NewMeetingHandlers(api *apiclient.Client, csrf *crypto.CSRFProtection) *MeetingHandlers {
	return &MeetingHandlers{api: api, csrf: csrf}
}

func (h *MeetingHandlers) csrfToken(w http.ResponseWriter) string {
	token, err := h.csrf.Generate()
	if err != nil {
		log.LogError("generating CSRF token: %v", err)
		return ""
	}
	cookie.SetCSRF(w, token)
	return token
}

func render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.LogError("rendering page: %v", err)
	}
}

// DashboardHandler fans out to the stats and recent-meetings endpoints in
// parallel. Either one failing degrades to its zero value rather than
// failing the page.
func (h *MeetingHandlers) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())

	data := DashboardPageData{
		User:      sessionctx.User(r.Context()),
		CSRFToken: h.csrfToken(w),
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		subCtx, cancel := context.WithTimeout(ctx, subRequestTimeout)
		defer cancel()
		stats, err := h.api.GetDashboardStats(subCtx, sid)
		if err != nil {
			log.LogWarn("dashboard stats unavailable: %v", err)
			return nil
		}
		data.Stats = *stats
		return nil
	})
	g.Go(func() error {
		subCtx, cancel := context.WithTimeout(ctx, subRequestTimeout)
		defer cancel()
		recent, err := h.api.GetRecentMeetings(subCtx, sid, recentLimit)
		if err != nil {
			log.LogWarn("recent meetings unavailable: %v", err)
			return nil
		}
		data.RecentMeetings = recent
		return nil
	})
	_ = g.Wait()

	render(w, dashboardPageTemplate, data)
}

// MeetingsHandler serves the paginated meeting list
func (h *MeetingHandlers) MeetingsHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	result, err := h.api.ListMeetings(r.Context(), sid, page, meetingsPageSize)
	if err != nil {
		log.LogError("listing meetings: %v", err)
		result = &apiclient.MeetingPage{}
	}

	data := MeetingsPageData{
		User:     sessionctx.User(r.Context()),
		Meetings: result.Meetings,
		Page:     page,
		PrevPage: page - 1,
		NextPage: page + 1,
		HasPrev:  page > 1,
		HasNext:  page*meetingsPageSize < result.Total,
	}
	render(w, meetingsPageTemplate, data)
}

// MeetingHandler serves the meeting detail page. The transcript, action
// items, attendees, and processing status are fetched in parallel and each
// degrades independently, mirroring how partial processing leaves a meeting
// with some artifacts and not others.
func (h *MeetingHandlers) MeetingHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	meetingID := r.PathValue("id")

	meeting, err := h.api.GetMeeting(r.Context(), sid, meetingID)
	if err != nil {
		if apiclient.StatusCode(err) == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		log.LogError("fetching meeting %s: %v", meetingID, err)
		http.Error(w, "Meeting unavailable", http.StatusBadGateway)
		return
	}

	data := MeetingPageData{
		User:      sessionctx.User(r.Context()),
		Meeting:   meeting,
		CSRFToken: h.csrfToken(w),
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		if transcript, err := h.api.GetTranscript(ctx, sid, meetingID); err == nil {
			data.Transcript = transcript
		}
		return nil
	})
	g.Go(func() error {
		if items, err := h.api.GetActionItems(ctx, sid, meetingID); err == nil {
			data.ActionItems = items
		}
		return nil
	})
	g.Go(func() error {
		if attendees, err := h.api.GetAttendees(ctx, sid, meetingID); err == nil {
			data.Attendees = attendees
		}
		return nil
	})
	g.Go(func() error {
		if status, err := h.api.GetProcessingStatus(ctx, sid, meetingID); err == nil {
			data.Status = status
		}
		return nil
	})
	_ = g.Wait()

	render(w, meetingPageTemplate, data)
}

// NewMeetingPageHandler serves the creation wizard. Steps after the first
// need the meeting created in step one, carried in the query string.
func (h *MeetingHandlers) NewMeetingPageHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())

	step, _ := strconv.Atoi(r.URL.Query().Get("step"))
	if step < 1 || step > 4 {
		step = 1
	}

	data := MeetingNewPageData{
		User:      sessionctx.User(r.Context()),
		Step:      step,
		CSRFToken: h.csrfToken(w),
	}

	if step > 1 {
		meetingID := r.URL.Query().Get("meeting")
		meeting, err := h.api.GetMeeting(r.Context(), sid, meetingID)
		if err != nil {
			log.LogWarn("wizard meeting %q not found, restarting: %v", meetingID, err)
			http.Redirect(w, r, "/meetings/new", http.StatusFound)
			return
		}
		data.Meeting = meeting
	}
	if msg := r.URL.Query().Get("message"); msg != "" {
		data.Message = msg
		data.MessageType = "error"
	}

	render(w, meetingNewPageTemplate, data)
}

// CreateMeetingHandler handles wizard step one
func (h *MeetingHandlers) CreateMeetingHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())

	req := apiclient.CreateMeetingRequest{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Location:    strings.TrimSpace(r.PostFormValue("location")),
	}
	if req.Title == "" {
		h.wizardError(w, r, 1, "", "A title is required.")
		return
	}
	if raw := r.PostFormValue("meetingDateTime"); raw != "" {
		if when, err := time.ParseInLocation("2006-01-02T15:04", raw, time.Local); err == nil {
			req.MeetingDateTime = &when
		}
	}
	if raw := r.PostFormValue("durationMinutes"); raw != "" {
		req.DurationMinutes, _ = strconv.Atoi(raw)
	}

	meeting, err := h.api.CreateMeeting(r.Context(), sid, req)
	if err != nil {
		log.LogError("creating meeting: %v", err)
		h.wizardError(w, r, 1, "", "The meeting could not be created. Please try again.")
		return
	}

	http.Redirect(w, r, "/meetings/new?step=2&meeting="+url.QueryEscape(meeting.ID), http.StatusFound)
}

func (h *MeetingHandlers) wizardError(w http.ResponseWriter, r *http.Request, step int, meetingID, message string) {
	target := "/meetings/new?step=" + strconv.Itoa(step) + "&message=" + url.QueryEscape(message)
	if meetingID != "" {
		target += "&meeting=" + url.QueryEscape(meetingID)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// UploadAudioHandler handles wizard step two
func (h *MeetingHandlers) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	meetingID := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.wizardError(w, r, 2, meetingID, "No audio file was uploaded.")
		return
	}
	defer file.Close()

	if err := h.api.UploadAudio(r.Context(), sid, meetingID, header.Filename, file); err != nil {
		log.LogError("uploading audio for %s: %v", meetingID, err)
		h.wizardError(w, r, 2, meetingID, "The upload failed. Please try again.")
		return
	}

	http.Redirect(w, r, "/meetings/new?step=3&meeting="+url.QueryEscape(meetingID), http.StatusFound)
}

// InviteHandler handles wizard step three. Email addresses are accepted one
// per line or separated by commas; implausible entries are dropped.
func (h *MeetingHandlers) InviteHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	meetingID := r.PathValue("id")

	emails := splitEmails(r.PostFormValue("emails"))
	if len(emails) > 0 {
		if err := h.api.InviteParticipants(r.Context(), sid, meetingID, emails); err != nil {
			log.LogError("inviting participants to %s: %v", meetingID, err)
			h.wizardError(w, r, 3, meetingID, "The invitations could not be sent. Please try again.")
			return
		}
	}

	http.Redirect(w, r, "/meetings/new?step=4&meeting="+url.QueryEscape(meetingID), http.StatusFound)
}

func splitEmails(raw string) []string {
	var emails []string
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';' || r == ' '
	}) {
		email := emailutil.Normalize(field)
		if emailutil.IsPlausible(email) {
			emails = append(emails, email)
		}
	}
	return emails
}

// ProcessHandler kicks off minutes extraction and lands on the meeting page
func (h *MeetingHandlers) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	meetingID := r.PathValue("id")

	if err := h.api.StartProcessing(r.Context(), sid, meetingID); err != nil {
		log.LogError("starting processing for %s: %v", meetingID, err)
		h.wizardError(w, r, 4, meetingID, "Processing could not be started. Please try again.")
		return
	}

	http.Redirect(w, r, "/meetings/"+url.PathEscape(meetingID), http.StatusFound)
}

// DeleteMeetingHandler removes a meeting
func (h *MeetingHandlers) DeleteMeetingHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	meetingID := r.PathValue("id")

	if err := h.api.DeleteMeeting(r.Context(), sid, meetingID); err != nil {
		log.LogError("deleting meeting %s: %v", meetingID, err)
	}
	http.Redirect(w, r, "/meetings", http.StatusFound)
}

// ProcessingStreamHandler streams pipeline status as server-sent events,
// polling the backend until processing reaches a terminal state or the
// browser goes away
func (h *MeetingHandlers) ProcessingStreamHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	meetingID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func() bool {
		status, err := h.api.GetProcessingStatus(r.Context(), sid, meetingID)
		if err != nil {
			log.LogWarn("processing status for %s unavailable: %v", meetingID, err)
			return false
		}
		if err := sse.WriteMessage(w, flusher, status); err != nil {
			return true
		}
		return status.Terminal()
	}

	if emit() {
		return
	}

	ticker := time.NewTicker(processingPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if emit() {
				return
			}
		}
	}
}

// DocumentHandler streams the generated minutes document to the browser
func (h *MeetingHandlers) DocumentHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	meetingID := r.PathValue("id")

	documentID := r.URL.Query().Get("id")
	if documentID == "" {
		documentID = "minutes"
	}

	body, contentType, err := h.api.DownloadDocument(r.Context(), sid, meetingID, documentID)
	if err != nil {
		if apiclient.StatusCode(err) == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		log.LogError("downloading document %s/%s: %v", meetingID, documentID, err)
		http.Error(w, "Document unavailable", http.StatusBadGateway)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="minutes-`+meetingID+`"`)
	if _, err := io.Copy(w, body); err != nil {
		log.LogDebug("document stream interrupted: %v", err)
	}
}
