package server

import (
	"net/http"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
)

// SeriesHandlers serves the recurring-series pages
type SeriesHandlers struct {
	api *apiclient.Client
}

// NewSeriesHandlers creates series handlers
func NewSeriesHandlers(api *apiclient.Client) *SeriesHandlers {
	return &SeriesHandlers{api: api}
}

// SeriesListHandler lists all meeting series
func (h *SeriesHandlers) SeriesListHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())

	series, err := h.api.ListSeries(r.Context(), sid)
	if err != nil {
		log.LogError("listing series: %v", err)
	}

	render(w, seriesPageTemplate, SeriesPageData{
		User:   sessionctx.User(r.Context()),
		Series: series,
	})
}

// SeriesDetailHandler shows one series and its meetings
func (h *SeriesHandlers) SeriesDetailHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())
	seriesID := r.PathValue("id")

	series, err := h.api.GetSeries(r.Context(), sid, seriesID)
	if err != nil {
		if apiclient.StatusCode(err) == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		log.LogError("fetching series %s: %v", seriesID, err)
		http.Error(w, "Series unavailable", http.StatusBadGateway)
		return
	}

	render(w, seriesDetailPageTemplate, SeriesDetailPageData{
		User:     sessionctx.User(r.Context()),
		Series:   series,
		Meetings: series.Meetings,
	})
}
