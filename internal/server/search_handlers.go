package server

import (
	"net/http"
	"strings"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
)

// SearchHandlers serves the search page
type SearchHandlers struct {
	api *apiclient.Client
}

// NewSearchHandlers creates search handlers
func NewSearchHandlers(api *apiclient.Client) *SearchHandlers {
	return &SearchHandlers{api: api}
}

// SearchPageHandler runs a search when a query or category is present and
// renders the results. A plain query uses the quick-search endpoint; adding
// a category switches to the advanced search.
func (h *SearchHandlers) SearchPageHandler(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionctx.SID(r.Context())

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	category := r.URL.Query().Get("category")

	data := SearchPageData{
		User:     sessionctx.User(r.Context()),
		Query:    query,
		Category: category,
	}

	switch {
	case query == "" && category == "":
		// Nothing to search yet
	case category != "" && query == "":
		results, err := h.api.SearchByCategory(r.Context(), sid, category)
		if err != nil {
			log.LogError("search failed: %v", err)
			data.Message = "Search is unavailable right now. Please try again."
			data.MessageType = "error"
			break
		}
		data.Results = results
		data.Searched = true
	case category != "":
		result, err := h.api.SearchMeetings(r.Context(), sid, apiclient.SearchRequest{
			Query:      query,
			Categories: []string{category},
		})
		if err != nil {
			log.LogError("search failed: %v", err)
			data.Message = "Search is unavailable right now. Please try again."
			data.MessageType = "error"
			break
		}
		data.Results = result.Meetings
		data.Searched = true
	default:
		results, err := h.api.QuickSearch(r.Context(), sid, query)
		if err != nil {
			log.LogError("search failed: %v", err)
			data.Message = "Search is unavailable right now. Please try again."
			data.MessageType = "error"
			break
		}
		data.Results = results
		data.Searched = true
	}

	render(w, searchPageTemplate, data)
}
