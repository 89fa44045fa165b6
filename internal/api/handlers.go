package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/chatvault/chatvault/internal/query"
	"github.com/chatvault/chatvault/internal/scheduler"
)

// StatsResponse represents index statistics.
type StatsResponse struct {
	IndexedMessages int64             `json:"indexed_messages"`
	IndexCursor     int64             `json:"index_cursor"`
	Scheduler       *scheduler.Status `json:"scheduler,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// handleSearch runs a substring search over the index.
// Query params: q, page, page_size, conversations (comma-separated
// contact-group or conversation ids).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	opts := query.Options{
		Page:     intParam(r, "page", 1),
		PageSize: intParam(r, "page_size", query.DefaultPageSize),
	}
	if convs := r.URL.Query().Get("conversations"); convs != "" {
		for _, id := range strings.Split(convs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.Groups = append(opts.Groups, id)
			}
		}
	}

	result, err := s.engine.Search(r.Context(), q, opts)
	if err != nil {
		// Deliberately generic: no partial or misleading results.
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "Search failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleStats returns index statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.stats.Count()
	if err != nil {
		s.logger.Error("failed to count index entries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
		return
	}
	cursor, err := s.stats.Cursor()
	if err != nil {
		s.logger.Error("failed to read index cursor", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
		return
	}

	resp := StatsResponse{IndexedMessages: count, IndexCursor: cursor}
	if s.scheduler != nil {
		st := s.scheduler.Status()
		resp.Scheduler = &st
	}

	writeJSON(w, http.StatusOK, resp)
}

// intParam parses a positive integer query parameter, falling back to
// def on absence or garbage.
func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
