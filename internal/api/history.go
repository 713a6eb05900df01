package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxFieldNameLen bounds the {field} URL parameter.
const maxFieldNameLen = 64

// handleListHistoryFields returns the field names with recorded history.
func (s *Server) handleListHistoryFields(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history persistence is disabled")
		return
	}

	fields, err := s.history.Fields(r.Context())
	if err != nil {
		s.logger.Error("listing history fields", "error", err)
		writeInternalError(w, "failed to list history fields")
		return
	}
	if fields == nil {
		fields = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// handleGetFieldHistory returns recent history entries for one field.
func (s *Server) handleGetFieldHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history persistence is disabled")
		return
	}

	field := chi.URLParam(r, "field")
	if field == "" || len(field) > maxFieldNameLen {
		writeBadRequest(w, "invalid field name")
		return
	}

	limit, err := parseLimitParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.Recent(r.Context(), field, limit)
	if err != nil {
		s.logger.Error("querying field history", "field", field, "error", err)
		writeInternalError(w, "failed to query history")
		return
	}
	if len(entries) == 0 {
		writeNotFound(w, "no history for field")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"field":   field,
		"entries": entries,
	})
}

// parseLimitParam parses the optional ?limit= query parameter.
// Zero means "use the store default"; the store clamps oversized values.
func parseLimitParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return limit, nil
}
