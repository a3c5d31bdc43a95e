package api

import (
	"net/http"
	"strconv"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

func (s *Server) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token   string `json:"token"`
		URL     string `json:"url"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		Summary string `json:"summary"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	user, ok := s.userForToken(w, payload.Token)
	if !ok {
		return
	}

	entry, err := s.store.AddHistory(&user.ID, payload.URL, payload.Title, payload.Body, payload.Summary)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to add history")
		RespondWithError(w, http.StatusInternalServerError, "Failed to add content")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Content added successfully",
		"id":      entry.ID,
	})
}

func (s *Server) handleViewHistory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	user, ok := s.userForToken(w, payload.Token)
	if !ok {
		return
	}

	entries, err := s.store.HistoryForUser(user.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load history")
		RespondWithError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"username": user.Username,
		"content":  entries,
	})
}

// handleRecentHistory lists what the daemon itself summarized recently.
func (s *Server) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = s.app.Config().History.RecentLimit
	}
	entries, err := s.store.RecentHistory(limit)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	RespondWithJSON(w, http.StatusOK, entries)
}
